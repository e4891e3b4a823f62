package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:       "https://api.example.com",
			TokenEnv:      "INTERPRETER_API_TOKEN",
			Timeout:       30,
			MaxRetries:    3,
			MaxConcurrent: 4,
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			SegmentDuration: 7.0,
			OverlapDuration: 2.0,
			Format:          "wav",
		},
		Session: SessionConfig{
			TargetLanguage:    "en",
			TranslationPreset: "general",
			EnableTranslation: true,
			StopFlushTimeout:  15,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "./history.db",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Address: "127.0.0.1",
			Port:    8090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "empty base URL",
			mutate:      func(c *Config) { c.API.BaseURL = "" },
			expectError: true,
			errorMsg:    "base_url cannot be empty",
		},
		{
			name:        "empty token env",
			mutate:      func(c *Config) { c.API.TokenEnv = "" },
			expectError: true,
			errorMsg:    "token_env cannot be empty",
		},
		{
			name:        "invalid sample rate",
			mutate:      func(c *Config) { c.Audio.SampleRate = 44100 },
			expectError: true,
			errorMsg:    "sample_rate must be one of",
		},
		{
			name:        "overlap exceeds segment",
			mutate:      func(c *Config) { c.Audio.OverlapDuration = 8.0 },
			expectError: true,
			errorMsg:    "must be less than segment_duration",
		},
		{
			name:        "invalid audio format",
			mutate:      func(c *Config) { c.Audio.Format = "mp3" },
			expectError: true,
			errorMsg:    "format must be 'wav' or 'opus'",
		},
		{
			name:        "empty target language",
			mutate:      func(c *Config) { c.Session.TargetLanguage = "" },
			expectError: true,
			errorMsg:    "target_language cannot be empty",
		},
		{
			name:        "history enabled without path",
			mutate:      func(c *Config) { c.History.Path = "" },
			expectError: true,
			errorMsg:    "path cannot be empty",
		},
		{
			name:        "invalid http port",
			mutate:      func(c *Config) { c.HTTP.Port = 70000 },
			expectError: true,
			errorMsg:    "http port must be between 1 and 65535",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "trace" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
api:
  base_url: "https://api.example.com"
  token_env: "INTERPRETER_API_TOKEN"
  timeout: 30
  max_retries: 3
  max_concurrent: 4
audio:
  sample_rate: 16000
  segment_duration: 7.0
  overlap_duration: 2.0
  format: "wav"
session:
  target_language: "en"
  translation_preset: "general"
  enable_translation: true
  stop_flush_timeout: 15
history:
  enabled: false
http:
  enabled: false
logging:
  level: "info"
  format: "json"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
api:
  base_url: "https://api.example.com"
  timeout: invalid_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
api:
  timeout: 30
`,
			expectError: true,
			errorMsg:    "base_url cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.configYAML), 0644)
			if err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	audio := AudioConfig{
		SegmentDuration: 7.5,
		OverlapDuration: 2.0,
	}

	if audio.GetSegmentDuration() != 7500*time.Millisecond {
		t.Errorf("Expected 7.5 seconds, got %v", audio.GetSegmentDuration())
	}

	if audio.GetOverlapDuration() != 2*time.Second {
		t.Errorf("Expected 2 seconds, got %v", audio.GetOverlapDuration())
	}

	api := APIConfig{Timeout: 30}
	if api.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", api.GetTimeoutDuration())
	}

	session := SessionConfig{StopFlushTimeout: 15}
	if session.GetStopFlushTimeout() != 15*time.Second {
		t.Errorf("Expected 15 seconds, got %v", session.GetStopFlushTimeout())
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name: "valid json to stdout",
			config: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			valid: true,
		},
		{
			name: "valid text to stderr",
			config: LoggingConfig{
				Level:  "debug",
				Format: "text",
				Output: "stderr",
			},
			valid: true,
		},
		{
			name: "invalid log level",
			config: LoggingConfig{
				Level:  "trace",
				Format: "json",
				Output: "stdout",
			},
			valid: false,
		},
		{
			name: "invalid format",
			config: LoggingConfig{
				Level:  "info",
				Format: "xml",
				Output: "stdout",
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > len(substr) && findSubstring(s, substr)))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
