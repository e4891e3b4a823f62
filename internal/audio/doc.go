// Package audio provides segment assembly, PCM encoding and capture frame
// sources for the interpreter pipeline.
package audio
