// Package pipeline orchestrates the interpretation flow: audio frames are
// assembled into overlapping segments, submitted concurrently, and the
// out-of-order results are correlated into an ordered transcript.
package pipeline
