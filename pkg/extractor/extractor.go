// Package extractor holds the single-library fallback extractors the
// engine reaches for once the partitioner has produced nothing. Each one
// takes the raw file bytes and returns plain text.
package extractor

// Func extracts plain text from raw file bytes.
type Func func(data []byte) (string, error)
