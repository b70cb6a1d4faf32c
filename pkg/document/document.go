// Package document holds the input and output records of the extraction engine.
package document

import (
	"path/filepath"
	"strings"
)

// SourceFile is one uploaded file. It is never modified after construction.
type SourceFile struct {
	Name    string
	Format  string
	Content []byte
}

// NewSourceFile normalizes the format tag. An empty tag falls back to the
// extension of name.
func NewSourceFile(name, format string, content []byte) SourceFile {
	f := NormalizeFormat(format)
	if f == "" {
		f = NormalizeFormat(filepath.Ext(name))
	}
	return SourceFile{
		Name:    name,
		Format:  f,
		Content: content,
	}
}

// NormalizeFormat lower-cases a format tag and strips surrounding space and leading dots.
func NormalizeFormat(tag string) string {
	return strings.TrimLeft(strings.ToLower(strings.TrimSpace(tag)), ".")
}

// Metadata describes the source of an extracted document.
type Metadata struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
}

// MetadataOf returns the metadata of src.
func MetadataOf(src SourceFile) Metadata {
	return Metadata{
		Filename: src.Name,
		Format:   src.Format,
		Size:     int64(len(src.Content)),
	}
}

// Attempt statuses recorded in a Provenance.
const (
	StatusOK      = "ok"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// AttemptReport is the diagnostic record of one attempt in a cascade.
type AttemptReport struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Provenance records which attempt produced the content and what happened
// to every attempt that ran before it.
type Provenance struct {
	Family   string          `json:"family"`
	Attempt  string          `json:"attempt,omitempty"` // empty when nothing produced text
	Attempts []AttemptReport `json:"attempts"`
	Canceled bool            `json:"canceled,omitempty"`
}

// ExtractedDocument is the final output for one source file.
type ExtractedDocument struct {
	Content    string     `json:"content"`
	Metadata   Metadata   `json:"metadata"`
	Provenance Provenance `json:"provenance"`
}

// Assemble wraps text and metadata into an ExtractedDocument.
func Assemble(text string, meta Metadata, prov Provenance) *ExtractedDocument {
	return &ExtractedDocument{
		Content:    text,
		Metadata:   meta,
		Provenance: prov,
	}
}

// Empty reports whether the document carries no text beyond whitespace.
func (d *ExtractedDocument) Empty() bool {
	return strings.TrimSpace(d.Content) == ""
}
