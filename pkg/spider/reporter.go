package spider

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"docextract/pkg/document"
	"docextract/pkg/utils"
)

// Record is one reported document.
type Record struct {
	Path      string                      `json:"path"`
	Host      string                      `json:"host,omitempty"`
	Share     string                      `json:"share,omitempty"`
	Hash      string                      `json:"sha256"`
	Reason    string                      `json:"reason"`
	TextPath  string                      `json:"text_path,omitempty"`
	Timestamp string                      `json:"timestamp"`
	Document  *document.ExtractedDocument `json:"document"`
}

type Reporter interface {
	Report(Record)
	Close()
}

// JSONReporter writes one JSON object per line.
type JSONReporter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

func NewJSONReporter(path string) (*JSONReporter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &JSONReporter{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (r *JSONReporter) Report(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().Format(time.RFC3339)
	}
	if err := r.enc.Encode(rec); err != nil {
		utils.LogError("Failed to write report for %s: %v", rec.Path, err)
	}
}

func (r *JSONReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}

// ConsoleReporter prints a one-line summary per document.
type ConsoleReporter struct{}

func (c *ConsoleReporter) Report(rec Record) {
	doc := rec.Document
	attempt := doc.Provenance.Attempt
	if attempt == "" {
		attempt = "none"
	}
	utils.LogSuccess("%s (%s): %d chars via %s [%s]", rec.Path, doc.Metadata.Format, len(doc.Content), attempt, rec.Reason)
}

func (c *ConsoleReporter) Close() {}

// MultiReporter fans a record out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(rec Record) {
	for _, r := range m {
		r.Report(rec)
	}
}

func (m MultiReporter) Close() {
	for _, r := range m {
		r.Close()
	}
}
