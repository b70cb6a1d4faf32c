// Package engine maps a declared format onto an ordered pipeline of
// extraction attempts and runs it. Only an unknown format is an error;
// everything else ends in a document, possibly with empty content.
package engine

import (
	"context"
	"sort"

	"docextract/pkg/bridge"
	"docextract/pkg/capability"
	"docextract/pkg/document"
	"docextract/pkg/partition"
	"docextract/pkg/utils"
)

// Family groups formats that share a pipeline shape.
type Family string

const (
	FamilyPDF          Family = "pdf"
	FamilyWord         Family = "word"
	FamilyPresentation Family = "presentation"
	FamilySpreadsheet  Family = "spreadsheet"
	FamilyText         Family = "text"
	FamilyImage        Family = "image"
)

var families = map[string]Family{
	"pdf": FamilyPDF,

	"docx": FamilyWord, "docm": FamilyWord, "dotx": FamilyWord,
	"doc": FamilyWord, "odt": FamilyWord,

	"pptx": FamilyPresentation, "pptm": FamilyPresentation, "ppt": FamilyPresentation,

	"xlsx": FamilySpreadsheet, "xlsm": FamilySpreadsheet, "xls": FamilySpreadsheet,
	"csv": FamilySpreadsheet, "tsv": FamilySpreadsheet,

	"html": FamilyText, "htm": FamilyText, "eml": FamilyText,

	"bmp": FamilyImage, "tiff": FamilyImage, "tif": FamilyImage, "heic": FamilyImage,
	"jpg": FamilyImage, "jpeg": FamilyImage, "png": FamilyImage,
}

// Plain text, markup, config and source code are decoded as is.
var textFormats = []string{
	"txt", "text", "log", "md", "mdx", "markdown", "rst", "rtf",
	"json", "jsonl", "xml", "css", "yaml", "yml", "toml",
	"ini", "cfg", "conf", "config", "env",
	"go", "py", "js", "jsx", "ts", "tsx", "vue", "svelte", "astro", "php",
	"rb", "rs", "swift", "kt", "java", "scala", "c", "h", "cpp", "hpp",
	"cs", "sh", "bash", "ps1", "bat", "sql", "lua", "pl", "r",
}

func init() {
	for _, f := range textFormats {
		families[f] = FamilyText
	}
}

// Pipeline is the ordered attempt list for one format.
type Pipeline struct {
	Family   Family
	Format   string
	Attempts []Attempt
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	// Capabilities answers tool availability. Nil probes the real binaries.
	Capabilities *capability.Capabilities
	// Converter bridges legacy formats. Nil runs soffice.
	Converter bridge.Converter
	// Partitioner is the primary extractor. Nil builds one on Capabilities.
	Partitioner *partition.Partitioner
	// PDFStrategy is handed to the partitioner for PDFs. Empty means hi_res.
	PDFStrategy partition.Strategy
	// Languages are the OCR languages for scanned PDFs.
	Languages []string
}

// Engine is safe for concurrent use; the capability cache is its only
// shared state.
type Engine struct {
	caps        *capability.Capabilities
	converter   bridge.Converter
	partitioner *partition.Partitioner
	pdfStrategy partition.Strategy
	languages   []string
}

// New builds an Engine from opts.
func New(opts Options) *Engine {
	e := &Engine{
		caps:        opts.Capabilities,
		converter:   opts.Converter,
		partitioner: opts.Partitioner,
		pdfStrategy: opts.PDFStrategy,
		languages:   opts.Languages,
	}
	if e.caps == nil {
		e.caps = capability.New(&capability.ExecProber{})
	}
	if e.converter == nil {
		e.converter = bridge.NewOffice("", 0, "")
	}
	if e.partitioner == nil {
		e.partitioner = partition.New(e.caps)
	}
	if e.pdfStrategy == "" || e.pdfStrategy == partition.StrategyAuto {
		e.pdfStrategy = partition.StrategyHiRes
	}
	return e
}

// Capabilities returns the engine's capability cache.
func (e *Engine) Capabilities() *capability.Capabilities {
	return e.caps
}

// Formats lists every accepted format tag, sorted.
func (e *Engine) Formats() []string {
	out := make([]string, 0, len(families))
	for f := range families {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Pipeline returns the attempts Extract would run for tag.
func (e *Engine) Pipeline(tag string) (Pipeline, error) {
	format := document.NormalizeFormat(tag)
	family, ok := families[format]
	if !ok {
		return Pipeline{}, &UnsupportedFormatError{Tag: tag}
	}
	return Pipeline{Family: family, Format: format, Attempts: e.attempts(format)}, nil
}

// Extract runs the pipeline for src.Format. The returned error is always
// an *UnsupportedFormatError; any other trouble shows up as empty content
// and in the provenance.
func (e *Engine) Extract(ctx context.Context, src document.SourceFile) (*document.ExtractedDocument, error) {
	p, err := e.Pipeline(src.Format)
	if err != nil {
		return nil, err
	}
	src.Format = p.Format

	text, prov := Cascade(ctx, e.caps, p.Attempts, src)
	prov.Family = string(p.Family)
	if prov.Attempt != "" {
		utils.LogDebug("%s: extracted %d bytes with %s", src.Name, len(text), prov.Attempt)
	} else if !prov.Canceled {
		utils.LogWarning("%s: no text extracted after %d attempts", src.Name, len(prov.Attempts))
	}
	return document.Assemble(text, document.MetadataOf(src), prov), nil
}
