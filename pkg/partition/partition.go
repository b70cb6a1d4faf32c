// Package partition decomposes documents into text-bearing elements
// (titles, paragraphs, list items, tables) independent of the exact
// source format.
//
// Supported formats:
//   - pdf         poppler text layer, OCR through pdftoppm + tesseract
//   - docx        word/document.xml (docm, dotx share the container)
//   - doc         OLE2 WordDocument stream, piece table
//   - odt         content.xml
//   - pptx        ppt/slides/slideN.xml
//   - ppt         OLE2 "PowerPoint Document" records
//   - xlsx, xls   one table per sheet
//   - csv, tsv    one table
//   - html, htm   block elements, scripts and styles dropped
//   - eml         MIME text body, HTML body as a fallback
//   - images      tesseract
package partition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"docextract/pkg/capability"
)

// ElementType classifies an element.
type ElementType string

const (
	Title         ElementType = "Title"
	NarrativeText ElementType = "NarrativeText"
	ListItem      ElementType = "ListItem"
	Table         ElementType = "Table"
)

// Element is one structural unit of a document.
type Element struct {
	Type ElementType `json:"type"`
	Text string      `json:"text"`
	Page int         `json:"page,omitempty"` // page, slide or sheet number, 1-based
}

// Strategy selects how hard the partitioner works. Only PDFs distinguish them.
type Strategy string

const (
	StrategyAuto    Strategy = "auto"
	StrategyFast    Strategy = "fast"
	StrategyHiRes   Strategy = "hi_res"
	StrategyOCROnly Strategy = "ocr_only"
)

// ParseStrategy maps a config string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyFast:
		return StrategyFast, nil
	case StrategyHiRes:
		return StrategyHiRes, nil
	case StrategyOCROnly:
		return StrategyOCROnly, nil
	}
	return "", fmt.Errorf("unknown partition strategy %q", s)
}

// Options tunes a single Partition call.
type Options struct {
	Strategy  Strategy
	Languages []string // OCR languages, tesseract codes
}

var (
	// ErrUnsupported is returned for a format the partitioner has no parser for.
	ErrUnsupported = errors.New("partition: unsupported format")
	// ErrBackendUnavailable is returned when a strategy needs a tool that is not installed.
	ErrBackendUnavailable = errors.New("partition: backend unavailable")
)

// Partitioner is safe for concurrent use.
type Partitioner struct {
	caps *capability.Capabilities

	// Binaries overrides executable paths for external tools.
	Binaries map[capability.Tool]string
	// TempRoot receives per-call scratch directories.
	TempRoot string
	// Timeout bounds each external tool invocation. Zero means 2 minutes.
	Timeout time.Duration
}

// New returns a Partitioner that consults caps before launching tools.
func New(caps *capability.Capabilities) *Partitioner {
	return &Partitioner{caps: caps}
}

// Formats lists the tags Partition accepts.
func Formats() []string {
	return []string{"pdf", "docx", "docm", "dotx", "doc", "odt", "pptx", "pptm", "ppt", "xlsx", "xlsm", "xls", "csv", "tsv",
		"html", "htm", "eml", "bmp", "tiff", "tif", "heic", "jpg", "jpeg", "png"}
}

// Partition splits data into elements according to format.
func (p *Partitioner) Partition(ctx context.Context, data []byte, format string, opts Options) ([]Element, error) {
	switch strings.TrimLeft(strings.ToLower(format), ".") {
	case "pdf":
		return p.partitionPDF(ctx, data, opts)
	case "docx", "docm", "dotx":
		return partitionDocx(data)
	case "doc":
		return partitionDoc(data)
	case "odt":
		return partitionODT(data)
	case "pptx", "pptm":
		return partitionPptx(data)
	case "ppt":
		return partitionPPT(data)
	case "xlsx", "xlsm":
		return partitionXlsx(data)
	case "xls":
		return partitionXls(data)
	case "csv":
		return partitionDelimited(data, ',')
	case "tsv":
		return partitionDelimited(data, '\t')
	case "html", "htm":
		return partitionHTML(data)
	case "eml":
		return partitionEML(data)
	case "bmp", "tiff", "tif", "heic", "jpg", "jpeg", "png":
		return p.partitionImage(ctx, data, format, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, format)
}

// Join concatenates element texts with a blank line between them.
func Join(elements []Element) string {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		if t := strings.TrimSpace(el.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (p *Partitioner) binary(tool capability.Tool) string {
	if b, ok := p.Binaries[tool]; ok && b != "" {
		return b
	}
	return string(tool)
}

func (p *Partitioner) has(ctx context.Context, tool capability.Tool) bool {
	return p.caps != nil && p.caps.Has(ctx, tool)
}

// run executes an external tool under the partitioner timeout and returns stdout.
func (p *Partitioner) run(ctx context.Context, tool capability.Tool, args ...string) ([]byte, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary(tool), args...)
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", tool, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	return stdout.Bytes(), nil
}

var blankLine = regexp.MustCompile(`\r?\n[ \t\r]*\n`)

// paragraphs splits text on blank lines into NarrativeText elements.
func paragraphs(text string, page int) []Element {
	var out []Element
	for _, block := range blankLine.Split(text, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		out = append(out, Element{Type: NarrativeText, Text: block, Page: page})
	}
	return out
}
