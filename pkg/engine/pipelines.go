package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docextract/pkg/capability"
	"docextract/pkg/document"
	"docextract/pkg/extractor"
	"docextract/pkg/partition"
	"docextract/pkg/utils"
)

func (e *Engine) attempts(format string) []Attempt {
	switch format {
	case "pdf":
		return e.pdfAttempts()
	case "docx", "docm", "dotx":
		return e.docxAttempts(format)
	case "doc":
		return []Attempt{
			e.bridged("doc", "docx", e.docxAttempts("docx")),
			e.partitioned("doc"),
			direct("raw decode", extractor.DecodeText),
		}
	case "odt":
		return []Attempt{
			e.partitioned("odt"),
			e.bridged("odt", "docx", e.docxAttempts("docx")),
		}
	case "pptx", "pptm":
		return e.pptxAttempts(format)
	case "ppt":
		return []Attempt{
			e.bridged("ppt", "pptx", e.pptxAttempts("pptx")),
			e.partitioned("ppt"),
		}
	case "xlsx", "xlsm", "csv", "tsv":
		return []Attempt{e.partitioned(format)}
	case "xls":
		return []Attempt{
			e.partitioned("xls"),
			e.bridged("xls", "xlsx", []Attempt{e.partitioned("xlsx")}),
		}
	case "html", "htm":
		return []Attempt{
			e.partitioned("html"),
			direct("raw decode", extractor.DecodeText),
		}
	case "eml":
		return []Attempt{
			e.partitioned("eml"),
			direct("raw decode", extractor.DecodeText),
		}
	case "bmp", "tiff", "tif", "heic", "jpg", "jpeg", "png":
		return []Attempt{e.partitioned(format, capability.OCR)}
	}
	return []Attempt{direct("raw decode", extractor.DecodeText)}
}

func (e *Engine) pdfAttempts() []Attempt {
	primary := e.partitioned("pdf", capability.PDFRenderer)
	if e.pdfStrategy == partition.StrategyOCROnly {
		primary = e.partitioned("pdf", capability.PDFRaster, capability.OCR)
	}
	return []Attempt{
		primary,
		direct("pdf text", extractor.PDFText),
		{
			Name: "pdf content streams",
			Run: func(_ context.Context, src document.SourceFile) (string, error) {
				conf, err := e.pdfcpuConfig()
				if err != nil {
					return "", err
				}
				// pdfcpu writes to its configuration while processing.
				c := *conf
				return extractor.PDFContent(src.Content, &c)
			},
		},
	}
}

func (e *Engine) docxAttempts(format string) []Attempt {
	return []Attempt{
		e.partitioned(format),
		direct("docx paragraphs", extractor.DocxParagraphs),
	}
}

func (e *Engine) pptxAttempts(format string) []Attempt {
	return []Attempt{
		e.partitioned(format),
		direct("pptx shapes", extractor.PptxShapes),
	}
}

// partitioned runs the partitioner for format and joins its elements.
func (e *Engine) partitioned(format string, requires ...capability.Tool) Attempt {
	opts := partition.Options{Languages: e.languages}
	if format == "pdf" {
		opts.Strategy = e.pdfStrategy
	}
	return Attempt{
		Name:     "partition " + format,
		Requires: requires,
		Run: func(ctx context.Context, src document.SourceFile) (string, error) {
			els, err := e.partitioner.Partition(ctx, src.Content, format, opts)
			if err != nil {
				return "", err
			}
			return partition.Join(els), nil
		},
	}
}

// bridged converts the input from one format to another and cascades
// through next on the converted bytes.
func (e *Engine) bridged(from, to string, next []Attempt) Attempt {
	return Attempt{
		Name:     fmt.Sprintf("bridge %s->%s", from, to),
		Requires: []capability.Tool{capability.Converter},
		Run: func(ctx context.Context, src document.SourceFile) (string, error) {
			out, err := e.converter.Convert(ctx, src.Content, from, to)
			if err != nil {
				return "", err
			}
			name := strings.TrimSuffix(src.Name, filepath.Ext(src.Name)) + "." + to
			text, prov := Cascade(ctx, e.caps, next, document.SourceFile{Name: name, Format: to, Content: out})
			if prov.Attempt != "" {
				utils.LogDebug("%s: converted to %s, text from %s", src.Name, to, prov.Attempt)
			}
			return text, nil
		},
	}
}

func direct(name string, fn extractor.Func) Attempt {
	return Attempt{
		Name: name,
		Run: func(_ context.Context, src document.SourceFile) (string, error) {
			return fn(src.Content)
		},
	}
}

// pdfcpuConfig loads the pdfcpu configuration once per capability cache.
// The on-disk user configuration is never read or written.
func (e *Engine) pdfcpuConfig() (*model.Configuration, error) {
	h, err := e.caps.Library("pdfcpu", func() (any, error) {
		api.DisableConfigDir()
		return model.NewDefaultConfiguration(), nil
	})
	if err != nil {
		return nil, err
	}
	return h.(*model.Configuration), nil
}
