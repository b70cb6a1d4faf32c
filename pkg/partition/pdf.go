package partition

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"docextract/pkg/bridge"
	"docextract/pkg/capability"
	"docextract/pkg/utils"
)

// partitionPDF renders the text layer with pdftotext. When the text layer
// is empty (scanned documents) and OCR tools are installed, pages are
// rasterized and recognized instead.
func (p *Partitioner) partitionPDF(ctx context.Context, data []byte, opts Options) ([]Element, error) {
	strategy := opts.Strategy
	if strategy == "" || strategy == StrategyAuto {
		strategy = StrategyHiRes
	}

	scratch, err := bridge.NewScratch(p.TempRoot, "docextract-pdf-*")
	if err != nil {
		return nil, err
	}
	defer scratch.Close()

	input, err := scratch.WriteFile("input.pdf", data)
	if err != nil {
		return nil, err
	}

	if strategy != StrategyOCROnly {
		if !p.has(ctx, capability.PDFRenderer) {
			return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, capability.PDFRenderer)
		}
		args := []string{"-enc", "UTF-8"}
		if strategy == StrategyHiRes {
			args = append(args, "-layout")
		}
		args = append(args, input, "-")
		out, err := p.run(ctx, capability.PDFRenderer, args...)
		if err != nil {
			return nil, err
		}
		if elements := pdfPages(string(out)); len(elements) > 0 || strategy == StrategyFast {
			return elements, nil
		}
		utils.LogDebug("PDF text layer empty, trying OCR")
	}

	if !p.has(ctx, capability.PDFRaster) || !p.has(ctx, capability.OCR) {
		if strategy == StrategyOCROnly {
			return nil, fmt.Errorf("%w: %s and %s", ErrBackendUnavailable, capability.PDFRaster, capability.OCR)
		}
		return nil, nil
	}
	return p.ocrPDF(ctx, scratch, input, opts.Languages)
}

// pdfPages splits pdftotext output on form feeds, one page per chunk.
func pdfPages(text string) []Element {
	var out []Element
	for i, page := range strings.Split(text, "\f") {
		out = append(out, paragraphs(page, i+1)...)
	}
	return out
}

func (p *Partitioner) ocrPDF(ctx context.Context, scratch *bridge.Scratch, input string, languages []string) ([]Element, error) {
	prefix := scratch.Path("page")
	if _, err := p.run(ctx, capability.PDFRaster, "-r", "300", "-png", input, prefix); err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order.
	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Strings(images)

	lang := ocrLanguages(languages)

	var out []Element
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := p.run(ctx, capability.OCR, img, "stdout", "-l", lang)
		if err != nil {
			return nil, fmt.Errorf("ocr page %d: %w", i+1, err)
		}
		out = append(out, paragraphs(string(text), i+1)...)
	}
	return out, nil
}

// ocrLanguages renders a tesseract -l argument.
func ocrLanguages(languages []string) string {
	if len(languages) == 0 {
		return "eng"
	}
	return strings.Join(languages, "+")
}
