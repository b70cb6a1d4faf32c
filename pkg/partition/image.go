package partition

import (
	"context"
	"fmt"
	"strings"

	"docextract/pkg/bridge"
	"docextract/pkg/capability"
)

// partitionImage runs tesseract over a raster image. The whole image is page 1.
func (p *Partitioner) partitionImage(ctx context.Context, data []byte, format string, opts Options) ([]Element, error) {
	if !p.has(ctx, capability.OCR) {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, capability.OCR)
	}
	scratch, err := bridge.NewScratch(p.TempRoot, "docextract-img-*")
	if err != nil {
		return nil, err
	}
	defer scratch.Close()

	// tesseract picks its decoder from the file extension.
	input, err := scratch.WriteFile("input."+strings.ToLower(strings.TrimLeft(format, ".")), data)
	if err != nil {
		return nil, err
	}
	text, err := p.run(ctx, capability.OCR, input, "stdout", "-l", ocrLanguages(opts.Languages))
	if err != nil {
		return nil, err
	}
	return paragraphs(string(text), 1), nil
}
