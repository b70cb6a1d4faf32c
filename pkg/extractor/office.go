package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"docextract/pkg/partition"
)

const (
	wordNS    = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	drawingNS = "http://schemas.openxmlformats.org/drawingml/2006/main"
	pmlNS     = "http://schemas.openxmlformats.org/presentationml/2006/main"
)

// DocxParagraphs returns the text of every body paragraph, one per line.
func DocxParagraphs(data []byte) (string, error) {
	if err := checkPartSizes(data); err != nil {
		return "", err
	}
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	paras, err := wordParagraphs(r.Editable().GetContent())
	if err != nil {
		return "", err
	}
	return strings.Join(paras, "\n"), nil
}

// checkPartSizes rejects archives whose parts declare more than
// partition.MaxPartSize bytes; the docx reader inflates every part.
func checkPartSizes(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.UncompressedSize64 > uint64(partition.MaxPartSize) {
			return fmt.Errorf("%w: %s declares %d bytes", partition.ErrPartTooLarge, f.Name, f.UncompressedSize64)
		}
	}
	return nil
}

func wordParagraphs(content string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var (
		out    []string
		text   strings.Builder
		inPara bool
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if !inPara {
					text.Reset()
				}
				inPara = true
			case "t":
				inText = inPara
			case "tab":
				if inPara {
					text.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					text.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					out = append(out, text.String())
				}
				inPara = false
			}
		}
	}
}

// PptxShapes returns the text of every shape on every slide, in slide
// order, shapes separated by a blank line.
func PptxShapes(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}

	var shapes []string
	for _, f := range partition.Slides(zr) {
		s, err := slideShapes(f)
		if err != nil {
			return strings.Join(shapes, "\n\n"), err
		}
		shapes = append(shapes, s...)
	}
	return strings.Join(shapes, "\n\n"), nil
}

func slideShapes(f *zip.File) ([]string, error) {
	rc, err := partition.OpenPart(f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		out    []string
		lines  []string
		line   strings.Builder
		depth  int // p:sp nesting, group shapes nest
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == pmlNS && t.Name.Local == "sp":
				if depth == 0 {
					lines = lines[:0]
				}
				depth++
			case t.Name.Space == drawingNS && t.Name.Local == "p":
				line.Reset()
			case t.Name.Space == drawingNS && t.Name.Local == "t":
				inText = depth > 0
			case t.Name.Space == drawingNS && t.Name.Local == "br":
				line.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == drawingNS && t.Name.Local == "t":
				inText = false
			case t.Name.Space == drawingNS && t.Name.Local == "p":
				if depth > 0 {
					lines = append(lines, line.String())
				}
			case t.Name.Space == pmlNS && t.Name.Local == "sp":
				if depth == 0 {
					continue
				}
				depth--
				if depth > 0 {
					continue
				}
				if s := strings.TrimSpace(strings.Join(lines, "\n")); s != "" {
					out = append(out, s)
				}
			}
		}
	}
}
