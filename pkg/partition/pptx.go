package partition

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const (
	drawingNS = "http://schemas.openxmlformats.org/drawingml/2006/main"
	pmlNS     = "http://schemas.openxmlformats.org/presentationml/2006/main"
)

// Slides returns the slide parts of a pptx archive in slide-number order.
func Slides(zr *zip.Reader) []*zip.File {
	var slides []*zip.File
	for _, f := range zr.File {
		if slideNumber(f.Name) > 0 {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})
	return slides
}

// slideNumber parses ppt/slides/slideN.xml, 0 for anything else.
func slideNumber(name string) int {
	const prefix, suffix = "ppt/slides/slide", ".xml"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0
	}
	n, err := strconv.Atoi(name[len(prefix) : len(name)-len(suffix)])
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// partitionPptx emits one element per a:p paragraph. Paragraphs in title
// placeholders become Title.
func partitionPptx(data []byte) ([]Element, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	slides := Slides(r)
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides in presentation")
	}

	var out []Element
	for i, f := range slides {
		els, err := slideElements(f, i+1)
		if err != nil {
			return out, err
		}
		out = append(out, els...)
	}
	return out, nil
}

func slideElements(f *zip.File, page int) ([]Element, error) {
	rc, err := OpenPart(f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		out     []Element
		text    strings.Builder
		inPara  bool
		inText  bool
		isTitle bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == pmlNS && t.Name.Local == "sp":
				isTitle = false
			case t.Name.Space == pmlNS && t.Name.Local == "ph":
				switch attr(t, "type") {
				case "title", "ctrTitle":
					isTitle = true
				}
			case t.Name.Space == drawingNS && t.Name.Local == "p":
				inPara = true
				text.Reset()
			case t.Name.Space == drawingNS && t.Name.Local == "t":
				inText = inPara
			case t.Name.Space == drawingNS && t.Name.Local == "br":
				if inPara {
					text.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == drawingNS && t.Name.Local == "t":
				inText = false
			case t.Name.Space == drawingNS && t.Name.Local == "p":
				inPara = false
				if s := strings.TrimSpace(text.String()); s != "" {
					typ := NarrativeText
					if isTitle {
						typ = Title
					}
					out = append(out, Element{Type: typ, Text: s, Page: page})
				}
			case t.Name.Space == pmlNS && t.Name.Local == "sp":
				isTitle = false
			}
		}
	}
	return out, nil
}
