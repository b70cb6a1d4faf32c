package partition

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const odfTextNS = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"

// maxSpaceRun caps the repeat count of a text:s element.
const maxSpaceRun = 1024

// partitionODT walks content.xml: text:h becomes Title, text:p inside a
// list ListItem, any other text:p NarrativeText.
func partitionODT(data []byte) ([]Element, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}
	body, err := readZipFile(zr, "content.xml")
	if err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		out       []Element
		text      strings.Builder
		block     string // "h" or "p" while inside a top-level block
		depth     int
		listDepth int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("parse content.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != odfTextNS {
				continue
			}
			switch t.Name.Local {
			case "h", "p":
				if depth == 0 {
					block = t.Name.Local
					text.Reset()
				}
				depth++
			case "list-item":
				listDepth++
			case "s":
				if depth > 0 {
					n, err := strconv.Atoi(attr(t, "c"))
					if err != nil || n < 1 {
						n = 1
					}
					n = min(n, maxSpaceRun)
					text.WriteString(strings.Repeat(" ", n))
				}
			case "tab":
				if depth > 0 {
					text.WriteByte('\t')
				}
			case "line-break":
				if depth > 0 {
					text.WriteByte('\n')
				}
			}
		case xml.CharData:
			if depth > 0 {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != odfTextNS {
				continue
			}
			switch t.Name.Local {
			case "list-item":
				if listDepth > 0 {
					listDepth--
				}
			case "h", "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth > 0 {
					continue
				}
				s := strings.TrimSpace(text.String())
				if s == "" {
					continue
				}
				typ := NarrativeText
				switch {
				case block == "h":
					typ = Title
				case listDepth > 0:
					typ = ListItem
				}
				out = append(out, Element{Type: typ, Text: s})
			}
		}
	}
	return out, nil
}
