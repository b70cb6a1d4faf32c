package partition

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

func openZip(data []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	return r, nil
}

// MaxPartSize bounds the decompressed size of a single archive part.
var MaxPartSize int64 = 256 << 20

// ErrPartTooLarge is returned for an archive part above MaxPartSize.
var ErrPartTooLarge = errors.New("partition: archive part too large")

// OpenPart opens an archive part, refusing parts that declare more than
// MaxPartSize bytes. archive/zip fails reads past the declared size.
func OpenPart(f *zip.File) (io.ReadCloser, error) {
	if f.UncompressedSize64 > uint64(MaxPartSize) {
		return nil, fmt.Errorf("%w: %s declares %d bytes", ErrPartTooLarge, f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	return rc, nil
}

func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := OpenPart(f)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// partitionDocx walks word/document.xml. Each w:p becomes one element;
// heading and title styles become Title, numbered paragraphs ListItem.
func partitionDocx(data []byte) ([]Element, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}
	body, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		out      []Element
		text     strings.Builder
		depth    int // nesting of w:p, text boxes may nest paragraphs
		inText   bool
		style    string
		numbered bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
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
				if depth == 0 {
					text.Reset()
					style = ""
					numbered = false
				}
				depth++
			case "pStyle":
				if depth > 0 {
					style = attr(t, "val")
				}
			case "numPr":
				numbered = depth > 0
			case "t":
				inText = depth > 0
			case "tab":
				if depth > 0 {
					text.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
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
				if depth == 0 {
					continue
				}
				depth--
				if depth > 0 {
					text.WriteByte('\n')
					continue
				}
				s := strings.TrimSpace(text.String())
				if s == "" {
					continue
				}
				typ := NarrativeText
				switch {
				case headingLevel(style) > 0:
					typ = Title
				case numbered:
					typ = ListItem
				}
				out = append(out, Element{Type: typ, Text: s})
			}
		}
	}
	return out, nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps a paragraph style name onto a heading level, 0 for body text.
// "Heading1" -> 1, "Title" -> 1, "Subtitle" -> 2.
func headingLevel(style string) int {
	lower := strings.ToLower(style)
	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := strings.TrimSpace(lower[len(prefix):])
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '9' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}
