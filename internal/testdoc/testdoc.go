// Package testdoc builds small but structurally valid office and PDF
// documents for tests.
package testdoc

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Zip packs files (name -> content) into an archive, in the given order of names.
func Zip(names []string, files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
</Types>`

const packageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

// Docx builds a Word document with one paragraph per argument. A leading
// "# " marks a Heading1 paragraph, a leading "- " a numbered list item.
func Docx(paragraphs ...string) []byte {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p>")
		switch {
		case strings.HasPrefix(p, "# "):
			p = p[2:]
			body.WriteString(`<w:pPr><w:pStyle w:val="Heading1"/></w:pPr>`)
		case strings.HasPrefix(p, "- "):
			p = p[2:]
			body.WriteString(`<w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr>`)
		}
		fmt.Fprintf(&body, `<w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, html.EscapeString(p))
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	names := []string{"[Content_Types].xml", "_rels/.rels", "word/_rels/document.xml.rels", "word/document.xml"}
	return Zip(names, map[string]string{
		"[Content_Types].xml":          contentTypes,
		"_rels/.rels":                  packageRels,
		"word/_rels/document.xml.rels": documentRels,
		"word/document.xml":            doc,
	})
}

// Slide is the content of one presentation slide.
type Slide struct {
	Title string
	Body  []string
}

func shape(placeholder string, paragraphs []string) string {
	var sb strings.Builder
	sb.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="1" name="shape"/><p:cNvSpPr/><p:nvPr>`)
	if placeholder != "" {
		fmt.Fprintf(&sb, `<p:ph type="%s"/>`, placeholder)
	}
	sb.WriteString(`</p:nvPr></p:nvSpPr><p:txBody><a:bodyPr/>`)
	for _, p := range paragraphs {
		fmt.Fprintf(&sb, `<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, html.EscapeString(p))
	}
	sb.WriteString(`</p:txBody></p:sp>`)
	return sb.String()
}

// Pptx builds a presentation. Slide parts are written out of order so
// readers must sort them numerically.
func Pptx(slides ...Slide) []byte {
	files := map[string]string{"[Content_Types].xml": contentTypes}
	names := []string{"[Content_Types].xml"}
	for i := len(slides) - 1; i >= 0; i-- {
		s := slides[i]
		var tree strings.Builder
		if s.Title != "" {
			tree.WriteString(shape("title", []string{s.Title}))
		}
		if len(s.Body) > 0 {
			tree.WriteString(shape("", s.Body))
		}
		name := fmt.Sprintf("ppt/slides/slide%d.xml", i+1)
		names = append(names, name)
		files[name] = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree>` +
			tree.String() + `</p:spTree></p:cSld></p:sld>`
	}
	return Zip(names, files)
}

// Odt builds an OpenDocument text with a heading, paragraphs and a list.
func Odt(heading string, paragraphs []string, items []string) []byte {
	var body strings.Builder
	fmt.Fprintf(&body, `<text:h text:outline-level="1">%s</text:h>`, html.EscapeString(heading))
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<text:p>%s</text:p>`, html.EscapeString(p))
	}
	if len(items) > 0 {
		body.WriteString("<text:list>")
		for _, it := range items {
			fmt.Fprintf(&body, `<text:list-item><text:p>%s</text:p></text:list-item>`, html.EscapeString(it))
		}
		body.WriteString("</text:list>")
	}
	content := `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text>` +
		body.String() + `</office:text></office:body></office:document-content>`
	return Zip([]string{"mimetype", "content.xml"}, map[string]string{
		"mimetype":    "application/vnd.oasis.opendocument.text",
		"content.xml": content,
	})
}

// Xlsx builds a workbook. Each sheet is a list of rows.
func Xlsx(sheets map[string][][]string, order ...string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				panic(err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			panic(err)
		}
		for r, row := range sheets[name] {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					panic(err)
				}
				if err := f.SetCellValue(name, cell, v); err != nil {
					panic(err)
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func pdfEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`).Replace(s)
}

// PDF builds a one-page PDF whose text layer shows each line with Helvetica.
func PDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n72 720 Td\n14 TL\n")
	for i, l := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", pdfEscape(l))
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
