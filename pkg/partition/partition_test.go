package partition

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/testdoc"
	"docextract/pkg/capability"
)

func TestPartitionDocx(t *testing.T) {
	data := testdoc.Docx("# Quarterly Report", "Revenue grew & costs fell.", "- first item", "")

	els, err := New(nil).Partition(context.Background(), data, "docx", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: Title, Text: "Quarterly Report"},
		{Type: NarrativeText, Text: "Revenue grew & costs fell."},
		{Type: ListItem, Text: "first item"},
	}, els)
	assert.Equal(t, "Quarterly Report\n\nRevenue grew & costs fell.\n\nfirst item", Join(els))
}

func TestPartitionDocxRejectsNonZip(t *testing.T) {
	_, err := New(nil).Partition(context.Background(), []byte("not a zip"), "docx", Options{})
	require.Error(t, err)
}

func TestPartitionODT(t *testing.T) {
	data := testdoc.Odt("Minutes", []string{"Attendees were present."}, []string{"Budget", "Hiring"})

	els, err := New(nil).Partition(context.Background(), data, ".ODT", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: Title, Text: "Minutes"},
		{Type: NarrativeText, Text: "Attendees were present."},
		{Type: ListItem, Text: "Budget"},
		{Type: ListItem, Text: "Hiring"},
	}, els)
}

func TestPartitionPptxOrdersSlides(t *testing.T) {
	slides := make([]testdoc.Slide, 11)
	for i := range slides {
		slides[i] = testdoc.Slide{Title: fmt.Sprintf("Slide %d", i+1)}
	}
	slides[0].Body = []string{"Intro body", "Second line"}

	els, err := New(nil).Partition(context.Background(), testdoc.Pptx(slides...), "pptx", Options{})
	require.NoError(t, err)
	require.Len(t, els, 13)
	assert.Equal(t, Element{Type: Title, Text: "Slide 1", Page: 1}, els[0])
	assert.Equal(t, Element{Type: NarrativeText, Text: "Intro body", Page: 1}, els[1])
	assert.Equal(t, Element{Type: NarrativeText, Text: "Second line", Page: 1}, els[2])
	assert.Equal(t, Element{Type: Title, Text: "Slide 2", Page: 2}, els[3])
	assert.Equal(t, Element{Type: Title, Text: "Slide 11", Page: 11}, els[12])
}

func TestPartitionXlsx(t *testing.T) {
	data := testdoc.Xlsx(map[string][][]string{
		"People": {{"name", "city"}, {"Alice", "Paris"}},
		"Empty":  {},
		"Totals": {{"sum", "2"}},
	}, "People", "Empty", "Totals")

	els, err := New(nil).Partition(context.Background(), data, "xlsx", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: Table, Text: "name\tcity\nAlice\tParis", Page: 1},
		{Type: Table, Text: "sum\t2", Page: 3},
	}, els)
}

func TestPartitionDelimited(t *testing.T) {
	els, err := New(nil).Partition(context.Background(), []byte("a,b,c\n1,\"two, too\",3\n\n4\n"), "csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{{Type: Table, Text: "a\tb\tc\n1\ttwo, too\t3\n4", Page: 1}}, els)

	els, err = New(nil).Partition(context.Background(), []byte("x\ty\n1\t2\n"), "tsv", Options{})
	require.NoError(t, err)
	assert.Equal(t, "x\ty\n1\t2", Join(els))

	els, err = New(nil).Partition(context.Background(), nil, "csv", Options{})
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestPartitionUnsupported(t *testing.T) {
	_, err := New(nil).Partition(context.Background(), []byte("x"), "zip", Options{})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestPartitionLegacyRejectsGarbage(t *testing.T) {
	for _, f := range []string{"doc", "ppt"} {
		_, err := New(nil).Partition(context.Background(), []byte("plain bytes, not OLE2"), f, Options{})
		assert.Error(t, err, f)
	}
	els, _ := New(nil).Partition(context.Background(), []byte("plain bytes, not OLE2"), "xls", Options{})
	assert.Empty(t, els)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("HI_RES")
	require.NoError(t, err)
	assert.Equal(t, StrategyHiRes, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyAuto, s)

	_, err = ParseStrategy("magic")
	require.Error(t, err)
}

// record encodes one PowerPoint record header plus body.
func record(verInst, typ uint16, body []byte) []byte {
	b := make([]byte, 8, 8+len(body))
	binary.LittleEndian.PutUint16(b[0:], verInst)
	binary.LittleEndian.PutUint16(b[2:], typ)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(body)))
	return append(b, body...)
}

func utf16le(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return out
}

func TestPPTRecords(t *testing.T) {
	var slide1, slide2 []byte
	slide1 = append(slide1, record(0, recTextCharsAtom, utf16le("Hello\rWorld"))...)
	slide1 = append(slide1, record(0, 0x0FA1, []byte{1, 2, 3, 4})...) // style atom, skipped
	slide2 = append(slide2, record(0, recTextBytesAtom, []byte("Caf\xe9"))...)
	slide2 = append(slide2, record(0, recTextCharsAtom, utf16le("Click to edit Master title style"))...)

	var stream []byte
	stream = append(stream, record(0x000F, recSlide, slide1)...)
	stream = append(stream, record(0x000F, recSlide, slide2)...)

	assert.Equal(t, []Element{
		{Type: NarrativeText, Text: "Hello\nWorld", Page: 1},
		{Type: NarrativeText, Text: "Café", Page: 2},
	}, pptRecords(stream))
}

func TestPPTRecordsTruncated(t *testing.T) {
	rec := record(0, recTextBytesAtom, []byte("abcdef"))
	assert.Empty(t, pptRecords(rec[:10]))
}

func TestPieceTableText(t *testing.T) {
	const textOffset = 0x200
	text := "Hello Word\rSecond para\r"

	word := make([]byte, textOffset+len(text))
	copy(word[textOffset:], text)

	var clx []byte
	clx = append(clx, 0x02)
	clx = binary.LittleEndian.AppendUint32(clx, 16)
	clx = binary.LittleEndian.AppendUint32(clx, 0)
	clx = binary.LittleEndian.AppendUint32(clx, uint32(len(text)))
	clx = append(clx, 0, 0)
	clx = binary.LittleEndian.AppendUint32(clx, 0x40000000|uint32(textOffset*2))
	clx = append(clx, 0, 0)

	binary.LittleEndian.PutUint32(word[fibFcClxOffset:], 0)
	binary.LittleEndian.PutUint32(word[fibLcbClxOffset:], uint32(len(clx)))

	assert.Equal(t, "Hello Word\nSecond para\n", pieceTableText(word, clx))
	assert.Equal(t, "", pieceTableText(word, nil))
}

func TestPrintableRunsAndFieldCodes(t *testing.T) {
	assert.Equal(t, "visible text\nmore\n", printableRuns([]byte("\x00\x01visible text\x00ab\x00more")))
	assert.Equal(t, "keep\nalso keep", dropFieldCodes("keep\n HYPERLINK \"http://x\" \nalso keep"))
}

func writeTool(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools")
	}
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return p
}

func TestPartitionPDFNeedsRenderer(t *testing.T) {
	p := New(capability.Static(nil))
	p.TempRoot = t.TempDir()

	_, err := p.Partition(context.Background(), testdoc.PDF("x"), "pdf", Options{Strategy: StrategyHiRes})
	require.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = p.Partition(context.Background(), testdoc.PDF("x"), "pdf", Options{Strategy: StrategyOCROnly})
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestPartitionPDFTextLayer(t *testing.T) {
	p := New(capability.Static(map[capability.Tool]bool{capability.PDFRenderer: true}))
	p.TempRoot = t.TempDir()
	p.Binaries = map[capability.Tool]string{
		capability.PDFRenderer: writeTool(t, "pdftotext", `printf 'First para\n\nSecond para\fPage two\f'`),
	}

	els, err := p.Partition(context.Background(), []byte("%PDF"), "pdf", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: NarrativeText, Text: "First para", Page: 1},
		{Type: NarrativeText, Text: "Second para", Page: 1},
		{Type: NarrativeText, Text: "Page two", Page: 2},
	}, els)

	entries, err := os.ReadDir(p.TempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPartitionPDFFallsBackToOCR(t *testing.T) {
	p := New(capability.Static(map[capability.Tool]bool{
		capability.PDFRenderer: true,
		capability.PDFRaster:   true,
		capability.OCR:         true,
	}))
	p.TempRoot = t.TempDir()
	p.Binaries = map[capability.Tool]string{
		capability.PDFRenderer: writeTool(t, "pdftotext", `printf '\f'`),
		// last argument is the output prefix
		capability.PDFRaster: writeTool(t, "pdftoppm", `for a; do prefix="$a"; done; : > "$prefix-2.png"; : > "$prefix-1.png"`),
		capability.OCR:       writeTool(t, "tesseract", `echo "recognized $(basename "$1") lang=$4"`),
	}

	els, err := p.Partition(context.Background(), []byte("%PDF"), "pdf", Options{Languages: []string{"eng", "deu"}})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: NarrativeText, Text: "recognized page-1.png lang=eng+deu", Page: 1},
		{Type: NarrativeText, Text: "recognized page-2.png lang=eng+deu", Page: 2},
	}, els)
}

func TestPartitionPDFNoOCRToolsYieldsEmpty(t *testing.T) {
	p := New(capability.Static(map[capability.Tool]bool{capability.PDFRenderer: true}))
	p.TempRoot = t.TempDir()
	p.Binaries = map[capability.Tool]string{
		capability.PDFRenderer: writeTool(t, "pdftotext", `exit 0`),
	}

	els, err := p.Partition(context.Background(), []byte("%PDF"), "pdf", Options{})
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestPartitionODTClampsSpaceRuns(t *testing.T) {
	content := `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text>` +
		`<text:p>a<text:s text:c="300000000"/>b</text:p></office:text></office:body></office:document-content>`
	data := testdoc.Zip([]string{"content.xml"}, map[string]string{"content.xml": content})

	els, err := New(nil).Partition(context.Background(), data, "odt", Options{})
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Len(t, els[0].Text, maxSpaceRun+2)
	assert.Equal(t, "a"+strings.Repeat(" ", maxSpaceRun)+"b", els[0].Text)
}

func TestArchivePartsAreBounded(t *testing.T) {
	defer func(n int64) { MaxPartSize = n }(MaxPartSize)
	MaxPartSize = 16

	data := testdoc.Docx("A paragraph long enough to exceed the limit")
	_, err := New(nil).Partition(context.Background(), data, "docx", Options{})
	require.ErrorIs(t, err, ErrPartTooLarge)

	// A part whose header understates its size fails at the declared size.
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		f.UncompressedSize64 = 8
		rc, err := OpenPart(f)
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.Error(t, err)
		assert.LessOrEqual(t, len(b), 8)
	}
}

func TestPPTSlideListPages(t *testing.T) {
	persist := make([]byte, 20)
	var list []byte
	list = append(list, record(0, recSlidePersist, persist)...)
	list = append(list, record(0, recTextCharsAtom, utf16le("First slide"))...)
	list = append(list, record(0, recSlidePersist, persist)...)
	list = append(list, record(0, recTextBytesAtom, []byte("Second slide"))...)

	var masters []byte
	masters = append(masters, record(0, recSlidePersist, persist)...)
	masters = append(masters, record(0, recTextCharsAtom, utf16le("Master footer"))...)

	var doc []byte
	doc = append(doc, record(0x001F, recSlideList, masters)...) // instance 1: masters
	doc = append(doc, record(0x000F, recSlideList, list)...)
	// Slide containers carry drawings only; they must not shift the list pages.
	doc = append(doc, record(0x000F, recSlide, nil)...)
	doc = append(doc, record(0x000F, recSlide, nil)...)
	stream := record(0x000F, 0x03E8, doc)

	assert.Equal(t, []Element{
		{Type: NarrativeText, Text: "Master footer", Page: 0},
		{Type: NarrativeText, Text: "First slide", Page: 1},
		{Type: NarrativeText, Text: "Second slide", Page: 2},
	}, pptRecords(stream))
}

func TestPartitionLegacyOLE(t *testing.T) {
	p := New(nil)
	ctx := context.Background()

	els, err := p.Partition(ctx, testdoc.Doc("Quarterly numbers", "Second paragraph"), "doc", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: NarrativeText, Text: "Quarterly numbers"},
		{Type: NarrativeText, Text: "Second paragraph"},
	}, els)

	els, err = p.Partition(ctx, testdoc.PPT([]string{"Title one", "Body one"}, []string{"Title two"}), "ppt", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: NarrativeText, Text: "Title one", Page: 1},
		{Type: NarrativeText, Text: "Body one", Page: 1},
		{Type: NarrativeText, Text: "Title two", Page: 2},
	}, els)

	els, err = p.Partition(ctx, testdoc.XLS(
		[][]string{{"name", "qty"}, {"apple", "3"}},
		[][]string{{"total"}},
	), "xls", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: Table, Text: "name\tqty\napple\t3", Page: 1},
		{Type: Table, Text: "total", Page: 2},
	}, els)
}

func TestPartitionImage(t *testing.T) {
	p := New(capability.Static(map[capability.Tool]bool{capability.OCR: true}))
	p.TempRoot = t.TempDir()
	p.Binaries = map[capability.Tool]string{
		capability.OCR: writeTool(t, "tesseract", `echo "text from $(basename "$1") lang=$4"`),
	}

	els, err := p.Partition(context.Background(), []byte("\x89PNG"), "PNG", Options{Languages: []string{"eng", "fra"}})
	require.NoError(t, err)
	assert.Equal(t, []Element{{Type: NarrativeText, Text: "text from input.png lang=eng+fra", Page: 1}}, els)

	els, err = p.Partition(context.Background(), []byte("II*\x00"), "tif", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{{Type: NarrativeText, Text: "text from input.tif lang=eng", Page: 1}}, els)
}

func TestPartitionImageNeedsOCR(t *testing.T) {
	_, err := New(capability.Static(nil)).Partition(context.Background(), []byte("BM"), "bmp", Options{})
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestPartitionHTML(t *testing.T) {
	ctx := context.Background()
	els, err := New(nil).Partition(ctx, []byte("<script>var x=1</script><p>Hello</p>"), "html", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Hello", Join(els))

	page := `<html><head><title>ignored</title><style>p{color:red}</style></head><body>
<h1>Release notes</h1>
<div>Loose intro text</div>
<p>First   paragraph
continues here.</p>
<ul><li>One</li><li>Two</li></ul>
<table><tr><th>k</th><th>v</th></tr><tr><td>a</td><td>1</td></tr></table>
<noscript>enable scripts</noscript>
</body></html>`
	els, err = New(nil).Partition(ctx, []byte(page), "HTM", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: Title, Text: "Release notes"},
		{Type: NarrativeText, Text: "Loose intro text"},
		{Type: NarrativeText, Text: "First paragraph continues here."},
		{Type: ListItem, Text: "One"},
		{Type: ListItem, Text: "Two"},
		{Type: Table, Text: "k\tv\na\t1"},
	}, els)
}

func TestPartitionEML(t *testing.T) {
	ctx := context.Background()
	plain := "MIME-Version: 1.0\r\nFrom: a@example.com\r\nTo: b@example.com\r\nSubject: Status update\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n\r\nAll systems nominal.\r\n\r\nSee you Monday.\r\n"
	els, err := New(nil).Partition(ctx, []byte(plain), "eml", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Element{
		{Type: Title, Text: "Status update"},
		{Type: NarrativeText, Text: "All systems nominal."},
		{Type: NarrativeText, Text: "See you Monday."},
	}, els)

	htmlOnly := "MIME-Version: 1.0\r\nFrom: a@example.com\r\nSubject: Newsletter\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n\r\n<html><body><script>track()</script><p>Hello</p></body></html>\r\n"
	els, err = New(nil).Partition(ctx, []byte(htmlOnly), "eml", Options{})
	require.NoError(t, err)
	text := Join(els)
	assert.Contains(t, text, "Hello")
	assert.NotContains(t, text, "<p>")
}
