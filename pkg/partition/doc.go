package partition

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// FIB offsets of the CLX location in the table stream (Word 97+).
const (
	fibFlagsOffset  = 0x000A
	fibFcClxOffset  = 0x01A2
	fibLcbClxOffset = 0x01A6
	fWhichTblStm    = 1 << 9
)

// oleStreams reads the named streams of an OLE2 compound file.
func oleStreams(data []byte, names ...string) (map[string][]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open compound file: %w", err)
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make(map[string][]byte)
	for {
		entry, err := doc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read compound file: %w", err)
		}
		if !want[entry.Name] {
			continue
		}
		if _, seen := out[entry.Name]; seen {
			continue
		}
		b, err := io.ReadAll(entry)
		if err != nil {
			return out, fmt.Errorf("read stream %q: %w", entry.Name, err)
		}
		out[entry.Name] = b
	}
	return out, nil
}

// partitionDoc extracts the main text of a Word 97-2003 binary document.
// The piece table is used when present; otherwise the WordDocument stream
// is scanned for printable runs.
func partitionDoc(data []byte) ([]Element, error) {
	streams, err := oleStreams(data, "WordDocument", "0Table", "1Table")
	if err != nil {
		return nil, err
	}
	word := streams["WordDocument"]
	if len(word) == 0 {
		return nil, errors.New("WordDocument stream not found")
	}

	table := streams["0Table"]
	if len(word) > fibFlagsOffset+2 && binary.LittleEndian.Uint16(word[fibFlagsOffset:])&fWhichTblStm != 0 {
		table = streams["1Table"]
	}

	text := pieceTableText(word, table)
	if strings.TrimSpace(text) == "" {
		text = printableRuns(word)
	}
	text = dropFieldCodes(text)

	var out []Element
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, Element{Type: NarrativeText, Text: s})
		}
	}
	return out, nil
}

// pieceTableText follows the CLX piece descriptors to reassemble the
// document text from the WordDocument stream.
func pieceTableText(word, table []byte) string {
	if len(word) < fibLcbClxOffset+4 || len(table) == 0 {
		return ""
	}
	fcClx := binary.LittleEndian.Uint32(word[fibFcClxOffset:])
	lcbClx := binary.LittleEndian.Uint32(word[fibLcbClxOffset:])
	if lcbClx == 0 || uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return ""
	}
	clx := table[fcClx : fcClx+lcbClx]

	// Skip Prc entries (0x01) up to the Pcdt (0x02).
	pos := 0
	for pos < len(clx) && clx[pos] == 0x01 {
		if pos+3 > len(clx) {
			return ""
		}
		pos += 3 + int(binary.LittleEndian.Uint16(clx[pos+1:]))
	}
	if pos+5 > len(clx) || clx[pos] != 0x02 {
		return ""
	}
	lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
	pos += 5
	if lcb < 16 || pos+lcb > len(clx) {
		return ""
	}
	plc := clx[pos : pos+lcb]

	// PlcPcd: n+1 character positions followed by n 8-byte descriptors.
	n := (lcb - 4) / 12
	cps := (n + 1) * 4

	var sb strings.Builder
	for i := 0; i < n; i++ {
		cpStart := binary.LittleEndian.Uint32(plc[i*4:])
		cpEnd := binary.LittleEndian.Uint32(plc[(i+1)*4:])
		if cpEnd <= cpStart {
			continue
		}
		count := int(cpEnd - cpStart)
		pcd := plc[cps+i*8:]
		fc := binary.LittleEndian.Uint32(pcd[2:])
		compressed := fc&0x40000000 != 0
		fc &= 0x3FFFFFFF

		if compressed {
			off := int(fc / 2)
			if off < 0 || off+count > len(word) {
				continue
			}
			for _, b := range word[off : off+count] {
				writeDocChar(&sb, rune(b))
			}
			continue
		}

		off := int(fc)
		if off < 0 || off+count*2 > len(word) {
			continue
		}
		units := make([]uint16, count)
		for j := range units {
			units[j] = binary.LittleEndian.Uint16(word[off+j*2:])
		}
		for _, r := range utf16.Decode(units) {
			writeDocChar(&sb, r)
		}
	}
	return sb.String()
}

// writeDocChar maps Word control characters onto plain text.
func writeDocChar(sb *strings.Builder, r rune) {
	switch {
	case r == 0x0D || r == 0x0B || r == 0x0C:
		sb.WriteByte('\n')
	case r == 0x07:
		sb.WriteByte('\t')
	case r == 0x09 || r >= 0x20:
		sb.WriteRune(r)
	}
}

// printableRuns keeps runs of printable ASCII of at least four bytes.
func printableRuns(b []byte) string {
	var sb strings.Builder
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= 4 {
			sb.Write(b[start:end])
			sb.WriteByte('\n')
		}
		start = -1
	}
	for i, c := range b {
		if c >= 0x20 && c < 0x7F || c == '\t' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(b))
	return sb.String()
}

var fieldCodeMarkers = []string{"HYPERLINK", "PAGEREF", "MERGEFORMAT", "TOC \\o", "TOC \\h"}

// dropFieldCodes removes lines that carry Word field instructions.
func dropFieldCodes(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		code := false
		for _, m := range fieldCodeMarkers {
			if strings.Contains(line, m) {
				code = true
				break
			}
		}
		if !code {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
