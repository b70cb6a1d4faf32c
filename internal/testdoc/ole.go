package testdoc

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

// Stream is one named stream of a compound file.
type Stream struct {
	Name string
	Data []byte
}

const (
	oleSector     = 512
	oleMiniCutoff = 4096
	oleFreeSect   = 0xFFFFFFFF
	oleEndOfChain = 0xFFFFFFFE
	oleFATSect    = 0xFFFFFFFD
	oleNoStream   = 0xFFFFFFFF
)

// OLE builds a version 3 compound file holding up to three streams. Each
// stream is padded to the mini stream cutoff so it lives in regular sectors.
func OLE(streams ...Stream) []byte {
	if len(streams) > oleSector/128-1 {
		panic("testdoc: too many OLE streams")
	}

	// sector 0 holds the FAT, sector 1 the directory, streams follow.
	fat := []uint32{oleFATSect, oleEndOfChain}
	starts := make([]uint32, len(streams))
	sizes := make([]int, len(streams))
	var body []byte
	for i, s := range streams {
		size := max(len(s.Data), oleMiniCutoff)
		n := (size + oleSector - 1) / oleSector
		starts[i] = uint32(len(fat))
		for j := 0; j < n; j++ {
			next := uint32(len(fat) + 1)
			if j == n-1 {
				next = oleEndOfChain
			}
			fat = append(fat, next)
		}
		sizes[i] = size
		padded := make([]byte, n*oleSector)
		copy(padded, s.Data)
		body = append(body, padded...)
	}
	if len(fat) > oleSector/4 {
		panic("testdoc: OLE streams exceed one FAT sector")
	}

	header := make([]byte, oleSector)
	copy(header, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	binary.LittleEndian.PutUint16(header[24:], 0x003E)
	binary.LittleEndian.PutUint16(header[26:], 3)
	binary.LittleEndian.PutUint16(header[28:], 0xFFFE)
	binary.LittleEndian.PutUint16(header[30:], 9)
	binary.LittleEndian.PutUint16(header[32:], 6)
	binary.LittleEndian.PutUint32(header[44:], 1) // FAT sectors
	binary.LittleEndian.PutUint32(header[48:], 1) // directory start
	binary.LittleEndian.PutUint32(header[56:], oleMiniCutoff)
	binary.LittleEndian.PutUint32(header[60:], oleEndOfChain)
	binary.LittleEndian.PutUint32(header[68:], oleEndOfChain)
	binary.LittleEndian.PutUint32(header[76:], 0)
	for off := 80; off < oleSector; off += 4 {
		binary.LittleEndian.PutUint32(header[off:], oleFreeSect)
	}

	fatSector := make([]byte, oleSector)
	for i := range oleSector / 4 {
		v := uint32(oleFreeSect)
		if i < len(fat) {
			v = fat[i]
		}
		binary.LittleEndian.PutUint32(fatSector[i*4:], v)
	}

	dir := make([]byte, oleSector)
	child := uint32(oleNoStream)
	if len(streams) > 0 {
		child = 1
	}
	dirEntry(dir[0:], "Root Entry", 5, oleNoStream, child, oleEndOfChain, 0)
	for i, s := range streams {
		right := uint32(oleNoStream)
		if i+1 < len(streams) {
			right = uint32(i + 2)
		}
		dirEntry(dir[(i+1)*128:], s.Name, 2, right, oleNoStream, starts[i], sizes[i])
	}

	out := make([]byte, 0, 3*oleSector+len(body))
	out = append(out, header...)
	out = append(out, fatSector...)
	out = append(out, dir...)
	return append(out, body...)
}

func dirEntry(b []byte, name string, objectType byte, right, child, start uint32, size int) {
	units := utf16.Encode([]rune(name))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[i*2:], u)
	}
	binary.LittleEndian.PutUint16(b[64:], uint16((len(units)+1)*2))
	b[66] = objectType
	b[67] = 1 // black
	binary.LittleEndian.PutUint32(b[68:], oleNoStream)
	binary.LittleEndian.PutUint32(b[72:], right)
	binary.LittleEndian.PutUint32(b[76:], child)
	binary.LittleEndian.PutUint32(b[116:], start)
	binary.LittleEndian.PutUint32(b[120:], uint32(size))
}

// Doc builds a Word 97 document whose piece table maps one compressed
// piece over the paragraphs, each terminated by a carriage return.
func Doc(paragraphs ...string) []byte {
	const textOffset = 0x800
	text := strings.Join(paragraphs, "\r") + "\r"

	var clx []byte
	clx = append(clx, 0x02)
	clx = binary.LittleEndian.AppendUint32(clx, 16)
	clx = binary.LittleEndian.AppendUint32(clx, 0)
	clx = binary.LittleEndian.AppendUint32(clx, uint32(len(text)))
	clx = append(clx, 0, 0)
	clx = binary.LittleEndian.AppendUint32(clx, 0x40000000|textOffset*2)
	clx = append(clx, 0, 0)

	word := make([]byte, textOffset+len(text))
	binary.LittleEndian.PutUint16(word[0x0000:], 0xA5EC) // wIdent
	binary.LittleEndian.PutUint16(word[0x000A:], 1<<9)   // fWhichTblStm: 1Table
	binary.LittleEndian.PutUint32(word[0x01A2:], 0)
	binary.LittleEndian.PutUint32(word[0x01A6:], uint32(len(clx)))
	copy(word[textOffset:], text)

	return OLE(Stream{Name: "WordDocument", Data: word}, Stream{Name: "1Table", Data: clx})
}

func pptRecord(verInst, typ uint16, body []byte) []byte {
	b := make([]byte, 8, 8+len(body))
	binary.LittleEndian.PutUint16(b[0:], verInst)
	binary.LittleEndian.PutUint16(b[2:], typ)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(body)))
	return append(b, body...)
}

// PPT builds a PowerPoint 97 file with one SlideListWithText entry per
// slide, each line stored as a UTF-16 text atom.
func PPT(slides ...[]string) []byte {
	var list []byte
	for i, lines := range slides {
		persist := make([]byte, 20)
		binary.LittleEndian.PutUint32(persist[0:], uint32(i+1))
		binary.LittleEndian.PutUint32(persist[12:], uint32(256+i))
		list = append(list, pptRecord(0, 0x03F3, persist)...)
		for _, line := range lines {
			var chars []byte
			for _, u := range utf16.Encode([]rune(line)) {
				chars = binary.LittleEndian.AppendUint16(chars, u)
			}
			list = append(list, pptRecord(0, 0x0F9F, []byte{1, 0, 0, 0})...) // TextHeaderAtom: body
			list = append(list, pptRecord(0, 0x0FA0, chars)...)
		}
	}
	document := pptRecord(0x000F, 0x0FF0, list)
	stream := pptRecord(0x000F, 0x03E8, document)
	return OLE(Stream{Name: "PowerPoint Document", Data: stream})
}

func biffRecord(typ uint16, body []byte) []byte {
	b := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint16(b[0:], typ)
	binary.LittleEndian.PutUint16(b[2:], uint16(len(body)))
	return append(b, body...)
}

func biffBOF(dt uint16) []byte {
	body := make([]byte, 16)
	binary.LittleEndian.PutUint16(body[0:], 0x0600) // BIFF8
	binary.LittleEndian.PutUint16(body[2:], dt)
	return biffRecord(0x0809, body)
}

// XLS builds a BIFF8 workbook with one worksheet per argument, sheets
// named Sheet1, Sheet2 and so on. Every cell is an 8-bit LABEL record.
func XLS(sheets ...[][]string) []byte {
	names := make([]string, len(sheets))
	globalsLen := len(biffBOF(0x0005)) + 4
	for i := range sheets {
		names[i] = "Sheet" + string(rune('1'+i))
		globalsLen += 4 + 8 + len(names[i])
	}

	var substreams []byte
	offsets := make([]uint32, len(sheets))
	for i, rows := range sheets {
		offsets[i] = uint32(globalsLen + len(substreams))
		substreams = append(substreams, biffBOF(0x0010)...)
		for r, row := range rows {
			for c, cell := range row {
				body := make([]byte, 9, 9+len(cell))
				binary.LittleEndian.PutUint16(body[0:], uint16(r))
				binary.LittleEndian.PutUint16(body[2:], uint16(c))
				binary.LittleEndian.PutUint16(body[4:], 15)
				binary.LittleEndian.PutUint16(body[6:], uint16(len(cell)))
				body = append(body, cell...)
				substreams = append(substreams, biffRecord(0x0204, body)...)
			}
		}
		substreams = append(substreams, biffRecord(0x000A, nil)...)
	}

	stream := biffBOF(0x0005)
	for i, name := range names {
		body := make([]byte, 8, 8+len(name))
		binary.LittleEndian.PutUint32(body[0:], offsets[i])
		body[6] = byte(len(name))
		body = append(body, name...)
		stream = append(stream, biffRecord(0x0085, body)...)
	}
	stream = append(stream, biffRecord(0x000A, nil)...)
	stream = append(stream, substreams...)
	return OLE(Stream{Name: "Workbook", Data: stream})
}
