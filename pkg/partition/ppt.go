package partition

import (
	"encoding/binary"
	"errors"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// PowerPoint 97-2003 record types that carry text.
const (
	recTextCharsAtom = 0x0FA0 // UTF-16LE
	recTextBytesAtom = 0x0FA8 // 8-bit, Windows-1252
	recSlide         = 0x03EE
	recSlidePersist  = 0x03F3
	recSlideList     = 0x0FF0 // SlideListWithText
	recContainer     = 0x0F
)

// pptFrame is an open container on the record walk.
type pptFrame struct {
	end  int
	typ  uint16
	inst uint16
}

// Master slide placeholders that leak into the document stream.
var pptPlaceholderText = []string{
	"Click to edit Master title style",
	"Click to edit Master text styles",
	"Click to edit Master subtitle style",
}

var pptPlaceholderExact = map[string]bool{
	"*":            true,
	"Second level": true,
	"Third level":  true,
	"Fourth level": true,
	"Fifth level":  true,
}

func partitionPPT(data []byte) ([]Element, error) {
	streams, err := oleStreams(data, "PowerPoint Document")
	if err != nil {
		return nil, err
	}
	doc := streams["PowerPoint Document"]
	if len(doc) == 0 {
		return nil, errors.New("PowerPoint Document stream not found")
	}
	return pptRecords(doc), nil
}

// pptRecords walks the record tree. Containers (recVer 0xF) are descended
// into; atoms are skipped unless they hold text. Text under the slide list
// (SlideListWithText, instance 0) is paged by its SlidePersistAtoms; text
// inside a Slide container takes that slide's ordinal. Anything else,
// masters and notes included, has no page.
func pptRecords(data []byte) []Element {
	var out []Element
	var stack []pptFrame
	listPage, slidePage := 0, 0
	dec := charmap.Windows1252.NewDecoder()

	for pos := 0; pos+8 <= len(data); {
		for len(stack) > 0 && stack[len(stack)-1].end <= pos {
			stack = stack[:len(stack)-1]
		}
		verInst := binary.LittleEndian.Uint16(data[pos:])
		typ := binary.LittleEndian.Uint16(data[pos+2:])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		pos += 8
		if size < 0 || size > len(data)-pos {
			break
		}

		if verInst&0x0F == recContainer {
			if typ == recSlide {
				slidePage++
			}
			stack = append(stack, pptFrame{end: pos + size, typ: typ, inst: verInst >> 4})
			continue
		}

		inSlideList := inPPTFrame(stack, recSlideList, 0)
		if typ == recSlidePersist && inSlideList {
			listPage++
			pos += size
			continue
		}
		page := 0
		switch {
		case inSlideList:
			page = listPage
		case inPPTFrame(stack, recSlide, -1):
			page = slidePage
		}

		body := data[pos : pos+size]
		pos += size

		var text string
		switch typ {
		case recTextCharsAtom:
			units := make([]uint16, len(body)/2)
			for i := range units {
				units[i] = binary.LittleEndian.Uint16(body[i*2:])
			}
			text = string(utf16.Decode(units))
		case recTextBytesAtom:
			b, err := dec.Bytes(body)
			if err != nil {
				continue
			}
			text = string(b)
		default:
			continue
		}

		// PowerPoint uses CR as paragraph separator and VT as line break.
		text = strings.NewReplacer("\r", "\n", "\v", "\n").Replace(text)
		text = strings.TrimSpace(text)
		if text == "" || isPlaceholderText(text) {
			continue
		}
		out = append(out, Element{Type: NarrativeText, Text: text, Page: page})
	}
	return out
}

// inPPTFrame reports whether an open container has type typ and, when inst
// is not negative, that instance.
func inPPTFrame(stack []pptFrame, typ uint16, inst int) bool {
	for _, f := range stack {
		if f.typ == typ && (inst < 0 || int(f.inst) == inst) {
			return true
		}
	}
	return false
}

func isPlaceholderText(s string) bool {
	if pptPlaceholderExact[s] {
		return true
	}
	for _, p := range pptPlaceholderText {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
