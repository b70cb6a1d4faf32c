package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// PDFText reads the text layer page by page with ledongthuc/pdf. Pages are
// separated by a blank line.
func PDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader: panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			pages = append(pages, s)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

var defaultPDFConfig = sync.OnceValue(func() *model.Configuration {
	api.DisableConfigDir()
	return model.NewDefaultConfiguration()
})

// PDFContent validates the document with pdfcpu and reads the text
// operators in each page content stream. A nil conf uses pdfcpu defaults
// without touching the user configuration directory.
func PDFContent(data []byte, conf *model.Configuration) (string, error) {
	if conf == nil {
		c := *defaultPDFConfig()
		conf = &c
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	for nr := 1; nr <= ctx.PageCount; nr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, nr)
		if err != nil || r == nil {
			continue
		}
		stream, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if s := contentText(stream); s != "" {
			pages = append(pages, s)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// contentScanner tokenizes a content stream just far enough to follow the
// text showing and positioning operators.
type contentScanner struct {
	data []byte
	pos  int
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokString
	tokNumber
	tokOperator
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isSpace(c)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func (s *contentScanner) next() token {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			s.pos++
			return token{kind: tokString, text: decodePDFBytes(s.literal())}
		case c == '<' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '<',
			c == '>' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '>':
			s.pos += 2
			return token{kind: tokOther}
		case c == '<':
			s.pos++
			return token{kind: tokString, text: decodePDFBytes(s.hex())}
		case c == '[':
			s.pos++
			return token{kind: tokArrayStart}
		case c == ']':
			s.pos++
			return token{kind: tokArrayEnd}
		case c == '/':
			s.pos++
			s.word()
			return token{kind: tokOther}
		case isDelimiter(c):
			s.pos++
			return token{kind: tokOther}
		default:
			w := s.word()
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, num: n}
			}
			return token{kind: tokOperator, text: w}
		}
	}
	return token{kind: tokEOF}
}

func (s *contentScanner) word() string {
	start := s.pos
	for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal reads a (string) body after the opening parenthesis.
func (s *contentScanner) literal() []byte {
	var out []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out
			}
		case '\\':
			if s.pos >= len(s.data) {
				return out
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r', '\n':
				// line continuation
				if e == '\r' && s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						v = v*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					out = append(out, byte(v))
					continue
				}
				out = append(out, e)
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// hex reads a <hex string> body after the opening angle bracket.
func (s *contentScanner) hex() []byte {
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		if c := s.data[s.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// decodePDFBytes treats a UTF-16BE BOM as Unicode text and anything else
// as Windows-1252, the usual simple font encoding.
func decodePDFBytes(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// TJ kerning beyond this many thousandths of an em reads as a word gap.
const tjWordGap = -200

// contentText follows Tj, TJ, ' and " for text, and T*, Td, TD, Tm and ET
// for line breaks.
func contentText(stream []byte) string {
	var (
		sb      strings.Builder
		pending []string
		nums    []float64
		inArray bool
	)
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	show := func() {
		for _, s := range pending {
			sb.WriteString(s)
		}
	}

	sc := &contentScanner{data: stream}
	for {
		tok := sc.next()
		switch tok.kind {
		case tokEOF:
			return cleanLines(sb.String())
		case tokString:
			pending = append(pending, tok.text)
		case tokNumber:
			if inArray {
				if tok.num <= tjWordGap {
					pending = append(pending, " ")
				}
				continue
			}
			nums = append(nums, tok.num)
		case tokArrayStart:
			inArray = true
		case tokArrayEnd:
			inArray = false
		case tokOperator:
			switch tok.text {
			case "Tj", "TJ":
				show()
			case "'", `"`:
				newline()
				show()
			case "T*", "ET":
				newline()
			case "Td", "TD":
				if len(nums) >= 2 && nums[len(nums)-1] != 0 {
					newline()
				} else if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
			case "Tm":
				newline()
			}
			pending = pending[:0]
			nums = nums[:0]
		}
	}
}

// cleanLines trims every line and collapses runs of blank lines.
func cleanLines(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
