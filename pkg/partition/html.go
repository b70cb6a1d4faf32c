package partition

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// partitionHTML maps headings to Title, paragraphs to NarrativeText, list
// items to ListItem and tables to Table. Text outside those blocks is
// collected into NarrativeText between them.
func partitionHTML(data []byte) ([]Element, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return htmlElements(doc), nil
}

type htmlWalker struct {
	out     []Element
	pending []string
}

func htmlElements(doc *html.Node) []Element {
	w := &htmlWalker{}
	w.walk(doc)
	w.flush()
	return w.out
}

func (w *htmlWalker) emit(t ElementType, text string) {
	w.flush()
	if text != "" {
		w.out = append(w.out, Element{Type: t, Text: text})
	}
}

func (w *htmlWalker) flush() {
	if text := strings.Join(w.pending, " "); text != "" {
		w.out = append(w.out, Element{Type: NarrativeText, Text: text})
	}
	w.pending = nil
}

func (w *htmlWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if text := collapse(n.Data); text != "" {
			w.pending = append(w.pending, text)
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			w.emit(Title, htmlText(n))
			return
		case atom.P, atom.Pre, atom.Blockquote:
			w.emit(NarrativeText, htmlText(n))
			return
		case atom.Li:
			w.emit(ListItem, htmlText(n))
			return
		case atom.Table:
			w.emit(Table, htmlTable(n))
			return
		case atom.Div, atom.Section, atom.Article, atom.Ul, atom.Ol, atom.Br, atom.Hr:
			w.flush()
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// htmlText returns the visible text of a subtree with whitespace collapsed.
func htmlText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			if text := collapse(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// htmlTable renders rows on lines and cells separated by tabs.
func htmlTable(table *html.Node) string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, htmlText(c))
				}
			}
			rows = append(rows, cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return tableText(rows)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
