package extract

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockAtoms start a new paragraph.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Section: true, atom.Article: true, atom.Tr: true,
	atom.Pre: true, atom.Hr: true, atom.Dd: true, atom.Dt: true,
}

var skipAtoms = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Title: true,
}

type paragraphs struct {
	out []string
	cur strings.Builder
}

func (p *paragraphs) flush() {
	text := strings.Join(strings.Fields(p.cur.String()), " ")
	if text != "" {
		p.out = append(p.out, text)
	}
	p.cur.Reset()
}

// fromHTML returns the visible text of an HTML document with one paragraph
// per block element.
func fromHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var p paragraphs
	walk(doc, &p)
	p.flush()
	return strings.Join(p.out, "\n\n"), nil
}

func walk(n *html.Node, p *paragraphs) {
	switch n.Type {
	case html.TextNode:
		p.cur.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipAtoms[n.DataAtom] {
			return
		}
		if blockAtoms[n.DataAtom] {
			p.flush()
			defer p.flush()
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, p)
	}
}
