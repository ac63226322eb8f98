package extract

import (
	"bytes"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

func markdownToHTML(md []byte) []byte {
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	p := parser.NewWithExtensions(parser.CommonExtensions)
	return markdown.Render(p.Parse(md), renderer)
}

// fromMarkdown renders md to HTML and collects its text, so emphasis and
// heading markers never reach the chunker.
func fromMarkdown(md []byte) (string, error) {
	return fromHTML(bytes.NewReader(markdownToHTML(md)))
}
