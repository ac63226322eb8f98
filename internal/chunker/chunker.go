// Package chunker splits a long document into bounded-size, 1-based chunks
// while keeping paragraphs intact and falling back to sentence boundaries
// only for paragraphs that are too long on their own.
//
// Split is a pure function of its input: the same text and options always
// produce the same chunks.
package chunker

import (
	"regexp"

	"github.com/valpere/novtran/internal"
)

const (
	// DefaultMaxChars is the soft upper bound of a chunk, in runes.
	DefaultMaxChars = 800

	// DefaultMinChars is the floor under which a chunk is folded into its
	// predecessor when there is room.
	DefaultMinChars = 600

	paragraphSep = "\n\n"
)

// Options controls Split. Zero values fall back to the defaults above and
// to Korean-style sentence punctuation.
type Options struct {
	MaxChars int
	MinChars int
	Language string
}

var (
	paragraphRe = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

	cjkSentenceRe   = regexp.MustCompile(`[^。！？]+[。！？]+`)
	asciiSentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// piece is a chunk under construction. cont marks a chunk that starts in the
// middle of a paragraph, so joining it back needs no separator.
type piece struct {
	text  string
	runes int
	cont  bool
}

// Split breaks text into chunks of at most opts.MaxChars runes:
//  1. Paragraphs (blank-line separated) are packed greedily with "\n\n".
//  2. A paragraph longer than MaxChars is split into sentences, packed the
//     same way. A single sentence longer than MaxChars stays whole.
//  3. Chunks shorter than MinChars are merged into the previous chunk when
//     the result still fits.
//
// Empty input yields no chunks.
func Split(text string, opts Options) []internal.Chunk {
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	minChars := opts.MinChars
	if minChars <= 0 {
		minChars = DefaultMinChars
	}

	var pieces []piece
	var cur piece
	flush := func() {
		if cur.runes > 0 {
			pieces = append(pieces, cur)
		}
		cur = piece{}
	}

	for _, para := range paragraphs(text) {
		n := runeLen(para)
		if n <= maxChars {
			if cur.runes == 0 {
				cur = piece{text: para, runes: n}
				continue
			}
			if cur.runes+len(paragraphSep)+n > maxChars {
				flush()
				cur = piece{text: para, runes: n}
				continue
			}
			cur.text += paragraphSep + para
			cur.runes += len(paragraphSep) + n
			continue
		}

		flush()
		first := true
		for _, sentence := range Sentences(para, opts.Language) {
			sn := runeLen(sentence)
			if cur.runes > 0 && cur.runes+sn > maxChars {
				flush()
				first = false
			}
			if cur.runes == 0 {
				cur = piece{text: sentence, runes: sn, cont: !first}
				continue
			}
			cur.text += sentence
			cur.runes += sn
		}
	}
	flush()

	pieces = mergeShort(pieces, minChars, maxChars)

	chunks := make([]internal.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = internal.Chunk{Index: i + 1, Text: p.text}
	}
	return chunks
}

// mergeShort folds chunks below minChars into their predecessor when the
// combined size stays within maxChars.
func mergeShort(pieces []piece, minChars, maxChars int) []piece {
	if len(pieces) < 2 {
		return pieces
	}
	out := []piece{pieces[0]}
	for _, p := range pieces[1:] {
		prev := &out[len(out)-1]
		sep := paragraphSep
		if p.cont {
			sep = ""
		}
		combined := prev.runes + len(sep) + p.runes
		if p.runes < minChars && combined <= maxChars {
			prev.text += sep + p.text
			prev.runes = combined
			continue
		}
		out = append(out, p)
	}
	return out
}

// paragraphs splits text on blank lines and drops empty paragraphs.
func paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphRe.Split(text, -1) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sentences splits a paragraph into sentences using full-width terminators
// for Japanese and Chinese and ASCII terminators otherwise. Text after the
// last terminator is returned as a final sentence, so joining the result
// reproduces the input exactly.
func Sentences(paragraph, language string) []string {
	re := asciiSentenceRe
	switch language {
	case "ja", "zh":
		re = cjkSentenceRe
	}

	var out []string
	end := 0
	for _, loc := range re.FindAllStringIndex(paragraph, -1) {
		if loc[0] > end {
			out = append(out, paragraph[end:loc[0]])
		}
		out = append(out, paragraph[loc[0]:loc[1]])
		end = loc[1]
	}
	if end < len(paragraph) {
		out = append(out, paragraph[end:])
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
