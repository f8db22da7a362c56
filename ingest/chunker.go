// Package ingest turns markdown documents into embedded knowledge-base
// entries: files are chunked along their heading structure, embedded in
// batches, and upserted into a vector store for retrieval.
package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	// Bounds are in runes. The maximum targets roughly 450 tokens so a
	// chunk fits a 512-token embedding model.
	defaultMinChunkRunes = 50
	defaultMaxChunkRunes = 700
)

// Chunk is one embeddable piece of a document.
type Chunk struct {
	Index       int
	HeadingPath string
	Text        string
}

// Chunker splits markdown into chunks along its heading structure.
type Chunker struct {
	parser   goldmark.Markdown
	minRunes int
	maxRunes int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkBounds sets the chunk size bounds in runes. Sections smaller
// than min are merged with their neighbor, sections larger than max are
// split.
func WithChunkBounds(minRunes, maxRunes int) ChunkerOption {
	return func(c *Chunker) {
		c.minRunes = minRunes
		c.maxRunes = maxRunes
	}
}

// NewChunker creates a chunker with GFM table support.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		parser:   goldmark.New(goldmark.WithExtensions(extension.Table)),
		minRunes: defaultMinChunkRunes,
		maxRunes: defaultMaxChunkRunes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk parses the markdown content and returns the document title and
// its chunks. One chunk covers the text under one heading, with the
// full heading path attached; size bounds then merge or split chunks as
// needed. The filename provides the title when the document has no
// headings.
func (c *Chunker) Chunk(content []byte, filename string) (string, []Chunk) {
	if len(bytes.TrimSpace(content)) == 0 {
		return titleFromFilename(filename), nil
	}

	doc := c.parser.Parser().Parse(text.NewReader(content))
	title := documentTitle(doc, content, filename)
	chunks := collectSections(doc, content, title)
	return title, c.sizeConstraints(chunks)
}

// documentTitle picks the first level-1 heading, then the first level-2
// heading, then the filename.
func documentTitle(doc ast.Node, source []byte, filename string) string {
	var firstH2 string

	title := ""
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		switch {
		case heading.Level == 1:
			title = nodeText(heading, source)
			return ast.WalkStop, nil
		case heading.Level == 2 && firstH2 == "":
			firstH2 = nodeText(heading, source)
		}
		return ast.WalkContinue, nil
	})

	if title != "" {
		return title
	}
	if firstH2 != "" {
		return firstH2
	}
	return titleFromFilename(filename)
}

// titleFromFilename strips the extension and capitalizes each word.
func titleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	words := strings.Fields(strings.ReplaceAll(name, "-", " "))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

type heading struct {
	level int
	text  string
}

// headingPath renders the heading stack as
// "# Title > ## Section > ### Subsection".
func headingPath(stack []heading) string {
	parts := make([]string, len(stack))
	for i, h := range stack {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", h.level), h.text)
	}
	return strings.Join(parts, " > ")
}

// collectSections walks the document and gathers the text between
// headings into one chunk per section. Text before the first heading is
// filed under the document title.
func collectSections(doc ast.Node, source []byte, title string) []Chunk {
	var (
		chunks  []Chunk
		section strings.Builder
		stack   []heading
		path    = "# " + title
	)

	flush := func() {
		text := strings.TrimSpace(section.String())
		section.Reset()
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{HeadingPath: path, Text: text})
	}

	breakLine := func() {
		if section.Len() > 0 && !strings.HasSuffix(section.String(), "\n") {
			section.WriteByte('\n')
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			flush()
			for len(stack) > 0 && stack[len(stack)-1].level >= node.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, heading{level: node.Level, text: nodeText(node, source)})
			path = headingPath(stack)
			// The heading text lives in the path, not the body.
			return ast.WalkSkipChildren, nil

		case *ast.Text:
			section.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				section.WriteByte('\n')
			}

		case *ast.String:
			section.Write(node.Value)

		case *ast.CodeBlock:
			breakLine()
			writeBlockLines(&section, node, source)
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			breakLine()
			writeBlockLines(&section, node, source)
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph, *ast.List, *ast.ListItem:
			breakLine()

		case *extast.Table:
			breakLine()
			for row := n.FirstChild(); row != nil; row = row.NextSibling() {
				section.WriteString(tableRowText(row, source))
				section.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	flush()

	// A document that yields no sections (headings only, or markup the
	// walk does not cover) falls back to a single raw chunk.
	if len(chunks) == 0 {
		chunks = append(chunks, Chunk{
			HeadingPath: "# " + title,
			Text:        strings.TrimSpace(string(source)),
		})
	}

	return chunks
}

// nodeText collects the plain text of a node and its children.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// writeBlockLines appends the raw lines of a code block.
func writeBlockLines(b *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
}

// tableRowText joins the cells of one table row with pipes.
func tableRowText(row ast.Node, source []byte) string {
	cells := make([]string, 0, row.ChildCount())
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, nodeText(cell, source))
	}
	return strings.Join(cells, " | ")
}

// sizeConstraints merges undersized sections into their neighbor and
// splits oversized ones, then renumbers the result.
func (c *Chunker) sizeConstraints(chunks []Chunk) []Chunk {
	var result []Chunk

	for i := 0; i < len(chunks); i++ {
		current := chunks[i]

		// Merge forward while the neighbor repeats the heading path or
		// the current section is below the minimum, as long as the
		// merge stays within the maximum.
		for i+1 < len(chunks) {
			next := chunks[i+1]
			samePath := next.HeadingPath == current.HeadingPath
			tooSmall := utf8.RuneCountInString(current.Text) < c.minRunes
			if !samePath && !tooSmall {
				break
			}
			merged := current.Text + "\n\n" + next.Text
			if utf8.RuneCountInString(merged) > c.maxRunes {
				break
			}
			current.Text = merged
			i++
		}

		if utf8.RuneCountInString(current.Text) > c.maxRunes {
			result = append(result, c.split(current)...)
		} else {
			result = append(result, current)
		}
	}

	for i := range result {
		result[i].Index = i
	}
	return result
}

// split cuts an oversized chunk at the last paragraph break before the
// limit, falling back to a line break, a sentence end, and finally a
// hard cut. All pieces keep the heading path.
func (c *Chunker) split(chunk Chunk) []Chunk {
	var pieces []Chunk

	text := chunk.Text
	for utf8.RuneCountInString(text) > c.maxRunes {
		cut := byteOffsetOfRune(text, c.maxRunes)
		window := text[:cut]
		if i := strings.LastIndex(window, "\n\n"); i != -1 {
			cut = i + 2
		} else if i := strings.LastIndex(window, "\n"); i != -1 {
			cut = i + 1
		} else if i := strings.LastIndex(window, ". "); i != -1 {
			cut = i + 2
		}
		pieces = append(pieces, Chunk{HeadingPath: chunk.HeadingPath, Text: text[:cut]})
		text = text[cut:]
	}
	if text != "" {
		pieces = append(pieces, Chunk{HeadingPath: chunk.HeadingPath, Text: text})
	}

	return pieces
}

// byteOffsetOfRune returns the byte offset of the n-th rune of s, or
// len(s) when s has fewer runes.
func byteOffsetOfRune(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}
