// Package goldmark splits markdown into token-bounded chunks along the
// document structure parsed by goldmark.
package goldmark

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/leadscout"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var _ leadscout.Chunker = (*Chunker)(nil)

// Chunker defaults, in tokens.
const (
	DefaultMaxTokens = 512
	DefaultMinTokens = 20
	DefaultOverlap   = 50
)

// Chunker packs top-level markdown blocks into chunks of at most MaxTokens.
// A heading always starts a new chunk and names the section of the chunks
// below it. Blocks larger than the budget are split by lines, then
// sentences, then words. Consecutive chunks of one section share Overlap
// trailing tokens, and chunks under MinTokens are dropped.
type Chunker struct {
	// Counter counts tokens. When nil, a token is estimated as four runes.
	Counter   leadscout.TokenCounter
	MaxTokens int
	MinTokens int
	Overlap   int

	md goldmark.Markdown
}

// NewChunker creates a chunker that counts tokens with counter.
func NewChunker(counter leadscout.TokenCounter) *Chunker {
	return &Chunker{
		Counter:   counter,
		MaxTokens: DefaultMaxTokens,
		MinTokens: DefaultMinTokens,
		Overlap:   DefaultOverlap,
	}
}

type block struct {
	text    string
	heading bool
	title   string
}

// Chunk splits markdown into segments.
func (c *Chunker) Chunk(ctx context.Context, markdown string) ([]leadscout.Segment, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, nil
	}
	p := &packer{c: c, ctx: ctx}
	for _, b := range c.blocks([]byte(markdown)) {
		if err := p.add(b); err != nil {
			return nil, err
		}
	}
	if err := p.flush(false); err != nil {
		return nil, err
	}
	return p.out, nil
}

// blocks returns the top-level blocks of a document as markdown text.
func (c *Chunker) blocks(src []byte) []block {
	md := c.md
	if md == nil {
		md = goldmark.New(goldmark.WithExtensions(extension.GFM))
	}
	doc := md.Parser().Parse(text.NewReader(src))

	var out []block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(string(linesOf(n, src)))
			if title == "" {
				continue
			}
			out = append(out, block{
				text:    strings.Repeat("#", n.Level) + " " + title,
				heading: true,
				title:   title,
			})
		case *ast.FencedCodeBlock:
			var b strings.Builder
			b.WriteString("```")
			b.Write(n.Language(src))
			b.WriteString("\n")
			b.Write(linesOf(n, src))
			b.WriteString("```")
			out = append(out, block{text: b.String()})
		case *ast.ThematicBreak:
		default:
			start, stop, ok := span(n)
			if !ok {
				continue
			}
			for start > 0 && src[start-1] != '\n' {
				start--
			}
			for stop < len(src) && src[stop] != '\n' {
				stop++
			}
			if t := strings.TrimSpace(string(src[start:stop])); t != "" {
				out = append(out, block{text: t})
			}
		}
	}
	return out
}

func linesOf(n ast.Node, src []byte) []byte {
	var b []byte
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b = append(b, seg.Value(src)...)
	}
	return b
}

// span returns the source range covered by n and its descendants.
func span(n ast.Node) (int, int, bool) {
	start, stop, ok := 0, 0, false
	extend := func(s text.Segment) {
		if s.Stop <= s.Start {
			return
		}
		if !ok || s.Start < start {
			start = s.Start
		}
		if !ok || s.Stop > stop {
			stop = s.Stop
		}
		ok = true
	}
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, isText := node.(*ast.Text); isText {
			extend(t.Segment)
			return ast.WalkContinue, nil
		}
		if node.Type() == ast.TypeBlock {
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				extend(lines.At(i))
			}
		}
		return ast.WalkContinue, nil
	})
	return start, stop, ok
}

func (c *Chunker) count(ctx context.Context, s string) (int, error) {
	if c.Counter == nil {
		return (utf8.RuneCountInString(s) + 3) / 4, nil
	}
	return c.Counter.CountTokens(ctx, s)
}

func (c *Chunker) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}

// packer accumulates blocks into the chunk under construction.
type packer struct {
	c       *Chunker
	ctx     context.Context
	section string
	parts   []string
	tokens  int
	out     []leadscout.Segment
}

func (p *packer) add(b block) error {
	if b.heading {
		if err := p.flush(false); err != nil {
			return err
		}
		p.section = b.title
	}

	n, err := p.c.count(p.ctx, b.text)
	if err != nil {
		return err
	}
	limit := p.c.maxTokens()
	if n > limit {
		if err := p.flush(false); err != nil {
			return err
		}
		pieces, err := p.split(b.text, 0)
		if err != nil {
			return err
		}
		for _, piece := range pieces {
			if err := p.emit(piece); err != nil {
				return err
			}
		}
		return nil
	}
	if p.tokens+n > limit {
		if err := p.flush(true); err != nil {
			return err
		}
		if p.tokens+n > limit {
			p.parts, p.tokens = nil, 0
		}
	}
	p.parts = append(p.parts, b.text)
	p.tokens += n
	return nil
}

// flush emits the chunk under construction. With overlap the next chunk
// starts with the tail of this one.
func (p *packer) flush(overlap bool) error {
	if len(p.parts) == 0 {
		return nil
	}
	chunk := strings.Join(p.parts, "\n\n")
	p.parts, p.tokens = nil, 0
	if err := p.emit(chunk); err != nil {
		return err
	}
	if !overlap || p.c.Overlap <= 0 {
		return nil
	}
	tail, n, err := p.tail(chunk)
	if err != nil || tail == "" {
		return err
	}
	p.parts, p.tokens = []string{tail}, n
	return nil
}

func (p *packer) emit(chunk string) error {
	n, err := p.c.count(p.ctx, chunk)
	if err != nil {
		return err
	}
	if n < p.c.MinTokens {
		return nil
	}
	p.out = append(p.out, leadscout.Segment{Text: chunk, Section: p.section})
	return nil
}

// tail returns the longest run of trailing words of chunk that fits the
// overlap budget.
func (p *packer) tail(chunk string) (string, int, error) {
	words := strings.Fields(chunk)
	take := min(len(words)-1, p.c.Overlap)
	for take > 0 {
		t := strings.Join(words[len(words)-take:], " ")
		n, err := p.c.count(p.ctx, t)
		if err != nil {
			return "", 0, err
		}
		if n <= p.c.Overlap {
			return t, n, nil
		}
		take = take * 3 / 4
	}
	return "", 0, nil
}

// splitters break oversized text into finer pieces, coarsest first.
var splitters = []struct {
	split func(string) []string
	sep   string
}{
	{func(s string) []string { return strings.Split(s, "\n") }, "\n"},
	{sentences, " "},
	{strings.Fields, " "},
}

// split packs the pieces of text at the given splitter level into groups
// within the token budget, descending a level for pieces still too large.
func (p *packer) split(s string, level int) ([]string, error) {
	limit := p.c.maxTokens()
	n, err := p.c.count(p.ctx, s)
	if err != nil {
		return nil, err
	}
	if n <= limit || level == len(splitters) {
		return []string{s}, nil
	}

	sp := splitters[level]
	var out, cur []string
	tokens := 0
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, sp.sep))
			cur, tokens = nil, 0
		}
	}
	for _, piece := range sp.split(s) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		pn, err := p.c.count(p.ctx, piece)
		if err != nil {
			return nil, err
		}
		if pn > limit {
			flush()
			sub, err := p.split(piece, level+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		if tokens+pn > limit {
			flush()
		}
		cur = append(cur, piece)
		tokens += pn
	}
	flush()
	return out, nil
}

// sentences splits after ".", "!" or "?" followed by a space.
func sentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s)-1; i++ {
		if (s[i] == '.' || s[i] == '!' || s[i] == '?') && (s[i+1] == ' ' || s[i+1] == '\n') {
			out = append(out, strings.TrimSpace(s[start:i+1]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
