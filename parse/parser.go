package parse

import (
	"context"
	"fmt"
	"io"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("shtree.parse")

// DefaultMaxVersions is the default number of parse versions kept alive
// while exploring conflicts.
const DefaultMaxVersions = 8

// Parser parses sources of one language. A Parser holds no per-parse
// state and may be used from several goroutines.
type Parser struct {
	lang        *Language
	maxVersions int
	log         commonlog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxVersions bounds how many stack versions a parse explores at once.
// Values below one are ignored.
func WithMaxVersions(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxVersions = n
		}
	}
}

// WithLogger sets the logger that receives fork, merge and recovery
// events at debug level.
func WithLogger(l commonlog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.log = l
		}
	}
}

// NewParser creates a parser for lang.
func NewParser(lang *Language, opts ...Option) *Parser {
	p := &Parser{lang: lang, maxVersions: DefaultMaxVersions, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the parser's language.
func (p *Parser) Language() *Language { return p.lang }

// Parse parses src. Syntax errors never fail a parse; they become error
// nodes. The only error returned is the context's, when it is cancelled.
func (p *Parser) Parse(ctx context.Context, src []byte) (*Tree, error) {
	tree, _, err := p.parse(ctx, src, nil)
	return tree, err
}

// ParseReader reads r to the end and parses its contents.
func (p *Parser) ParseReader(ctx context.Context, r io.Reader) (*Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return p.Parse(ctx, src)
}

// Reparse parses src, the result of applying edit to old's source, reusing
// the subtrees of old the edit cannot have affected. The result is the
// same tree a fresh parse of src produces.
func (p *Parser) Reparse(ctx context.Context, old *Tree, edit Edit, src []byte) (*Tree, error) {
	if old == nil {
		return nil, &EditError{Edit: edit, Reason: "no previous tree"}
	}
	if err := edit.check(len(old.src), len(src)); err != nil {
		return nil, err
	}
	reuse := reusable(old, edit)
	tree, reused, err := p.parse(ctx, src, reuse)
	if err != nil {
		return nil, err
	}
	p.log.Debugf("reparse %s: reused %d of %d candidate statements", edit, reused, len(reuse))
	return tree, nil
}

func (p *Parser) parse(ctx context.Context, src []byte, reuse map[int]*node) (*Tree, int, error) {
	s := p.newSession(ctx, src, reuse)
	root, err := s.run()
	if err != nil {
		return nil, 0, err
	}
	p.log.Debugf("parsed %d bytes with at most %d versions alive", len(src), s.peak)
	return newTree(p.lang, src, root), s.reused, nil
}

func (p *Parser) newSession(ctx context.Context, src []byte, reuse map[int]*node) *session {
	return &session{
		ctx:        ctx,
		lang:       p.lang,
		tables:     p.lang.Tables,
		lexer:      NewLexer(p.lang.Tables),
		log:        p.log,
		src:        src,
		limit:      p.maxVersions,
		cache:      make(map[lexKey]lexeme),
		reuse:      reuse,
		repairedAt: -1,
	}
}
