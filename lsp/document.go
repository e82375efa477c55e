package lsp

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dhamidi/shtree/parse"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Document is an open script with its current tree.
type Document struct {
	URI     protocol.DocumentUri
	Version protocol.Integer
	Tree    *parse.Tree
}

// Text returns the document's contents.
func (d *Document) Text() []byte { return d.Tree.Source() }

// Store keeps the open documents. Parses run under the store's lock since
// they share one parser.
type Store struct {
	mu     sync.Mutex
	docs   map[protocol.DocumentUri]*Document
	parser *parse.Parser
}

func NewStore(parser *parse.Parser) *Store {
	return &Store{docs: make(map[protocol.DocumentUri]*Document), parser: parser}
}

// Open parses text and records it as the contents of uri.
func (s *Store) Open(ctx context.Context, uri protocol.DocumentUri, version protocol.Integer, text string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, err := s.parser.Parse(ctx, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	doc := &Document{URI: uri, Version: version, Tree: tree}
	s.docs[uri] = doc
	return doc, nil
}

// Change applies content changes in order. Ranged changes are reparsed
// incrementally; a whole-document change is parsed from scratch.
func (s *Store) Change(ctx context.Context, uri protocol.DocumentUri, version protocol.Integer, changes []any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil, fmt.Errorf("change %s: document is not open", uri)
	}
	tree := doc.Tree
	for _, change := range changes {
		var err error
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEvent:
			tree, err = s.applyRange(ctx, tree, c)
		case protocol.TextDocumentContentChangeEventWhole:
			tree, err = s.parser.Parse(ctx, []byte(c.Text))
		default:
			err = fmt.Errorf("unsupported change %T", change)
		}
		if err != nil {
			return nil, fmt.Errorf("change %s: %w", uri, err)
		}
	}
	doc = &Document{URI: uri, Version: version, Tree: tree}
	s.docs[uri] = doc
	return doc, nil
}

func (s *Store) applyRange(ctx context.Context, tree *parse.Tree, c protocol.TextDocumentContentChangeEvent) (*parse.Tree, error) {
	src := tree.Source()
	start := offsetOf(src, c.Range.Start)
	end := max(start, offsetOf(src, c.Range.End))
	next, edit, err := parse.Apply(src, start, end, c.Text)
	if err != nil {
		return nil, err
	}
	log.Debugf("apply %s", edit)
	return s.parser.Reparse(ctx, tree, edit, next)
}

// Close forgets uri.
func (s *Store) Close(uri protocol.DocumentUri) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Get returns the current document for uri.
func (s *Store) Get(uri protocol.DocumentUri) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// offsetOf converts an LSP position, whose character counts UTF-16 code
// units, into a byte offset. Positions past the end of a line clamp to it.
func offsetOf(src []byte, pos protocol.Position) int {
	i := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		nl := indexNewline(src[i:])
		if nl < 0 {
			return len(src)
		}
		i += nl + 1
	}
	for units := protocol.UInteger(0); units < pos.Character && i < len(src) && src[i] != '\n'; {
		r, size := utf8.DecodeRune(src[i:])
		units += protocol.UInteger(utf16.RuneLen(r))
		i += size
	}
	return i
}

// positionOf converts a byte offset into an LSP position.
func positionOf(tree *parse.Tree, offset int) protocol.Position {
	p := tree.Point(offset)
	src := tree.Source()
	lineStart := offset - p.Column
	units := 0
	for i := lineStart; i < offset; {
		r, size := utf8.DecodeRune(src[i:])
		units += max(1, utf16.RuneLen(r))
		i += size
	}
	return protocol.Position{Line: protocol.UInteger(p.Line), Character: protocol.UInteger(units)}
}

func rangeOf(n parse.Node) protocol.Range {
	return protocol.Range{
		Start: positionOf(n.Tree(), n.StartByte()),
		End:   positionOf(n.Tree(), n.EndByte()),
	}
}

func indexNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return -1
}
