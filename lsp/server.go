// Package lsp serves shell scripts over the Language Server Protocol. Open
// documents are kept parsed; edits are reparsed incrementally and every
// change publishes the error nodes of the new tree as diagnostics.
package lsp

import (
	"context"
	"net/url"
	"path/filepath"

	"github.com/dhamidi/shtree/bash"
	"github.com/dhamidi/shtree/config"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "shtree"

var log = commonlog.GetLogger("shtree.lsp")

type Server struct {
	cfg     *config.Config
	docs    *Store
	handler protocol.Handler
	server  *server.Server
	version string
}

func NewServer(version string, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	ls := &Server{
		cfg:     cfg,
		docs:    NewStore(bash.NewParser(cfg.Options()...)),
		version: version,
	}

	ls.handler = protocol.Handler{
		Initialize:                 ls.initialize,
		Initialized:                ls.initialized,
		Shutdown:                   ls.shutdown,
		SetTrace:                   ls.setTrace,
		TextDocumentDidOpen:        ls.textDocumentDidOpen,
		TextDocumentDidChange:      ls.textDocumentDidChange,
		TextDocumentDidClose:       ls.textDocumentDidClose,
		TextDocumentDocumentSymbol: ls.textDocumentDocumentSymbol,
		TextDocumentFoldingRange:   ls.textDocumentFoldingRange,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *Server) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := ls.handler.CreateServerCapabilities()

	change := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &change,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Info("initialized")
	return nil
}

func (ls *Server) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (ls *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	pctx, cancel := ls.cfg.Context(context.Background())
	defer cancel()
	item := params.TextDocument
	doc, err := ls.docs.Open(pctx, item.URI, item.Version, item.Text)
	if err != nil {
		return err
	}
	log.Infof("open %s", displayName(item.URI))
	ls.publishDiagnostics(ctx, doc)
	return nil
}

func (ls *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	pctx, cancel := ls.cfg.Context(context.Background())
	defer cancel()
	doc, err := ls.docs.Change(pctx, params.TextDocument.URI, params.TextDocument.Version, params.ContentChanges)
	if err != nil {
		return err
	}
	ls.publishDiagnostics(ctx, doc)
	return nil
}

func (ls *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	ls.docs.Close(params.TextDocument.URI)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (ls *Server) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc, ok := ls.docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return documentSymbols(doc.Tree), nil
}

func (ls *Server) textDocumentFoldingRange(ctx *glsp.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	doc, ok := ls.docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return foldingRanges(doc.Tree, ls.cfg.LSP.FoldComments), nil
}

func (ls *Server) publishDiagnostics(ctx *glsp.Context, doc *Document) {
	diags := diagnostics(doc.Tree, ls.cfg.LSP.MaxDiagnostics)
	if len(diags) > 0 {
		log.Debugf("%s: %d diagnostics", displayName(doc.URI), len(diags))
	}
	version := protocol.UInteger(doc.Version)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     &version,
		Diagnostics: diags,
	})
}

func displayName(uri protocol.DocumentUri) string {
	if path, err := uriToPath(uri); err == nil {
		return filepath.Base(path)
	}
	return uri
}

func uriToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme == "file" {
		return u.Path, nil
	}
	return uri, nil
}

func boolPtr(b bool) *bool {
	return &b
}
