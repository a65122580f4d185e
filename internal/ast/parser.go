package ast

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Parser turns source code of one language into a normalized AST.
//
// Parse is deterministic for identical input. Sources with syntax errors
// fail with a *ParseError rather than returning a partial tree.
type Parser interface {
	Parse(ctx context.Context, source []byte) (*Node, error)
	Language() string
	Extensions() []string
}

// TreeSitterParser is a Parser backed by a tree-sitter grammar.
// It is safe for concurrent use; each call gets its own tree-sitter parser.
type TreeSitterParser struct {
	g *grammar
}

func (p *TreeSitterParser) Language() string     { return p.g.name }
func (p *TreeSitterParser) Extensions() []string { return p.g.extensions }

func (p *TreeSitterParser) Parse(ctx context.Context, source []byte) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.g.load()); err != nil {
		return nil, fmt.Errorf("failed to load %s grammar: %w", p.g.name, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, &ParseError{Language: p.g.name, Message: "parser returned no tree"}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(p.g.name, root)
	}

	return p.normalize(root, source), nil
}

// normalize converts the named nodes of a tree-sitter tree into AST nodes.
// Anonymous tokens (punctuation, keywords) are dropped.
func (p *TreeSitterParser) normalize(n *tree_sitter.Node, source []byte) *Node {
	out := &Node{Type: NodeOther}
	if t, ok := p.g.kinds[n.Kind()]; ok {
		out.Type = t
	}

	if out.Type.IsFunction() || out.Type.IsClass() {
		out.Name = declName(n, source)
		if out.Type == NodeFunctionDef && isAsync(n) {
			out.Type = NodeAsyncFunctionDef
		}
	}

	count := n.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		out.Children = append(out.Children, p.normalize(child, source))
	}
	return out
}

// declName returns the name of a definition node. Grammars without a name
// field carry the identifier as a direct child or inside a
// symbol_declaration.
func declName(n *tree_sitter.Node, source []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Utf8Text(source)
	}
	count := n.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier":
			return child.Utf8Text(source)
		case "symbol_declaration":
			return declName(child, source)
		}
	}
	return ""
}

// isAsync reports whether a function node carries a leading async keyword.
func isAsync(n *tree_sitter.Node) bool {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		if child == nil || child.IsNamed() {
			continue
		}
		if child.Kind() == "async" {
			return true
		}
	}
	return false
}

// syntaxError locates the first error or missing node under root.
func syntaxError(language string, root *tree_sitter.Node) *ParseError {
	var find func(n *tree_sitter.Node) *tree_sitter.Node
	find = func(n *tree_sitter.Node) *tree_sitter.Node {
		if n.IsError() || n.IsMissing() {
			return n
		}
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			child := n.Child(i)
			if child == nil || !child.HasError() && !child.IsMissing() {
				continue
			}
			if found := find(child); found != nil {
				return found
			}
		}
		return nil
	}

	perr := &ParseError{Language: language, Message: "syntax error"}
	if bad := find(root); bad != nil {
		pos := bad.StartPosition()
		perr.Line = int(pos.Row) + 1
		perr.Column = int(pos.Column)
	}
	return perr
}

// Registry looks parsers up by language name or file extension.
type Registry struct {
	mu          sync.RWMutex
	byLanguage  map[string]Parser
	byExtension map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// DefaultRegistry returns a registry with every built-in tree-sitter parser.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, g := range grammars {
		r.Register(&TreeSitterParser{g: g})
	}
	return r
}

// Register adds a parser under its language and extensions, replacing any
// parser previously registered for them.
func (r *Registry) Register(p Parser) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[p.Language()] = p
	for _, ext := range p.Extensions() {
		r.byExtension[ext] = p
	}
}

func (r *Registry) ByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byLanguage[language]
	return p, ok
}

func (r *Registry) ByExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExtension[strings.ToLower(ext)]
	return p, ok
}

// LanguageFor returns the language registered for path's extension, or ""
// when none is.
func (r *Registry) LanguageFor(path string) string {
	p, ok := r.ByExtension(filepath.Ext(path))
	if !ok {
		return ""
	}
	return p.Language()
}

// Parse parses source with the parser registered for language.
func (r *Registry) Parse(ctx context.Context, source []byte, language string) (*Node, error) {
	p, ok := r.ByLanguage(language)
	if !ok {
		return nil, fmt.Errorf("%q: %w", language, ErrUnsupportedLanguage)
	}
	return p.Parse(ctx, source)
}
