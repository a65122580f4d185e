// Package ast holds the language-neutral syntax tree that extraction works on,
// and the tree-sitter parsers that produce it.
package ast

// NodeType tags an AST node.
type NodeType string

const (
	NodeModule           NodeType = "Module"
	NodeFunctionDef      NodeType = "FunctionDef"
	NodeAsyncFunctionDef NodeType = "AsyncFunctionDef"
	NodeClassDef         NodeType = "ClassDef"
	NodeImport           NodeType = "Import"
	NodeOther            NodeType = "Other"
)

// IsFunction reports whether t is a function-like definition.
func (t NodeType) IsFunction() bool {
	return t == NodeFunctionDef || t == NodeAsyncFunctionDef
}

// IsClass reports whether t is a class-like definition.
func (t NodeType) IsClass() bool {
	return t == NodeClassDef
}

// Node is one node of a normalized AST. A Node owns its children; trees are
// built once per file and never shared.
type Node struct {
	Type     NodeType `json:"node_type"`
	Name     string   `json:"name,omitempty"`
	Children []*Node  `json:"children,omitempty"`
}

// Walk visits n and its descendants in depth-first pre-order. Returning false
// from fn stops the descent into that node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Count returns the number of nodes in the tree rooted at n.
func Count(n *Node) int {
	total := 0
	Walk(n, func(*Node) bool {
		total++
		return true
	})
	return total
}
