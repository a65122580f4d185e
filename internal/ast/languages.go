package ast

import (
	"unsafe"

	tree_sitter_lua "github.com/tree-sitter-grammars/tree-sitter-lua/bindings/go"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// grammar describes how one tree-sitter grammar maps onto AST node types.
// Kinds not listed become NodeOther.
type grammar struct {
	name       string
	extensions []string
	language   func() unsafe.Pointer
	kinds      map[string]NodeType
}

func (g *grammar) load() *tree_sitter.Language {
	return tree_sitter.NewLanguage(g.language())
}

var grammars = []*grammar{
	{
		name:       "python",
		extensions: []string{".py", ".pyi"},
		language:   tree_sitter_python.Language,
		kinds: map[string]NodeType{
			"module":                NodeModule,
			"function_definition":   NodeFunctionDef,
			"class_definition":      NodeClassDef,
			"import_statement":      NodeImport,
			"import_from_statement": NodeImport,
		},
	},
	{
		name:       "go",
		extensions: []string{".go"},
		language:   tree_sitter_go.Language,
		kinds: map[string]NodeType{
			"source_file":          NodeModule,
			"function_declaration": NodeFunctionDef,
			"method_declaration":   NodeFunctionDef,
			"type_spec":            NodeClassDef,
			"import_declaration":   NodeImport,
		},
	},
	{
		name:       "javascript",
		extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		language:   tree_sitter_javascript.Language,
		kinds: map[string]NodeType{
			"program":                        NodeModule,
			"function_declaration":           NodeFunctionDef,
			"generator_function_declaration": NodeFunctionDef,
			"method_definition":              NodeFunctionDef,
			"class_declaration":              NodeClassDef,
			"import_statement":               NodeImport,
		},
	},
	{
		name:       "typescript",
		extensions: []string{".ts", ".mts", ".cts"},
		language:   tree_sitter_typescript.LanguageTypescript,
		kinds: map[string]NodeType{
			"program":                        NodeModule,
			"function_declaration":           NodeFunctionDef,
			"generator_function_declaration": NodeFunctionDef,
			"method_definition":              NodeFunctionDef,
			"class_declaration":              NodeClassDef,
			"abstract_class_declaration":     NodeClassDef,
			"interface_declaration":          NodeClassDef,
			"import_statement":               NodeImport,
		},
	},
	{
		name:       "lua",
		extensions: []string{".lua"},
		language:   tree_sitter_lua.Language,
		kinds: map[string]NodeType{
			"chunk":                NodeModule,
			"function_declaration": NodeFunctionDef,
		},
	},
	{
		// Zig containers are const declarations of struct expressions, so
		// only functions are mapped.
		name:       "zig",
		extensions: []string{".zig"},
		language:   tree_sitter_zig.Language,
		kinds: map[string]NodeType{
			"source_file":          NodeModule,
			"function_declaration": NodeFunctionDef,
		},
	},
}
