package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/ast"
	"codegraph/internal/graph"
)

func TestExtractNilAST(t *testing.T) {
	entities, relationships := Extract(nil, "agent/api.py")
	assert.Empty(t, entities)
	assert.Empty(t, relationships)
}

func TestExtractFlattensNesting(t *testing.T) {
	root := &ast.Node{Type: ast.NodeModule, Children: []*ast.Node{
		{Type: ast.NodeImport},
		{Type: ast.NodeClassDef, Name: "ChatRequest", Children: []*ast.Node{
			{Type: ast.NodeFunctionDef, Name: "validate", Children: []*ast.Node{
				{Type: ast.NodeFunctionDef, Name: "inner"},
			}},
		}},
		{Type: ast.NodeAsyncFunctionDef, Name: "execute_agent"},
		{Type: ast.NodeFunctionDef},
		{Type: ast.NodeOther, Name: "ignored"},
	}}

	entities, relationships := Extract(root, "agent/models.py")

	assert.Equal(t, []graph.Entity{
		{Name: "agent/models.py", Type: graph.EntityFile, FilePath: "agent/models.py"},
		{Name: "ChatRequest", Type: graph.EntityClass, FilePath: "agent/models.py"},
		{Name: "validate", Type: graph.EntityFunction, FilePath: "agent/models.py"},
		{Name: "inner", Type: graph.EntityFunction, FilePath: "agent/models.py"},
		{Name: "execute_agent", Type: graph.EntityFunction, FilePath: "agent/models.py"},
	}, entities)

	require.Len(t, relationships, 4)
	for i, rel := range relationships {
		assert.Equal(t, entities[i+1].Name, rel.Source)
		assert.Equal(t, "agent/models.py", rel.Target)
		assert.Equal(t, graph.RelationDefinesInFile, rel.Type)
	}
}

func TestExtractFileOnly(t *testing.T) {
	root := &ast.Node{Type: ast.NodeModule, Children: []*ast.Node{{Type: ast.NodeOther}}}

	entities, relationships := Extract(root, "empty.py")
	assert.Equal(t, []graph.Entity{graph.FileEntity("empty.py")}, entities)
	assert.Empty(t, relationships)
}

func TestExtractFromParsedPython(t *testing.T) {
	src := []byte("def execute_agent():\n    return get_or_create_session()\n\ndef get_or_create_session():\n    return None\n")
	root, err := ast.DefaultRegistry().Parse(context.Background(), src, "python")
	require.NoError(t, err)

	entities, relationships := Extract(root, "agent/api.py")
	require.Len(t, entities, 3)
	assert.Equal(t, "execute_agent", entities[1].Name)
	assert.Equal(t, "get_or_create_session", entities[2].Name)
	assert.Len(t, relationships, 2)
}
