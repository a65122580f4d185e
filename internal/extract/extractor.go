// Package extract derives graph entities and relationships from a normalized
// AST.
//
// Extraction is flat: every function or class found anywhere in the tree is
// linked to the file that defines it, and lexical nesting is not modelled.
package extract

import (
	"codegraph/internal/ast"
	"codegraph/internal/graph"
)

// Extract walks root in pre-order and returns the file entity followed by one
// entity per definition, plus one DEFINES_IN_FILE relationship per definition.
// A nil root yields no entities and no relationships.
func Extract(root *ast.Node, filePath string) ([]graph.Entity, []graph.PendingRelationship) {
	if root == nil {
		return nil, nil
	}

	entities := []graph.Entity{graph.FileEntity(filePath)}
	var relationships []graph.PendingRelationship

	ast.Walk(root, func(n *ast.Node) bool {
		typ, ok := entityType(n.Type)
		if !ok || n.Name == "" {
			return true
		}
		entities = append(entities, graph.Entity{
			Name:     n.Name,
			Type:     typ,
			FilePath: filePath,
		})
		relationships = append(relationships, graph.PendingRelationship{
			Source: n.Name,
			Target: filePath,
			Type:   graph.RelationDefinesInFile,
		})
		return true
	})

	return entities, relationships
}

func entityType(t ast.NodeType) (graph.EntityType, bool) {
	switch {
	case t.IsFunction():
		return graph.EntityFunction, true
	case t.IsClass():
		return graph.EntityClass, true
	}
	return graph.EntityType{}, false
}
