package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"codegraph/internal/graph"
	"codegraph/internal/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "code_graph.sqlite"), nil)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	t.Cleanup(func() { _ = s.Close() })

	records := []graph.FileRecord{
		{
			FilePath: "agent/api.py",
			Entities: []graph.Entity{
				{Name: "execute_agent", Type: graph.EntityFunction},
				{Name: "get_or_create_session", Type: graph.EntityFunction},
			},
			Relationships: []graph.PendingRelationship{
				{Source: "execute_agent", Target: "agent/api.py", Type: graph.RelationDefinesInFile},
				{Source: "execute_agent", Target: "get_or_create_session", Type: graph.RelationCalls},
			},
		},
		{
			FilePath: "agent/models.py",
			Entities: []graph.Entity{{Name: "ChatRequest", Type: graph.EntityClass}},
			Relationships: []graph.PendingRelationship{
				{Source: "execute_agent", Target: "ChatRequest", Type: graph.RelationUsesType},
			},
		},
	}
	for _, rec := range records {
		_, err := s.AddFileData(ctx, rec)
		require.NoError(t, err)
	}
	return s
}

func TestFindRelationshipsScenario(t *testing.T) {
	s := store.New(filepath.Join(t.TempDir(), "code_graph.sqlite"), nil)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	defer s.Close()

	_, err := s.AddFileData(ctx, graph.FileRecord{
		FilePath: "agent/api.py",
		Entities: []graph.Entity{
			{Name: "execute_agent", Type: graph.EntityFunction},
			{Name: "get_or_create_session", Type: graph.EntityFunction},
		},
		Relationships: []graph.PendingRelationship{
			{Source: "execute_agent", Target: "agent/api.py", Type: graph.RelationDefinesInFile},
			{Source: "execute_agent", Target: "get_or_create_session", Type: graph.RelationCalls},
		},
	})
	require.NoError(t, err)

	facts, err := NewEngine(s, nil).FindRelationships(ctx, "execute_agent")
	require.NoError(t, err)

	var got []string
	for _, f := range facts {
		got = append(got, f.String())
	}
	assert.Equal(t, []string{
		"execute_agent (FUNCTION) --[DEFINES_IN_FILE]--> agent/api.py (FILE)",
		"execute_agent (FUNCTION) --[CALLS]--> get_or_create_session (FUNCTION)",
	}, got)
}

func TestFindRelationshipsOneHopIsComplete(t *testing.T) {
	s := seededStore(t)

	facts, err := NewEngine(s, nil).FindRelationships(context.Background(), "ChatRequest")
	require.NoError(t, err)
	assert.Equal(t, []graph.Fact{
		{Source: "execute_agent (FUNCTION)", Relationship: "USES_TYPE", Target: "ChatRequest (CLASS)"},
	}, facts)
}

func TestFindRelationshipsSubstringMatch(t *testing.T) {
	s := seededStore(t)

	facts, err := NewEngine(s, nil).FindRelationships(context.Background(), "exec")
	require.NoError(t, err)
	assert.Len(t, facts, 3)
	for _, f := range facts {
		assert.Equal(t, "execute_agent (FUNCTION)", f.Source)
	}
}

func TestFindRelationshipsDeduplicatesAcrossMatches(t *testing.T) {
	s := seededStore(t)

	// "e" matches execute_agent, get_or_create_session, ChatRequest and both
	// files; the CALLS edge is reachable from two of them.
	facts, err := NewEngine(s, nil).FindRelationships(context.Background(), "e")
	require.NoError(t, err)
	assert.Len(t, facts, 3)

	seen := make(map[graph.Fact]bool)
	for _, f := range facts {
		assert.False(t, seen[f], "duplicate fact %s", f)
		seen[f] = true
	}
}

func TestFindRelationshipsNoMatch(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := seededStore(t)

	facts, err := NewEngine(s, zap.New(core)).FindRelationships(context.Background(), "Execute_Agent")
	require.NoError(t, err)
	assert.Empty(t, facts)
	assert.Equal(t, 1, logs.FilterMessage("no entities found matching term").Len())
}

func TestFindRelationshipsBlankTerm(t *testing.T) {
	facts, err := NewEngine(failingReader{}, nil).FindRelationships(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestFindRelationshipsSurfacesStoreErrors(t *testing.T) {
	_, err := NewEngine(failingReader{}, nil).FindRelationships(context.Background(), "x")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

type failingReader struct{}

func (failingReader) FindEntities(context.Context, string) ([]graph.Entity, error) {
	return nil, errors.Join(store.ErrStoreUnavailable, errors.New("closed"))
}

func (failingReader) Neighbors(context.Context, int64) ([]graph.Edge, error) {
	return nil, store.ErrStoreUnavailable
}
