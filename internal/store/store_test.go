package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"codegraph/internal/graph"
)

func newTestStore(t *testing.T) (*Store, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(filepath.Join(t.TempDir(), "graph", "code_graph.sqlite"), zap.New(core))
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s, logs
}

func apiRecord() graph.FileRecord {
	return graph.FileRecord{
		FilePath: "agent/api.py",
		Entities: []graph.Entity{
			{Name: "execute_agent", Type: graph.EntityFunction},
			{Name: "get_or_create_session", Type: graph.EntityFunction},
		},
		Relationships: []graph.PendingRelationship{
			{Source: "execute_agent", Target: "agent/api.py", Type: graph.RelationDefinesInFile},
			{Source: "execute_agent", Target: "get_or_create_session", Type: graph.RelationCalls},
		},
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Initialize(context.Background()))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestCloseWithoutInitialize(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never.sqlite"), nil)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestOperationsRequireInitialize(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "closed.sqlite"), nil)
	ctx := context.Background()

	_, err := s.AddFileData(ctx, apiRecord())
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = s.FindEntities(ctx, "execute")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = s.Stats(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestInitializeWithoutPath(t *testing.T) {
	err := New("", nil).Initialize(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestAddFileData(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	res, err := s.AddFileData(ctx, apiRecord())
	require.NoError(t, err)
	assert.Equal(t, 3, res.EntitiesAdded)
	assert.Equal(t, 2, res.RelationsAdded)
	assert.Empty(t, res.Dangling)

	file, ok, err := lookupByName(t, s, "agent/api.py")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, graph.EntityFile, file.Type)
	assert.Equal(t, "agent/api.py", file.FilePath)
}

func TestAddFileDataEntityInsertIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := graph.FileRecord{
		FilePath: "agent/models.py",
		Entities: []graph.Entity{
			{Name: "ChatRequest", Type: graph.EntityClass},
			{Name: "ChatRequest", Type: graph.EntityClass},
		},
	}

	first, err := s.AddFileData(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, first.EntitiesAdded)

	second, err := s.AddFileData(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EntitiesAdded)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entities)
}

func TestAddFileDataSameNameDifferentType(t *testing.T) {
	s, _ := newTestStore(t)

	res, err := s.AddFileData(context.Background(), graph.FileRecord{
		FilePath: "a.py",
		Entities: []graph.Entity{
			{Name: "Thing", Type: graph.EntityClass},
			{Name: "Thing", Type: graph.EntityFunction},
			{Name: "Thing", Type: graph.ParseEntityType("MODULE")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.EntitiesAdded)

	found, err := s.FindEntities(context.Background(), "Thing")
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.False(t, found[2].Type.IsKnown())
	assert.Equal(t, "MODULE", found[2].Type.String())
}

func TestAddFileDataDanglingRelationship(t *testing.T) {
	s, logs := newTestStore(t)
	ctx := context.Background()

	rec := graph.FileRecord{
		FilePath: "agent/models.py",
		Entities: []graph.Entity{{Name: "ChatRequest", Type: graph.EntityClass}},
		Relationships: []graph.PendingRelationship{
			{Source: "execute_agent", Target: "ChatRequest", Type: graph.RelationUsesType},
			{Source: "ChatRequest", Target: "missing", Type: graph.RelationCalls},
			{Source: "ChatRequest", Target: "agent/models.py", Type: graph.RelationDefinesInFile},
		},
	}

	res, err := s.AddFileData(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, res.EntitiesAdded)
	assert.Equal(t, 1, res.RelationsAdded)
	assert.Equal(t, rec.Relationships[:2], res.Dangling)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Relationships)

	warnings := logs.FilterMessage("could not find source/target for relationship, skipping")
	assert.Equal(t, 2, warnings.Len())
}

func TestAddFileDataAllowsParallelEdgesAndCycles(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := graph.FileRecord{
		FilePath: "loop.py",
		Entities: []graph.Entity{
			{Name: "ping", Type: graph.EntityFunction},
			{Name: "pong", Type: graph.EntityFunction},
		},
		Relationships: []graph.PendingRelationship{
			{Source: "ping", Target: "pong", Type: graph.RelationCalls},
			{Source: "ping", Target: "pong", Type: graph.RelationCalls},
			{Source: "pong", Target: "ping", Type: graph.RelationCalls},
		},
	}

	res, err := s.AddFileData(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RelationsAdded)

	ping, ok, err := lookupByName(t, s, "ping")
	require.NoError(t, err)
	require.True(t, ok)

	edges, err := s.Neighbors(ctx, ping.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 3)
}

func TestAddFileDataRejectsEmptyPath(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddFileData(context.Background(), graph.FileRecord{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestFindEntitiesIsCaseSensitiveSubstring(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddFileData(ctx, apiRecord())
	require.NoError(t, err)

	found, err := s.FindEntities(ctx, "exec")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "execute_agent", found[0].Name)

	found, err = s.FindEntities(ctx, "EXEC")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.FindEntities(ctx, "_")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestLookupEntityMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok, err := lookupByName(t, s, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNeighborsJoinEndpoints(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddFileData(ctx, apiRecord())
	require.NoError(t, err)

	session, ok, err := lookupByName(t, s, "get_or_create_session")
	require.NoError(t, err)
	require.True(t, ok)

	edges, err := s.Neighbors(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.Endpoint{Name: "execute_agent", Type: graph.EntityFunction}, edges[0].Source)
	assert.Equal(t, graph.Endpoint{Name: "get_or_create_session", Type: graph.EntityFunction}, edges[0].Target)
	assert.Equal(t, graph.RelationCalls, edges[0].Type)
}

func TestResetRemovesDatabase(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddFileData(ctx, apiRecord())
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	_, err = s.FindEntities(ctx, "execute")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	require.NoError(t, s.Initialize(ctx))
	found, err := s.FindEntities(ctx, "execute_agent")
	require.NoError(t, err)
	assert.Empty(t, found)

	again, err := s.AddFileData(ctx, apiRecord())
	require.NoError(t, err)
	assert.Equal(t, first.EntitiesAdded, again.EntitiesAdded)
	assert.Equal(t, first.RelationsAdded, again.RelationsAdded)
}

func TestResetWithoutInitialize(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.sqlite"), nil)
	assert.NoError(t, s.Reset())
}

func TestMemoryStore(t *testing.T) {
	s := New(MemoryPath, nil)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	_, err := s.AddFileData(ctx, apiRecord())
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	require.NoError(t, s.Initialize(ctx))
	defer s.Close()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestAddFileDataRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewWithDB(db, nil)

	insert := regexp.QuoteMeta(`INSERT OR IGNORE INTO entities (name, type, file_path) VALUES (?, ?, ?)`)
	mock.ExpectBegin()
	mock.ExpectExec(insert).
		WithArgs("agent/api.py", "FILE", "agent/api.py").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).
		WithArgs("execute_agent", "FUNCTION", "agent/api.py").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = s.AddFileData(context.Background(), apiRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddFileDataBeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	_, err = NewWithDB(db, nil).AddFileData(context.Background(), apiRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func lookupByName(t *testing.T, s *Store, name string) (graph.Entity, bool, error) {
	t.Helper()
	db, err := s.handle()
	require.NoError(t, err)
	return lookupEntity(context.Background(), db, name)
}
