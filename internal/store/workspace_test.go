package store

import (
	"context"
	"testing"

	spallerrors "github.com/spall/spall/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateWorkspaceIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w1, err := s.GetOrCreateWorkspace(ctx, "alice")
	require.NoError(t, err)

	w2, err := s.GetOrCreateWorkspace(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, w1.ID, w2.ID)
}

func TestRemoveWorkspaceCascadesQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w, err := s.GetOrCreateWorkspace(ctx, "alice")
	require.NoError(t, err)

	q, err := s.CreateQuery(ctx, w.ID, true, []int64{1})
	require.NoError(t, err)

	require.NoError(t, s.RemoveWorkspace(ctx, w.ID))

	_, err = s.GetQuery(ctx, q.ID)
	require.Error(t, err)
	require.Equal(t, spallerrors.CodeQueryNotFound, spallerrors.GetCode(err))
}

func TestRemoveWorkspaceNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.RemoveWorkspace(context.Background(), 999)
	require.Error(t, err)
	require.Equal(t, spallerrors.CodeWorkspaceNotFound, spallerrors.GetCode(err))
}
