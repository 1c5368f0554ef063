package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSessions_OrderedByStart(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := s.ImportSession(ctx, writeLog(t, dir, "2014_4_3_090000_ResponseToName.txt", gaveUpLog))
	require.NoError(t, err)
	_, err = s.ImportSession(ctx, writeLog(t, dir, "2014_4_2_090000_ResponseToName.txt", respondedLog))
	require.NoError(t, err)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "session-2", sessions[0].ID)
	assert.Equal(t, "session-1", sessions[1].ID)
	assert.True(t, sessions[0].StartedAt.Before(sessions[1].StartedAt))
}

func TestListSessions_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	sessions, err := s.ListSessions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestGetSession_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, empty)

	dir := t.TempDir()
	for base, content := range map[string]string{
		"2014_4_2_090000_ResponseToName.txt": respondedLog,
		"2014_4_2_100000_ResponseToName.txt": gaveUpLog,
		"2014_4_2_110000_ResponseToName.txt": "CS\t1\t5\nCE\t1\t5.001\n",
	} {
		_, err := s.ImportSession(ctx, writeLog(t, dir, base, content))
		require.NoError(t, err)
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Sessions)
	assert.Equal(t, 1, st.Responded)
	assert.Equal(t, 1, st.NoResponse)
	assert.Equal(t, 1, st.Incomplete)
	assert.Equal(t, 601*time.Millisecond, st.MeanLatency)
	assert.InDelta(t, 3.0, st.MeanCalls, 0.001)
}
