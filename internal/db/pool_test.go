package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBackoff_DoublesUpToCap(t *testing.T) {
	wait := firstBackoff
	var got []time.Duration
	for range 6 {
		wait = nextBackoff(wait)
		got = append(got, wait)
	}
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second,
		maxBackoff, maxBackoff, maxBackoff,
	}, got)
}

func TestCollectionDDL_QuotesTableAndIndex(t *testing.T) {
	stmts := collectionDDL("primary_chunks")
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], `CREATE TABLE IF NOT EXISTS "primary_chunks"`))
	assert.Contains(t, stmts[0], "embedding vector NOT NULL")
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "primary_chunks_source_idx" ON "primary_chunks" (source)`, stmts[1])
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database URL")
}
