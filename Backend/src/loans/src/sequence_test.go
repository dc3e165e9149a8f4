package main

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_StrictlyIncreasing(t *testing.T) {
	repo := newTestRepo(t)
	seq := NewSequence(repo.DB)

	prev := int64(0)
	for i := 0; i < 10; i++ {
		v, err := seq.Next(context.Background())
		require.NoError(t, err)
		assert.Greater(t, v, prev)
		prev = v
	}
}

func TestSequence_ConcurrentIssuersGetDistinctIDs(t *testing.T) {
	repo := newTestRepo(t)
	seq := NewSequence(repo.DB)

	const n = 50
	ids := make([]int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := seq.Next(context.Background())
			assert.NoError(t, err)
			ids[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i := 1; i < n; i++ {
		assert.NotEqual(t, ids[i-1], ids[i], "two issuers observed the same id")
	}
	// No lost increments either.
	assert.Equal(t, int64(n), ids[n-1])
}

func TestSequence_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loans.db")

	repo, err := NewRepository(path)
	require.NoError(t, err)
	seq := NewSequence(repo.DB)
	first, err := seq.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo2, err := NewRepository(path)
	require.NoError(t, err)
	defer repo2.Close()
	second, err := NewSequence(repo2.DB).Next(context.Background())
	require.NoError(t, err)

	assert.Greater(t, second, first)
}
