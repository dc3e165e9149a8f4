package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

type capturedBus struct {
	mu        sync.Mutex
	published []any
}

func (c *capturedBus) PublishJSON(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, v)
	return nil
}

func (c *capturedBus) lastVote(t *testing.T) VoteResponsePayload {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.published)
	v, ok := c.published[len(c.published)-1].(VoteResponsePayload)
	require.True(t, ok, "last published event is not a vote")
	return v
}

func addBook(t *testing.T, repo *Repository, title string) int64 {
	t.Helper()
	id, err := repo.AddBook(context.Background(), &Book{Title: title, Author: "a"})
	require.NoError(t, err)
	return id
}

func event(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestVote_AvailableBookVotesYes(t *testing.T) {
	repo := newTestRepo(t)
	bus := &capturedBus{}
	p := NewParticipant(repo, bus)
	id := addBook(t, repo, "B1")

	p.HandleEvent(event(t, BorrowIntentPayload{
		Action: ActionBorrowIntent, CorrelationID: 1, BookID: id, ReaderID: 7,
	}))

	v := bus.lastVote(t)
	assert.Equal(t, VoteValueYes, v.Vote)
	assert.Equal(t, int64(1), v.CorrelationID)
	assert.Equal(t, ParticipantName, v.Participant)

	// Voting must not reserve the book.
	avail, err := repo.Availability(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, avail)
}

func TestVote_UnavailableBookVotesNo(t *testing.T) {
	repo := newTestRepo(t)
	bus := &capturedBus{}
	p := NewParticipant(repo, bus)
	id := addBook(t, repo, "B2")
	require.NoError(t, repo.SetAvailability(context.Background(), id, false))

	p.HandleEvent(event(t, BorrowIntentPayload{
		Action: ActionBorrowIntent, CorrelationID: 2, BookID: id, ReaderID: 7,
	}))

	assert.Equal(t, VoteValueNo, bus.lastVote(t).Vote)
}

func TestVote_MissingBookVotesNo(t *testing.T) {
	repo := newTestRepo(t)
	bus := &capturedBus{}
	p := NewParticipant(repo, bus)

	p.HandleEvent(event(t, BorrowIntentPayload{
		Action: ActionBorrowIntent, CorrelationID: 3, BookID: 404, ReaderID: 7,
	}))

	assert.Equal(t, VoteValueNo, bus.lastVote(t).Vote)
}

func TestCommit_FlipsAvailabilityAndIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	bus := &capturedBus{}
	p := NewParticipant(repo, bus)
	id := addBook(t, repo, "B1")

	commit := event(t, BorrowCommittedPayload{Action: ActionBorrowCommitted, BookID: id})
	p.HandleEvent(commit)

	avail, err := repo.Availability(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, avail)

	// Broadcast delivery can duplicate; the second commit is a no-op.
	p.HandleEvent(commit)
	avail, err = repo.Availability(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, avail)
}

func TestReturn_ReleasesAndIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	bus := &capturedBus{}
	p := NewParticipant(repo, bus)
	id := addBook(t, repo, "B1")
	require.NoError(t, repo.SetAvailability(context.Background(), id, false))

	ret := event(t, ReturnPayload{Action: ActionReturn, BookID: id, CorrelationID: 1})
	p.HandleEvent(ret)

	avail, err := repo.Availability(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, avail)

	p.HandleEvent(ret)
	avail, err = repo.Availability(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, avail)
}

func TestCancel_ReleasesBook(t *testing.T) {
	repo := newTestRepo(t)
	bus := &capturedBus{}
	p := NewParticipant(repo, bus)
	id := addBook(t, repo, "B1")
	require.NoError(t, repo.SetAvailability(context.Background(), id, false))

	p.HandleEvent(event(t, CancelPayload{Action: ActionCancel, BookID: id, CorrelationID: 1}))

	avail, err := repo.Availability(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, avail)
}

func TestHandleEvent_IgnoresUnknownActionsAndGarbage(t *testing.T) {
	repo := newTestRepo(t)
	bus := &capturedBus{}
	p := NewParticipant(repo, bus)

	p.HandleEvent([]byte(`{"action":"reader_added","readerCardNumber":1}`))
	p.HandleEvent([]byte(`not json`))

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Empty(t, bus.published)
}
