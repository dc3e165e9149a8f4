package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestServer(t *testing.T, bus *fakeBus, wait time.Duration) (*Server, *Orchestrator) {
	t.Helper()
	orch := newTestOrchestrator(t, bus, wait)
	return NewServer(orch, orch.repo, bus, nil), orch
}

func TestHandleBorrow_Approved(t *testing.T) {
	bus := &fakeBus{}
	srv, orch := newTestServer(t, bus, 2*time.Second)
	bus.onIntent = func(p BorrowIntentPayload) {
		orch.HandleVote(vote(ParticipantCatalog, VoteValueYes, p))
		orch.HandleVote(vote(ParticipantReaders, VoteValueYes, p))
	}

	rec := postForm(t, srv.Handler(), "/borrow", url.Values{"bookId": {"1"}, "readerId": {"7"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp["loan_id"])
}

func TestHandleBorrow_Denied(t *testing.T) {
	bus := &fakeBus{}
	srv, orch := newTestServer(t, bus, 2*time.Second)
	bus.onIntent = func(p BorrowIntentPayload) {
		orch.HandleVote(vote(ParticipantCatalog, VoteValueNo, p))
	}

	rec := postForm(t, srv.Handler(), "/borrow", url.Values{"bookId": {"2"}, "readerId": {"7"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBorrow_Timeout(t *testing.T) {
	bus := &fakeBus{}
	srv, _ := newTestServer(t, bus, 50*time.Millisecond)

	rec := postForm(t, srv.Handler(), "/borrow", url.Values{"bookId": {"3"}, "readerId": {"7"}})
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func TestHandleBorrow_BusDown(t *testing.T) {
	bus := &downBus{}
	orch := newTestOrchestrator(t, bus, time.Second)
	srv := NewServer(orch, orch.repo, bus, nil)

	rec := postForm(t, srv.Handler(), "/borrow", url.Values{"bookId": {"4"}, "readerId": {"7"}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleBorrow_MissingParams(t *testing.T) {
	bus := &fakeBus{}
	srv, _ := newTestServer(t, bus, time.Second)

	rec := postForm(t, srv.Handler(), "/borrow", url.Values{"bookId": {"1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func approvedLoan(t *testing.T, srv *Server, orch *Orchestrator, bus *fakeBus, bookID int64) int64 {
	t.Helper()
	bus.mu.Lock()
	bus.onIntent = func(p BorrowIntentPayload) {
		orch.HandleVote(vote(ParticipantCatalog, VoteValueYes, p))
		orch.HandleVote(vote(ParticipantReaders, VoteValueYes, p))
	}
	bus.mu.Unlock()

	id, err := orch.Borrow(context.Background(), bookID, 7)
	require.NoError(t, err)
	return id
}

func TestHandleReturn_SetsDateAndPublishes(t *testing.T) {
	bus := &fakeBus{}
	srv, orch := newTestServer(t, bus, 2*time.Second)
	id := approvedLoan(t, srv, orch, bus, 1)

	rec := postForm(t, srv.Handler(), "/return", url.Values{"loanId": {intToStr(id)}})
	require.Equal(t, http.StatusOK, rec.Code)

	loan, err := orch.repo.GetLoan(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, loan.Returned)
	firstDate := loan.ReturnDate

	returns := 0
	for _, ev := range bus.events() {
		if p, ok := ev.(ReturnPayload); ok && p.BookID == 1 {
			returns++
		}
	}
	assert.Equal(t, 1, returns)

	// Returning twice is allowed and keeps the original date.
	rec = postForm(t, srv.Handler(), "/return", url.Values{"loanId": {intToStr(id)}})
	require.Equal(t, http.StatusOK, rec.Code)
	loan, err = orch.repo.GetLoan(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, firstDate, loan.ReturnDate)
}

func TestHandleReturn_SecondReturnDoesNotRepublish(t *testing.T) {
	bus := &fakeBus{}
	srv, orch := newTestServer(t, bus, 2*time.Second)
	id := approvedLoan(t, srv, orch, bus, 4)

	rec := postForm(t, srv.Handler(), "/return", url.Values{"loanId": {intToStr(id)}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postForm(t, srv.Handler(), "/return", url.Values{"loanId": {intToStr(id)}})
	require.Equal(t, http.StatusOK, rec.Code)

	// The catalog flips availability on every return event it sees, so a
	// returned loan must broadcast the release exactly once.
	returns := 0
	for _, ev := range bus.events() {
		if p, ok := ev.(ReturnPayload); ok && p.BookID == 4 {
			returns++
		}
	}
	assert.Equal(t, 1, returns)
}

func TestHandleReturn_UnknownLoan(t *testing.T) {
	bus := &fakeBus{}
	srv, _ := newTestServer(t, bus, time.Second)

	rec := postForm(t, srv.Handler(), "/return", url.Values{"loanId": {"12345"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancel_UnreturnedLoanPublishesCancel(t *testing.T) {
	bus := &fakeBus{}
	srv, orch := newTestServer(t, bus, 2*time.Second)
	id := approvedLoan(t, srv, orch, bus, 5)

	rec := postForm(t, srv.Handler(), "/cancel", url.Values{"loanId": {intToStr(id)}})
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := orch.repo.GetLoan(context.Background(), id)
	assert.Error(t, err)

	cancels := 0
	for _, ev := range bus.events() {
		if p, ok := ev.(CancelPayload); ok && p.BookID == 5 {
			cancels++
		}
	}
	assert.Equal(t, 1, cancels)
}

func TestHandleCancel_ReturnedLoanDoesNotReleaseAgain(t *testing.T) {
	bus := &fakeBus{}
	srv, orch := newTestServer(t, bus, 2*time.Second)
	id := approvedLoan(t, srv, orch, bus, 6)

	rec := postForm(t, srv.Handler(), "/return", url.Values{"loanId": {intToStr(id)}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postForm(t, srv.Handler(), "/cancel", url.Values{"loanId": {intToStr(id)}})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, ev := range bus.events() {
		if _, ok := ev.(CancelPayload); ok {
			t.Fatal("cancel of a returned loan must not publish a release")
		}
	}
}

func TestHandleLoans_ListsProjections(t *testing.T) {
	bus := &fakeBus{}
	srv, orch := newTestServer(t, bus, 2*time.Second)
	id := approvedLoan(t, srv, orch, bus, 9)

	req := httptest.NewRequest(http.MethodGet, "/loans", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []struct {
		ID         int64   `json:"id"`
		BookID     int64   `json:"bookId"`
		ReaderID   int64   `json:"readerId"`
		ReturnDate *string `json:"returnDate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, id, out[0].ID)
	assert.Equal(t, int64(9), out[0].BookID)
	assert.Nil(t, out[0].ReturnDate)
}
