package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrVoteDenied      = errors.New("borrow denied by participant vote")
	ErrAttemptTimedOut = errors.New("borrow attempt timed out")
	ErrBusUnavailable  = errors.New("event bus unavailable")
)

// ticket is the transient bookkeeping for one in-flight borrow attempt.
// It lives in the orchestrator's table from intent publish until the
// attempt resolves, then it is gone; late votes find nothing to match.
type ticket struct {
	correlationID int64
	bookID        int64
	readerID      int64
	bookVote      Vote
	readerVote    Vote
	outcome       Outcome
	resolved      bool
	done          chan struct{}
}

// Orchestrator drives the borrow choreography: publish an intent, collect
// the catalog and readers votes by correlation id, and settle each attempt
// exactly once as approved, denied or timed out.
type Orchestrator struct {
	mu      sync.Mutex
	tickets map[int64]*ticket

	seq  *Sequence
	repo *Repository
	bus  Publisher
	wait time.Duration
}

func NewOrchestrator(seq *Sequence, repo *Repository, bus Publisher, wait time.Duration) *Orchestrator {
	return &Orchestrator{
		tickets: make(map[int64]*ticket),
		seq:     seq,
		repo:    repo,
		bus:     bus,
		wait:    wait,
	}
}

// Borrow runs one attempt start to finish and blocks the caller until it
// resolves. On approval the loan row is persisted and the commit is
// broadcast so the catalog flips availability.
func (o *Orchestrator) Borrow(ctx context.Context, bookID, readerID int64) (int64, error) {
	cid, err := o.seq.Next(ctx)
	if err != nil { return 0, err }

	t := &ticket{
		correlationID: cid,
		bookID:        bookID,
		readerID:      readerID,
		done:          make(chan struct{}),
	}
	o.mu.Lock()
	o.tickets[cid] = t
	o.mu.Unlock()

	intent := BorrowIntentPayload{
		Action:        ActionBorrowIntent,
		CorrelationID: cid,
		BookID:        bookID,
		ReaderID:      readerID,
	}
	if err := o.bus.PublishJSON(ctx, intent); err != nil {
		o.mu.Lock()
		delete(o.tickets, cid)
		o.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}
	log.Info().Int64("correlation_id", cid).Int64("book_id", bookID).
		Int64("reader_id", readerID).Msg("borrow intent published")

	timer := time.NewTimer(o.wait)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
		o.resolve(cid, OutcomeTimedOut)
		<-t.done
	case <-ctx.Done():
		// Caller gave up; settle the attempt so late votes are discarded.
		o.resolve(cid, OutcomeTimedOut)
		<-t.done
		return 0, ctx.Err()
	}

	log.Info().Int64("correlation_id", cid).Stringer("outcome", t.outcome).Msg("borrow attempt resolved")

	switch t.outcome {
	case OutcomeApproved:
		loan := &Loan{
			BookID:        bookID,
			ReaderID:      readerID,
			BorrowDate:    today(),
			CorrelationID: cid,
		}
		id, err := o.repo.CreateLoan(ctx, loan)
		if err != nil { return 0, err }
		commit := BorrowCommittedPayload{Action: ActionBorrowCommitted, BookID: bookID}
		if err := o.bus.PublishJSON(ctx, commit); err != nil {
			log.Warn().Err(err).Int64("book_id", bookID).Msg("publish borrow_committed failed")
		}
		added := BorrowAddedPayload{Action: ActionBorrowAdded, BorrowID: id, BookID: bookID}
		if err := o.bus.PublishJSON(ctx, added); err != nil {
			log.Warn().Err(err).Msg("publish borrow_added failed")
		}
		return id, nil
	case OutcomeDenied:
		return 0, ErrVoteDenied
	default:
		return 0, ErrAttemptTimedOut
	}
}

// HandleEvent is the bus consumer entry point; only vote responses matter
// to the orchestrator.
func (o *Orchestrator) HandleEvent(body []byte) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Error().Err(err).Msg("invalid event json")
		return
	}
	if env.Action != ActionVoteResponse {
		return
	}
	var p VoteResponsePayload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Error().Err(err).Msg("invalid vote_response json")
		return
	}
	o.HandleVote(p)
}

// HandleVote records one participant's verdict. Votes for unknown or
// already-resolved correlation ids are expected under broadcast delivery
// and dropped without fuss, as is any vote value other than the two the
// protocol defines. A No settles the attempt immediately, even if the
// other vote is still pending.
func (o *Orchestrator) HandleVote(p VoteResponsePayload) {
	var v Vote
	switch p.Vote {
	case VoteValueYes:
		v = VoteYes
	case VoteValueNo:
		v = VoteNo
	default:
		log.Warn().Str("vote", p.Vote).Int64("correlation_id", p.CorrelationID).
			Msg("unrecognized vote value discarded")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.tickets[p.CorrelationID]
	if !ok || t.resolved {
		log.Debug().Int64("correlation_id", p.CorrelationID).Str("participant", p.Participant).
			Msg("vote for unknown or resolved attempt discarded")
		return
	}

	switch p.Participant {
	case ParticipantCatalog:
		t.bookVote = v
	case ParticipantReaders:
		t.readerVote = v
	default:
		log.Warn().Str("participant", p.Participant).Msg("vote from unknown participant discarded")
		return
	}

	if t.bookVote == VoteNo || t.readerVote == VoteNo {
		o.resolveLocked(t, OutcomeDenied)
	} else if t.bookVote == VoteYes && t.readerVote == VoteYes {
		o.resolveLocked(t, OutcomeApproved)
	}
}

func (o *Orchestrator) resolve(cid int64, out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.tickets[cid]; ok {
		o.resolveLocked(t, out)
	}
}

// resolveLocked settles a ticket exactly once: the outcome is written
// before done is closed, and the ticket leaves the table in the same
// critical section.
func (o *Orchestrator) resolveLocked(t *ticket, out Outcome) {
	if t.resolved {
		return
	}
	t.resolved = true
	t.outcome = out
	delete(o.tickets, t.correlationID)
	close(t.done)
}

// Pending reports the number of unresolved attempts.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tickets)
}
