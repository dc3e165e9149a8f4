package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
)

// Participant is the catalog's side of the borrow choreography. It votes on
// intents and keeps the availability flag in line with commit, return and
// cancel broadcasts. It never reserves on intent: the flag only flips once
// the orchestrator confirms the borrow.
type Participant struct {
	repo *Repository
	bus  Publisher
}

func NewParticipant(repo *Repository, bus Publisher) *Participant {
	return &Participant{repo: repo, bus: bus}
}

func (p *Participant) HandleEvent(body []byte) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Error().Err(err).Msg("invalid event json")
		return
	}
	ctx := context.Background()

	switch env.Action {
	case ActionBorrowIntent:
		var in BorrowIntentPayload
		if err := json.Unmarshal(body, &in); err != nil {
			log.Error().Err(err).Msg("invalid borrow_intent json")
			return
		}
		p.voteOnIntent(ctx, in)

	case ActionBorrowCommitted:
		var in BorrowCommittedPayload
		if err := json.Unmarshal(body, &in); err != nil {
			log.Error().Err(err).Msg("invalid borrow_committed json")
			return
		}
		if err := p.repo.SetAvailability(ctx, in.BookID, false); err != nil {
			log.Error().Err(err).Int64("book_id", in.BookID).Msg("commit: set unavailable")
			return
		}
		log.Info().Int64("book_id", in.BookID).Msg("book marked unavailable")

	case ActionReturn, ActionCancel:
		var in ReturnPayload
		if err := json.Unmarshal(body, &in); err != nil {
			log.Error().Err(err).Msg("invalid release json")
			return
		}
		if err := p.repo.SetAvailability(ctx, in.BookID, true); err != nil {
			log.Error().Err(err).Int64("book_id", in.BookID).Msg("release: set available")
			return
		}
		log.Info().Int64("book_id", in.BookID).Str("action", env.Action).Msg("book marked available")
	}
}

// voteOnIntent is the read-only availability check. A missing book and an
// unavailable book both vote No.
func (p *Participant) voteOnIntent(ctx context.Context, in BorrowIntentPayload) {
	vote := VoteValueNo
	available, err := p.repo.Availability(ctx, in.BookID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Int64("book_id", in.BookID).Msg("vote: availability lookup")
	}
	if err == nil && available {
		vote = VoteValueYes
	}

	res := VoteResponsePayload{
		Action:        ActionVoteResponse,
		CorrelationID: in.CorrelationID,
		BookID:        in.BookID,
		Participant:   ParticipantName,
		Vote:          vote,
	}
	if err := p.bus.PublishJSON(ctx, res); err != nil {
		log.Error().Err(err).Int64("correlation_id", in.CorrelationID).Msg("publish vote failed")
		return
	}
	log.Info().Int64("correlation_id", in.CorrelationID).Int64("book_id", in.BookID).
		Str("vote", vote).Msg("availability vote published")
}
