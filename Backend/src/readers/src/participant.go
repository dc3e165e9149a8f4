package main

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Participant casts the readers-side vote on borrow intents. The verdict
// is existence of the reader's card; there is no further eligibility rule.
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
	if env.Action != ActionBorrowIntent {
		return
	}
	var in BorrowIntentPayload
	if err := json.Unmarshal(body, &in); err != nil {
		log.Error().Err(err).Msg("invalid borrow_intent json")
		return
	}

	ctx := context.Background()
	vote := VoteValueNo
	exists, err := p.repo.Exists(ctx, in.ReaderID)
	if err != nil {
		log.Error().Err(err).Int64("reader_id", in.ReaderID).Msg("vote: reader lookup")
	}
	if err == nil && exists {
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
	log.Info().Int64("correlation_id", in.CorrelationID).Int64("reader_id", in.ReaderID).
		Str("vote", vote).Msg("reader vote published")
}
