package main

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Service fans out the best-effort catalog notifications that ride on the
// same exchange as the protocol events.
type Service struct {
	repo *Repository
	bus  Publisher
}

func NewService(repo *Repository, bus Publisher) *Service {
	return &Service{repo: repo, bus: bus}
}

func (s *Service) publish(ctx context.Context, p BookEventPayload) {
	if s.bus == nil { return }
	if err := s.bus.PublishJSON(ctx, p); err != nil {
		log.Warn().Err(err).Str("action", p.Action).Int64("book_id", p.BookID).
			Msg("publish book event failed")
	}
}

func (s *Service) OnCreated(ctx context.Context, b *Book) {
	s.publish(ctx, BookEventPayload{Action: ActionBookAdded, BookID: b.ID, Title: b.Title})
}

func (s *Service) OnUpdated(ctx context.Context, b *Book) {
	s.publish(ctx, BookEventPayload{Action: ActionBookUpdated, BookID: b.ID, Title: b.Title})
}

func (s *Service) OnDeleted(ctx context.Context, id int64) {
	s.publish(ctx, BookEventPayload{Action: ActionBookDeleted, BookID: id})
}
