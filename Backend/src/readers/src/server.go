package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	repo *Repository
	bus  *Rabbit
}

func NewServer(repo *Repository, bus *Rabbit) *Server {
	return &Server{repo: repo, bus: bus}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /readers", s.handleList)
	mux.HandleFunc("POST /readers", s.handleAdd)
	mux.HandleFunc("POST /readers/update", s.handleUpdate)
	mux.HandleFunc("POST /readers/delete", s.handleDelete)
	mux.HandleFunc("GET /health", s.handleHealth)
	return cors.Default().Handler(mux)
}

func (s *Server) notify(ctx context.Context, action string, cardNumber int64) {
	ev := ReaderEventPayload{Action: action, CardNumber: cardNumber}
	if err := s.bus.PublishJSON(ctx, ev); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("publish reader event failed")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	readers, err := s.repo.ListReaders(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list readers")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if readers == nil {
		readers = []*Reader{}
	}
	writeJSON(w, http.StatusOK, readers)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	rd := &Reader{
		Name:        r.FormValue("name"),
		Surname:     r.FormValue("surname"),
		DateOfBirth: r.FormValue("dateOfBirth"),
	}
	if rd.Name == "" || rd.Surname == "" {
		http.Error(w, "name and surname are required", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", rd.DateOfBirth); err != nil {
		http.Error(w, "dateOfBirth must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	id, err := s.repo.AddReader(r.Context(), rd)
	if err != nil {
		log.Error().Err(err).Msg("add reader")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	rd.CardNumber = id
	s.notify(r.Context(), ActionReaderAdded, id)
	writeJSON(w, http.StatusOK, rd)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	cardNumber, err := strconv.ParseInt(r.FormValue("cardNumber"), 10, 64)
	if err != nil || cardNumber <= 0 {
		http.Error(w, "cardNumber is required", http.StatusBadRequest)
		return
	}
	rd, err := s.repo.GetReader(r.Context(), cardNumber)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "reader not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("update: load reader")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if v := r.FormValue("name"); v != "" { rd.Name = v }
	if v := r.FormValue("surname"); v != "" { rd.Surname = v }
	if v := r.FormValue("dateOfBirth"); v != "" {
		if _, err := time.Parse("2006-01-02", v); err != nil {
			http.Error(w, "dateOfBirth must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		rd.DateOfBirth = v
	}

	if err := s.repo.UpdateReader(r.Context(), rd); err != nil {
		log.Error().Err(err).Msg("update reader")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.notify(r.Context(), ActionReaderUpdated, cardNumber)
	writeJSON(w, http.StatusOK, rd)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	cardNumber, err := strconv.ParseInt(r.FormValue("cardNumber"), 10, 64)
	if err != nil || cardNumber <= 0 {
		http.Error(w, "cardNumber is required", http.StatusBadRequest)
		return
	}
	if err := s.repo.DeleteReader(r.Context(), cardNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "reader not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("delete reader")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.notify(r.Context(), ActionReaderDeleted, cardNumber)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus, rabbitStatus := "ok", "ok"
	if err := s.repo.DB.PingContext(ctx); err != nil {
		dbStatus = "error"
	}
	if s.bus == nil || s.bus.Ping() != nil {
		rabbitStatus = "error"
	}
	code := http.StatusOK
	if dbStatus != "ok" || rabbitStatus != "ok" {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, map[string]any{
		"database": map[string]string{"status": dbStatus},
		"rabbitmq": map[string]string{"status": rabbitStatus},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
