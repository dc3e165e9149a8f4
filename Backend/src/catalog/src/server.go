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
	svc  *Service
	bus  *Rabbit
}

func NewServer(repo *Repository, svc *Service, bus *Rabbit) *Server {
	return &Server{repo: repo, svc: svc, bus: bus}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /books", s.handleList)
	mux.HandleFunc("POST /books", s.handleAdd)
	mux.HandleFunc("POST /books/update", s.handleUpdate)
	mux.HandleFunc("POST /books/delete", s.handleDelete)
	mux.HandleFunc("GET /health", s.handleHealth)
	return cors.Default().Handler(mux)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	books, err := s.repo.ListBooks(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list books")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if books == nil {
		books = []*Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	b := &Book{
		Title:    r.FormValue("title"),
		Author:   r.FormValue("author"),
		ISBN:     r.FormValue("isbn"),
		Category: r.FormValue("category"),
	}
	if b.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	b.Year, _ = strconv.ParseInt(r.FormValue("year"), 10, 64)

	id, err := s.repo.AddBook(r.Context(), b)
	if err != nil {
		log.Error().Err(err).Msg("add book")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	b.ID = id
	b.Available = true
	s.svc.OnCreated(r.Context(), b)
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	b, err := s.repo.GetBook(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("update: load book")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if v := r.FormValue("title"); v != "" { b.Title = v }
	if v := r.FormValue("author"); v != "" { b.Author = v }
	if v := r.FormValue("isbn"); v != "" { b.ISBN = v }
	if v := r.FormValue("category"); v != "" { b.Category = v }
	if v := r.FormValue("year"); v != "" {
		if y, err := strconv.ParseInt(v, 10, 64); err == nil { b.Year = y }
	}
	if v := r.FormValue("available"); v != "" {
		b.Available = v == "on" || v == "true" || v == "1"
	}

	if err := s.repo.UpdateBook(r.Context(), b); err != nil {
		log.Error().Err(err).Msg("update book")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.svc.OnUpdated(r.Context(), b)
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := s.repo.DeleteBook(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "book not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("delete book")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.svc.OnDeleted(r.Context(), id)
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
