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
	orch *Orchestrator
	repo *Repository
	pub  Publisher
	bus  *Rabbit // health check only
}

func NewServer(orch *Orchestrator, repo *Repository, pub Publisher, bus *Rabbit) *Server {
	return &Server{orch: orch, repo: repo, pub: pub, bus: bus}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /borrow", s.handleBorrow)
	mux.HandleFunc("POST /return", s.handleReturn)
	mux.HandleFunc("POST /cancel", s.handleCancel)
	mux.HandleFunc("GET /loans", s.handleLoans)
	mux.HandleFunc("GET /health", s.handleHealth)
	return cors.Default().Handler(mux)
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	bookID, err1 := strconv.ParseInt(r.FormValue("bookId"), 10, 64)
	readerID, err2 := strconv.ParseInt(r.FormValue("readerId"), 10, 64)
	if err1 != nil || err2 != nil || bookID <= 0 || readerID <= 0 {
		http.Error(w, "bookId and readerId are required", http.StatusBadRequest)
		return
	}

	loanID, err := s.orch.Borrow(r.Context(), bookID, readerID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"loan_id": loanID})
	case errors.Is(err, ErrVoteDenied):
		http.Error(w, "borrow denied", http.StatusBadRequest)
	case errors.Is(err, ErrAttemptTimedOut):
		http.Error(w, "borrow attempt timed out", http.StatusRequestTimeout)
	case errors.Is(err, ErrBusUnavailable):
		http.Error(w, "event bus unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("borrow failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Return is fire and forget: set the date, tell the catalog, done.
// Only the first return of a loan broadcasts the release.
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	loanID, err := strconv.ParseInt(r.FormValue("loanId"), 10, 64)
	if err != nil || loanID <= 0 {
		http.Error(w, "loanId is required", http.StatusBadRequest)
		return
	}
	loan, err := s.repo.GetLoan(r.Context(), loanID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "loan not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("return: load loan")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	returned, err := s.repo.MarkReturned(r.Context(), loanID, today())
	if err != nil {
		log.Error().Err(err).Msg("return: mark returned")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if returned {
		ev := ReturnPayload{Action: ActionReturn, BookID: loan.BookID, CorrelationID: loan.CorrelationID}
		if err := s.pub.PublishJSON(r.Context(), ev); err != nil {
			log.Warn().Err(err).Int64("book_id", loan.BookID).Msg("publish return failed")
		}
	}
	w.WriteHeader(http.StatusOK)
}

// Cancel deletes a loan outright. Only an unreturned loan frees the book;
// cancelling an already-returned loan must not flip availability again.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	loanID, err := strconv.ParseInt(r.FormValue("loanId"), 10, 64)
	if err != nil || loanID <= 0 {
		http.Error(w, "loanId is required", http.StatusBadRequest)
		return
	}
	loan, err := s.repo.GetLoan(r.Context(), loanID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "loan not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("cancel: load loan")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := s.repo.DeleteLoan(r.Context(), loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "loan not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("cancel: delete loan")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !loan.Returned {
		ev := CancelPayload{Action: ActionCancel, BookID: loan.BookID, CorrelationID: loan.CorrelationID}
		if err := s.pub.PublishJSON(r.Context(), ev); err != nil {
			log.Warn().Err(err).Int64("book_id", loan.BookID).Msg("publish cancel failed")
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.repo.ListLoans(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list loans")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	type loanView struct {
		ID            int64   `json:"id"`
		BookID        int64   `json:"bookId"`
		ReaderID      int64   `json:"readerId"`
		BorrowDate    string  `json:"borrowDate"`
		ReturnDate    *string `json:"returnDate"`
		CorrelationID int64   `json:"correlationId"`
	}
	out := make([]loanView, 0, len(loans))
	for _, l := range loans {
		v := loanView{
			ID:            l.ID,
			BookID:        l.BookID,
			ReaderID:      l.ReaderID,
			BorrowDate:    l.BorrowDate,
			CorrelationID: l.CorrelationID,
		}
		if l.Returned {
			d := l.ReturnDate
			v.ReturnDate = &d
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
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
