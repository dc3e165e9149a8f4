package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Repository struct {
	DB *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(2 * time.Minute)
	db.SetMaxOpenConns(1)

	r := &Repository{DB: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS loans(
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  book_id        INTEGER NOT NULL,
  reader_id      INTEGER NOT NULL,
  borrow_date    TEXT NOT NULL,
  return_date    TEXT,
  correlation_id INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loans_book ON loans(book_id);
CREATE TABLE IF NOT EXISTS sequence(
  name  TEXT PRIMARY KEY,
  value INTEGER NOT NULL
);
INSERT INTO sequence(name, value) VALUES('borrow', 0)
ON CONFLICT(name) DO NOTHING;
`
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error { return r.DB.Close() }

func (r *Repository) CreateLoan(ctx context.Context, l *Loan) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
INSERT INTO loans(book_id, reader_id, borrow_date, return_date, correlation_id)
VALUES(?,?,?,NULL,?)`,
		l.BookID, l.ReaderID, l.BorrowDate, l.CorrelationID)
	if err != nil { return 0, err }
	return res.LastInsertId()
}

func (r *Repository) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	var l Loan
	var ret sql.NullString
	err := r.DB.QueryRowContext(ctx, `
SELECT id, book_id, reader_id, borrow_date, return_date, correlation_id
FROM loans WHERE id=?`, id).
		Scan(&l.ID, &l.BookID, &l.ReaderID, &l.BorrowDate, &ret, &l.CorrelationID)
	if err != nil { return nil, err }
	l.Returned = ret.Valid
	l.ReturnDate = ret.String
	return &l, nil
}

func (r *Repository) ListLoans(ctx context.Context) ([]*Loan, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT id, book_id, reader_id, borrow_date, return_date, correlation_id
FROM loans ORDER BY id`)
	if err != nil { return nil, err }
	defer rows.Close()

	var out []*Loan
	for rows.Next() {
		var l Loan
		var ret sql.NullString
		if err := rows.Scan(&l.ID, &l.BookID, &l.ReaderID, &l.BorrowDate, &ret, &l.CorrelationID); err != nil {
			return nil, err
		}
		l.Returned = ret.Valid
		l.ReturnDate = ret.String
		out = append(out, &l)
	}
	return out, rows.Err()
}

// MarkReturned sets the return date once and reports whether this call was
// the transition; a loan already returned keeps its first date and the
// caller must not broadcast a second release.
func (r *Repository) MarkReturned(ctx context.Context, id int64, date string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE loans SET return_date=? WHERE id=? AND return_date IS NULL`, date, id)
	if err != nil { return false, err }
	n, err := res.RowsAffected()
	if err != nil { return false, err }
	return n > 0, nil
}

func (r *Repository) DeleteLoan(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM loans WHERE id=?`, id)
	if err != nil { return err }
	n, err := res.RowsAffected()
	if err != nil { return err }
	if n == 0 {
		return fmt.Errorf("loan %d: %w", id, sql.ErrNoRows)
	}
	return nil
}
