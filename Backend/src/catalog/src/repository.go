package main

import (
	"context"
	"database/sql"
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
CREATE TABLE IF NOT EXISTS books(
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  title     TEXT NOT NULL,
  author    TEXT NOT NULL,
  year      INTEGER NOT NULL DEFAULT 0,
  isbn      TEXT NOT NULL DEFAULT '',
  category  TEXT NOT NULL DEFAULT '',
  available INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);
`
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error { return r.DB.Close() }

func (r *Repository) AddBook(ctx context.Context, b *Book) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
INSERT INTO books(title, author, year, isbn, category, available)
VALUES(?,?,?,?,?,1)`,
		b.Title, b.Author, b.Year, b.ISBN, b.Category)
	if err != nil { return 0, err }
	return res.LastInsertId()
}

func (r *Repository) UpdateBook(ctx context.Context, b *Book) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE books SET title=?, author=?, year=?, isbn=?, category=?, available=?
WHERE id=?`,
		b.Title, b.Author, b.Year, b.ISBN, b.Category, b.Available, b.ID)
	if err != nil { return err }
	return mustAffect(res)
}

func (r *Repository) DeleteBook(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM books WHERE id=?`, id)
	if err != nil { return err }
	return mustAffect(res)
}

func (r *Repository) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	err := r.DB.QueryRowContext(ctx, `
SELECT id, title, author, year, isbn, category, available
FROM books WHERE id=?`, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.Year, &b.ISBN, &b.Category, &b.Available)
	if err != nil { return nil, err }
	return &b, nil
}

func (r *Repository) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT id, title, author, year, isbn, category, available
FROM books ORDER BY id`)
	if err != nil { return nil, err }
	defer rows.Close()

	var out []*Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Year, &b.ISBN, &b.Category, &b.Available); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// Availability is the read-only check behind the vote; it must not mutate.
func (r *Repository) Availability(ctx context.Context, bookID int64) (bool, error) {
	var avail bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT available FROM books WHERE id=?`, bookID).Scan(&avail)
	if err != nil { return false, err }
	return avail, nil
}

// SetAvailability flips the flag. Setting the same value twice is a no-op,
// which is what makes duplicate commit/return deliveries harmless.
func (r *Repository) SetAvailability(ctx context.Context, bookID int64, available bool) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE books SET available=? WHERE id=?`, available, bookID)
	return err
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil { return err }
	if n == 0 { return sql.ErrNoRows }
	return nil
}
