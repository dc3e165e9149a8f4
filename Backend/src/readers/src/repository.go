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
CREATE TABLE IF NOT EXISTS readers(
  card_number   INTEGER PRIMARY KEY AUTOINCREMENT,
  name          TEXT NOT NULL,
  surname       TEXT NOT NULL,
  date_of_birth TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readers_surname ON readers(surname);
`
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error { return r.DB.Close() }

func (r *Repository) AddReader(ctx context.Context, rd *Reader) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
INSERT INTO readers(name, surname, date_of_birth) VALUES(?,?,?)`,
		rd.Name, rd.Surname, rd.DateOfBirth)
	if err != nil { return 0, err }
	return res.LastInsertId()
}

func (r *Repository) UpdateReader(ctx context.Context, rd *Reader) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE readers SET name=?, surname=?, date_of_birth=? WHERE card_number=?`,
		rd.Name, rd.Surname, rd.DateOfBirth, rd.CardNumber)
	if err != nil { return err }
	n, err := res.RowsAffected()
	if err != nil { return err }
	if n == 0 { return sql.ErrNoRows }
	return nil
}

func (r *Repository) DeleteReader(ctx context.Context, cardNumber int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM readers WHERE card_number=?`, cardNumber)
	if err != nil { return err }
	n, err := res.RowsAffected()
	if err != nil { return err }
	if n == 0 { return sql.ErrNoRows }
	return nil
}

func (r *Repository) GetReader(ctx context.Context, cardNumber int64) (*Reader, error) {
	var rd Reader
	err := r.DB.QueryRowContext(ctx, `
SELECT card_number, name, surname, date_of_birth
FROM readers WHERE card_number=?`, cardNumber).
		Scan(&rd.CardNumber, &rd.Name, &rd.Surname, &rd.DateOfBirth)
	if err != nil { return nil, err }
	return &rd, nil
}

func (r *Repository) ListReaders(ctx context.Context) ([]*Reader, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT card_number, name, surname, date_of_birth
FROM readers ORDER BY card_number`)
	if err != nil { return nil, err }
	defer rows.Close()

	var out []*Reader
	for rows.Next() {
		var rd Reader
		if err := rows.Scan(&rd.CardNumber, &rd.Name, &rd.Surname, &rd.DateOfBirth); err != nil {
			return nil, err
		}
		out = append(out, &rd)
	}
	return out, rows.Err()
}

// Exists backs the eligibility vote.
func (r *Repository) Exists(ctx context.Context, cardNumber int64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		`SELECT 1 FROM readers WHERE card_number=?`, cardNumber).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil { return false, err }
	return true, nil
}
