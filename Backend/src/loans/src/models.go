package main

import "time"

type Loan struct {
	ID            int64  `db:"id"`
	BookID        int64  `db:"book_id"`
	ReaderID      int64  `db:"reader_id"`
	BorrowDate    string `db:"borrow_date"`
	ReturnDate    string `db:"return_date"` // empty means still out
	Returned      bool
	CorrelationID int64 `db:"correlation_id"`
}

// Vote is one participant's verdict on a borrow attempt.
type Vote int8

const (
	VoteUnknown Vote = iota
	VoteYes
	VoteNo
)

// Outcome is the terminal state of a borrow attempt.
type Outcome int8

const (
	OutcomeApproved Outcome = iota + 1
	OutcomeDenied
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeDenied:
		return "denied"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

const dateLayout = "2006-01-02"

func today() string { return time.Now().Format(dateLayout) }
