package main

const (
	ActionBorrowIntent    = "borrow_intent"
	ActionVoteResponse    = "vote_response"
	ActionBorrowCommitted = "borrow_committed"
	ActionReturn          = "return"
	ActionCancel          = "cancel"

	ActionBookAdded   = "book_added"
	ActionBookUpdated = "book_updated"
	ActionBookDeleted = "book_deleted"
)

const ParticipantName = "catalog"

const (
	VoteValueYes = "Yes"
	VoteValueNo  = "No"
)

type Envelope struct {
	Action string `json:"action"`
}

type BorrowIntentPayload struct {
	Action        string `json:"action"`
	CorrelationID int64  `json:"correlationId"`
	BookID        int64  `json:"bookId"`
	ReaderID      int64  `json:"readerId"`
}

type VoteResponsePayload struct {
	Action        string `json:"action"`
	CorrelationID int64  `json:"correlationId"`
	BookID        int64  `json:"bookId"`
	Participant   string `json:"participant"`
	Vote          string `json:"vote"`
}

type BorrowCommittedPayload struct {
	Action string `json:"action"`
	BookID int64  `json:"bookId"`
}

type ReturnPayload struct {
	Action        string `json:"action"`
	BookID        int64  `json:"bookId"`
	CorrelationID int64  `json:"correlationId"`
}

type CancelPayload struct {
	Action        string `json:"action"`
	BookID        int64  `json:"bookId"`
	CorrelationID int64  `json:"correlationId"`
}

type BookEventPayload struct {
	Action string `json:"action"`
	BookID int64  `json:"bookId"`
	Title  string `json:"title,omitempty"`
}
