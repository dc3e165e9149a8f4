package main

// Actions on the shared fanout exchange. Every service sees every message
// and picks out the ones it cares about.
const (
	ActionBorrowIntent    = "borrow_intent"
	ActionVoteResponse    = "vote_response"
	ActionBorrowCommitted = "borrow_committed"
	ActionReturn          = "return"
	ActionCancel          = "cancel"
	ActionBorrowAdded     = "borrow_added"
)

// Participant names carried in vote responses.
const (
	ParticipantCatalog = "catalog"
	ParticipantReaders = "readers"
)

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

// Best-effort notification kept from the original CRUD events.
type BorrowAddedPayload struct {
	Action   string `json:"action"`
	BorrowID int64  `json:"borrowId"`
	BookID   int64  `json:"bookId"`
}
