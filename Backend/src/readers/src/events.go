package main

const (
	ActionBorrowIntent = "borrow_intent"
	ActionVoteResponse = "vote_response"

	ActionReaderAdded   = "reader_added"
	ActionReaderUpdated = "reader_updated"
	ActionReaderDeleted = "reader_deleted"
)

const ParticipantName = "readers"

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

type ReaderEventPayload struct {
	Action     string `json:"action"`
	CardNumber int64  `json:"readerCardNumber"`
}
