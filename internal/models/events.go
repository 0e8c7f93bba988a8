package models

// ChatMessage is an inbound message from the chat transport.
type ChatMessage struct {
	LiveID   string `json:"liveId"`
	SenderID string `json:"senderId"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
}

// ChatReply is an outbound message to the chat transport.
type ChatReply struct {
	LiveID string `json:"liveId"`
	Text   string `json:"text"`
}

// DonationEvent is delivered by the donation transport whenever a viewer
// sends a sticker. Total value is Amount * Combo.
type DonationEvent struct {
	LiveID   string `json:"liveId"`
	DonorID  string `json:"donorId"`
	Nickname string `json:"nickname"`
	Sticker  string `json:"sticker"`
	Amount   int    `json:"amount"`
	Combo    int    `json:"combo"`
}

// Total is the donation's full value.
func (e DonationEvent) Total() int {
	return e.Amount * e.Combo
}

// WorkerCommandType enumerates the commands the request service sends to
// the chat worker. A tagged union instead of free-form message names so
// the worker dispatches through a single typed handler.
type WorkerCommandType string

const (
	WorkerCmdReload     WorkerCommandType = "reload"
	WorkerCmdInsertPaid WorkerCommandType = "insert-paid"
	WorkerCmdUserList   WorkerCommandType = "user-list"
)

// WorkerCommand is the payload on the worker-command topic. Exactly the
// fields for the given Type are set: InsertPaid carries User and
// SendMessage, UserList carries CorrelationID.
type WorkerCommand struct {
	Type          WorkerCommandType `json:"type"`
	User          *LiveUser         `json:"user,omitempty"`
	SendMessage   bool              `json:"sendMessage,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
}

// LiveUser is one viewer of the running live session.
type LiveUser struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	Tag        string `json:"tag"`
	ProfileURL string `json:"profile_url"`
}

// UserListResult is what the worker sends back through the bridge for a
// user-list command.
type UserListResult struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Users   []LiveUser `json:"users,omitempty"`
}
