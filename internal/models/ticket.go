package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EntitlementTicket is one consumable right to submit a paid song
// request. A ticket is consumed by exactly one submission and never
// reused.
type EntitlementTicket struct {
	bun.BaseModel `bun:"table:entitlement_tickets"`

	ID          string     `bun:"id,pk" json:"id"`
	RequesterID string     `bun:"requester_id,notnull" json:"requesterId"`
	Nickname    string     `bun:"nickname" json:"nickname"`
	LiveID      string     `bun:"live_id" json:"liveId"`
	Sticker     string     `bun:"sticker" json:"sticker"`
	Amount      int        `bun:"amount" json:"amount"`
	Combo       int        `bun:"combo" json:"combo"`
	Consumed    bool       `bun:"consumed" json:"consumed"`
	IssuedAt    time.Time  `bun:"issued_at,notnull,default:current_timestamp" json:"issuedAt"`
	ConsumedAt  *time.Time `bun:"consumed_at" json:"consumedAt"`
}

// TicketGrant describes the donation that backs one or more tickets.
type TicketGrant struct {
	LiveID      string `json:"liveId"`
	RequesterID string `json:"requesterId"`
	Nickname    string `json:"nickname"`
	Sticker     string `json:"sticker"`
	Amount      int    `json:"amount"`
	Combo       int    `json:"combo"`
}

// ManualGrantSticker marks tickets granted by the operator rather than a
// donation, including the refund issued when a paid request is cancelled.
const ManualGrantSticker = "__manual_grant"
