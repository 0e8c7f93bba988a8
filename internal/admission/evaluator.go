package admission

import (
	"fmt"
	"time"

	"ms-songrequest/internal/models"
)

// Request identifies one incoming song request.
type Request struct {
	RequesterID string
	LiveID      string
}

// History is the requester's standing at evaluation time, collected by
// the caller so Evaluate stays pure.
type History struct {
	// Count is how many requests the requester has made this session.
	Count int
	// Last is the timestamp of the most recent request, nil if none.
	Last *time.Time
}

// Decision is the outcome of an admission evaluation. A denial is a
// valid negative outcome, not an error.
type Decision struct {
	Allowed bool
	// Paid is set when the request should consume an entitlement ticket.
	Paid bool
	// ConsumeTicketID names the ticket the caller must consume on
	// success. Evaluate never mutates the ledger itself.
	ConsumeTicketID string
	// Reason explains a denial in user-facing terms.
	Reason string
	// PaidHint is set on a free-path denial when the paid path is still
	// open, so the reply can point the requester at it.
	PaidHint bool
}

func allow() Decision {
	return Decision{Allowed: true}
}

func allowPaid(ticketID string) Decision {
	return Decision{Allowed: true, Paid: true, ConsumeTicketID: ticketID}
}

func deny(reason string, paidHint bool) Decision {
	return Decision{Reason: reason, PaidHint: paidHint}
}

// Evaluate applies the admission rules in order:
//
//  1. an unconsumed entitlement ticket always admits as paid, bypassing
//     every free-path limit
//  2. free path disabled denies outright
//  3. count limit
//  4. time limit
//  5. otherwise admit as free
//
// It reads state and returns a decision; persisting history and
// consuming the ticket is the caller's job, and only after the catalog
// lookup has produced a playable song.
func Evaluate(req Request, s models.Settings, hist History, ticket *models.EntitlementTicket, now time.Time) Decision {
	if s.AllowPaid && ticket != nil && !ticket.Consumed {
		return allowPaid(ticket.ID)
	}

	if !s.AllowFree {
		return deny("free song requests are disabled", s.AllowPaid)
	}

	if s.LimitByCount && hist.Count >= s.MaxCount() {
		return deny(fmt.Sprintf("request count limit reached (%d)", s.MaxCount()), s.AllowPaid)
	}

	if s.LimitByTime && hist.Last != nil {
		elapsed := now.Sub(*hist.Last)
		if limit := s.TimeLimit(); elapsed < limit {
			remaining := limit - elapsed
			return deny(fmt.Sprintf("request cooldown active, %d seconds remaining",
				int(remaining.Seconds())), s.AllowPaid)
		}
	}

	return allow()
}
