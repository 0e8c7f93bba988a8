package donation

import (
	"context"
	"fmt"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
)

type SettingsProvider interface {
	Current(ctx context.Context) (models.Settings, error)
}

type TicketIssuer interface {
	IssueBatch(ctx context.Context, grant models.TicketGrant, count int) ([]string, error)
}

type Replier interface {
	PublishChatReply(reply models.ChatReply) error
}

// Router converts donation events into entitlement tickets according to
// the configured donation policy.
type Router struct {
	Settings SettingsProvider
	Ledger   TicketIssuer
	Chat     Replier
	Log      *logger.Logger
}

func NewRouter(settings SettingsProvider, ledger TicketIssuer, chat Replier, log *logger.Logger) *Router {
	return &Router{Settings: settings, Ledger: ledger, Chat: chat, Log: log}
}

// grantCount decides how many tickets a donation is worth under the
// given settings; zero means the donation does not qualify.
func grantCount(s models.Settings, event models.DonationEvent) int {
	if !s.AllowPaid {
		return 0
	}

	switch s.PaidType {
	case models.PaidTypeSticker:
		if s.StickerID != nil && event.Sticker == *s.StickerID {
			return 1
		}
	case models.PaidTypeAmount:
		min := s.MinDonation()
		total := event.Total()
		if min <= 0 || total < min {
			return 0
		}
		if s.AllowDistribution {
			return total / min
		}
		return 1
	}
	return 0
}

// OnDonation grants tickets for a qualifying donation and tells the
// donor how many songs they may now request. Non-qualifying donations
// are ignored.
func (r *Router) OnDonation(ctx context.Context, event models.DonationEvent) {
	settings, err := r.Settings.Current(ctx)
	if err != nil {
		r.Log.Error("DONATION", fmt.Sprintf("settings unavailable, dropping donation from %s: %v", event.DonorID, err))
		return
	}

	count := grantCount(settings, event)
	if count == 0 {
		return
	}

	grant := models.TicketGrant{
		LiveID:      event.LiveID,
		RequesterID: event.DonorID,
		Nickname:    event.Nickname,
		Sticker:     event.Sticker,
		Amount:      event.Amount,
		Combo:       event.Combo,
	}
	if _, err := r.Ledger.IssueBatch(ctx, grant, count); err != nil {
		r.Log.Error("DONATION", fmt.Sprintf("failed to issue %d ticket(s) for %s: %v", count, event.DonorID, err))
		return
	}

	r.Log.LogDonation(event.DonorID, fmt.Sprintf("granted %d ticket(s) for %d x%d", count, event.Amount, event.Combo))

	reply := models.ChatReply{
		LiveID: event.LiveID,
		Text: fmt.Sprintf("%s, you can now request %d song(s). Type \"!sr <title - artist>\" to add one.",
			event.Nickname, count),
	}
	if err := r.Chat.PublishChatReply(reply); err != nil {
		r.Log.Error("DONATION", fmt.Sprintf("failed to send grant notice: %v", err))
	}
}
