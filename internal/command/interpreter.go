package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-songrequest/internal/admission"
	"ms-songrequest/internal/catalog"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
	"ms-songrequest/internal/queue"
)

// Command phrases, matched in fixed priority order. A message matching
// none of them is silently ignored; everything else always gets a reply.
const (
	cmdPrefix     = "!sr"
	cmdCancel     = "!sr cancel"
	cmdSettings   = "!sr settings"
	cmdList       = "!sr list"
	cmdNowPlaying = "!sr np"
)

// listPreviewSize caps how many pending entries the list reply shows.
const listPreviewSize = 5

type QueueStore interface {
	Append(ctx context.Context, input models.SongInput) (*models.Song, error)
	List(ctx context.Context) ([]models.Song, error)
	Current(ctx context.Context) (*models.Song, error)
	RemoveLatestUnplayedFor(ctx context.Context, requesterID, liveID string) (*models.Song, error)
	HistoryFor(ctx context.Context, liveID, requesterID string) (int, *time.Time, error)
}

type Ledger interface {
	PeekUnconsumed(ctx context.Context, requesterID string) (*models.EntitlementTicket, error)
	Consume(ctx context.Context, ticketID string) error
	Issue(ctx context.Context, grant models.TicketGrant) (string, error)
}

type Catalog interface {
	Lookup(query string) (*models.CatalogSong, error)
}

type SettingsProvider interface {
	Current(ctx context.Context) (models.Settings, error)
}

type Replier interface {
	PublishChatReply(reply models.ChatReply) error
}

type RequesterLock interface {
	LockRequester(ctx context.Context, requesterID string) (bool, error)
	UnlockRequester(ctx context.Context, requesterID string) error
}

// Interpreter routes chat messages to queue operations. It holds no
// state of its own; all decisions flow through the admission evaluator
// and the stores.
type Interpreter struct {
	Queue    QueueStore
	Ledger   Ledger
	Catalog  Catalog
	Settings SettingsProvider
	Chat     Replier
	Lock     RequesterLock
	Log      *logger.Logger

	// OperatorID may run the settings query; SelfID's messages are
	// ignored so the service never answers itself.
	OperatorID string
	SelfID     string

	// OnQueueChange, when set, fires after a chat command alters the
	// queue.
	OnQueueChange func()
}

func (i *Interpreter) queueChanged() {
	if i.OnQueueChange != nil {
		i.OnQueueChange()
	}
}

// Handle dispatches one inbound chat message.
func (i *Interpreter) Handle(ctx context.Context, msg models.ChatMessage) {
	if msg.SenderID == i.SelfID {
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.EqualFold(text, cmdCancel):
		i.handleCancel(ctx, msg)
	case strings.EqualFold(text, cmdSettings):
		i.handleSettingsQuery(ctx, msg)
	case strings.EqualFold(text, cmdList):
		i.handleList(ctx, msg)
	case strings.EqualFold(text, cmdNowPlaying):
		i.handleNowPlaying(ctx, msg)
	case strings.HasPrefix(strings.ToLower(text), cmdPrefix+" "):
		i.handleRequest(ctx, msg, strings.TrimSpace(text[len(cmdPrefix):]))
	}
}

func (i *Interpreter) reply(liveID, text string) {
	if err := i.Chat.PublishChatReply(models.ChatReply{LiveID: liveID, Text: text}); err != nil {
		i.Log.Error("COMMAND", fmt.Sprintf("failed to send reply: %v", err))
	}
}

func (i *Interpreter) handleRequest(ctx context.Context, msg models.ChatMessage, query string) {
	if query == "" {
		return
	}

	if i.Lock != nil {
		ok, err := i.Lock.LockRequester(ctx, msg.SenderID)
		if err != nil {
			i.Log.Error("COMMAND", fmt.Sprintf("requester lock error: %v", err))
			i.reply(msg.LiveID, fmt.Sprintf("%s, something went wrong. Please try again.", msg.Nickname))
			return
		}
		if !ok {
			i.reply(msg.LiveID, fmt.Sprintf("%s, your previous request is still being processed.", msg.Nickname))
			return
		}
		defer func() {
			if err := i.Lock.UnlockRequester(ctx, msg.SenderID); err != nil {
				i.Log.Error("COMMAND", fmt.Sprintf("requester unlock error: %v", err))
			}
		}()
	}

	settings, err := i.Settings.Current(ctx)
	if err != nil {
		i.Log.Error("COMMAND", fmt.Sprintf("settings unavailable: %v", err))
		i.reply(msg.LiveID, fmt.Sprintf("%s, song requests are unavailable right now.", msg.Nickname))
		return
	}

	ticket, err := i.Ledger.PeekUnconsumed(ctx, msg.SenderID)
	if err != nil {
		i.Log.Error("COMMAND", fmt.Sprintf("ticket lookup failed for %s: %v", msg.SenderID, err))
		i.reply(msg.LiveID, fmt.Sprintf("%s, song requests are unavailable right now.", msg.Nickname))
		return
	}

	count, last, err := i.Queue.HistoryFor(ctx, msg.LiveID, msg.SenderID)
	if err != nil {
		i.Log.Error("COMMAND", fmt.Sprintf("history lookup failed for %s: %v", msg.SenderID, err))
		i.reply(msg.LiveID, fmt.Sprintf("%s, song requests are unavailable right now.", msg.Nickname))
		return
	}

	decision := admission.Evaluate(
		admission.Request{RequesterID: msg.SenderID, LiveID: msg.LiveID},
		settings,
		admission.History{Count: count, Last: last},
		ticket,
		time.Now(),
	)
	if !decision.Allowed {
		i.Log.LogAdmission(msg.SenderID, "denied: "+decision.Reason)
		text := fmt.Sprintf("%s, you cannot request a song right now.\n%s", msg.Nickname, decision.Reason)
		if decision.PaidHint {
			text += "\nPaid requests are still available."
		}
		i.reply(msg.LiveID, text)
		return
	}

	// The lookup runs before anything is charged: a query with no
	// playable result must not consume a limit slot or a ticket.
	song, err := i.Catalog.Lookup(query)
	if err != nil {
		if errors.Is(err, catalog.ErrSongNotFound) {
			i.reply(msg.LiveID, fmt.Sprintf("%s, no song was found for \"%s\".", msg.Nickname, query))
		} else {
			i.Log.Error("COMMAND", fmt.Sprintf("catalog lookup failed: %v", err))
			i.reply(msg.LiveID, fmt.Sprintf("%s, the song search is unavailable right now.", msg.Nickname))
		}
		return
	}

	entry, err := i.Queue.Append(ctx, models.SongInput{
		Artist:      song.Artist,
		Title:       song.Name,
		Thumbnail:   song.Thumbnail,
		PlayTime:    song.PlayTime,
		Requester:   msg.Nickname,
		RequesterID: msg.SenderID,
		LiveID:      msg.LiveID,
		IsPaid:      decision.Paid,
	})
	if err != nil {
		i.Log.Error("COMMAND", fmt.Sprintf("queue append failed: %v", err))
		i.reply(msg.LiveID, fmt.Sprintf("%s, your request could not be added. Please try again.", msg.Nickname))
		return
	}

	if decision.ConsumeTicketID != "" {
		if err := i.Ledger.Consume(ctx, decision.ConsumeTicketID); err != nil {
			// The song is already queued; log the inconsistency rather
			// than taking the request away from the viewer.
			i.Log.Error("COMMAND", fmt.Sprintf("ticket %s consume failed after append: %v", decision.ConsumeTicketID, err))
		}
	}

	i.queueChanged()
	i.Log.LogAdmission(msg.SenderID, fmt.Sprintf("allowed (paid=%v), song #%d", decision.Paid, entry.ID))
	i.reply(msg.LiveID, fmt.Sprintf(
		"%s requested [%s - %s] and it was added to the queue.\nType \"%s\" to cancel.",
		msg.Nickname, song.Name, song.Artist, cmdCancel))
}

func (i *Interpreter) handleCancel(ctx context.Context, msg models.ChatMessage) {
	song, err := i.Queue.RemoveLatestUnplayedFor(ctx, msg.SenderID, msg.LiveID)
	if err != nil {
		if errors.Is(err, queue.ErrSongNotFound) {
			i.reply(msg.LiveID, fmt.Sprintf("%s, you have no pending request to cancel.", msg.Nickname))
		} else {
			i.Log.Error("COMMAND", fmt.Sprintf("cancel failed for %s: %v", msg.SenderID, err))
			i.reply(msg.LiveID, fmt.Sprintf("%s, your cancellation failed. Please try again.", msg.Nickname))
		}
		return
	}

	i.queueChanged()
	i.reply(msg.LiveID, fmt.Sprintf("%s cancelled [%s - %s].", msg.Nickname, song.Title, song.Artist))

	// A cancelled paid request gives the ticket back.
	if song.IsPaid {
		grant := models.TicketGrant{
			LiveID:      msg.LiveID,
			RequesterID: msg.SenderID,
			Nickname:    msg.Nickname,
			Sticker:     models.ManualGrantSticker,
		}
		if _, err := i.Ledger.Issue(ctx, grant); err != nil {
			i.Log.Error("COMMAND", fmt.Sprintf("paid-cancel refund failed for %s: %v", msg.SenderID, err))
			return
		}
		i.reply(msg.LiveID, fmt.Sprintf("%s, your paid request ticket was returned.", msg.Nickname))
	}
}

func (i *Interpreter) handleList(ctx context.Context, msg models.ChatMessage) {
	songs, err := i.Queue.List(ctx)
	if err != nil {
		i.Log.Error("COMMAND", fmt.Sprintf("list failed: %v", err))
		i.reply(msg.LiveID, "The queue is unavailable right now.")
		return
	}

	var lines []string
	for _, song := range songs {
		if song.IsPlayed {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s - %s", len(lines)+1, song.Title, song.Artist))
		if len(lines) == listPreviewSize {
			break
		}
	}

	if len(lines) == 0 {
		i.reply(msg.LiveID, "The request queue is empty.")
		return
	}
	i.reply(msg.LiveID, "Pending requests\n\n"+strings.Join(lines, "\n"))
}

func (i *Interpreter) handleNowPlaying(ctx context.Context, msg models.ChatMessage) {
	song, err := i.Queue.Current(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrNothingPlaying) {
			i.reply(msg.LiveID, "Nothing is playing right now.")
		} else {
			i.Log.Error("COMMAND", fmt.Sprintf("now-playing lookup failed: %v", err))
			i.reply(msg.LiveID, "The queue is unavailable right now.")
		}
		return
	}
	i.reply(msg.LiveID, fmt.Sprintf("Requested by: %s\nNow playing: %s - %s", song.Requester, song.Title, song.Artist))
}

func (i *Interpreter) handleSettingsQuery(ctx context.Context, msg models.ChatMessage) {
	if msg.SenderID != i.OperatorID {
		return
	}

	s, err := i.Settings.Current(ctx)
	if err != nil {
		i.Log.Error("COMMAND", fmt.Sprintf("settings query failed: %v", err))
		i.reply(msg.LiveID, "Settings are unavailable right now.")
		return
	}

	i.reply(msg.LiveID, fmt.Sprintf(
		"Song request settings\nFree requests: %s\n- count limit: %s (%s)\n- time limit: %s (%s)",
		onOff(s.AllowFree),
		onOff(s.LimitByCount), intOrUnset(s.MaxRequestCount),
		onOff(s.LimitByTime), intOrUnset(s.RequestTimeLimit)))
	i.reply(msg.LiveID, fmt.Sprintf(
		"Paid requests: %s\n- type: %s\n- sticker: %s\n- minimum amount: %s\n- distribution: %s",
		onOff(s.AllowPaid),
		string(s.PaidType),
		strOrUnset(s.StickerID),
		intOrUnset(s.MinAmount),
		onOff(s.AllowDistribution)))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func intOrUnset(v *int) string {
	if v == nil {
		return "unset"
	}
	return fmt.Sprintf("%d", *v)
}

func strOrUnset(v *string) string {
	if v == nil {
		return "unset"
	}
	return *v
}
