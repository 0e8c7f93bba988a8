package donation_test

import (
	"context"
	"testing"

	"ms-songrequest/internal/donation"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock implementations
type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Current(ctx context.Context) (models.Settings, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Settings), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) IssueBatch(ctx context.Context, grant models.TicketGrant, count int) ([]string, error) {
	args := m.Called(ctx, grant, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockReplier struct {
	mock.Mock
}

func (m *MockReplier) PublishChatReply(reply models.ChatReply) error {
	args := m.Called(reply)
	return args.Error(0)
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = uuid.New().String()
	}
	return out
}

func stickerSettings(stickerID string) models.Settings {
	s := models.DefaultSettings()
	s.AllowPaid = true
	s.PaidType = models.PaidTypeSticker
	s.StickerID = strPtr(stickerID)
	return s
}

func amountSettings(min int, distribution bool) models.Settings {
	s := models.DefaultSettings()
	s.AllowPaid = true
	s.PaidType = models.PaidTypeAmount
	s.MinAmount = intPtr(min)
	s.AllowDistribution = distribution
	return s
}

func donationEvent(sticker string, amount, combo int) models.DonationEvent {
	return models.DonationEvent{
		LiveID:   "live-1",
		DonorID:  "donor-1",
		Nickname: "Donor",
		Sticker:  sticker,
		Amount:   amount,
		Combo:    combo,
	}
}

func newRouter(settings *MockSettings, ledger *MockLedger, chat *MockReplier) *donation.Router {
	return donation.NewRouter(settings, ledger, chat, logger.NewLogger())
}

func TestOnDonation_MatchingStickerGrantsOneTicket(t *testing.T) {
	settings, ledger, chat := new(MockSettings), new(MockLedger), new(MockReplier)
	settings.On("Current", mock.Anything).Return(stickerSettings("sticker-9"), nil)
	ledger.On("IssueBatch", mock.Anything, mock.MatchedBy(func(g models.TicketGrant) bool {
		return g.RequesterID == "donor-1" && g.Sticker == "sticker-9"
	}), 1).Return(ids(1), nil)
	chat.On("PublishChatReply", mock.MatchedBy(func(r models.ChatReply) bool {
		return r.LiveID == "live-1"
	})).Return(nil)

	router := newRouter(settings, ledger, chat)
	router.OnDonation(context.Background(), donationEvent("sticker-9", 1000, 1))

	ledger.AssertExpectations(t)
	chat.AssertExpectations(t)
}

func TestOnDonation_WrongStickerIsIgnored(t *testing.T) {
	settings, ledger, chat := new(MockSettings), new(MockLedger), new(MockReplier)
	settings.On("Current", mock.Anything).Return(stickerSettings("sticker-9"), nil)

	router := newRouter(settings, ledger, chat)
	router.OnDonation(context.Background(), donationEvent("sticker-3", 1000, 1))

	ledger.AssertNotCalled(t, "IssueBatch", mock.Anything, mock.Anything, mock.Anything)
	chat.AssertNotCalled(t, "PublishChatReply", mock.Anything)
}

func TestOnDonation_BelowMinimumIsIgnored(t *testing.T) {
	settings, ledger, chat := new(MockSettings), new(MockLedger), new(MockReplier)
	settings.On("Current", mock.Anything).Return(amountSettings(1000, true), nil)

	router := newRouter(settings, ledger, chat)
	router.OnDonation(context.Background(), donationEvent("", 999, 1))

	ledger.AssertNotCalled(t, "IssueBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnDonation_DistributionGrantsFloorOfTotalOverMin(t *testing.T) {
	settings, ledger, chat := new(MockSettings), new(MockLedger), new(MockReplier)
	settings.On("Current", mock.Anything).Return(amountSettings(1000, true), nil)
	ledger.On("IssueBatch", mock.Anything, mock.Anything, 3).Return(ids(3), nil)
	chat.On("PublishChatReply", mock.Anything).Return(nil)

	router := newRouter(settings, ledger, chat)
	// 1750 * 2 = 3500 total, floor(3500/1000) = 3
	router.OnDonation(context.Background(), donationEvent("", 1750, 2))

	ledger.AssertExpectations(t)
}

func TestOnDonation_WithoutDistributionGrantsOne(t *testing.T) {
	settings, ledger, chat := new(MockSettings), new(MockLedger), new(MockReplier)
	settings.On("Current", mock.Anything).Return(amountSettings(1000, false), nil)
	ledger.On("IssueBatch", mock.Anything, mock.Anything, 1).Return(ids(1), nil)
	chat.On("PublishChatReply", mock.Anything).Return(nil)

	router := newRouter(settings, ledger, chat)
	router.OnDonation(context.Background(), donationEvent("", 5000, 1))

	ledger.AssertExpectations(t)
}

func TestOnDonation_PaidPathDisabledIgnoresEverything(t *testing.T) {
	settings, ledger, chat := new(MockSettings), new(MockLedger), new(MockReplier)
	s := amountSettings(1000, true)
	s.AllowPaid = false
	settings.On("Current", mock.Anything).Return(s, nil)

	router := newRouter(settings, ledger, chat)
	router.OnDonation(context.Background(), donationEvent("", 10000, 5))

	ledger.AssertNotCalled(t, "IssueBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnDonation_UnsetMinimumNeverGrants(t *testing.T) {
	settings, ledger, chat := new(MockSettings), new(MockLedger), new(MockReplier)
	s := models.DefaultSettings()
	s.AllowPaid = true
	s.PaidType = models.PaidTypeAmount
	settings.On("Current", mock.Anything).Return(s, nil)

	router := newRouter(settings, ledger, chat)
	router.OnDonation(context.Background(), donationEvent("", 10000, 1))

	ledger.AssertNotCalled(t, "IssueBatch", mock.Anything, mock.Anything, mock.Anything)
}
