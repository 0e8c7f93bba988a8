package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SettingsID is the primary key of the single settings row.
const SettingsID = "singleton"

// PaidType selects which donation policy converts donations into
// entitlement tickets.
type PaidType string

const (
	PaidTypeSticker PaidType = "sticker"
	PaidTypeAmount  PaidType = "amount"
)

type Settings struct {
	bun.BaseModel `bun:"table:settings"`

	ID        string `bun:"id,pk" json:"id"`
	AllowFree bool   `bun:"allow_free" json:"allowFree"`

	LimitByCount    bool `bun:"limit_by_count" json:"limitByCount"`
	MaxRequestCount *int `bun:"max_request_count" json:"maxRequestCount"`

	LimitByTime      bool `bun:"limit_by_time" json:"limitByTime"`
	RequestTimeLimit *int `bun:"request_time_limit" json:"requestTimeLimit"` // seconds

	AllowPaid         bool     `bun:"allow_paid" json:"allowPaid"`
	PaidType          PaidType `bun:"paid_type" json:"paidType"`
	StickerID         *string  `bun:"sticker_id" json:"stickerId"`
	MinAmount         *int     `bun:"min_amount" json:"minAmount"`
	AllowDistribution bool     `bun:"allow_distribution" json:"allowDistribution"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// DefaultSettings is what gets seeded the first time the settings row is
// read: free requests allowed, no limits, paid path off.
func DefaultSettings() Settings {
	now := time.Now()
	return Settings{
		ID:        SettingsID,
		AllowFree: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MaxCount returns the configured request-count cap, zero when unset.
func (s Settings) MaxCount() int {
	if s.MaxRequestCount == nil {
		return 0
	}
	return *s.MaxRequestCount
}

// TimeLimit returns the configured cooldown between requests.
func (s Settings) TimeLimit() time.Duration {
	if s.RequestTimeLimit == nil {
		return 0
	}
	return time.Duration(*s.RequestTimeLimit) * time.Second
}

// MinDonation returns the minimum donation total for the amount policy,
// zero when unset.
func (s Settings) MinDonation() int {
	if s.MinAmount == nil {
		return 0
	}
	return *s.MinAmount
}

// SettingsInput is the PUT /settings request body.
type SettingsInput struct {
	AllowFree         bool     `json:"allowFree"`
	LimitByCount      bool     `json:"limitByCount"`
	MaxRequestCount   *int     `json:"maxRequestCount"`
	LimitByTime       bool     `json:"limitByTime"`
	RequestTimeLimit  *int     `json:"requestTimeLimit"`
	AllowPaid         bool     `json:"allowPaid"`
	PaidType          PaidType `json:"paidType"`
	StickerID         *string  `json:"stickerId"`
	MinAmount         *int     `json:"minAmount"`
	AllowDistribution bool     `json:"allowDistribution"`
}

// Validate rejects inputs that cannot describe a usable policy.
func (in SettingsInput) Validate() error {
	if in.LimitByCount && in.MaxRequestCount != nil && *in.MaxRequestCount < 0 {
		return ErrNegativeLimit
	}
	if in.LimitByTime && in.RequestTimeLimit != nil && *in.RequestTimeLimit < 0 {
		return ErrNegativeLimit
	}
	if in.AllowPaid {
		switch in.PaidType {
		case PaidTypeSticker, PaidTypeAmount:
		default:
			return ErrUnknownPaidType
		}
	}
	if in.MinAmount != nil && *in.MinAmount < 0 {
		return ErrNegativeLimit
	}
	return nil
}

// Apply copies the input onto an existing settings row.
func (in SettingsInput) Apply(s *Settings) {
	s.AllowFree = in.AllowFree
	s.LimitByCount = in.LimitByCount
	s.MaxRequestCount = in.MaxRequestCount
	s.LimitByTime = in.LimitByTime
	s.RequestTimeLimit = in.RequestTimeLimit
	s.AllowPaid = in.AllowPaid
	s.PaidType = in.PaidType
	s.StickerID = in.StickerID
	s.MinAmount = in.MinAmount
	s.AllowDistribution = in.AllowDistribution
	s.UpdatedAt = time.Now()
}
