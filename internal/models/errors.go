package models

import "errors"

var (
	ErrNegativeLimit   = errors.New("limit values must not be negative")
	ErrUnknownPaidType = errors.New("paidType must be \"sticker\" or \"amount\"")
)
