package models

import (
	"time"
)

type UserTier string

const (
	TierFree    UserTier = "free"
	TierPremium UserTier = "premium"
)

// ModeKind discriminates what the user's mode selector points at: a
// preset target category or a custom target image uploaded by the user.
type ModeKind string

const (
	ModeCategory     ModeKind = "category"
	ModeCustomTarget ModeKind = "custom_target"
)

// Mode is the selector sent to the swap service alongside each source
// image. Exactly one of Category/AssetRef is meaningful depending on Kind.
type Mode struct {
	Kind     ModeKind `json:"kind" db:"mode_kind"`
	Category string   `json:"category" db:"mode_value"`
	AssetRef string   `json:"asset_ref"`
}

const DefaultCategory = "1"

func DefaultMode() Mode {
	return Mode{Kind: ModeCategory, Category: DefaultCategory}
}

func CategoryMode(category string) Mode {
	return Mode{Kind: ModeCategory, Category: category}
}

func CustomTargetMode(assetRef string) Mode {
	return Mode{Kind: ModeCustomTarget, AssetRef: assetRef}
}

// Value returns the string persisted in the mode_value column.
func (m Mode) Value() string {
	if m.Kind == ModeCustomTarget {
		return m.AssetRef
	}
	return m.Category
}

func ModeFromColumns(kind, value string) Mode {
	if ModeKind(kind) == ModeCustomTarget {
		return CustomTargetMode(value)
	}
	if value == "" {
		return DefaultMode()
	}
	return CategoryMode(value)
}

// User is keyed by the external chat identity. Balances are only ever
// mutated through the clamped repository primitives, never by direct
// field assignment, so they can never go negative.
type User struct {
	ID                int64      `json:"id" db:"id"`
	Username          string     `json:"username" db:"username"`
	Tier              UserTier   `json:"tier" db:"tier"`
	RequestsLeft      int        `json:"requests_left" db:"requests_left"`
	TargetsLeft       int        `json:"targets_left" db:"targets_left"`
	PremiumExpiration *time.Time `json:"premium_expiration" db:"premium_expiration"`
	AwaitingTarget    bool       `json:"awaiting_target" db:"awaiting_target"`
	ModeKind          string     `json:"-" db:"mode_kind"`
	ModeValue         string     `json:"-" db:"mode_value"`
	LastRequestAt     time.Time  `json:"last_request_at" db:"last_request_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

func (u *User) Mode() Mode {
	return ModeFromColumns(u.ModeKind, u.ModeValue)
}

func (u *User) IsPremium() bool {
	return u.Tier == TierPremium
}
