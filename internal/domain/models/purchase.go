package models

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseRecord is one time-boxed premium grant. Records are append-only
// and may stack: several active records add up at reconciliation time.
// Expired records are purged by the reconciler, never by request-path code.
type PurchaseRecord struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	PurchasedAt   time.Time `json:"purchased_at" db:"purchased_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
	RequestsGrant int       `json:"requests_grant" db:"requests_grant"`
	TargetsGrant  int       `json:"targets_grant" db:"targets_grant"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

func (p *PurchaseRecord) ActiveAt(now time.Time) bool {
	return p.ExpiresAt.After(now)
}

// ReconciliationRun is the operational log row written after every
// reconciler pass. The latest row anchors the run-once-per-interval check.
type ReconciliationRun struct {
	ID      int64     `json:"id" db:"id"`
	JobName string    `json:"job_name" db:"job_name"`
	RanAt   time.Time `json:"ran_at" db:"ran_at"`
	Status  string    `json:"status" db:"status"`
	Details string    `json:"details" db:"details"`
}
