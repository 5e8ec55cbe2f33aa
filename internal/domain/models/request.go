package models

import "time"

// RequestState tracks a photo submission through the pipeline. A
// submission runs once to a terminal state; failed submissions are
// never retried, the user resubmits from scratch.
type RequestState string

const (
	StateReceived      RequestState = "received"
	StateRateChecked   RequestState = "rate_checked"
	StateEntitled      RequestState = "entitled"
	StateDownloading   RequestState = "downloading"
	StateTargetSettled RequestState = "target_settled"
	StateProcessing    RequestState = "processing"
	StateCompleted     RequestState = "completed"
	StateFailed        RequestState = "failed"
)

type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureRateLimited       FailureKind = "rate_limited"
	FailureNoEntitlement     FailureKind = "insufficient_entitlement"
	FailureDownload          FailureKind = "download_failed"
	FailureProcessingService FailureKind = "processing_service_failed"
	FailurePersistence       FailureKind = "persistence_failed"
)

// PhotoRequest is one inbound photo event as yielded by the message
// source: who sent it, what to download, and the submission grouping id
// used for multi-part suppression.
type PhotoRequest struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	PhotoRef     string    `json:"photo_ref"`
	SubmissionID string    `json:"submission_id"`
	GroupID      string    `json:"group_id"`
	ReceivedAt   time.Time `json:"received_at"`
}

// PhotoResult is the terminal outcome of one submission.
type PhotoResult struct {
	State     RequestState  `json:"state"`
	Failure   FailureKind   `json:"failure,omitempty"`
	Delivered []string      `json:"delivered,omitempty"`
	Consumed  int           `json:"consumed"`
	Remaining int           `json:"remaining"`
	// RetryAfter is only set on rate-limited failures.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	// TargetSaved marks the custom-target settlement branch, where the
	// swap service is never invoked and Remaining counts upload credits.
	TargetSaved bool `json:"target_saved,omitempty"`
}

func (r *PhotoResult) Failed() bool {
	return r.State == StateFailed
}
