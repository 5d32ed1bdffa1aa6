// Package store persists video run records so that an HTTP client can poll
// the status of a run executed by another process.
//
// The DynamoDB implementation uses a single-table design where each run has
// partition key RUN#{sessionId} and sort key META. A TTL attribute
// (expiresAt) auto-deletes records after 24 hours, matching the lifecycle of
// the published artifacts.
package store

import (
	"context"
	"time"
)

// RunTTL is the default time-to-live for run records.
const RunTTL = 24 * time.Hour

// Run statuses.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// RunStore defines the persistence interface for run records.
// Each method is safe for concurrent use.
//
// GetRun returns (nil, nil) when the run does not exist.
// PutRun performs full-item replacement (upsert semantics).
type RunStore interface {
	// PutRun creates or replaces a run record.
	PutRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by session ID. Returns nil, nil if not found.
	GetRun(ctx context.Context, sessionID string) (*Run, error)

	// UpdateRunStage sets the status and stage of a run without overwriting
	// other fields.
	UpdateRunStage(ctx context.Context, sessionID, status, stage string) error
}

// Run is the persisted state of one video run.
type Run struct {
	ID         string `json:"id" dynamodbav:"-"`
	Status     string `json:"status" dynamodbav:"status"`
	Stage      string `json:"stage,omitempty" dynamodbav:"stage,omitempty"`
	Topic      string `json:"topic" dynamodbav:"topic"`
	Resolution string `json:"resolution" dynamodbav:"resolution"`
	Voice      string `json:"voice" dynamodbav:"voice"`

	ImagesGenerated int          `json:"imagesGenerated,omitempty" dynamodbav:"imagesGenerated,omitempty"`
	Skips           []SkipRecord `json:"skips,omitempty" dynamodbav:"skips,omitempty"`
	AudioSeconds    float64      `json:"audioSeconds,omitempty" dynamodbav:"audioSeconds,omitempty"`
	VideoSeconds    float64      `json:"videoSeconds,omitempty" dynamodbav:"videoSeconds,omitempty"`

	// Artifacts maps artifact names (video, audio, script, poster, bundle)
	// to S3 object keys.
	Artifacts map[string]string `json:"artifacts,omitempty" dynamodbav:"artifacts,omitempty"`

	Error     string `json:"error,omitempty" dynamodbav:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty" dynamodbav:"errorKind,omitempty"`

	CreatedAt int64 `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt int64 `json:"updatedAt,omitempty" dynamodbav:"updatedAt,omitempty"`
}

// SkipRecord is one segment that produced no image.
type SkipRecord struct {
	Segment int    `json:"segment" dynamodbav:"segment"`
	Reason  string `json:"reason" dynamodbav:"reason"`
}

// Finished reports whether the run reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status == StatusDone || r.Status == StatusFailed
}
