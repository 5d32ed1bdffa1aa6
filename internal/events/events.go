// Package events publishes run completion notifications to EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/store"
)

const (
	Source            = "ai-video-generator"
	DetailRunFinished = "VideoRunFinished"
)

type putEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// RunFinished is the event detail sent when a run reaches done or failed.
type RunFinished struct {
	SessionID       string            `json:"sessionId"`
	Status          string            `json:"status"`
	Topic           string            `json:"topic"`
	Resolution      string            `json:"resolution,omitempty"`
	Voice           string            `json:"voice,omitempty"`
	ImagesGenerated int               `json:"imagesGenerated"`
	ImagesSkipped   int               `json:"imagesSkipped"`
	VideoSeconds    float64           `json:"videoSeconds,omitempty"`
	Artifacts       map[string]string `json:"artifacts,omitempty"`
	Error           string            `json:"error,omitempty"`
	ErrorKind       string            `json:"errorKind,omitempty"`
	FinishedAt      int64             `json:"finishedAt"`
}

// FromRun builds the event detail from a terminal run record.
func FromRun(run *store.Run) RunFinished {
	return RunFinished{
		SessionID:       run.ID,
		Status:          run.Status,
		Topic:           run.Topic,
		Resolution:      run.Resolution,
		Voice:           run.Voice,
		ImagesGenerated: run.ImagesGenerated,
		ImagesSkipped:   len(run.Skips),
		VideoSeconds:    run.VideoSeconds,
		Artifacts:       run.Artifacts,
		Error:           run.Error,
		ErrorKind:       run.ErrorKind,
		FinishedAt:      time.Now().Unix(),
	}
}

// Emitter sends events to one bus. A nil Emitter or one with an empty bus
// name drops events silently.
type Emitter struct {
	client putEventsAPI
	bus    string
}

// NewEmitter creates an Emitter for the named event bus.
func NewEmitter(client *eventbridge.Client, bus string) *Emitter {
	return newEmitter(client, bus)
}

func newEmitter(client putEventsAPI, bus string) *Emitter {
	return &Emitter{client: client, bus: bus}
}

// EmitRunFinished publishes a VideoRunFinished event.
func (e *Emitter) EmitRunFinished(ctx context.Context, event RunFinished) error {
	if e == nil || e.bus == "" {
		return nil
	}

	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal RunFinished: %w", err)
	}

	input := &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(e.bus),
				Source:       aws.String(Source),
				DetailType:   aws.String(DetailRunFinished),
				Detail:       aws.String(string(detail)),
			},
		},
	}

	result, err := e.client.PutEvents(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("sessionId", event.SessionID).Str("bus", e.bus).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(entry.ErrorCode)).
					Str("errorMessage", aws.ToString(entry.ErrorMessage)).
					Str("sessionId", event.SessionID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
		return fmt.Errorf("PutEvents reported %d failed entries", result.FailedEntryCount)
	}

	log.Debug().Str("sessionId", event.SessionID).Str("status", event.Status).Msg("VideoRunFinished emitted to EventBridge")
	return nil
}
