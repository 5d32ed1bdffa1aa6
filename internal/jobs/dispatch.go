package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned when no worker function is configured.
var ErrNotConfigured = errors.New("worker lambda not configured")

type invokeAPI interface {
	Invoke(ctx context.Context, params *lambdasvc.InvokeInput, optFns ...func(*lambdasvc.Options)) (*lambdasvc.InvokeOutput, error)
}

// Dispatcher sends jobs to the worker Lambda.
type Dispatcher struct {
	client   invokeAPI
	function string
}

// NewDispatcher creates a Dispatcher for the named worker function.
func NewDispatcher(client *lambdasvc.Client, function string) *Dispatcher {
	return newDispatcher(client, function)
}

func newDispatcher(client invokeAPI, function string) *Dispatcher {
	return &Dispatcher{client: client, function: function}
}

// Dispatch invokes the worker asynchronously with InvocationType=Event, so
// the caller returns without waiting for the video.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) error {
	if d == nil || d.client == nil || d.function == "" {
		log.Warn().Msg("Worker Lambda client not configured")
		return ErrNotConfigured
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal worker event: %w", err)
	}

	log.Debug().Int("payloadSize", len(payload)).Msg("Invoking Worker Lambda asynchronously")

	_, err = d.client.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName:   aws.String(d.function),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", job.SessionID).Msg("Failed to invoke Worker Lambda")
		return fmt.Errorf("invoke worker lambda: %w", err)
	}

	log.Debug().Str("sessionId", job.SessionID).Msg("Worker Lambda invoked asynchronously")
	return nil
}
