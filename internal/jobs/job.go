// Package jobs defines the video job handed from the API Lambda to the worker
// Lambda and the asynchronous dispatch between them.
package jobs

import (
	"fmt"

	"github.com/fpang/ai-video-generator/internal/session"
	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// Job is the worker event payload. Size and Voice use the option names
// ("square", "narrator"); empty values select the defaults.
type Job struct {
	SessionID string `json:"sessionId"`
	Topic     string `json:"topic"`
	Size      string `json:"size,omitempty"`
	Voice     string `json:"voice,omitempty"`
}

// Request validates the job and converts it into a pipeline request.
func (j Job) Request() (slideshow.Request, error) {
	if err := session.ValidateID(j.SessionID); err != nil {
		return slideshow.Request{}, err
	}

	req := slideshow.Request{
		Topic:      slideshow.Topic(j.Topic),
		Resolution: slideshow.DefaultResolution,
		Voice:      slideshow.DefaultVoice,
	}
	if j.Size != "" {
		res, err := slideshow.ParseResolution(j.Size)
		if err != nil {
			return slideshow.Request{}, err
		}
		req.Resolution = res
	}
	if j.Voice != "" {
		voice, err := slideshow.ParseVoice(j.Voice)
		if err != nil {
			return slideshow.Request{}, err
		}
		req.Voice = voice
	}
	if err := req.Validate(); err != nil {
		return slideshow.Request{}, fmt.Errorf("invalid job: %w", err)
	}
	return req, nil
}
