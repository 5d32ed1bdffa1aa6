package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/jobs"
	"github.com/fpang/ai-video-generator/internal/session"
	"github.com/fpang/ai-video-generator/internal/slideshow"
	"github.com/fpang/ai-video-generator/internal/store"
)

// maxTopicLength bounds the topic, in characters.
const maxTopicLength = 500

// maxBodyBytes bounds the create request body.
const maxBodyBytes = 16 * 1024

const videosPrefix = "/api/videos/"

type dispatcher interface {
	Dispatch(ctx context.Context, job jobs.Job) error
}

type presigner interface {
	PresignAll(ctx context.Context, keys map[string]string) (map[string]string, error)
}

// server holds the API's dependencies.
type server struct {
	store      store.RunStore
	dispatcher dispatcher
	presigner  presigner
	// newID issues session IDs; session.New in production.
	newID func() string
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/options", s.handleOptions)
	mux.HandleFunc("/api/videos", s.handleCreate)
	mux.HandleFunc(videosPrefix, s.handleGet)
	return mux
}

// --- Health ---

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "ai-video-generator",
	})
}

// --- Options ---

type optionItem struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// GET /api/options lists the voices and sizes a caller may request.
func (s *server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var voices, sizes []optionItem
	for _, v := range slideshow.Voices() {
		voices = append(voices, optionItem{Name: v.String(), Label: v.Label()})
	}
	for _, res := range slideshow.Resolutions() {
		sizes = append(sizes, optionItem{Name: res.String(), Label: res.Label(), AspectRatio: res.AspectRatio()})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"voices":       voices,
		"sizes":        sizes,
		"defaultVoice": slideshow.DefaultVoice.String(),
		"defaultSize":  slideshow.DefaultResolution.String(),
	})
}

// --- Create ---

type createRequest struct {
	Topic string `json:"topic"`
	Size  string `json:"size"`
	Voice string `json:"voice"`
}

// POST /api/videos validates the request, records a queued run and hands the
// job to the worker Lambda. It answers 202 with the session ID to poll.
func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body createRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Topic = strings.TrimSpace(body.Topic)
	if utf8.RuneCountInString(body.Topic) > maxTopicLength {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("topic must be at most %d characters", maxTopicLength))
		return
	}

	job := jobs.Job{SessionID: s.newID(), Topic: body.Topic, Size: body.Size, Voice: body.Voice}
	req, err := job.Request()
	if err != nil {
		var runErr *slideshow.RunError
		if errors.As(err, &runErr) {
			httpError(w, http.StatusBadRequest, runErr.Message)
			return
		}
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	run := &store.Run{
		ID:         job.SessionID,
		Status:     store.StatusQueued,
		Stage:      slideshow.StageIdle.String(),
		Topic:      string(req.Topic),
		Resolution: req.Resolution.String(),
		Voice:      req.Voice.String(),
	}
	if err := s.store.PutRun(ctx, run); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to create video run", err.Error())
		return
	}

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		failed := store.Complete(*run, nil, err)
		if perr := s.store.PutRun(ctx, failed); perr != nil {
			log.Warn().Err(perr).Str("sessionId", run.ID).Msg("Failed to record dispatch failure")
		}
		httpError(w, http.StatusServiceUnavailable, "failed to start video run", err.Error())
		return
	}

	log.Info().
		Str("sessionId", run.ID).
		Str("size", run.Resolution).
		Str("voice", run.Voice).
		Msg("Video run queued")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"sessionId": run.ID,
		"status":    run.Status,
	})
}

// --- Status ---

type runResponse struct {
	*store.Run
	URLs map[string]string `json:"urls,omitempty"`
}

// GET /api/videos/{sessionId} returns the run record, plus presigned download
// URLs once the run is done.
func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionID, ok := jobs.ParseRoute(r.URL.Path, videosPrefix)
	if !ok {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	if err := session.ValidateID(sessionID); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	run, err := s.store.GetRun(ctx, sessionID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to read video run", err.Error())
		return
	}
	if run == nil {
		httpError(w, http.StatusNotFound, "video run not found")
		return
	}
	run.ID = sessionID

	resp := runResponse{Run: run}
	if run.Status == store.StatusDone && len(run.Artifacts) > 0 && s.presigner != nil {
		urls, err := s.presigner.PresignAll(ctx, run.Artifacts)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "failed to generate download URLs", err.Error())
			return
		}
		resp.URLs = urls
	}
	respondJSON(w, http.StatusOK, resp)
}
