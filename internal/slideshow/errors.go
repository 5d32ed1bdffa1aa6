package slideshow

import (
	"errors"
)

// ErrContentPolicy marks an image request refused by the service's safety
// filters. It is always recovered as a Skip.
var ErrContentPolicy = errors.New("content policy rejection")

// ErrorKind classifies fatal run failures.
type ErrorKind int

const (
	// KindUpstream is a failed or empty script or voice call.
	KindUpstream ErrorKind = iota
	// KindInsufficientContent means no usable images or segments remained.
	KindInsufficientContent
	// KindAssembly is a failure building the video from valid inputs.
	KindAssembly
	// KindInvalidInput is a rejected caller parameter.
	KindInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindUpstream:
		return "upstream"
	case KindInsufficientContent:
		return "insufficient_content"
	case KindAssembly:
		return "assembly"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// RunError is a fatal pipeline failure. The run returns to Idle.
type RunError struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Err     error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// insufficientImagesMessage is the user-facing reason for an aborted run.
const insufficientImagesMessage = "no images were generated; cannot build video"

func upstreamError(stage Stage, msg string, err error) *RunError {
	return &RunError{Kind: KindUpstream, Stage: stage, Message: msg, Err: err}
}

func assemblyError(msg string, err error) *RunError {
	return &RunError{Kind: KindAssembly, Stage: StageVideoAssembled, Message: msg, Err: err}
}

func isKind(err error, kind ErrorKind) bool {
	var runErr *RunError
	return errors.As(err, &runErr) && runErr.Kind == kind
}

func IsUpstream(err error) bool            { return isKind(err, KindUpstream) }
func IsInsufficientContent(err error) bool { return isKind(err, KindInsufficientContent) }
func IsAssembly(err error) bool            { return isKind(err, KindAssembly) }
func IsInvalidInput(err error) bool        { return isKind(err, KindInvalidInput) }

// KindOf returns the kind of a run error, or false when err is not one.
func KindOf(err error) (ErrorKind, bool) {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Kind, true
	}
	return 0, false
}
