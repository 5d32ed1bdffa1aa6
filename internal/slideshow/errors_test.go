package slideshow

import (
	"errors"
	"fmt"
	"testing"
)

func TestRunErrorClassification(t *testing.T) {
	cause := errors.New("503 from upstream")
	wrapped := fmt.Errorf("run failed: %w", upstreamError(StageVoiceSynthesized, "failed to synthesize voice", cause))

	if !IsUpstream(wrapped) {
		t.Error("IsUpstream should see through wrapping")
	}
	if IsAssembly(wrapped) || IsInsufficientContent(wrapped) || IsInvalidInput(wrapped) {
		t.Error("error matched the wrong kind")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("RunError should unwrap to its cause")
	}
	if kind, ok := KindOf(wrapped); !ok || kind != KindUpstream {
		t.Errorf("KindOf = %s, %v", kind, ok)
	}
	if _, ok := KindOf(cause); ok {
		t.Error("KindOf should reject plain errors")
	}

	want := "failed to synthesize voice: 503 from upstream"
	var runErr *RunError
	if !errors.As(wrapped, &runErr) || runErr.Error() != want {
		t.Errorf("Error() = %q, want %q", runErr.Error(), want)
	}
	if runErr.Stage != StageVoiceSynthesized {
		t.Errorf("Stage = %s", runErr.Stage)
	}
}

func TestSkipString(t *testing.T) {
	s := Skip{SegmentIndex: 2, Reason: SkipContentPolicy, Err: ErrContentPolicy}
	if got := s.String(); got != "segment 3 skipped (content_policy): content policy rejection" {
		t.Errorf("String() = %q", got)
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range map[ErrorKind]string{
		KindUpstream:            "upstream",
		KindInsufficientContent: "insufficient_content",
		KindAssembly:            "assembly",
		KindInvalidInput:        "invalid_input",
	} {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
