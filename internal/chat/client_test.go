package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"unicode/utf8"

	"google.golang.org/genai"
)

// fakeModels records the last GenerateContent/GenerateImages call and
// returns canned responses.
type fakeModels struct {
	resp      *genai.GenerateContentResponse
	imageResp *genai.GenerateImagesResponse
	err       error

	calls     int
	model     string
	contents  []*genai.Content
	config    *genai.GenerateContentConfig
	prompt    string
	imgConfig *genai.GenerateImagesConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func (f *fakeModels) GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.calls++
	f.model, f.prompt, f.imgConfig = model, prompt, config
	return f.imageResp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestCheckBlocked(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		blocked bool
	}{
		{"clean", textResponse("ok"), false},
		{"prompt feedback", &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}, true},
		{"safety finish", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}, true},
		{"prohibited finish", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReason("PROHIBITED_CONTENT")}},
		}, true},
		{"stop finish", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkBlocked(tt.resp)
			if got := errors.Is(err, ErrContentPolicy); got != tt.blocked {
				t.Errorf("checkBlocked() = %v, want blocked=%v", err, tt.blocked)
			}
		})
	}
}

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		err    error
		policy bool
	}{
		{errors.New("request blocked by safety filters"), true},
		{errors.New("Responsible AI practices violated"), true},
		{fmt.Errorf("wrapped: %w", errors.New("prohibited use")), true},
		{errors.New("deadline exceeded"), false},
		{errors.New("quota exhausted"), false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := classifyAPIError(tt.err)
			if errors.Is(got, ErrContentPolicy) != tt.policy {
				t.Errorf("classifyAPIError(%q) policy = %v, want %v", tt.err, !tt.policy, tt.policy)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classifyAPIError(%q) lost the original error", tt.err)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 7, "this is..."},
		{"héllo", 2, "h..."},
		{"日本語", 4, "日..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if got := truncateString(tt.in, tt.max); !utf8.ValidString(got) {
			t.Errorf("truncateString(%q, %d) split a rune: %q", tt.in, tt.max, got)
		}
	}
}
