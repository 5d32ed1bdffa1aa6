package store

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fpang/ai-video-generator/internal/session"
	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// fakeDynamo keeps items keyed by PK/SK and records the last update.
type fakeDynamo struct {
	items      map[string]map[string]types.AttributeValue
	lastUpdate *dynamodb.UpdateItemInput
	err        error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyString(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value + "|" + key["SK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[keyString(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyString(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastUpdate = in
	return &dynamodb.UpdateItemOutput{}, nil
}

func fixedNow() time.Time { return time.Unix(1_700_000_000, 0) }

func TestDynamoStore_PutGetRun(t *testing.T) {
	db := newFakeDynamo()
	s := newDynamoStore(db, "runs")
	s.now = fixedNow
	ctx := context.Background()

	run := &Run{
		ID:         "abc",
		Status:     StatusDone,
		Topic:      "photosynthesis",
		Resolution: "square",
		Voice:      "narrator",
		Skips:      []SkipRecord{{Segment: 3, Reason: "content_policy"}},
		Artifacts:  map[string]string{"video": "abc/output_video.mp4"},
	}
	if err := s.PutRun(ctx, run); err != nil {
		t.Fatalf("PutRun: %v", err)
	}

	item := db.items["RUN#abc|META"]
	if item == nil {
		t.Fatal("item not written under RUN#abc/META")
	}
	wantTTL := strconv.FormatInt(fixedNow().Add(RunTTL).Unix(), 10)
	if got := item["expiresAt"].(*types.AttributeValueMemberN).Value; got != wantTTL {
		t.Errorf("expiresAt = %s, want %s", got, wantTTL)
	}
	if _, ok := item["id"]; ok {
		t.Error("ID must not be stored as an attribute")
	}

	got, err := s.GetRun(ctx, "abc")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.ID != "abc" || got.Topic != "photosynthesis" || got.Artifacts["video"] != "abc/output_video.mp4" {
		t.Errorf("unexpected run: %+v", got)
	}
	if len(got.Skips) != 1 || got.Skips[0].Segment != 3 {
		t.Errorf("skips not round-tripped: %+v", got.Skips)
	}
	if got.CreatedAt != fixedNow().Unix() {
		t.Errorf("CreatedAt = %d", got.CreatedAt)
	}
}

func TestDynamoStore_GetRunMissing(t *testing.T) {
	s := newDynamoStore(newFakeDynamo(), "runs")
	run, err := s.GetRun(context.Background(), "missing")
	if err != nil || run != nil {
		t.Errorf("GetRun(missing) = %v, %v; want nil, nil", run, err)
	}
}

func TestDynamoStore_UpdateRunStage(t *testing.T) {
	db := newFakeDynamo()
	s := newDynamoStore(db, "runs")
	if err := s.UpdateRunStage(context.Background(), "abc", StatusRunning, "script_generated"); err != nil {
		t.Fatalf("UpdateRunStage: %v", err)
	}
	in := db.lastUpdate
	if keyString(in.Key) != "RUN#abc|META" {
		t.Errorf("key = %s", keyString(in.Key))
	}
	if in.ExpressionAttributeNames["#s"] != "status" {
		t.Errorf("status must be aliased, got %v", in.ExpressionAttributeNames)
	}
	var stage string
	if err := attributevalue.Unmarshal(in.ExpressionAttributeValues[":st"], &stage); err != nil || stage != "script_generated" {
		t.Errorf("stage value = %q (%v)", stage, err)
	}
}

func TestDynamoStore_Errors(t *testing.T) {
	db := newFakeDynamo()
	db.err = errors.New("throttled")
	s := newDynamoStore(db, "runs")
	ctx := context.Background()

	if err := s.PutRun(ctx, &Run{ID: "x"}); !errors.Is(err, db.err) {
		t.Errorf("PutRun error = %v", err)
	}
	if _, err := s.GetRun(ctx, "x"); !errors.Is(err, db.err) {
		t.Errorf("GetRun error = %v", err)
	}
	if err := s.UpdateRunStage(ctx, "x", StatusRunning, "idle"); !errors.Is(err, db.err) {
		t.Errorf("UpdateRunStage error = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if run, _ := m.GetRun(ctx, "a"); run != nil {
		t.Fatal("expected nil for missing run")
	}

	original := &Run{ID: "a", Status: StatusQueued, Artifacts: map[string]string{"video": "k"}}
	if err := m.PutRun(ctx, original); err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	original.Artifacts["video"] = "mutated"

	if err := m.UpdateRunStage(ctx, "a", StatusRunning, "images_synthesized"); err != nil {
		t.Fatalf("UpdateRunStage: %v", err)
	}
	got, _ := m.GetRun(ctx, "a")
	if got.Status != StatusRunning || got.Stage != "images_synthesized" {
		t.Errorf("unexpected run %+v", got)
	}
	if got.Artifacts["video"] != "k" {
		t.Error("stored run should be isolated from caller mutation")
	}
}

func TestStageRecorder(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	sess := session.Context{ID: "s1"}
	rec := StageRecorder{Store: m}

	m.PutRun(ctx, &Run{ID: "s1", Status: StatusQueued, Topic: "t"})
	rec.OnStage(ctx, slideshow.StageEvent{Session: sess, Stage: slideshow.StageImagesSynthesized})

	got, _ := m.GetRun(ctx, "s1")
	if got.Status != StatusRunning || got.Stage != "images_synthesized" || got.Topic != "t" {
		t.Errorf("unexpected run %+v", got)
	}

	// Failures and completion are left to Complete.
	rec.OnStage(ctx, slideshow.StageEvent{Session: sess, Stage: slideshow.StageVoiceSynthesized, Err: errors.New("x")})
	rec.OnStage(ctx, slideshow.StageEvent{Session: sess, Stage: slideshow.StageDone})
	got, _ = m.GetRun(ctx, "s1")
	if got.Stage != "images_synthesized" {
		t.Errorf("stage changed to %q", got.Stage)
	}
}

func TestComplete(t *testing.T) {
	base := Run{ID: "s1", Topic: "t", Status: StatusRunning}
	res := &slideshow.Result{
		Images: make([]slideshow.ImageArtifact, 8),
		Skips: []slideshow.Skip{
			{SegmentIndex: 2, Reason: slideshow.SkipContentPolicy},
			{SegmentIndex: 6, Reason: slideshow.SkipTimeout},
		},
		Audio: slideshow.AudioArtifact{Duration: 60},
		Video: slideshow.VideoOutput{Duration: 60},
	}

	done := Complete(base, res, nil)
	if done.Status != StatusDone || done.ImagesGenerated != 8 || done.AudioSeconds != 60 {
		t.Errorf("unexpected done run %+v", done)
	}
	if len(done.Skips) != 2 || done.Skips[0].Segment != 3 || done.Skips[1].Reason != "timeout" {
		t.Errorf("unexpected skips %+v", done.Skips)
	}

	runErr := &slideshow.RunError{Kind: slideshow.KindInsufficientContent, Stage: slideshow.StageImagesSynthesized, Message: "no images were generated; cannot build video"}
	failed := Complete(base, res, runErr)
	if failed.Status != StatusFailed || failed.ErrorKind != "insufficient_content" || failed.Stage != "images_synthesized" {
		t.Errorf("unexpected failed run %+v", failed)
	}
	if failed.Error != "no images were generated; cannot build video" {
		t.Errorf("Error = %q", failed.Error)
	}

	plain := Complete(base, nil, errors.New("publish failed"))
	if plain.ErrorKind != "internal" || plain.Error != "publish failed" {
		t.Errorf("unexpected plain failure %+v", plain)
	}
}

func TestComplete_KeepsStageReached(t *testing.T) {
	base := Run{ID: "s1", Status: StatusRunning, Stage: slideshow.StageIdle.String()}
	tests := []struct {
		name      string
		res       *slideshow.Result
		err       error
		wantStage string
	}{
		{"publish failed after render", &slideshow.Result{Stage: slideshow.StageDone}, errors.New("bucket missing"), "done"},
		{"failed after assembly", &slideshow.Result{Stage: slideshow.StageVideoAssembled}, errors.New("poster"), "video_assembled"},
		{"run error names its stage", &slideshow.Result{Stage: slideshow.StageScriptGenerated},
			&slideshow.RunError{Kind: slideshow.KindUpstream, Stage: slideshow.StageImagesSynthesized, Message: "x"}, "images_synthesized"},
		{"no progress", &slideshow.Result{}, errors.New("early"), "idle"},
		{"no result", nil, errors.New("early"), "idle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Complete(base, tt.res, tt.err)
			if got.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", got.Stage, tt.wantStage)
			}
			if got.Status != StatusFailed {
				t.Errorf("Status = %q, want failed", got.Status)
			}
		})
	}
}
