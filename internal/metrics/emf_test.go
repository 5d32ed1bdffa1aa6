package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// flushed captures what r writes and decodes it.
func flushed(t *testing.T, r *Recorder) (map[string]any, string) {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	r.Flush()
	if buf.Len() == 0 {
		return nil, ""
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	return doc, buf.String()
}

func TestForStage(t *testing.T) {
	functionName = ""
	doc, _ := flushed(t, ForStage("sess-9", slideshow.StageVoiceSynthesized).
		Latency(MetricStageLatency, 1250*time.Millisecond))

	if doc["Stage"] != "voice_synthesized" {
		t.Errorf("Stage = %v", doc["Stage"])
	}
	if doc["sessionId"] != "sess-9" {
		t.Errorf("sessionId = %v", doc["sessionId"])
	}
	if doc[MetricStageLatency] != 1250.0 {
		t.Errorf("%s = %v, want 1250", MetricStageLatency, doc[MetricStageLatency])
	}

	cw := doc["_aws"].(map[string]any)["CloudWatchMetrics"].([]any)[0].(map[string]any)
	if cw["Namespace"] != Namespace {
		t.Errorf("Namespace = %v", cw["Namespace"])
	}
	dims := cw["Dimensions"].([]any)[0].([]any)
	if len(dims) != 1 || dims[0] != "Stage" {
		t.Errorf("dimensions = %v, want [Stage]; sessionId must stay a property", dims)
	}
}

func TestRecorder_DimensionsSorted(t *testing.T) {
	functionName = "video-worker"
	t.Cleanup(func() { functionName = "" })

	rec := ForStage("s", slideshow.StageDone).Dimension("Result", "succeeded").Count(MetricRunResult)
	doc := rec.document(time.UnixMilli(1700000000000))

	d := doc["_aws"].(directive)
	if d.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d", d.Timestamp)
	}
	got := d.CloudWatchMetrics[0].Dimensions[0]
	want := []string{"FunctionName", "Result", "Stage"}
	if len(got) != len(want) {
		t.Fatalf("dimensions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dimensions = %v, want %v", got, want)
			break
		}
	}
	if doc["FunctionName"] != "video-worker" {
		t.Errorf("FunctionName = %v", doc["FunctionName"])
	}
}

func TestRecorder_Metrics(t *testing.T) {
	functionName = ""
	tests := []struct {
		name  string
		rec   *Recorder
		key   string
		value float64
		unit  string
	}{
		{"count", ForSession("s").Count("VideoEncodes"), "VideoEncodes", 1, UnitCount},
		{"latency", ForSession("s").Latency("VideoEncodeMs", 3*time.Second), "VideoEncodeMs", 3000, UnitMilliseconds},
		{"bytes", New(Namespace).Metric("VideoSizeBytes", 4096, UnitBytes), "VideoSizeBytes", 4096, UnitBytes},
		{"later value wins", New(Namespace).Metric("X", 1, UnitCount).Metric("X", 5, UnitCount), "X", 5, UnitCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.rec.document(time.Now())
			if doc[tt.key] != tt.value {
				t.Errorf("%s = %v, want %v", tt.key, doc[tt.key], tt.value)
			}
			defs := doc["_aws"].(directive).CloudWatchMetrics[0].Metrics
			if len(defs) != 1 || defs[0].Name != tt.key || defs[0].Unit != tt.unit {
				t.Errorf("metric defs = %+v", defs)
			}
		})
	}
}

func TestRecorder_FlushWithoutMetrics(t *testing.T) {
	_, line := flushed(t, ForSession("s").Property("note", "nothing measured"))
	if line != "" {
		t.Errorf("expected no output, got %q", line)
	}
}

func TestSetOutput_NilDiscards(t *testing.T) {
	SetOutput(nil)
	// Must not panic on the discard writer.
	ForSession("s").Count("X").Flush()
}
