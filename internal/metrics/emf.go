// Package metrics records video generation metrics as CloudWatch Embedded
// Metric Format (EMF) log lines. Inside Lambda the lines go to stdout, where
// CloudWatch extracts them from the log stream. Elsewhere they are discarded
// so a CLI's stdout stays free for its own output.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/fpang/ai-video-generator/internal/slideshow"
)

// Namespace is the CloudWatch namespace for every metric this module emits.
const Namespace = "AiVideoGenerator"

// CloudWatch units used by the recorded metrics.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitSeconds      = "Seconds"
)

var (
	outMu sync.Mutex
	out   io.Writer = io.Discard

	// functionName is the Lambda function this process runs as, if any.
	functionName = os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
)

func init() {
	if functionName != "" {
		out = os.Stdout
	}
}

// SetOutput sends EMF lines to w. A nil w discards them.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = io.Discard
	}
	out = w
}

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type directive struct {
	Timestamp         int64             `json:"Timestamp"`
	CloudWatchMetrics []metricDirective `json:"CloudWatchMetrics"`
}

type metricDirective struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder builds one EMF document. Create one per document; it is not
// safe for concurrent use.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	units      map[string]string
	values     map[string]float64
	properties map[string]any
}

// New starts a document in namespace. Inside Lambda the FunctionName
// dimension is added.
func New(namespace string) *Recorder {
	r := &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		units:      make(map[string]string),
		values:     make(map[string]float64),
		properties: make(map[string]any),
	}
	if functionName != "" {
		r.dimensions["FunctionName"] = functionName
	}
	return r
}

// ForSession starts a document about one run. The session ID is a property,
// not a dimension, so runs do not multiply metric series.
func ForSession(sessionID string) *Recorder {
	return New(Namespace).Property("sessionId", sessionID)
}

// ForStage starts a document about one pipeline stage of a run.
func ForStage(sessionID string, stage slideshow.Stage) *Recorder {
	return ForSession(sessionID).Dimension("Stage", stage.String())
}

// Dimension adds a dimension key-value pair.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.units[name] = unit
	r.values[name] = value
	return r
}

// Count records a count of one.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Latency records d in milliseconds.
func (r *Recorder) Latency(name string, d time.Duration) *Recorder {
	return r.Metric(name, float64(d.Milliseconds()), UnitMilliseconds)
}

// Property adds a searchable field that is not a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// document assembles the EMF object. Dimension and metric order is sorted
// so identical recorders produce identical lines.
func (r *Recorder) document(now time.Time) map[string]any {
	dimKeys := slices.Sorted(maps.Keys(r.dimensions))
	defs := make([]metricDef, 0, len(r.units))
	for _, name := range slices.Sorted(maps.Keys(r.units)) {
		defs = append(defs, metricDef{Name: name, Unit: r.units[name]})
	}

	doc := make(map[string]any, len(r.dimensions)+len(r.values)+len(r.properties)+1)
	for k, v := range r.properties {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	doc["_aws"] = directive{
		Timestamp: now.UnixMilli(),
		CloudWatchMetrics: []metricDirective{{
			Namespace:  r.namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    defs,
		}},
	}
	return doc
}

// Flush writes the document as one line. A recorder without metrics writes
// nothing.
func (r *Recorder) Flush() {
	if len(r.values) == 0 {
		return
	}
	data, err := json.Marshal(r.document(time.Now()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}

	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(out, string(data))
}
