package slideshow

import (
	"context"
	"strings"
)

// NoTextClause is appended to every image prompt verbatim.
const NoTextClause = "IMPORTANT: DON'T ADD ANY TEXT IN THE IMAGE!!!!"

// TemplatePrompt builds the fixed photographic prompt for a segment.
func TemplatePrompt(topic Topic, seg Segment) string {
	return "a hyper-realistic photograph representing the following topic:" + string(topic) +
		"\n\nYou can get some additional inspiration from here: " + seg.Text +
		"\n\n " + NoTextClause
}

// EnsureNoTextClause appends the no-text clause when a prompt lacks it.
func EnsureNoTextClause(prompt string) string {
	if strings.Contains(prompt, NoTextClause) {
		return prompt
	}
	return strings.TrimRight(prompt, " \n") + "\n\n " + NoTextClause
}

// TemplateRefiner is the default refiner. It never fails.
type TemplateRefiner struct{}

func (TemplateRefiner) Refine(_ context.Context, topic Topic, seg Segment) (ImagePrompt, error) {
	return ImagePrompt{SegmentIndex: seg.Index, Text: TemplatePrompt(topic, seg)}, nil
}
