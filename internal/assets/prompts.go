// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// scriptSystemPrompt is the system instruction for narration scripts.
//
//go:embed prompts/script-system.txt
var scriptSystemPrompt string

// RefineSystemPrompt instructs the model that rewrites image prompts.
//
//go:embed prompts/refine-system.txt
var RefineSystemPrompt string

// --- Dynamic prompt templates ---

//go:embed prompts/script-user.txt
var scriptUserTemplate string

//go:embed prompts/refine-user.txt
var refineUserTemplate string

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	scriptUserTmpl = template.Must(template.New("script").Parse(scriptUserTemplate))
	refineUserTmpl = template.Must(template.New("refine").Parse(refineUserTemplate))
)

// DefaultScriptSentences is the requested narration length.
const DefaultScriptSentences = 10

// ScriptSystemPrompt returns the script-writer system instruction without
// its trailing newline.
func ScriptSystemPrompt() string {
	return strings.TrimSpace(scriptSystemPrompt)
}

// ScriptPromptData is injected into the script template.
type ScriptPromptData struct {
	Topic     string
	Sentences int
}

// RenderScriptPrompt renders the user instruction for a narration script.
func RenderScriptPrompt(topic string, sentences int) string {
	if sentences <= 0 {
		sentences = DefaultScriptSentences
	}
	return renderTemplate(scriptUserTmpl, ScriptPromptData{Topic: topic, Sentences: sentences})
}

// RefinePromptData is injected into the prompt rewrite template.
type RefinePromptData struct {
	Topic   string
	Number  int
	Segment string
	Prompt  string
}

// RenderRefinePrompt renders the rewrite request for one segment's prompt.
func RenderRefinePrompt(data RefinePromptData) string {
	return renderTemplate(refineUserTmpl, data)
}

// renderTemplate executes a pre-parsed template with the given data.
func renderTemplate(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	// Template execution errors are not expected with our simple templates,
	// but we handle them gracefully by returning whatever was rendered.
	_ = tmpl.Execute(&buf, data)
	return strings.TrimRight(buf.String(), "\n")
}
