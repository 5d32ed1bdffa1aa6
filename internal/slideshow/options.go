package slideshow

import (
	"fmt"
	"strings"
)

// Resolution is the closed set of output frame shapes.
type Resolution int

const (
	ResolutionSquare Resolution = iota
	ResolutionPortrait
	ResolutionLandscape
)

// DefaultResolution matches the first option offered to users.
const DefaultResolution = ResolutionSquare

type resolutionSpec struct {
	name   string
	label  string
	size   string // image service size parameter
	aspect string // image service aspect-ratio parameter
	width  int
	height int
}

var resolutionTable = map[Resolution]resolutionSpec{
	ResolutionSquare:    {"square", "Square (1024x1024)", "1024x1024", "1:1", 1024, 1024},
	ResolutionPortrait:  {"portrait", "Instagram (mobile 1024x1792)", "1024x1792", "9:16", 1024, 1792},
	ResolutionLandscape: {"landscape", "YouTube (landscape 1792x1024)", "1792x1024", "16:9", 1792, 1024},
}

// Resolutions lists every resolution in display order.
func Resolutions() []Resolution {
	return []Resolution{ResolutionSquare, ResolutionPortrait, ResolutionLandscape}
}

func (r Resolution) spec() resolutionSpec {
	if s, ok := resolutionTable[r]; ok {
		return s
	}
	return resolutionTable[DefaultResolution]
}

func (r Resolution) String() string { return r.spec().name }

// Label is the human-readable option name.
func (r Resolution) Label() string { return r.spec().label }

// Size is the "WxH" size parameter sent to the image service.
func (r Resolution) Size() string { return r.spec().size }

// AspectRatio is the aspect-ratio parameter sent to the image service.
func (r Resolution) AspectRatio() string { return r.spec().aspect }

// Dimensions returns the output frame width and height in pixels.
func (r Resolution) Dimensions() (width, height int) {
	s := r.spec()
	return s.width, s.height
}

// Valid reports whether r is one of the defined resolutions.
func (r Resolution) Valid() bool {
	_, ok := resolutionTable[r]
	return ok
}

// ParseResolution accepts the short name ("square"), the size ("1024x1024")
// or the aspect ratio ("1:1"). Matching is case-insensitive.
func ParseResolution(s string) (Resolution, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, r := range Resolutions() {
		spec := resolutionTable[r]
		if v == spec.name || v == spec.size || v == spec.aspect {
			return r, nil
		}
	}
	// Aliases for the platform names used in labels.
	switch v {
	case "instagram", "mobile":
		return ResolutionPortrait, nil
	case "youtube":
		return ResolutionLandscape, nil
	}
	return 0, fmt.Errorf("unknown resolution %q (valid: square, portrait, landscape)", s)
}

// MarshalText lets Resolution appear as its name in YAML and JSON.
func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Resolution) UnmarshalText(text []byte) error {
	parsed, err := ParseResolution(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Voice is the closed set of narration voices.
type Voice int

const (
	VoiceScarlett Voice = iota
	VoiceYoungClear
	VoiceWarm
	VoiceDeep
	VoiceNarrator
	VoiceTeddyBear
)

// DefaultVoice is the narrator voice.
const DefaultVoice = VoiceNarrator

type voiceSpec struct {
	name     string
	label    string
	apiVoice string // prebuilt voice name understood by the speech service
}

var voiceTable = map[Voice]voiceSpec{
	VoiceScarlett:   {"scarlett", "Scarlett 'Her' female voice", "Aoede"},
	VoiceYoungClear: {"young", "Young clear female voice", "Leda"},
	VoiceWarm:       {"warm", "Warm female voice", "Sulafat"},
	VoiceDeep:       {"deep", "Deep female voice", "Gacrux"},
	VoiceNarrator:   {"narrator", "Narrator female voice", "Charon"},
	VoiceTeddyBear:  {"teddy", "Teddy bear male voice", "Algieba"},
}

// Voices lists every voice in display order.
func Voices() []Voice {
	return []Voice{VoiceScarlett, VoiceYoungClear, VoiceWarm, VoiceDeep, VoiceNarrator, VoiceTeddyBear}
}

func (v Voice) spec() voiceSpec {
	if s, ok := voiceTable[v]; ok {
		return s
	}
	return voiceTable[DefaultVoice]
}

func (v Voice) String() string { return v.spec().name }

// Label is the human-readable option name.
func (v Voice) Label() string { return v.spec().label }

// APIName is the prebuilt voice name passed to the speech service.
func (v Voice) APIName() string { return v.spec().apiVoice }

func (v Voice) Valid() bool {
	_, ok := voiceTable[v]
	return ok
}

// ParseVoice accepts the short name or the speech service voice name,
// case-insensitively.
func ParseVoice(s string) (Voice, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, voice := range Voices() {
		spec := voiceTable[voice]
		if v == spec.name || v == strings.ToLower(spec.apiVoice) {
			return voice, nil
		}
	}
	return 0, fmt.Errorf("unknown voice %q (valid: scarlett, young, warm, deep, narrator, teddy)", s)
}

func (v Voice) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Voice) UnmarshalText(text []byte) error {
	parsed, err := ParseVoice(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
