package slideshow

import (
	"errors"
	"fmt"
)

// PlanTimeline gives every image an equal share of the narration. Slot i
// covers [i*d, (i+1)*d) where d = audioDuration / len(images). Speech timing
// is deliberately ignored.
func PlanTimeline(images []ImageArtifact, audioDuration float64) ([]Slot, error) {
	if len(images) == 0 {
		return nil, assemblyError("no images to assemble", nil)
	}
	if audioDuration <= 0 {
		return nil, assemblyError("audio duration must be positive", fmt.Errorf("got %.3fs", audioDuration))
	}

	slotDuration := audioDuration / float64(len(images))
	slots := make([]Slot, len(images))
	for i, img := range images {
		slots[i] = Slot{
			Position:     i,
			SegmentIndex: img.SegmentIndex,
			ImagePath:    img.Path,
			Start:        float64(i) * slotDuration,
			End:          float64(i+1) * slotDuration,
		}
	}
	return slots, nil
}

// ErrNoSlots is returned by helpers that need at least one slot.
var ErrNoSlots = errors.New("timeline has no slots")

// SlotDuration returns the uniform slot length of a planned timeline.
func SlotDuration(slots []Slot) (float64, error) {
	if len(slots) == 0 {
		return 0, ErrNoSlots
	}
	return slots[0].Duration(), nil
}
