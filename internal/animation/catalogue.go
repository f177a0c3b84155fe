// Package animation sequences avatar animation clips: a catalogue of named
// sequences, a sequencer that plays one of them at a time, an idle
// variation scheduler that splices special clips into the idle pose and the
// controller that keeps the two from stepping on each other.
package animation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrUnknownSequence  = errors.New("unknown animation sequence")
	ErrClipLoad         = errors.New("clip load failed")
	ErrInvalidCatalogue = errors.New("invalid animation catalogue")
)

// Well-known sequence names.
const (
	IdleSequence    = "idle"
	TalkingSequence = "talking"
	StartSequence   = "start"
)

// Infinite marks a step that holds until something else is played.
const Infinite = time.Duration(math.MaxInt64)

// ClipKind selects which loader handles a clip.
type ClipKind int

const (
	// SkeletalClip is a generic skeletal animation (FBX) retargeted onto the
	// avatar.
	SkeletalClip ClipKind = iota
	// PoseClip is a native VRM animation (VRMA).
	PoseClip
)

func (k ClipKind) String() string {
	switch k {
	case SkeletalClip:
		return "skeletal"
	case PoseClip:
		return "pose"
	default:
		return fmt.Sprintf("ClipKind(%d)", int(k))
	}
}

// ParseClipKind accepts the kind names as well as the file formats they
// stand for.
func ParseClipKind(s string) (ClipKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skeletal", "fbx":
		return SkeletalClip, nil
	case "pose", "vrma":
		return PoseClip, nil
	default:
		return 0, fmt.Errorf("%w: clip kind %q", ErrInvalidCatalogue, s)
	}
}

// Step is one clip in a sequence.
type Step struct {
	Clip     string
	Kind     ClipKind
	Duration time.Duration
}

func (s Step) Infinite() bool {
	return s.Duration == Infinite
}

// Sequence is a named, ordered list of steps.
type Sequence struct {
	Name  string
	Steps []Step
}

// Catalogue maps sequence names to sequences. It is configuration and is
// never mutated while in use; swap in a new one instead.
type Catalogue map[string]Sequence

func (c Catalogue) Lookup(name string) (Sequence, error) {
	seq, ok := c[name]
	if !ok {
		return Sequence{}, fmt.Errorf("%w: %q", ErrUnknownSequence, name)
	}
	return seq, nil
}

// Names returns the sequence names in no particular order.
func (c Catalogue) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	return names
}

// Validate checks that the idle sequence exists and every step is playable.
func (c Catalogue) Validate() error {
	if _, ok := c[IdleSequence]; !ok {
		return fmt.Errorf("%w: missing %q sequence", ErrInvalidCatalogue, IdleSequence)
	}
	for name, seq := range c {
		if len(seq.Steps) == 0 {
			return fmt.Errorf("%w: sequence %q has no steps", ErrInvalidCatalogue, name)
		}
		for i, step := range seq.Steps {
			if step.Clip == "" {
				return fmt.Errorf("%w: sequence %q step %d has no clip", ErrInvalidCatalogue, name, i)
			}
			if step.Duration <= 0 {
				return fmt.Errorf("%w: sequence %q step %d has non-positive duration", ErrInvalidCatalogue, name, i)
			}
		}
	}
	return nil
}

// Default clip paths, relative to the renderer's asset root.
const (
	IdleClip    = "/animations/idle.fbx"
	TalkingClip = "/animations/Talking.fbx"
	GreetClip   = "animations/vrma/VRMA_02.vrma"
)

// DefaultCatalogue returns the built-in sequences.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		IdleSequence: {
			Name:  IdleSequence,
			Steps: []Step{{Clip: IdleClip, Kind: SkeletalClip, Duration: Infinite}},
		},
		TalkingSequence: {
			Name:  TalkingSequence,
			Steps: []Step{{Clip: TalkingClip, Kind: SkeletalClip, Duration: Infinite}},
		},
		StartSequence: {
			Name: StartSequence,
			Steps: []Step{
				{Clip: GreetClip, Kind: PoseClip, Duration: 7000 * time.Millisecond},
				{Clip: IdleClip, Kind: SkeletalClip, Duration: Infinite},
			},
		},
	}
}

// DefaultSpecials returns the clips the idle scheduler picks from.
func DefaultSpecials() []Step {
	return []Step{
		{Clip: "animations/vrma/VRMA_01.vrma", Kind: PoseClip, Duration: 5500 * time.Millisecond},
		{Clip: "animations/vrma/VRMA_03.vrma", Kind: PoseClip, Duration: 8000 * time.Millisecond},
		{Clip: "animations/vrma/VRMA_04.vrma", Kind: PoseClip, Duration: 7000 * time.Millisecond},
		{Clip: "animations/vrma/VRMA_06.vrma", Kind: PoseClip, Duration: 5000 * time.Millisecond},
		{Clip: "animations/vrma/VRMA_06.vrma", Kind: PoseClip, Duration: 7200 * time.Millisecond},
	}
}

// DefaultBaseline is the idle clip restored after a special clip.
func DefaultBaseline() Step {
	return Step{Clip: IdleClip, Kind: SkeletalClip, Duration: Infinite}
}

// DefaultAfterSpeech is the clip played once when speech ends.
func DefaultAfterSpeech() Step {
	return Step{Clip: GreetClip, Kind: PoseClip, Duration: 7000 * time.Millisecond}
}
