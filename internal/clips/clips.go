// Package clips inspects animation clip files on disk so catalogue mistakes
// show up at startup instead of as silent load failures in the renderer.
package clips

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
)

var (
	ErrNoAnimation = errors.New("clip has no animation")
	ErrMissingClip = errors.New("clip file missing")
)

// Info describes a glTF based clip (VRMA is glTF binary).
type Info struct {
	Path       string
	Animations []string
	Duration   time.Duration
}

// Probe opens a .vrma, .glb or .gltf file and reports its animations and the
// length of the longest one.
func Probe(path string) (Info, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open gltf: %w", err)
	}
	if len(doc.Animations) == 0 {
		return Info{}, fmt.Errorf("%w: %s", ErrNoAnimation, path)
	}

	info := Info{Path: path}
	var longest float64
	for i, anim := range doc.Animations {
		name := anim.Name
		if name == "" {
			name = fmt.Sprintf("animation_%d", i)
		}
		info.Animations = append(info.Animations, name)

		for _, s := range anim.Samplers {
			idx := int(s.Input)
			if idx < 0 || idx >= len(doc.Accessors) {
				continue
			}
			acc := doc.Accessors[idx]
			if len(acc.Max) == 0 {
				continue
			}
			if end := float64(acc.Max[0]); end > longest {
				longest = end
			}
		}
	}
	info.Duration = time.Duration(longest * float64(time.Second))
	return info, nil
}

// Problem is a catalogue clip that could not be verified.
type Problem struct {
	Clip string
	Err  error
}

// Resolve maps a catalogue clip path onto the asset root.
func Resolve(root, clip string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(clip, "/")))
}

// Check verifies every clip referenced by the catalogue and the special
// list. Pose clips are probed; other clips only need to exist. An empty root
// skips the check.
func Check(root string, cat animation.Catalogue, specials []animation.Step, logger zerolog.Logger) []Problem {
	if root == "" {
		return nil
	}
	logger = logger.With().Str("component", "clips").Logger()

	var steps []animation.Step
	for _, seq := range cat {
		steps = append(steps, seq.Steps...)
	}
	steps = append(steps, specials...)

	seen := make(map[string]bool)
	var problems []Problem
	for _, step := range steps {
		if seen[step.Clip] {
			continue
		}
		seen[step.Clip] = true

		path := Resolve(root, step.Clip)
		if _, err := os.Stat(path); err != nil {
			problems = append(problems, Problem{Clip: step.Clip, Err: fmt.Errorf("%w: %s", ErrMissingClip, path)})
			continue
		}
		if step.Kind != animation.PoseClip {
			continue
		}

		info, err := Probe(path)
		if err != nil {
			problems = append(problems, Problem{Clip: step.Clip, Err: err})
			continue
		}
		ev := logger.Debug().Str("clip", step.Clip).Dur("length", info.Duration).Strs("animations", info.Animations)
		if !step.Infinite() {
			ev = ev.Dur("declared", step.Duration)
		}
		ev.Msg("clip probed")
	}

	for _, p := range problems {
		logger.Warn().Err(p.Err).Str("clip", p.Clip).Msg("catalogue clip problem")
	}
	return problems
}
