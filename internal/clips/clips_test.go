package clips

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
)

const waveGLTF = `{
  "asset": {"version": "2.0"},
  "nodes": [{"name": "hips"}],
  "accessors": [
    {"count": 2, "componentType": 5126, "type": "SCALAR", "min": [0], "max": [2.5]},
    {"count": 2, "componentType": 5126, "type": "VEC4"}
  ],
  "animations": [{
    "name": "wave",
    "channels": [{"sampler": 0, "target": {"node": 0, "path": "rotation"}}],
    "samplers": [{"input": 0, "output": 1}]
  }]
}`

const emptyGLTF = `{"asset": {"version": "2.0"}}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProbe(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wave.gltf", waveGLTF)

	info, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"wave"}, info.Animations)
	assert.Equal(t, 2500*time.Millisecond, info.Duration)
}

func TestProbe_NoAnimation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.gltf", emptyGLTF)
	_, err := Probe(path)
	assert.ErrorIs(t, err, ErrNoAnimation)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("public", "animations", "idle.fbx"), Resolve("public", "/animations/idle.fbx"))
	assert.Equal(t, filepath.Join("public", "animations", "vrma", "a.vrma"), Resolve("public", "animations/vrma/a.vrma"))
}

func TestCheck(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "animations/idle.fbx", "fbx")
	writeFile(t, root, "animations/vrma/wave.gltf", waveGLTF)
	writeFile(t, root, "animations/vrma/empty.gltf", emptyGLTF)

	cat := animation.Catalogue{
		animation.IdleSequence: {Name: animation.IdleSequence, Steps: []animation.Step{
			{Clip: "/animations/idle.fbx", Kind: animation.SkeletalClip, Duration: animation.Infinite},
		}},
		"wave": {Name: "wave", Steps: []animation.Step{
			{Clip: "animations/vrma/wave.gltf", Kind: animation.PoseClip, Duration: 2500 * time.Millisecond},
			{Clip: "/animations/idle.fbx", Kind: animation.SkeletalClip, Duration: animation.Infinite},
		}},
	}
	specials := []animation.Step{
		{Clip: "animations/vrma/empty.gltf", Kind: animation.PoseClip, Duration: time.Second},
		{Clip: "animations/vrma/missing.vrma", Kind: animation.PoseClip, Duration: time.Second},
	}

	problems := Check(root, cat, specials, zerolog.Nop())
	require.Len(t, problems, 2)
	assert.Equal(t, "animations/vrma/empty.gltf", problems[0].Clip)
	assert.ErrorIs(t, problems[0].Err, ErrNoAnimation)
	assert.Equal(t, "animations/vrma/missing.vrma", problems[1].Clip)
	assert.ErrorIs(t, problems[1].Err, ErrMissingClip)

	assert.Nil(t, Check("", cat, specials, zerolog.Nop()))
}
