// Package config provides configuration management for the virtual teacher
// avatar service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/audio"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/lipsync"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/remote"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/viseme"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	dirName   = ".virtualteacher"
	envPrefix = "VIRTUALTEACHER"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Animation AnimationConfig `mapstructure:"animation"`
	LipSync   LipSyncConfig   `mapstructure:"lipsync"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig configures the control API and the renderer link.
type ServerConfig struct {
	Listen         string        `mapstructure:"listen"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	LoadTimeout    time.Duration `mapstructure:"load_timeout"`
	AssetRoot      string        `mapstructure:"asset_root"` // local copy of the renderer assets, used for clip checks
	TickRate       int           `mapstructure:"tick_rate"`  // render ticks per second
}

// AudioConfig configures speech playback and spectrum analysis.
type AudioConfig struct {
	FFTSize         int           `mapstructure:"fft_size"`
	Smoothing       float64       `mapstructure:"smoothing"` // analyser time smoothing
	MinDecibels     float64       `mapstructure:"min_decibels"`
	MaxDecibels     float64       `mapstructure:"max_decibels"`
	VisemeSmoothing float64       `mapstructure:"viseme_smoothing"`
	SampleRate      int           `mapstructure:"sample_rate"`
	SpeakerBuffer   time.Duration `mapstructure:"speaker_buffer"`
	OutputVolume    float64       `mapstructure:"output_volume"` // 0.0 to 1.0
	OpusChannels    int           `mapstructure:"opus_channels"`
}

// StepConfig is one catalogue step. Duration is a Go duration, a bare
// number of milliseconds or "inf".
type StepConfig struct {
	Clip     string `mapstructure:"clip"`
	Kind     string `mapstructure:"kind"`
	Duration string `mapstructure:"duration"`
}

// AnimationConfig configures sequences and idle variation.
type AnimationConfig struct {
	Sequences    map[string][]StepConfig `mapstructure:"sequences"`
	Specials     []StepConfig            `mapstructure:"specials"`
	Baseline     StepConfig              `mapstructure:"baseline"`
	AfterSpeech  StepConfig              `mapstructure:"after_speech"`
	Talking      string                  `mapstructure:"talking"`
	MinIdleDelay time.Duration           `mapstructure:"min_idle_delay"`
	MaxIdleDelay time.Duration           `mapstructure:"max_idle_delay"`
	Seed         int64                   `mapstructure:"seed"` // 0 seeds from the clock
}

// LipSyncConfig configures the speech overlays.
type LipSyncConfig struct {
	SmileMinGap   time.Duration `mapstructure:"smile_min_gap"`
	SmileMaxGap   time.Duration `mapstructure:"smile_max_gap"`
	SmileChance   float64       `mapstructure:"smile_chance"`
	SmileWeight   float64       `mapstructure:"smile_weight"`
	SmileHold     time.Duration `mapstructure:"smile_hold"`
	CalmPeak      float64       `mapstructure:"calm_peak"`
	CalmRamp      time.Duration `mapstructure:"calm_ramp"`
	CalmHold      time.Duration `mapstructure:"calm_hold"`
	CalmFPS       int           `mapstructure:"calm_fps"`
	BlinkInterval time.Duration `mapstructure:"blink_interval"`
	BlinkDuration time.Duration `mapstructure:"blink_duration"`
	BaselineSmile float64       `mapstructure:"baseline_smile"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	MaxHistory int    `mapstructure:"max_history"`
	Console    bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	ac := audio.DefaultConfig()
	lc := lipsync.DefaultConfig()
	bc := lipsync.DefaultBlinkConfig()
	ic := animation.DefaultIdleConfig()
	rc := remote.DefaultConfig()

	logDir := ""
	if dir, err := GetConfigDir(); err == nil {
		logDir = filepath.Join(dir, "logs")
	}

	cat := animation.DefaultCatalogue()
	sequences := make(map[string][]StepConfig, len(cat))
	for name, seq := range cat {
		sequences[name] = stepConfigs(seq.Steps)
	}

	return &Config{
		Server: ServerConfig{
			Listen:         "127.0.0.1:8765",
			AllowedOrigins: rc.AllowedOrigins,
			LoadTimeout:    rc.LoadTimeout,
			TickRate:       60,
		},
		Audio: AudioConfig{
			FFTSize:         ac.FFTSize,
			Smoothing:       ac.SmoothingTimeConstant,
			MinDecibels:     ac.MinDecibels,
			MaxDecibels:     ac.MaxDecibels,
			VisemeSmoothing: viseme.DefaultSmoothing,
			SampleRate:      ac.OutputSampleRate,
			SpeakerBuffer:   ac.SpeakerBuffer,
			OutputVolume:    ac.OutputVolume,
			OpusChannels:    ac.OpusChannels,
		},
		Animation: AnimationConfig{
			Sequences:    sequences,
			Specials:     stepConfigs(ic.Specials),
			Baseline:     stepConfig(ic.Baseline),
			AfterSpeech:  stepConfig(lc.AfterSpeech),
			Talking:      lc.TalkingSequence,
			MinIdleDelay: ic.MinDelay,
			MaxIdleDelay: ic.MaxDelay,
		},
		LipSync: LipSyncConfig{
			SmileMinGap:   lc.SmileMinGap,
			SmileMaxGap:   lc.SmileMaxGap,
			SmileChance:   lc.SmileChance,
			SmileWeight:   lc.SmileWeight,
			SmileHold:     lc.SmileHold,
			CalmPeak:      lc.CalmPeak,
			CalmRamp:      lc.CalmRamp,
			CalmHold:      lc.CalmHold,
			CalmFPS:       lc.CalmFPS,
			BlinkInterval: bc.Interval,
			BlinkDuration: bc.Duration,
			BaselineSmile: bc.BaselineSmile,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        logDir,
			MaxHistory: 1000,
			Console:    true,
		},
	}
}

func stepConfig(s animation.Step) StepConfig {
	d := "inf"
	if !s.Infinite() {
		d = s.Duration.String()
	}
	return StepConfig{Clip: s.Clip, Kind: s.Kind.String(), Duration: d}
}

func stepConfigs(steps []animation.Step) []StepConfig {
	out := make([]StepConfig, len(steps))
	for i, s := range steps {
		out[i] = stepConfig(s)
	}
	return out
}

// Step converts the config form into a catalogue step.
func (s StepConfig) Step() (animation.Step, error) {
	kind, err := animation.ParseClipKind(s.Kind)
	if err != nil {
		return animation.Step{}, err
	}
	d, err := parseStepDuration(s.Duration)
	if err != nil {
		return animation.Step{}, fmt.Errorf("%w: clip %q: %v", ErrInvalidConfig, s.Clip, err)
	}
	return animation.Step{Clip: s.Clip, Kind: kind, Duration: d}, nil
}

func parseStepDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "inf", "infinite", "forever":
		return animation.Infinite, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func steps(cfgs []StepConfig) ([]animation.Step, error) {
	out := make([]animation.Step, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := c.Step()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Catalogue builds and validates the sequence catalogue.
func (c *Config) Catalogue() (animation.Catalogue, error) {
	cat := make(animation.Catalogue, len(c.Animation.Sequences))
	for name, cfgs := range c.Animation.Sequences {
		st, err := steps(cfgs)
		if err != nil {
			return nil, fmt.Errorf("sequence %q: %w", name, err)
		}
		cat[name] = animation.Sequence{Name: name, Steps: st}
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	if _, ok := cat[c.Animation.Talking]; !ok {
		return nil, fmt.Errorf("%w: talking sequence %q not in catalogue", animation.ErrInvalidCatalogue, c.Animation.Talking)
	}
	return cat, nil
}

// IdleConfig builds the idle variation settings.
func (c *Config) IdleConfig() (animation.IdleConfig, error) {
	specials, err := steps(c.Animation.Specials)
	if err != nil {
		return animation.IdleConfig{}, fmt.Errorf("specials: %w", err)
	}
	baseline, err := c.Animation.Baseline.Step()
	if err != nil {
		return animation.IdleConfig{}, fmt.Errorf("baseline: %w", err)
	}
	if c.Animation.MinIdleDelay <= 0 || c.Animation.MaxIdleDelay < c.Animation.MinIdleDelay {
		return animation.IdleConfig{}, fmt.Errorf("%w: idle delay bounds %s..%s", ErrInvalidConfig, c.Animation.MinIdleDelay, c.Animation.MaxIdleDelay)
	}
	return animation.IdleConfig{
		Specials: specials,
		Baseline: baseline,
		MinDelay: c.Animation.MinIdleDelay,
		MaxDelay: c.Animation.MaxIdleDelay,
	}, nil
}

// ControllerConfig combines the catalogue and idle settings.
func (c *Config) ControllerConfig() (animation.ControllerConfig, error) {
	cat, err := c.Catalogue()
	if err != nil {
		return animation.ControllerConfig{}, err
	}
	idle, err := c.IdleConfig()
	if err != nil {
		return animation.ControllerConfig{}, err
	}
	return animation.ControllerConfig{Catalogue: cat, Idle: idle}, nil
}

// LipSyncConfig builds the coordinator settings.
func (c *Config) LipSyncConfig() (lipsync.Config, error) {
	after, err := c.Animation.AfterSpeech.Step()
	if err != nil {
		return lipsync.Config{}, fmt.Errorf("after_speech: %w", err)
	}
	l := c.LipSync
	if l.CalmFPS <= 0 {
		return lipsync.Config{}, fmt.Errorf("%w: calm_fps must be positive", ErrInvalidConfig)
	}
	return lipsync.Config{
		SmileMinGap:     l.SmileMinGap,
		SmileMaxGap:     l.SmileMaxGap,
		SmileChance:     l.SmileChance,
		SmileWeight:     l.SmileWeight,
		SmileHold:       l.SmileHold,
		CalmPeak:        l.CalmPeak,
		CalmRamp:        l.CalmRamp,
		CalmHold:        l.CalmHold,
		CalmFPS:         l.CalmFPS,
		TalkingSequence: c.Animation.Talking,
		AfterSpeech:     after,
	}, nil
}

// BlinkConfig builds the blinker settings.
func (c *Config) BlinkConfig() lipsync.BlinkConfig {
	return lipsync.BlinkConfig{
		Interval:      c.LipSync.BlinkInterval,
		Duration:      c.LipSync.BlinkDuration,
		BaselineSmile: c.LipSync.BaselineSmile,
	}
}

// AudioConfig builds the playback and analyser settings.
func (c *Config) AudioConfig() audio.Config {
	return audio.Config{
		FFTSize:               c.Audio.FFTSize,
		SmoothingTimeConstant: c.Audio.Smoothing,
		MinDecibels:           c.Audio.MinDecibels,
		MaxDecibels:           c.Audio.MaxDecibels,
		OutputSampleRate:      c.Audio.SampleRate,
		SpeakerBuffer:         c.Audio.SpeakerBuffer,
		OutputVolume:          c.Audio.OutputVolume,
		OpusChannels:          c.Audio.OpusChannels,
	}
}

// RemoteConfig builds the renderer hub settings.
func (c *Config) RemoteConfig() remote.Config {
	return remote.Config{
		LoadTimeout:    c.Server.LoadTimeout,
		AllowedOrigins: c.Server.AllowedOrigins,
	}
}

// Validate builds every derived configuration once.
func (c *Config) Validate() error {
	if _, err := c.ControllerConfig(); err != nil {
		return err
	}
	if _, err := c.LipSyncConfig(); err != nil {
		return err
	}
	if c.Audio.OpusChannels != 1 && c.Audio.OpusChannels != 2 {
		return fmt.Errorf("%w: opus_channels must be 1 or 2", ErrInvalidConfig)
	}
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("%w: tick_rate must be positive", ErrInvalidConfig)
	}
	return nil
}

// Loader reads one configuration file and can watch it for changes.
type Loader struct {
	v    *viper.Viper
	path string

	mu sync.Mutex
}

// NewLoader reads path, or config.yaml from ~/.virtualteacher and the
// working directory when path is empty.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	return &Loader{v: v, path: path}
}

// Load reads configuration from file and environment
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Load reads the file, creating it from defaults when it does not exist.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		path := l.path
		if path == "" {
			dir, err := GetConfigDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "config.yaml")
		}
		if err := Save(DefaultConfig(), path); err != nil {
			return nil, err
		}
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	cfg := DefaultConfig()
	if l.v.IsSet("animation.sequences") {
		cfg.Animation.Sequences = nil
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the file in use.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the re-read configuration whenever the file
// changes. Invalid edits are reported through err and leave the caller's
// configuration alone. It runs on fsnotify's goroutine.
func (l *Loader) Watch(onChange func(cfg *Config, err error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		onChange(cfg, err)
	})
	l.v.WatchConfig()
}

// Save writes the configuration to path as YAML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	v := viper.New()
	settings := toSettings(reflect.ValueOf(*cfg)).(map[string]any)
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, settings[k])
	}
	v.SetConfigType("yaml")
	return v.WriteConfigAs(path)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, dirName), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// toSettings flattens a config value into the nested map viper writes,
// keyed by mapstructure tags and with durations in their string form.
func toSettings(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}
	switch v.Kind() {
	case reflect.Struct:
		m := make(map[string]any, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			tag := v.Type().Field(i).Tag.Get("mapstructure")
			if tag == "" || tag == "-" {
				continue
			}
			m[tag] = toSettings(v.Field(i))
		}
		return m
	case reflect.Slice:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = toSettings(v.Index(i))
		}
		return out
	case reflect.Map:
		m := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m[fmt.Sprint(iter.Key().Interface())] = toSettings(iter.Value())
		}
		return m
	default:
		return v.Interface()
	}
}

// setDefaults registers every scalar key so environment overrides apply
// even when the file omits them.
func setDefaults(v *viper.Viper, cfg *Config) {
	var walk func(prefix string, val reflect.Value)
	walk = func(prefix string, val reflect.Value) {
		t := val.Type()
		for i := 0; i < val.NumField(); i++ {
			tag := t.Field(i).Tag.Get("mapstructure")
			if tag == "" || tag == "-" {
				continue
			}
			key := tag
			if prefix != "" {
				key = prefix + "." + tag
			}
			f := val.Field(i)
			switch {
			case f.Type() == durationType:
				v.SetDefault(key, time.Duration(f.Int()))
			case f.Kind() == reflect.Struct && prefix == "":
				walk(key, f)
			case f.Kind() == reflect.Struct, f.Kind() == reflect.Map:
			default:
				v.SetDefault(key, f.Interface())
			}
		}
	}
	walk("", reflect.ValueOf(*cfg))
}
