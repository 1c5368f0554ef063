// Package config loads the rtn configuration.
//
// Precedence, lowest first: Default(), the YAML file, RTN_* environment
// variables. The merged result is validated against the embedded CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rtn/internal/effector"
	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/scheduler"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RTN_"

// Config is the full rtn configuration.
type Config struct {
	Session    SessionConfig    `yaml:"session" json:"session" envPrefix:"SESSION_"`
	Events     EventsConfig     `yaml:"events" json:"events" envPrefix:"EVENTS_"`
	Labels     LabelsConfig     `yaml:"labels" json:"labels" envPrefix:"LABELS_"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier" envPrefix:"CLASSIFIER_"`
	Effector   EffectorConfig   `yaml:"effector" json:"effector" envPrefix:"EFFECTOR_"`
	Store      StoreConfig      `yaml:"store" json:"store" envPrefix:"STORE_"`
}

// SessionConfig holds the scheduler cadence and log location.
type SessionConfig struct {
	SuccessThreshold int    `yaml:"success_threshold" json:"success_threshold" env:"SUCCESS_THRESHOLD"`
	EscalationGateMS int    `yaml:"escalation_gate_ms" json:"escalation_gate_ms" env:"ESCALATION_GATE_MS"`
	TickIntervalMS   int    `yaml:"tick_interval_ms" json:"tick_interval_ms" env:"TICK_INTERVAL_MS"`
	LogDir           string `yaml:"log_dir" json:"log_dir" env:"LOG_DIR"`
	Name             string `yaml:"name" json:"name" env:"NAME"`
}

// EventsConfig names the bus events. Prefix applies to the routine's own
// events; external signal names are used as given.
type EventsConfig struct {
	Prefix         string `yaml:"prefix" json:"prefix" env:"PREFIX"`
	Trigger        string `yaml:"trigger" json:"trigger" env:"TRIGGER"`
	SuccessSignal  string `yaml:"success_signal" json:"success_signal" env:"SUCCESS_SIGNAL"`
	Classification string `yaml:"classification" json:"classification" env:"CLASSIFICATION"`
}

// LabelsConfig holds the classifier labels logged as SC 1 and SC 0.
type LabelsConfig struct {
	Articulated   string `yaml:"articulated" json:"articulated" env:"ARTICULATED"`
	Unarticulated string `yaml:"unarticulated" json:"unarticulated" env:"UNARTICULATED"`
}

// ClassifierConfig is passed to the sound classifier unchanged.
type ClassifierConfig struct {
	VolumeGate  int `yaml:"volume_gate" json:"volume_gate" env:"VOLUME_GATE"`
	FrameCount  int `yaml:"frame_count" json:"frame_count" env:"FRAME_COUNT"`
	BufferCount int `yaml:"buffer_count" json:"buffer_count" env:"BUFFER_COUNT"`
	SampleRate  int `yaml:"sample_rate" json:"sample_rate" env:"SAMPLE_RATE"`
	Channel     int `yaml:"channel" json:"channel" env:"CHANNEL"`
	BufferSize  int `yaml:"buffer_size" json:"buffer_size" env:"BUFFER_SIZE"`
}

// EffectorConfig configures stimulus playback.
type EffectorConfig struct {
	// Command is the player invocation; the asset path is appended. Empty
	// means stimuli are only logged.
	Command     []string `yaml:"command" json:"command" env:"COMMAND" envSeparator:" "`
	NameAsset   string   `yaml:"name_asset" json:"name_asset" env:"NAME_ASSET"`
	PhraseAsset string   `yaml:"phrase_asset" json:"phrase_asset" env:"PHRASE_ASSET"`
	FadeMS      int      `yaml:"fade_ms" json:"fade_ms" env:"FADE_MS"`
}

// StoreConfig configures the session archive.
type StoreConfig struct {
	// DB is the SQLite archive path. Empty disables archiving.
	DB string `yaml:"db" json:"db" env:"DB"`
}

// Default returns the routine's tuned configuration.
func Default() *Config {
	policy := scheduler.DefaultPolicy()
	params := policy.Classifier
	return &Config{
		Session: SessionConfig{
			SuccessThreshold: policy.SuccessThreshold,
			EscalationGateMS: int(policy.EscalationGate / time.Millisecond),
			TickIntervalMS:   int(policy.TickInterval / time.Millisecond),
			LogDir:           policy.LogDir,
			Name:             policy.SessionName,
		},
		Events: EventsConfig{
			Trigger:        policy.Events.Trigger,
			SuccessSignal:  policy.Events.SuccessSignal,
			Classification: policy.Events.Classification,
		},
		Labels: LabelsConfig{
			Articulated:   policy.Labels.Articulated,
			Unarticulated: policy.Labels.Unarticulated,
		},
		Classifier: ClassifierConfig{
			VolumeGate:  params.VolumeGate,
			FrameCount:  params.FrameCount,
			BufferCount: params.BufferCount,
			SampleRate:  params.SampleRate,
			Channel:     params.Channel,
			BufferSize:  params.BufferSize,
		},
		Effector: EffectorConfig{
			Command:     []string{},
			NameAsset:   "assets/name.wav",
			PhraseAsset: "assets/phrase.wav",
			FadeMS:      1500,
		},
	}
}

// Load builds the configuration from path (optional) and the environment,
// then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile parses path (optional) on top of Default without environment
// overrides and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.merge(data)
}

// merge decodes YAML over c. Unknown fields are rejected.
func (c *Config) merge(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if c.Effector.Command == nil {
		c.Effector.Command = []string{}
	}
	return nil
}

// ApplyEnv overrides fields from RTN_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(nil)
}

func (c *Config) applyEnv(environment map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks c against the schema and the scheduler's own rules.
func (c *Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return err
	}
	_, err := c.Policy()
	return err
}

// Policy converts the configuration into a scheduler policy.
func (c *Config) Policy() (scheduler.Policy, error) {
	events := scheduler.DefaultEvents(c.Events.Prefix)
	events.Trigger = c.Events.Trigger
	events.SuccessSignal = c.Events.SuccessSignal
	events.Classification = c.Events.Classification

	p := scheduler.Policy{
		SuccessThreshold: c.Session.SuccessThreshold,
		EscalationGate:   time.Duration(c.Session.EscalationGateMS) * time.Millisecond,
		TickInterval:     time.Duration(c.Session.TickIntervalMS) * time.Millisecond,
		Events:           events,
		Labels: scheduler.Labels{
			Articulated:   c.Labels.Articulated,
			Unarticulated: c.Labels.Unarticulated,
		},
		Classifier:  c.ClassifierParams(),
		LogDir:      c.Session.LogDir,
		SessionName: c.Session.Name,
	}
	if err := p.Validate(); err != nil {
		return scheduler.Policy{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

// ClassifierParams returns the classifier parameters.
func (c *Config) ClassifierParams() effector.ClassifierParams {
	return effector.ClassifierParams{
		VolumeGate:  c.Classifier.VolumeGate,
		FrameCount:  c.Classifier.FrameCount,
		BufferCount: c.Classifier.BufferCount,
		SampleRate:  c.Classifier.SampleRate,
		Channel:     c.Classifier.Channel,
		BufferSize:  c.Classifier.BufferSize,
	}
}

// Assets maps stimulus tiers to asset paths.
func (c *Config) Assets() map[ir.Tier]string {
	return map[ir.Tier]string{
		ir.TierName:   c.Effector.NameAsset,
		ir.TierPhrase: c.Effector.PhraseAsset,
	}
}

// Fade returns the indicator transition time.
func (c *Config) Fade() time.Duration {
	return time.Duration(c.Effector.FadeMS) * time.Millisecond
}

// YAML renders c as a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
