package streambox

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"
)

const (
	defaultPollInterval = "PT7S"
	defaultInitialDelay = "PT0S"
	defaultBatchLimit   = 100

	// blankInterval is what an empty interval string resolves to.
	blankInterval = 7 * time.Second
)

// ScheduleConfig is one layer of scheduler configuration. Empty strings and a
// non-positive BatchLimit mean "unset" and fall through to the layer below.
//
// Intervals are ISO-8601 durations ("PT7S", "PT1M30S") or bare millisecond counts ("2000").
type ScheduleConfig struct {
	PollInterval string `yaml:"pollInterval"`
	InitialDelay string `yaml:"initialDelay"`
	BatchLimit   int    `yaml:"batchLimit"`
}

// DefaultScheduleConfig returns the hard defaults: every 7 seconds, no initial delay,
// batches of 100.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		PollInterval: defaultPollInterval,
		InitialDelay: defaultInitialDelay,
		BatchLimit:   defaultBatchLimit,
	}
}

// SchedulerProperties is the full scheduler configuration: a global switch plus the
// defaults, per-kind and per-instance layers.
type SchedulerProperties struct {
	Enabled   bool                      `yaml:"enabled"`
	Defaults  ScheduleConfig            `yaml:"defaults"`
	Types     map[string]ScheduleConfig `yaml:"types"`
	Instances map[string]ScheduleConfig `yaml:"instances"`
}

// DefaultSchedulerProperties returns disabled properties with the hard defaults.
func DefaultSchedulerProperties() SchedulerProperties {
	return SchedulerProperties{
		Defaults:  DefaultScheduleConfig(),
		Types:     map[string]ScheduleConfig{},
		Instances: map[string]ScheduleConfig{},
	}
}

// MergeConfig overlays the type and instance layers onto defaults, most specific
// last. Nil layers are skipped; unset fields of defaults take the hard defaults.
func MergeConfig(defaults ScheduleConfig, typeLayer, instanceLayer *ScheduleConfig) ScheduleConfig {
	merged := overlay(DefaultScheduleConfig(), defaults)
	if typeLayer != nil {
		merged = overlay(merged, *typeLayer)
	}
	if instanceLayer != nil {
		merged = overlay(merged, *instanceLayer)
	}

	return merged
}

func overlay(base, layer ScheduleConfig) ScheduleConfig {
	if strings.TrimSpace(layer.PollInterval) != "" {
		base.PollInterval = layer.PollInterval
	}
	if strings.TrimSpace(layer.InitialDelay) != "" {
		base.InitialDelay = layer.InitialDelay
	}
	if layer.BatchLimit > 0 {
		base.BatchLimit = layer.BatchLimit
	}

	return base
}

// ParseInterval converts an interval string to a duration. A value starting with a digit
// is a millisecond count, anything else is parsed as an ISO-8601 duration. An empty value
// yields 7 seconds.
func ParseInterval(value string) (time.Duration, error) {
	return parseInterval("interval", value)
}

func parseInterval(field, value string) (time.Duration, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return blankInterval, nil
	}

	if v[0] >= '0' && v[0] <= '9' {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, &ConfigParseError{Field: field, Value: value, Err: err}
		}

		return time.Duration(ms) * time.Millisecond, nil
	}

	parsed, err := duration.Parse(v)
	if err != nil {
		return 0, &ConfigParseError{Field: field, Value: value, Err: err}
	}
	d := parsed.ToTimeDuration()
	if d < 0 {
		return 0, &ConfigParseError{Field: field, Value: value, Err: errors.New("must not be negative")}
	}

	return d, nil
}

// ResolveSchedule merges the layers for a box of the given kind and name and parses
// the result.
func ResolveSchedule(props SchedulerProperties, kind, name string) (Schedule, error) {
	var typeLayer, instanceLayer *ScheduleConfig
	if layer, ok := props.Types[kind]; ok {
		typeLayer = &layer
	}
	if layer, ok := props.Instances[name]; ok {
		instanceLayer = &layer
	}
	merged := MergeConfig(props.Defaults, typeLayer, instanceLayer)

	poll, err := parseInterval("pollInterval", merged.PollInterval)
	if err != nil {
		return Schedule{}, err
	}
	if poll <= 0 {
		return Schedule{}, &ConfigParseError{Field: "pollInterval", Value: merged.PollInterval, Err: errors.New("must be positive")}
	}
	delay, err := parseInterval("initialDelay", merged.InitialDelay)
	if err != nil {
		return Schedule{}, err
	}

	return Schedule{
		PollInterval: poll,
		InitialDelay: delay,
		BatchLimit:   merged.BatchLimit,
	}, nil
}

type propertiesFile struct {
	Streambox struct {
		Scheduler SchedulerProperties `yaml:"scheduler"`
	} `yaml:"streambox"`
}

// LoadProperties reads a YAML document holding a streambox.scheduler section. Fields not
// present keep their defaults; unknown fields are rejected.
func LoadProperties(r io.Reader) (SchedulerProperties, error) {
	var doc propertiesFile
	doc.Streambox.Scheduler = DefaultSchedulerProperties()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return SchedulerProperties{}, fmt.Errorf("streambox config: decode: %w", err)
	}

	return doc.Streambox.Scheduler, nil
}

// LoadConfigFile is LoadProperties over a file.
func LoadConfigFile(path string) (SchedulerProperties, error) {
	f, err := os.Open(path)
	if err != nil {
		return SchedulerProperties{}, fmt.Errorf("streambox config: open %s: %w", path, err)
	}
	defer f.Close()

	return LoadProperties(f)
}
