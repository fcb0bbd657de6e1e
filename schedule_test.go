package streambox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		value string
		want  time.Duration
	}{
		{value: "PT7S", want: 7 * time.Second},
		{value: "PT1M30S", want: 90 * time.Second},
		{value: "PT0S", want: 0},
		{value: "2000", want: 2 * time.Second},
		{value: "0", want: 0},
		{value: "", want: 7 * time.Second},
		{value: "  PT2S ", want: 2 * time.Second},
	}

	for _, tc := range cases {
		got, err := ParseInterval(tc.value)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.value, tc.want, got)
		}
	}
}

func TestParseIntervalInvalid(t *testing.T) {
	for _, value := range []string{"7s", "abc", "12x"} {
		_, err := ParseInterval(value)
		var parseErr *ConfigParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("%q: expected ConfigParseError, got %v", value, err)
		}
	}
}

func TestMergeConfig(t *testing.T) {
	defaults := DefaultScheduleConfig()

	cases := []struct {
		name     string
		typ      *ScheduleConfig
		instance *ScheduleConfig
		want     ScheduleConfig
	}{
		{
			name: "no overrides",
			want: defaults,
		},
		{
			name: "empty layers",
			typ:  &ScheduleConfig{},
			instance: &ScheduleConfig{
				BatchLimit: -1,
			},
			want: defaults,
		},
		{
			name: "type overrides interval",
			typ:  &ScheduleConfig{PollInterval: "2000"},
			want: ScheduleConfig{PollInterval: "2000", InitialDelay: "PT0S", BatchLimit: 100},
		},
		{
			name:     "instance wins over type",
			typ:      &ScheduleConfig{PollInterval: "2000", BatchLimit: 50},
			instance: &ScheduleConfig{BatchLimit: 10},
			want:     ScheduleConfig{PollInterval: "2000", InitialDelay: "PT0S", BatchLimit: 10},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := MergeConfig(defaults, tc.typ, tc.instance)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestMergeConfigFillsIncompleteDefaults(t *testing.T) {
	got := MergeConfig(ScheduleConfig{PollInterval: "PT1S"}, nil, nil)
	want := ScheduleConfig{PollInterval: "PT1S", InitialDelay: "PT0S", BatchLimit: 100}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestResolveSchedule(t *testing.T) {
	props := DefaultSchedulerProperties()
	props.Types[KindOutbox] = ScheduleConfig{PollInterval: "2000"}
	props.Instances["orders"] = ScheduleConfig{BatchLimit: 10, InitialDelay: "PT5S"}

	got, err := ResolveSchedule(props, KindOutbox, "orders")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := Schedule{PollInterval: 2 * time.Second, InitialDelay: 5 * time.Second, BatchLimit: 10}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	got, err = ResolveSchedule(props, KindInbox, "payments")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want = Schedule{PollInterval: 7 * time.Second, BatchLimit: 100}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestResolveScheduleRejectsZeroPoll(t *testing.T) {
	props := DefaultSchedulerProperties()
	props.Instances["orders"] = ScheduleConfig{PollInterval: "0"}

	_, err := ResolveSchedule(props, KindOutbox, "orders")
	var parseErr *ConfigParseError
	if !errors.As(err, &parseErr) || parseErr.Field != "pollInterval" {
		t.Fatalf("expected pollInterval ConfigParseError, got %v", err)
	}
}

func TestLoadProperties(t *testing.T) {
	doc := `
streambox:
  scheduler:
    enabled: true
    defaults:
      batchLimit: 50
    types:
      outbox:
        pollInterval: 2000
    instances:
      orders:
        batchLimit: 10
`
	props, err := LoadProperties(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !props.Enabled {
		t.Fatalf("expected enabled")
	}
	if props.Defaults.PollInterval != "PT7S" || props.Defaults.BatchLimit != 50 {
		t.Fatalf("expected defaults to keep unset fields, got %+v", props.Defaults)
	}
	if props.Types[KindOutbox].PollInterval != "2000" {
		t.Fatalf("expected numeric interval as string, got %+v", props.Types)
	}
	if props.Instances["orders"].BatchLimit != 10 {
		t.Fatalf("unexpected instances %+v", props.Instances)
	}
}

func TestLoadPropertiesEmptyDocument(t *testing.T) {
	props, err := LoadProperties(strings.NewReader(""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if props.Enabled {
		t.Fatalf("expected scheduling disabled by default")
	}
	if props.Defaults != DefaultScheduleConfig() {
		t.Fatalf("expected hard defaults, got %+v", props.Defaults)
	}
}

func TestLoadPropertiesRejectsUnknownFields(t *testing.T) {
	doc := `
streambox:
  scheduler:
    enabled: true
    fixedRate: PT1S
`
	if _, err := LoadProperties(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streambox.yaml")
	if err := os.WriteFile(path, []byte("streambox:\n  scheduler:\n    enabled: true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	props, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !props.Enabled {
		t.Fatalf("expected enabled")
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
