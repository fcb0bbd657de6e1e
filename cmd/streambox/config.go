package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/velmie/streambox"
)

const (
	defaultDriver   = "sqlite3"
	defaultAppName  = "streambox"
	defaultLogLevel = "info"
	defaultPrefetch = 50
)

// Config is the streambox section of the configuration file.
type Config struct {
	Scheduler streambox.SchedulerProperties `yaml:"scheduler"`
	Storage   StorageConfig                 `yaml:"storage"`
	RabbitMQ  RabbitMQConfig                `yaml:"rabbitmq"`
	Boxes     []BoxConfig                   `yaml:"boxes"`
	Log       LogConfig                     `yaml:"log"`
	Metrics   MetricsConfig                 `yaml:"metrics"`
}

// StorageConfig selects the database holding the box tables.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RabbitMQConfig configures the broker connection and topology.
type RabbitMQConfig struct {
	URL            string        `yaml:"url"`
	Exchange       string        `yaml:"exchange"`
	ExchangeKind   string        `yaml:"exchangeKind"`
	Prefetch       int           `yaml:"prefetch"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// BoxConfig declares one pipeline.
type BoxConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// Table defaults to the box name.
	Table string `yaml:"table"`
	// RoutingKey is the publish key of an outbox and the binding key of an inbox.
	// Defaults to the box name.
	RoutingKey string `yaml:"routingKey"`
	// Queue is consumed by an inbox. Defaults to the box name.
	Queue string `yaml:"queue"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	AppName string `yaml:"appName"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
	// PendingInterval samples the pending count of every box. Zero disables sampling.
	PendingInterval time.Duration `yaml:"pendingInterval"`
}

type configFile struct {
	Streambox Config `yaml:"streambox"`
}

func defaultConfig() Config {
	return Config{
		Scheduler: streambox.DefaultSchedulerProperties(),
		Storage:   StorageConfig{Driver: defaultDriver},
		RabbitMQ:  RabbitMQConfig{Prefetch: defaultPrefetch},
		Log:       LogConfig{Level: defaultLogLevel, AppName: defaultAppName},
	}
}

// table returns the table backing the box.
func (b BoxConfig) table() string {
	if b.Table != "" {
		return b.Table
	}

	return b.Name
}

func (b BoxConfig) routingKey() string {
	if b.RoutingKey != "" {
		return b.RoutingKey
	}

	return b.Name
}

func (b BoxConfig) queue() string {
	if b.Queue != "" {
		return b.Queue
	}

	return b.Name
}

// decodeConfig expands ${VAR} references and decodes the YAML document. Unknown fields
// are rejected.
func decodeConfig(r io.Reader) (Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	doc := configFile{Streambox: defaultConfig()}
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := doc.Streambox.validate(); err != nil {
		return Config{}, err
	}

	return doc.Streambox, nil
}

func loadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return decodeConfig(f)
}

func (c Config) validate() error {
	if c.Storage.Driver == "" {
		return errors.New("config: storage.driver is required")
	}
	seen := make(map[string]struct{}, len(c.Boxes))
	for i, box := range c.Boxes {
		if box.Name == "" {
			return fmt.Errorf("config: boxes[%d].name is required", i)
		}
		if _, ok := seen[box.Name]; ok {
			return fmt.Errorf("config: duplicate box %q", box.Name)
		}
		seen[box.Name] = struct{}{}
		if box.Kind != streambox.KindInbox && box.Kind != streambox.KindOutbox {
			return fmt.Errorf("config: box %q: kind must be %q or %q", box.Name, streambox.KindInbox, streambox.KindOutbox)
		}
	}

	return nil
}

// selectBoxes returns the boxes named in names, or all boxes when names is empty.
func (c Config) selectBoxes(names []string) ([]BoxConfig, error) {
	if len(names) == 0 {
		return c.Boxes, nil
	}
	byName := make(map[string]BoxConfig, len(c.Boxes))
	for _, box := range c.Boxes {
		byName[box.Name] = box
	}
	out := make([]BoxConfig, 0, len(names))
	for _, name := range names {
		box, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown box %q", name)
		}
		out = append(out, box)
	}

	return out, nil
}
