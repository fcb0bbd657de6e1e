package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/velmie/streambox/logging"
	"github.com/velmie/streambox/sqlstore"
)

const (
	configEnv      = "STREAMBOX_CONFIG"
	defaultEnvFile = ".env"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	EnvFile    string

	cfg Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "streambox",
		Short:         "Operate transactional inbox and outbox tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.prepare(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (default $"+configEnv+")")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "dotenv file loaded before the config is read")

	cmd.AddCommand(newSchemaCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newRelayCommand(opts))
	cmd.AddCommand(newPendingCommand(opts))
	cmd.AddCommand(newCleanupCommand(opts))

	return cmd
}

// prepare loads the dotenv file and the config. A missing default .env is ignored.
func (o *rootOptions) prepare(cmd *cobra.Command) error {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load env file: %w", err)
			}
		}
	}

	path := o.ConfigPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path == "" {
		o.cfg = defaultConfig()

		return nil
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	o.cfg = cfg

	return nil
}

func (o *rootOptions) logger(cmd *cobra.Command) (*logging.Logger, error) {
	return logging.New(logging.Config{
		AppName: o.cfg.Log.AppName,
		Level:   o.cfg.Log.Level,
		Output:  cmd.ErrOrStderr(),
	})
}

// openStores opens one connection pool and returns a store per box, keyed by box name.
// The first return value owns the pool.
func (o *rootOptions) openStores(ctx context.Context, boxes []BoxConfig) (*sqlstore.Store, map[string]*sqlstore.Store, error) {
	if o.cfg.Storage.DSN == "" {
		return nil, nil, errors.New("config: storage.dsn is required")
	}
	base, err := sqlstore.Open(ctx, o.cfg.Storage.Driver, o.cfg.Storage.DSN)
	if err != nil {
		return nil, nil, err
	}

	stores := make(map[string]*sqlstore.Store, len(boxes))
	for _, box := range boxes {
		store, err := base.WithTable(box.table())
		if err != nil {
			_ = base.Close()

			return nil, nil, fmt.Errorf("box %q: %w", box.Name, err)
		}
		stores[box.Name] = store
	}

	return base, stores, nil
}
