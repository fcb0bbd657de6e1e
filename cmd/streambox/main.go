// Command streambox operates inbox and outbox tables: it creates their schema, relays
// pending records through RabbitMQ and removes finished rows past their retention.
//
// Configuration is a YAML file (see config.go) whose ${VAR} references are expanded from
// the environment, optionally seeded from a .env file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
