package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/d0rbu/llamastack-austin/internal/cli"
	"github.com/d0rbu/llamastack-austin/internal/config"
)

const quickStart = `gdba - oracle-driven GDB debugging sessions

Quick start:
  gdba debug ./a.out "segfaults when input is empty"
  gdba runs                             List saved runs
  gdba show RUN_ID                      Re-read a saved transcript
  gdba serve                            Stream sessions over HTTP

For help:
  gdba --help                           All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing
	// These will be overridden by CLI flags if specified
	vars := kong.Vars{
		"config_format": cfg.Format,
	}

	ctx := kong.Parse(&c,
		kong.Name("gdba"),
		kong.Description("gdba: drive GDB with an LLM oracle until the bug is understood"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	// Create globals with config fallbacks
	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
