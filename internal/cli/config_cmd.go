package cli

import (
	"encoding/json"
	"fmt"
)

// ConfigShowCmd prints the effective configuration.
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config

	if globals.ResolvedFormat() == "ndjson" {
		rec := map[string]any{
			"type":   "config",
			"format": cfg.Format,
			"oracle": map[string]any{
				"url":     cfg.Oracle.URL,
				"model":   cfg.Oracle.Model,
				"timeout": cfg.Oracle.Timeout,
				"stream":  cfg.Oracle.Stream,
			},
			"debug": map[string]any{
				"gdb_path":        cfg.Debug.GDBPath,
				"max_steps":       cfg.Debug.MaxSteps,
				"recent_window":   cfg.Debug.RecentWindow,
				"command_timeout": cfg.Debug.CommandTimeout,
				"start_timeout":   cfg.Debug.StartTimeout,
			},
			"store": map[string]any{
				"path": cfg.Store.Path,
				"save": cfg.Store.Save,
			},
			"serve": map[string]any{
				"addr":         cfg.Serve.Addr,
				"max_sessions": cfg.Serve.MaxSessions,
				"rate":         cfg.Serve.Rate,
			},
		}
		return json.NewEncoder(globals.Stdout).Encode(rec)
	}

	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	fmt.Fprintf(globals.Stdout, "  format: %s\n", cfg.Format)
	fmt.Fprintln(globals.Stdout, "  Oracle:")
	fmt.Fprintf(globals.Stdout, "    url: %s\n", cfg.Oracle.URL)
	fmt.Fprintf(globals.Stdout, "    model: %s\n", cfg.Oracle.Model)
	fmt.Fprintf(globals.Stdout, "    timeout: %s\n", cfg.Oracle.Timeout)
	fmt.Fprintf(globals.Stdout, "    stream: %v\n", cfg.Oracle.Stream)
	fmt.Fprintln(globals.Stdout, "  Debug:")
	fmt.Fprintf(globals.Stdout, "    gdb_path: %s\n", cfg.Debug.GDBPath)
	fmt.Fprintf(globals.Stdout, "    max_steps: %d\n", cfg.Debug.MaxSteps)
	fmt.Fprintf(globals.Stdout, "    recent_window: %d\n", cfg.Debug.RecentWindow)
	fmt.Fprintf(globals.Stdout, "    command_timeout: %s\n", cfg.Debug.CommandTimeout)
	fmt.Fprintf(globals.Stdout, "    start_timeout: %s\n", cfg.Debug.StartTimeout)
	fmt.Fprintln(globals.Stdout, "  Store:")
	fmt.Fprintf(globals.Stdout, "    path: %s\n", cfg.Store.Path)
	fmt.Fprintf(globals.Stdout, "    save: %v\n", cfg.Store.Save)
	fmt.Fprintln(globals.Stdout, "  Serve:")
	fmt.Fprintf(globals.Stdout, "    addr: %s\n", cfg.Serve.Addr)
	fmt.Fprintf(globals.Stdout, "    max_sessions: %d\n", cfg.Serve.MaxSessions)
	fmt.Fprintf(globals.Stdout, "    rate: %g\n", cfg.Serve.Rate)
	return nil
}
