// Package cli wires the command surface: parsing, globals, and per-command
// Run methods.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/d0rbu/llamastack-austin/internal/config"
)

// CLI is the top-level command tree.
type CLI struct {
	Format     string `help:"Output format: auto, text, ndjson" enum:"auto,text,ndjson" default:"${config_format}"`
	Quiet      bool   `short:"q" help:"Suppress informational output"`
	Verbose    bool   `short:"v" help:"Enable verbose debug logging"`
	ConfigPath string `name:"config" help:"Path to a config file (overrides discovery)" type:"path"`

	Debug  DebugCmd  `cmd:"" help:"Run an oracle-driven debug session against an executable"`
	Serve  ServeCmd  `cmd:"" help:"Serve debug sessions over HTTP with streaming transcripts"`
	Runs   RunsCmd   `cmd:"" help:"List saved debug runs"`
	Show   ShowCmd   `cmd:"" help:"Show the transcript of a saved run"`
	Config ConfigCmd `cmd:"" help:"Configuration commands"`
}

// ConfigCmd groups configuration subcommands.
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Show the effective configuration"`
}

// Globals carries cross-command state into each Run method.
type Globals struct {
	Format  string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config

	logger *agentLogger
}

// NewGlobalsWithConfig builds Globals from parsed flags with config
// fallbacks applied.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if c.ConfigPath != "" {
		if fileCfg, err := config.LoadFromFile(c.ConfigPath); err == nil {
			cfg = fileCfg
		} else {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config %s: %v\n", c.ConfigPath, err)
		}
	}
	g := &Globals{
		Format:  c.Format,
		Quiet:   c.Quiet,
		Verbose: c.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	if g.Format == "" {
		g.Format = cfg.Format
	}
	g.logger = newAgentLogger(g)
	return g
}

// ResolvedFormat collapses "auto" to text on a terminal and ndjson
// otherwise, so agents piping the output always get machine-readable
// records.
func (g *Globals) ResolvedFormat() string {
	if g.Format != "auto" {
		return g.Format
	}
	if f, ok := g.Stdout.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			return "text"
		}
		return "ndjson"
	}
	return "text"
}

// Debug logs a verbose diagnostic line. No-op unless --verbose is set.
func (g *Globals) Debug(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Debug(format, args...)
	}
}
