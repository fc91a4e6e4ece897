package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/d0rbu/llamastack-austin/internal/loop"
	"github.com/d0rbu/llamastack-austin/internal/oracle"
	"github.com/d0rbu/llamastack-austin/internal/output"
	"github.com/d0rbu/llamastack-austin/internal/store"
	"github.com/d0rbu/llamastack-austin/internal/stream"
	"github.com/d0rbu/llamastack-austin/internal/tmux"
)

// DebugCmd drives one oracle-guided debugging session against a target
// executable and prints its transcript.
type DebugCmd struct {
	Executable string   `arg:"" help:"Path to the executable to debug"`
	Bug        []string `arg:"" help:"Description of the bug being investigated"`

	Model          string        `short:"m" help:"Oracle model ID (default: first model the server reports)"`
	OracleURL      string        `help:"Oracle server base URL (default from config)"`
	OracleTimeout  time.Duration `help:"Timeout per oracle call (default from config)"`
	Stream         bool          `help:"Use streaming oracle responses"`
	MaxSteps       int           `help:"Maximum debugger steps (default from config)"`
	RecentWindow   int           `help:"History records shown to the oracle (default from config)"`
	CommandTimeout time.Duration `help:"Timeout per debugger command (default from config)"`
	GDBPath        string        `help:"Debugger binary to launch (default from config)"`
	Echo           bool          `short:"e" help:"Stream live transcript chunks to stderr while running"`
	Tmux           bool          `help:"Mirror the live transcript into a tmux session"`
	Session        string        `help:"Custom tmux session name (default: gdba)"`
	Save           bool          `default:"true" negatable:"" help:"Persist the finished run to the transcript store"`
}

// Run executes the debug command
func (c *DebugCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	bug := strings.TrimSpace(strings.Join(c.Bug, " "))
	if bug == "" {
		return outputErrorCommon(globals, "MISSING_BUG", "a bug description is required")
	}
	if _, err := os.Stat(c.Executable); err != nil {
		return outputErrorCommon(globals, "EXECUTABLE_NOT_FOUND",
			fmt.Sprintf("executable not found: %s", c.Executable),
			"build the target with debug symbols first")
	}

	cfg := c.loopConfig(globals, bug)

	provider, err := c.buildProvider(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "ORACLE_UNAVAILABLE", err.Error(),
			"is the llama-stack server running?")
	}

	// Live transcript sinks: stderr echo and/or a tmux pane.
	var sinks []io.Writer
	var tmuxMgr *tmux.Manager
	if c.Tmux {
		tmuxMgr, err = tmux.NewManager(tmux.Config{SessionName: c.Session})
		if err != nil {
			return outputErrorCommon(globals, "TMUX_UNAVAILABLE", err.Error())
		}
		tmuxMgr.WriteRunBanner(c.Executable, bug)
		sinks = append(sinks, tmux.NewWriter(tmuxMgr))
		if !globals.Quiet {
			fmt.Fprintf(globals.Stderr, "Mirroring transcript to tmux session %q\n", tmuxMgr.SessionName())
			fmt.Fprintf(globals.Stderr, "Attach with: tmux attach -t %s\n", tmuxMgr.SessionName())
		}
	}
	if c.Echo {
		sinks = append(sinks, globals.Stderr)
	}

	drained := make(chan struct{})
	if len(sinks) > 0 {
		tap := stream.NewQueue(0)
		cfg.Tap = tap
		go func() {
			defer close(drained)
			dst := io.MultiWriter(sinks...)
			for chunk := range tap.Chunks() {
				io.WriteString(dst, chunk)
			}
		}()
	} else {
		close(drained)
	}

	globals.Debug("starting debug session for %s", c.Executable)
	out := loop.New(cfg, provider).Run(ctx)
	if cfg.Tap != nil {
		cfg.Tap.Close()
	}
	<-drained

	if err := c.writeOutcome(globals, out); err != nil {
		return err
	}
	if c.Save && globals.Config.Store.Save {
		if err := c.saveOutcome(globals, out); err != nil && !globals.Quiet {
			fmt.Fprintf(globals.Stderr, "Warning: failed to save run: %v\n", err)
		}
	}

	if out.Status == loop.StatusSetupFailed {
		return fmt.Errorf("setup failed: %s", out.Error)
	}
	return nil
}

// loopConfig merges command flags over config defaults.
func (c *DebugCmd) loopConfig(globals *Globals, bug string) loop.Config {
	dc := globals.Config.Debug

	cfg := loop.Config{
		Executable:     c.Executable,
		BugDescription: bug,
		MaxSteps:       c.MaxSteps,
		RecentWindow:   c.RecentWindow,
		CommandTimeout: c.CommandTimeout,
		GDBPath:        c.GDBPath,
		Logger:         globals.logger.Sugared(),
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = dc.MaxSteps
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = dc.RecentWindow
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = parseDurationOr(dc.CommandTimeout, 15*time.Second)
	}
	cfg.StartTimeout = parseDurationOr(dc.StartTimeout, 10*time.Second)
	if cfg.GDBPath == "" {
		cfg.GDBPath = dc.GDBPath
	}
	return cfg
}

func (c *DebugCmd) buildProvider(ctx context.Context, globals *Globals) (oracle.Provider, error) {
	oc := globals.Config.Oracle

	url := c.OracleURL
	if url == "" {
		url = oc.URL
	}
	timeout := c.OracleTimeout
	if timeout <= 0 {
		timeout = parseDurationOr(oc.Timeout, 60*time.Second)
	}
	model := c.Model
	if model == "" {
		model = oc.Model
	}

	var opts []oracle.ClientOption
	if c.Stream || oc.Stream {
		opts = append(opts, oracle.WithStreaming())
	}
	client := oracle.NewClient(url, model, timeout, opts...)

	resolved, err := client.ResolveModel(ctx)
	if err != nil {
		return nil, err
	}
	globals.Debug("using oracle model %s", resolved)
	return client, nil
}

func (c *DebugCmd) writeOutcome(globals *Globals, out *loop.Outcome) error {
	if globals.ResolvedFormat() == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteOutcome(out)
	}
	return output.WriteTranscript(globals.Stdout, out)
}

func (c *DebugCmd) saveOutcome(globals *Globals, out *loop.Outcome) error {
	path := globals.Config.Store.Path
	if path == "" {
		var err error
		path, err = storePath()
		if err != nil {
			return err
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveOutcome(out)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
