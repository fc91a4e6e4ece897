package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/d0rbu/llamastack-austin/internal/loop"
	"github.com/d0rbu/llamastack-austin/internal/oracle"
	"github.com/d0rbu/llamastack-austin/internal/server"
	"github.com/d0rbu/llamastack-austin/internal/store"
)

// ServeCmd runs the streaming HTTP front-end.
type ServeCmd struct {
	Addr        string  `help:"Listen address (default from config)"`
	MaxSessions int     `help:"Maximum concurrent debug sessions (default from config)"`
	Rate        float64 `help:"New sessions per second (default from config)"`
	OracleURL   string  `help:"Oracle server base URL (default from config)"`
	NoStore     bool    `help:"Do not persist finished runs"`
}

// Run executes the serve command
func (c *ServeCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	sc := globals.Config.Serve
	addr := c.Addr
	if addr == "" {
		addr = sc.Addr
	}
	maxSessions := c.MaxSessions
	if maxSessions <= 0 {
		maxSessions = sc.MaxSessions
	}
	sessionRate := c.Rate
	if sessionRate <= 0 {
		sessionRate = sc.Rate
	}

	oc := globals.Config.Oracle
	oracleURL := c.OracleURL
	if oracleURL == "" {
		oracleURL = oc.URL
	}
	oracleTimeout := parseDurationOr(oc.Timeout, 60*time.Second)

	var st *store.Store
	if !c.NoStore && globals.Config.Store.Save {
		path := globals.Config.Store.Path
		if path == "" {
			var err error
			path, err = storePath()
			if err != nil {
				return outputErrorCommon(globals, "STORE_UNAVAILABLE", err.Error())
			}
		}
		var err error
		st, err = store.Open(path)
		if err != nil {
			return outputErrorCommon(globals, "STORE_UNAVAILABLE", err.Error())
		}
		defer st.Close()
	}

	dc := globals.Config.Debug
	srv := server.New(server.Config{
		Addr:        addr,
		MaxSessions: maxSessions,
		Rate:        sessionRate,
		Loop: loop.Config{
			MaxSteps:       dc.MaxSteps,
			RecentWindow:   dc.RecentWindow,
			CommandTimeout: parseDurationOr(dc.CommandTimeout, 15*time.Second),
			StartTimeout:   parseDurationOr(dc.StartTimeout, 10*time.Second),
			GDBPath:        dc.GDBPath,
		},
		Logger: globals.logger.Sugared(),
	}, func(model string) oracle.Provider {
		if model == "" {
			model = oc.Model
		}
		var opts []oracle.ClientOption
		if oc.Stream {
			opts = append(opts, oracle.WithStreaming())
		}
		return oracle.NewClient(oracleURL, model, oracleTimeout, opts...)
	}, st)

	if !globals.Quiet {
		fmt.Fprintf(globals.Stderr, "Serving debug sessions on %s (oracle: %s)\n", addr, oracleURL)
	}
	return srv.ListenAndServe(ctx)
}
