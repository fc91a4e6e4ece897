// Package gdb owns the debugger subprocess: it launches GDB in MI mode,
// serializes command round trips with token correlation, and guarantees the
// process is torn down on session exit.
package gdb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/d0rbu/llamastack-austin/internal/mi"
	"github.com/d0rbu/llamastack-austin/internal/stream"
)

var (
	// ErrTimeout means no matching result record arrived in time.
	ErrTimeout = errors.New("gdb: command timed out")
	// ErrProcessExited means the subprocess pipe closed mid-command.
	ErrProcessExited = errors.New("gdb: process exited")
)

// StartError reports that the debugger failed to launch or to load the
// executable's symbols.
type StartError struct {
	Reason string
	Err    error
}

func (e *StartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("start gdb: %s: %v", e.Reason, e.Err)
	}
	return "start gdb: " + e.Reason
}

func (e *StartError) Unwrap() error { return e.Err }

// Options configures a session.
type Options struct {
	GDBPath      string        // debugger binary, default "gdb"
	StartTimeout time.Duration // symbol-load deadline, default 10s
	ExitWait     time.Duration // grace period before SIGKILL on shutdown, default 2s
	Clock        clock.Clock   // injectable for tests
	Tap          *stream.Queue // optional live-display chunk queue
}

// Exchange is one command round trip: the allocated token and every event
// observed up to and including the matching result record. On timeout or
// process exit the partial event list collected so far is still present.
type Exchange struct {
	Token  int
	Events []mi.Event
}

// Session is a live debugger subprocess handle. All command I/O is
// serialized: at most one command is in flight at a time, because GDB's
// reply stream cannot be demultiplexed any other way.
type Session struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	events   chan mi.Event
	procDone chan struct{}
	clk      clock.Clock
	tap      *stream.Queue
	exitWait time.Duration

	sendMu    sync.Mutex
	nextToken int

	mu         sync.Mutex
	terminated bool

	shutdownOnce sync.Once
}

// Start launches GDB with a minimal deterministic configuration (no user
// init files loaded) and performs the symbol load for the target executable
// using token 1. A load failure, timeout, or early process exit is a
// *StartError; the subprocess is already torn down when one is returned.
func Start(ctx context.Context, executable string, opts Options) (*Session, error) {
	gdbPath := opts.GDBPath
	if gdbPath == "" {
		gdbPath = "gdb"
	}
	startTimeout := opts.StartTimeout
	if startTimeout <= 0 {
		startTimeout = 10 * time.Second
	}
	exitWait := opts.ExitWait
	if exitWait <= 0 {
		exitWait = 2 * time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	cmd := exec.CommandContext(ctx, gdbPath, "--interpreter=mi2", "--nx", "-q")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &StartError{Reason: "stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Reason: "stdout pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &StartError{Reason: "launch failed", Err: err}
	}

	s := &Session{
		cmd:       cmd,
		stdin:     stdin,
		events:    make(chan mi.Event, 1024),
		procDone:  make(chan struct{}),
		clk:       clk,
		tap:       opts.Tap,
		exitWait:  exitWait,
		nextToken: 1,
	}
	go s.readLoop(stdout)

	ex, err := s.Send(ctx, "-file-exec-and-symbols "+strconv.Quote(executable), startTimeout)
	if err != nil {
		s.Shutdown()
		return nil, &StartError{Reason: "symbol load failed", Err: err}
	}
	for i := range ex.Events {
		ev := &ex.Events[i]
		if ev.Kind != mi.KindResult || ev.Token != ex.Token {
			continue
		}
		if ev.Class == mi.ClassDone {
			return s, nil
		}
		msg, _ := ev.Payload["msg"].(string)
		if msg == "" {
			msg = ev.Class
		}
		s.Shutdown()
		return nil, &StartError{Reason: "symbol load failed: " + msg}
	}
	s.Shutdown()
	return nil, &StartError{Reason: "symbol load produced no result"}
}

// Send allocates the next correlation token, writes the command line, and
// reads decoded events until the result record carrying that token arrives.
// Async notify events interleaved before the result are part of the
// command's effect and are returned with it. Concurrent callers are queued,
// never interleaved.
func (s *Session) Send(ctx context.Context, command string, timeout time.Duration) (*Exchange, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if !s.Alive() {
		return &Exchange{}, ErrProcessExited
	}

	token := s.nextToken
	s.nextToken++
	ex := &Exchange{Token: token}

	if s.tap != nil {
		s.tap.Push("-> " + command + "\n")
	}
	if _, err := io.WriteString(s.stdin, mi.Encode(token, command)+"\n"); err != nil {
		s.markTerminated()
		return ex, fmt.Errorf("%w: write: %v", ErrProcessExited, err)
	}

	timer := s.clk.Timer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				s.markTerminated()
				return ex, ErrProcessExited
			}
			ex.Events = append(ex.Events, ev)
			if ev.Kind == mi.KindResult && ev.Token == token {
				return ex, nil
			}
		case <-timer.C:
			return ex, ErrTimeout
		case <-ctx.Done():
			return ex, ctx.Err()
		}
	}
}

// Shutdown attempts a graceful -gdb-exit, then kills the process if it is
// still running after the grace period. Idempotent and safe on an
// already-dead session. The subprocess is guaranteed not to be running once
// Shutdown returns.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		io.WriteString(s.stdin, "-gdb-exit\n")
		s.stdin.Close()

		// Unblock the read loop if no Send is draining events.
		go func() {
			for range s.events {
			}
		}()

		timer := s.clk.Timer(s.exitWait)
		defer timer.Stop()
		select {
		case <-s.procDone:
		case <-timer.C:
			if s.cmd.Process != nil {
				s.cmd.Process.Kill()
			}
			<-s.procDone
		}
		s.markTerminated()
	})
}

// Alive reports whether the session can still accept commands. The
// transition to terminated happens exactly once and never reverses.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.terminated
}

// PID returns the subprocess id, 0 when unknown.
func (s *Session) PID() int {
	if s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return 0
}

func (s *Session) markTerminated() {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
}

func (s *Session) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if s.tap != nil {
			s.tap.Push(line + "\n")
		}
		if ev := mi.Decode(line); ev != nil {
			s.events <- *ev
		}
	}
	close(s.events)
	s.cmd.Wait()
	close(s.procDone)
	s.markTerminated()
}
