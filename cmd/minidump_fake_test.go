// File: cmd/minidump_fake_test.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var errKilled = errors.New("killed")

// fakeSession is an in-memory cdb: it reads "<command>; .echo <marker>"
// lines from stdin, prints the scripted response followed by the marker,
// and exits on "q".
type fakeSession struct {
	responses map[string][]string
	silent    bool   // never prints the marker
	ignoreQ   bool   // keeps running after "q"
	exitOn    string // closes stdout without a marker on this command

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	exited  chan struct{}
	killCh  chan struct{}

	mu       sync.Mutex
	input    []string
	commands []string
	killed   bool
}

func newFakeSession(responses map[string][]string) *fakeSession {
	s := &fakeSession{
		responses: responses,
		exited:    make(chan struct{}),
		killCh:    make(chan struct{}),
	}
	s.stdinR, s.stdinW = io.Pipe()
	s.stdoutR, s.stdoutW = io.Pipe()
	return s
}

func (s *fakeSession) start() *fakeSession {
	go s.serve()
	return s
}

func (s *fakeSession) serve() {
	defer close(s.exited)
	defer s.stdoutW.Close()
	defer s.stdinR.Close()
	sc := bufio.NewScanner(s.stdinR)
	for sc.Scan() {
		line := sc.Text()
		s.mu.Lock()
		s.input = append(s.input, line)
		s.mu.Unlock()
		if line == "q" {
			if s.ignoreQ {
				continue
			}
			return
		}
		command, marker, _ := strings.Cut(line, "; .echo ")
		s.mu.Lock()
		s.commands = append(s.commands, command)
		s.mu.Unlock()
		if command == s.exitOn {
			return
		}
		if s.silent {
			continue
		}
		for _, out := range s.responses[command] {
			fmt.Fprintln(s.stdoutW, out)
		}
		fmt.Fprintln(s.stdoutW, marker)
	}
	if s.ignoreQ {
		<-s.killCh
	}
}

func (s *fakeSession) Stdin() io.WriteCloser { return s.stdinW }
func (s *fakeSession) Stdout() io.Reader     { return s.stdoutR }

func (s *fakeSession) Wait() error {
	<-s.exited
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.killed {
		return errKilled
	}
	return nil
}

func (s *fakeSession) Kill() error {
	s.mu.Lock()
	if !s.killed {
		s.killed = true
		close(s.killCh)
	}
	s.mu.Unlock()
	s.stdinR.CloseWithError(errKilled)
	return nil
}

func (s *fakeSession) Input() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.input...)
}

func (s *fakeSession) Killed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

func (s *fakeSession) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// fakeCommander starts fakeSessions scripted with the responses of the dump
// they were started on.
type fakeCommander struct {
	// responses maps a dump base name to its cdb script; "" is the fallback.
	responses map[string]map[string][]string
	startErr  error
	silent    bool // sessions never print the marker
	ignoreQ   bool // sessions keep running after "q"

	execOutput []byte
	execErr    error

	mu       sync.Mutex
	started  [][]string
	executed [][]string
	sessions []*fakeSession
}

func (c *fakeCommander) Execute(name string, args ...string) ([]byte, error) {
	c.mu.Lock()
	c.executed = append(c.executed, append([]string{name}, args...))
	c.mu.Unlock()
	return c.execOutput, c.execErr
}

func (c *fakeCommander) Start(name string, args ...string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, append([]string{name}, args...))
	if c.startErr != nil {
		return nil, c.startErr
	}
	script := c.responses[""]
	for dump, responses := range c.responses {
		if dump != "" && len(args) > 0 && strings.HasSuffix(args[len(args)-1], dump) {
			script = responses
		}
	}
	s := newFakeSession(script)
	s.silent = c.silent
	s.ignoreQ = c.ignoreQ
	s.start()
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeCommander) Sessions() []*fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeSession(nil), c.sessions...)
}

func (c *fakeCommander) Started() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.started...)
}

// fakeChannel is a scripted Channel recording every command it is sent.
type fakeChannel struct {
	responses map[string][]string
	errs      map[string]error

	commands []string
	closes   int
}

func (c *fakeChannel) Send(ctx context.Context, command string) ([]string, error) {
	c.commands = append(c.commands, command)
	if err := c.errs[command]; err != nil {
		return nil, &ProtocolError{Command: command, Err: err}
	}
	return append([]string(nil), c.responses[command]...), nil
}

func (c *fakeChannel) Close(ctx context.Context) error {
	c.closes++
	return nil
}

// resetFlags restores every flag of cmd and its parents to its default so
// that consecutive rootCmd.Execute calls do not leak settings.
func resetFlags(cmd *cobra.Command) {
	for c := cmd; c != nil; c = c.Parent() {
		reset := func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
