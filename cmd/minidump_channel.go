// File: cmd/minidump_channel.go

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultMarker terminates every response read from the debugger. It is long
// enough that ordinary debugger output never contains it.
const DefaultMarker = "ENDENDEND7f3c9a1be4d2485f96a0c3d1b8e5f27aENDENDEND"

// maxLineSize bounds a single line of debugger output.
const maxLineSize = 1 << 20

var errChannelClosed = errors.New("channel closed")

// Channel is a request/response connection to a line-oriented debugger.
// Commands are answered strictly in order; a Channel is not pipelined.
type Channel interface {
	// Send issues command and returns the output lines printed before the
	// response marker.
	Send(ctx context.Context, command string) ([]string, error)
	// Close asks the debugger to quit and waits for it to exit, killing it
	// if ctx expires first. Repeated calls return the first result.
	Close(ctx context.Context) error
}

type cdbChannel struct {
	session Session
	marker  string
	log     *logrus.Entry

	lines    chan string
	readDone chan struct{}
	readErr  error
	discard  chan struct{}

	mu     sync.Mutex
	broken error

	closeOnce sync.Once
	closeErr  error
}

// NewChannel wraps a started debugger session. Output lines are read by a
// single goroutine that lives until the session's stdout is closed.
func NewChannel(session Session, marker string, log *logrus.Entry) Channel {
	if marker == "" {
		marker = DefaultMarker
	}
	if log == nil {
		log = logrus.NewEntry(logger)
	}
	c := &cdbChannel{
		session:  session,
		marker:   marker,
		log:      log,
		lines:    make(chan string),
		readDone: make(chan struct{}),
		discard:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *cdbChannel) readLoop() {
	defer close(c.readDone)
	s := bufio.NewScanner(c.session.Stdout())
	s.Buffer(make([]byte, 64<<10), maxLineSize)
	for s.Scan() {
		line := strings.TrimRight(s.Text(), " \t\r")
		select {
		case c.lines <- line:
		case <-c.discard:
		}
	}
	c.readErr = s.Err()
}

func (c *cdbChannel) Send(ctx context.Context, command string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, &ProtocolError{Command: command, Err: c.broken}
	}
	c.log.Tracef("> %s", command)
	if _, err := io.WriteString(c.session.Stdin(), command+"; .echo "+c.marker+"\n"); err != nil {
		return nil, c.fail(command, err)
	}
	var out []string
	for {
		select {
		case <-ctx.Done():
			return nil, c.fail(command, ctx.Err())
		case <-c.readDone:
			err := c.readErr
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, c.fail(command, err)
		case line := <-c.lines:
			if strings.Contains(line, c.marker) {
				c.log.Tracef("< %d lines", len(out))
				return out, nil
			}
			out = append(out, line)
		}
	}
}

// fail marks the channel unusable: once a response has been abandoned the
// marker framing can no longer be trusted.
func (c *cdbChannel) fail(command string, err error) error {
	c.broken = err
	return &ProtocolError{Command: command, Err: err}
}

func (c *cdbChannel) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.close(ctx)
	})
	return c.closeErr
}

func (c *cdbChannel) close(ctx context.Context) error {
	c.mu.Lock()
	if c.broken == nil {
		c.broken = errChannelClosed
	}
	c.mu.Unlock()
	close(c.discard)

	c.log.Trace("> q")
	stdin := c.session.Stdin()
	if _, err := io.WriteString(stdin, "q\n"); err != nil {
		c.log.Debugf("failed to send quit: %v", err)
	}
	stdin.Close()

	var killed error
	select {
	case <-c.readDone:
	case <-ctx.Done():
		killed = ctx.Err()
		if err := c.session.Kill(); err != nil {
			c.log.Debugf("failed to kill debugger: %v", err)
		}
		<-c.readDone
	}
	err := c.session.Wait()
	if killed != nil {
		return fmt.Errorf("debugger did not exit after quit, killed: %w", killed)
	}
	if err != nil {
		return fmt.Errorf("debugger exited with error: %w", err)
	}
	return nil
}
