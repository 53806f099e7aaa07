// File: cmd/command.go
package cmd

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Commander interface for command execution
type Commander interface {
	// Execute runs a command to completion and returns its stdout.
	Execute(name string, args ...string) ([]byte, error)
	// Start launches an interactive process with piped stdin/stdout.
	Start(name string, args ...string) (Session, error)
}

// Session is a running interactive process.
type Session interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Wait() error
	Kill() error
}

// RealCommander executes actual system commands
type RealCommander struct{}

func (c RealCommander) Execute(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.Output()
}

func (c RealCommander) Start(name string, args ...string) (Session, error) {
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin of %s: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to open stdout of %s: %w", name, err)
	}
	stderr := logger.WriterLevel(logrus.DebugLevel)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	return &execSession{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

type execSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Closer
}

func (s *execSession) Stdin() io.WriteCloser { return s.stdin }
func (s *execSession) Stdout() io.Reader     { return s.stdout }

func (s *execSession) Wait() error {
	err := s.cmd.Wait()
	s.stderr.Close()
	return err
}

func (s *execSession) Kill() error {
	return s.cmd.Process.Kill()
}

// Default commander instance
var cmdExecutor Commander = RealCommander{}

// SetCommander allows changing the commander for tests
func SetCommander(c Commander) {
	cmdExecutor = c
}
