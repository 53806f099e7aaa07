// File: cmd/minidump_analyzer.go

package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultSentinelFrame is the SyzyASan runtime entry point whose frame holds
// the error_info structure.
const DefaultSentinelFrame = "asan_rtl!agent::asan::AsanRuntime::OnError"

// DefaultReloadModules are reloaded after the symbol path is overridden.
var DefaultReloadModules = []string{"chrome.dll", "syzyasan_rtl.dll"}

// quitGrace bounds how long a session may take to exit after the quit
// command before it is killed.
var quitGrace = 10 * time.Second

type analysisState int

const (
	stateInit analysisState = iota
	stateSymbolsConfigured
	stateCrashCaptured
	stateFrameLocated
	stateExtracted
	stateClosed
	stateFrameNotFound
	stateFailed
)

func (s analysisState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateSymbolsConfigured:
		return "symbols-configured"
	case stateCrashCaptured:
		return "crash-captured"
	case stateFrameLocated:
		return "frame-located"
	case stateExtracted:
		return "extracted"
	case stateClosed:
		return "closed"
	case stateFrameNotFound:
		return "frame-not-found"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// AnalyzerConfig controls one minidump analysis.
type AnalyzerConfig struct {
	// DumpPath names the dump in diagnostics.
	DumpPath string
	// SymbolPath overrides the debugger's symbol search path when set.
	SymbolPath    string
	ReloadModules []string
	SentinelFrame string
	Normalizer    *Normalizer
	Logger        *logrus.Entry
}

// Analyzer drives a Debugger through the sequence of commands that extracts
// a Report from a SyzyASan minidump.
type Analyzer struct {
	cfg   AnalyzerConfig
	dbg   Debugger
	log   *logrus.Entry
	state analysisState
}

// NewAnalyzer returns an Analyzer for dbg. Unset config fields take the
// package defaults.
func NewAnalyzer(dbg Debugger, cfg AnalyzerConfig) *Analyzer {
	if cfg.ReloadModules == nil {
		cfg.ReloadModules = DefaultReloadModules
	}
	if cfg.SentinelFrame == "" {
		cfg.SentinelFrame = DefaultSentinelFrame
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = DefaultNormalizer
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logger)
	}
	return &Analyzer{
		cfg: cfg,
		dbg: dbg,
		log: log.WithField("dump", cfg.DumpPath),
	}
}

func (a *Analyzer) transition(s analysisState) {
	a.log.Debugf("%v -> %v", a.state, s)
	a.state = s
}

// Run performs the analysis and always ends the debugger session before
// returning. A missing sentinel frame yields *FrameNotFoundError; a broken
// debugger conversation yields *ProtocolError.
func (a *Analyzer) Run(ctx context.Context) (report *Report, err error) {
	defer func() {
		if err != nil && a.state != stateFrameNotFound {
			a.transition(stateFailed)
		}
		quitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), quitGrace)
		defer cancel()
		if qerr := a.dbg.Quit(quitCtx); qerr != nil {
			a.log.Warnf("failed to end debugger session: %v", qerr)
		}
		a.log.WithField("state", a.state.String()).Debug("debugger session closed")
		if err == nil {
			a.transition(stateClosed)
		}
	}()

	if err := a.configureSymbols(ctx); err != nil {
		return nil, err
	}
	a.transition(stateSymbolsConfigured)

	raw, err := a.dbg.CallStack(ctx)
	if err != nil {
		return nil, err
	}
	crashStack := a.cfg.Normalizer.NormalizeStack(raw)
	a.transition(stateCrashCaptured)

	frame := findFrame(crashStack, a.cfg.SentinelFrame)
	if frame < 0 {
		a.transition(stateFrameNotFound)
		return nil, &FrameNotFoundError{Frame: a.cfg.SentinelFrame, Dump: a.cfg.DumpPath}
	}
	a.transition(stateFrameLocated)
	a.log.Debugf("error info frame at depth %d", frame)

	if err := a.dbg.SelectFrame(ctx, frame); err != nil {
		return nil, err
	}
	badAccessInfo, err := a.dbg.ErrorInfo(ctx)
	if err != nil {
		return nil, err
	}
	rawAlloc, err := a.dbg.AllocStack(ctx)
	if err != nil {
		return nil, err
	}
	rawFree, err := a.dbg.FreeStack(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.dbg.ExceptionContext(ctx); err != nil {
		return nil, err
	}
	raw, err = a.dbg.CallStack(ctx)
	if err != nil {
		return nil, err
	}
	if stack := a.cfg.Normalizer.NormalizeStack(raw); len(stack) != 0 {
		crashStack = stack
	} else {
		a.log.Warn("exception context stack is empty, keeping runtime stack")
	}
	a.transition(stateExtracted)

	return NewReport(badAccessInfo, crashStack,
		a.cfg.Normalizer.NormalizeStack(rawAlloc),
		a.cfg.Normalizer.NormalizeStack(rawFree)), nil
}

func (a *Analyzer) configureSymbols(ctx context.Context) error {
	if a.cfg.SymbolPath != "" {
		if err := a.dbg.SetSymbolPath(ctx, a.cfg.SymbolPath); err != nil {
			return err
		}
		for _, module := range a.cfg.ReloadModules {
			if err := a.dbg.ReloadModule(ctx, module); err != nil {
				return err
			}
		}
		if err := a.dbg.FixSymbols(ctx); err != nil {
			return err
		}
	}
	return a.dbg.EnableLineNumbers(ctx)
}
