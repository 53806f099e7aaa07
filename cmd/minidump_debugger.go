// File: cmd/minidump_debugger.go

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
)

// DefaultCDBPath is where the Debugging Tools for Windows installer puts cdb.
const DefaultCDBPath = `c:\Program Files (x86)\Debugging Tools for Windows (x86)\cdb.exe`

// cdb commands understood by the SyzyASan runtime's error_info layout.
const (
	cdbSymPath        = ".sympath %s"
	cdbReload         = ".reload /fi %s"
	cdbSymFix         = ".symfix"
	cdbLines          = ".lines"
	cdbCallStack      = "kv"
	cdbFrame          = ".frame %X"
	cdbErrorInfo      = "dt error_info"
	cdbAllocStack     = "dps @@(&error_info->alloc_stack) l@@(error_info->alloc_stack_size);"
	cdbFreeStack      = "dps @@(&error_info->free_stack) l@@(error_info->free_stack_size);"
	cdbExceptionFrame = ".ecxr"
)

// Debugger is the set of inspection operations the analyzer needs. It hides
// the debugger's scripting language so another backend can be substituted.
type Debugger interface {
	SetSymbolPath(ctx context.Context, path string) error
	ReloadModule(ctx context.Context, module string) error
	FixSymbols(ctx context.Context) error
	EnableLineNumbers(ctx context.Context) error
	CallStack(ctx context.Context) ([]string, error)
	SelectFrame(ctx context.Context, index int) error
	ErrorInfo(ctx context.Context) ([]string, error)
	AllocStack(ctx context.Context) ([]string, error)
	FreeStack(ctx context.Context) ([]string, error)
	ExceptionContext(ctx context.Context) error
	Quit(ctx context.Context) error
}

// CDB implements Debugger on top of a cdb.exe command channel.
type CDB struct {
	ch Channel
}

// NewCDB returns a Debugger speaking cdb's command language over ch.
func NewCDB(ch Channel) *CDB {
	return &CDB{ch: ch}
}

// StartCDB launches cdb in dump mode on dumpPath and returns a Debugger
// bound to it.
func StartCDB(c Commander, cdbPath, dumpPath, marker string) (*CDB, error) {
	dumpPath, err := filepath.Abs(dumpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dump path: %w", err)
	}
	session, err := c.Start(cdbPath, "-z", dumpPath)
	if err != nil {
		return nil, err
	}
	return NewCDB(NewChannel(session, marker, logger.WithField("dump", dumpPath))), nil
}

func (d *CDB) exec(ctx context.Context, command string) error {
	_, err := d.ch.Send(ctx, command)
	return err
}

func (d *CDB) SetSymbolPath(ctx context.Context, path string) error {
	return d.exec(ctx, fmt.Sprintf(cdbSymPath, path))
}

func (d *CDB) ReloadModule(ctx context.Context, module string) error {
	return d.exec(ctx, fmt.Sprintf(cdbReload, module))
}

func (d *CDB) FixSymbols(ctx context.Context) error {
	return d.exec(ctx, cdbSymFix)
}

func (d *CDB) EnableLineNumbers(ctx context.Context) error {
	return d.exec(ctx, cdbLines)
}

func (d *CDB) CallStack(ctx context.Context) ([]string, error) {
	return d.ch.Send(ctx, cdbCallStack)
}

func (d *CDB) SelectFrame(ctx context.Context, index int) error {
	return d.exec(ctx, fmt.Sprintf(cdbFrame, index))
}

func (d *CDB) ErrorInfo(ctx context.Context) ([]string, error) {
	return d.ch.Send(ctx, cdbErrorInfo)
}

func (d *CDB) AllocStack(ctx context.Context) ([]string, error) {
	return d.ch.Send(ctx, cdbAllocStack)
}

func (d *CDB) FreeStack(ctx context.Context) ([]string, error) {
	return d.ch.Send(ctx, cdbFreeStack)
}

func (d *CDB) ExceptionContext(ctx context.Context) error {
	return d.exec(ctx, cdbExceptionFrame)
}

func (d *CDB) Quit(ctx context.Context) error {
	return d.ch.Close(ctx)
}
