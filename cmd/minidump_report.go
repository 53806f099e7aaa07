// File: cmd/minidump_report.go

package cmd

import (
	"encoding/json"
)

// Report is the symbolized result of one SyzyASan minidump. It is built once
// by NewReport and never modified; accessors return copies.
type Report struct {
	badAccessInfo []string
	crashStack    []string
	allocStack    []string
	freeStack     []string
}

// reportFields is the serialized shape of a Report.
type reportFields struct {
	BadAccessInfo []string `json:"bad_access_info" yaml:"bad_access_info"`
	CrashStack    []string `json:"crash_stack" yaml:"crash_stack"`
	AllocStack    []string `json:"alloc_stack" yaml:"alloc_stack"`
	FreeStack     []string `json:"free_stack" yaml:"free_stack"`
}

// NewReport assembles a Report. The first line of badAccessInfo is the
// structure-name header printed by the debugger and is dropped.
func NewReport(badAccessInfo, crashStack, allocStack, freeStack []string) *Report {
	if len(badAccessInfo) > 0 {
		badAccessInfo = badAccessInfo[1:]
	}
	return &Report{
		badAccessInfo: copyLines(badAccessInfo),
		crashStack:    copyLines(crashStack),
		allocStack:    copyLines(allocStack),
		freeStack:     copyLines(freeStack),
	}
}

func copyLines(lines []string) []string {
	return append(make([]string, 0, len(lines)), lines...)
}

func (r *Report) BadAccessInfo() []string { return copyLines(r.badAccessInfo) }
func (r *Report) CrashStack() []string    { return copyLines(r.crashStack) }
func (r *Report) AllocStack() []string    { return copyLines(r.allocStack) }
func (r *Report) FreeStack() []string     { return copyLines(r.freeStack) }

// IsUseAfterFree reports whether the error carried a free stack.
func (r *Report) IsUseAfterFree() bool {
	return len(r.freeStack) != 0
}

func (r *Report) fields() reportFields {
	return reportFields{
		BadAccessInfo: r.BadAccessInfo(),
		CrashStack:    r.CrashStack(),
		AllocStack:    r.AllocStack(),
		FreeStack:     r.FreeStack(),
	}
}

func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields())
}

func (r *Report) MarshalYAML() (interface{}, error) {
	return r.fields(), nil
}
