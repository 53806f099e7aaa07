// File: cmd/minidump_output_test.go
package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func testReport(crashStack ...string) *Report {
	return NewReport(
		[]string{"Type agent::asan::AsanErrorInfo", "   +0x000 location : 0x0a2b0010"},
		crashStack,
		[]string{"chrome_dll!operator new+0x8"},
		nil,
	)
}

func TestNewReport(t *testing.T) {
	badAccess := []string{"header", "line 1", "line 2"}
	crash := []string{"ntdll!Foo"}
	report := NewReport(badAccess, crash, nil, []string{"chrome_dll!free"})

	assert.Equal(t, []string{"line 1", "line 2"}, report.BadAccessInfo())
	assert.Equal(t, []string{"ntdll!Foo"}, report.CrashStack())
	assert.Equal(t, []string{}, report.AllocStack())
	assert.True(t, report.IsUseAfterFree())

	// The report owns its data.
	crash[0] = "changed"
	report.CrashStack()[0] = "changed"
	assert.Equal(t, []string{"ntdll!Foo"}, report.CrashStack())

	empty := NewReport(nil, nil, nil, nil)
	assert.Equal(t, []string{}, empty.BadAccessInfo())
}

func TestReportMarshal(t *testing.T) {
	report := testReport("ntdll!Foo")

	data, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded reportFields
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.fields(), decoded)
	assert.Contains(t, string(data), `"free_stack":[]`)

	data, err = yaml.Marshal(DumpAnalysis{DumpFile: "crash.dmp", Report: report})
	require.NoError(t, err)
	assert.Contains(t, string(data), "crash_stack:")
	assert.Contains(t, string(data), "- ntdll!Foo")
	assert.NotContains(t, string(data), "frame_not_found")
}

func TestSaveAnalysis(t *testing.T) {
	dir := t.TempDir()
	analysis := DumpAnalysis{
		Timestamp: time.Now().Format(time.RFC3339),
		DumpFile:  filepath.Join(dir, "crash.dmp"),
		Report:    testReport("ntdll!Foo"),
	}

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			filename, err := saveAnalysis(analysis, dir, format)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(filepath.Base(filename), "minidump_analysis_crash_"))
			assert.Equal(t, "."+format, filepath.Ext(filename))

			data, err := os.ReadFile(filename)
			require.NoError(t, err)
			assert.Contains(t, string(data), "ntdll!Foo")
		})
	}

	_, err := saveAnalysis(analysis, filepath.Join(dir, "missing"), "json")
	assert.ErrorContains(t, err, "failed to write analysis file")
}

func TestCompareDumps(t *testing.T) {
	stackA := []string{"asan_rtl!OnError", "chrome_dll!Foo", "chrome_dll!Bar", "chrome_dll!Main"}
	stackB := []string{"asan_rtl!OnError", "chrome_dll!Baz"}
	uaf := NewReport(nil, stackA, nil, []string{"chrome_dll!Free"})

	analyses := []DumpAnalysis{
		{Timestamp: "2024-01-02T10:00:00Z", DumpFile: "a1.dmp", Report: testReport(stackA...)},
		{Timestamp: "2024-01-01T10:00:00Z", DumpFile: "b1.dmp", Report: testReport(stackB...)},
		{Timestamp: "2024-01-03T10:00:00Z", DumpFile: "a2.dmp", Report: uaf},
		{Timestamp: "2024-01-02T12:00:00Z", DumpFile: "c.dmp", FrameNotFound: "Unable to find"},
	}

	comparison := compareDumps(analyses)
	assert.Equal(t, 4, comparison.TotalDumps)
	assert.Equal(t, 1, comparison.Unsymbolized)
	assert.Equal(t, "2024-01-01T10:00:00Z", comparison.TimeRange["first"])
	assert.Equal(t, "2024-01-03T10:00:00Z", comparison.TimeRange["last"])
	assert.Equal(t, 3, comparison.CommonFunctions["asan_rtl!OnError"])

	require.Len(t, comparison.CrashPatterns, 1)
	pattern := comparison.CrashPatterns[0]
	assert.Equal(t, stackA[:3], pattern.StackSignature)
	assert.Equal(t, 2, pattern.OccurrenceCount)
	assert.True(t, pattern.UseAfterFree)
	assert.Equal(t, []string{"a1.dmp", "a2.dmp"}, pattern.AffectedDumpFiles)

	var buf bytes.Buffer
	printComparison(&buf, comparison)
	assert.Contains(t, buf.String(), "Dumps analyzed: 4 (1 without error info frame)")
	assert.Contains(t, buf.String(), "use after free")
	assert.Contains(t, buf.String(), "asan_rtl!OnError <- chrome_dll!Foo <- chrome_dll!Bar")
}

func TestCompareDumpsOperatorFrames(t *testing.T) {
	pipeStack := []string{"chrome_dll!base::operator|+0x12", "ntdll!Foo"}
	analyses := []DumpAnalysis{
		{DumpFile: "a.dmp", Report: testReport(pipeStack...)},
		{DumpFile: "b.dmp", Report: testReport(pipeStack...)},
		// Distinct stacks that read the same when joined with "|".
		{DumpFile: "c.dmp", Report: testReport("a!x|b", "c!y")},
		{DumpFile: "d.dmp", Report: testReport("a!x", "b|c!y")},
	}

	comparison := compareDumps(analyses)
	require.Len(t, comparison.CrashPatterns, 1)
	assert.Equal(t, pipeStack, comparison.CrashPatterns[0].StackSignature)
	assert.Equal(t, []string{"a.dmp", "b.dmp"}, comparison.CrashPatterns[0].AffectedDumpFiles)
}
