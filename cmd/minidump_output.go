// File: cmd/minidump_output.go

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// signatureDepth is the number of crash stack frames that identify a crash.
const signatureDepth = 3

// marshalOutput encodes v in the requested format ("json" or "yaml").
func marshalOutput(v interface{}, format string) ([]byte, error) {
	if format == "json" {
		return json.MarshalIndent(v, "", "  ")
	}
	return yaml.Marshal(v)
}

// saveAnalysis saves analysis results to a file in dir and returns its path.
func saveAnalysis(analysis DumpAnalysis, dir, format string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	base := strings.TrimSuffix(filepath.Base(analysis.DumpFile), filepath.Ext(analysis.DumpFile))
	filename := filepath.Join(dir, fmt.Sprintf("minidump_analysis_%s_%s.%s", base, timestamp, format))

	data, err := marshalOutput(analysis, format)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write analysis file: %w", err)
	}
	return filename, nil
}

// saveComparison saves comparison results to a file in dir and returns its path.
func saveComparison(comparison DumpComparison, dir, format string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("minidump_comparison_%s.%s", timestamp, format))

	data, err := marshalOutput(comparison, format)
	if err != nil {
		return "", fmt.Errorf("failed to marshal comparison: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write comparison file: %w", err)
	}
	return filename, nil
}

// compareDumps groups symbolized dumps by the top of their crash stack to
// surface crashes that recur across dumps.
func compareDumps(analyses []DumpAnalysis) DumpComparison {
	comparison := DumpComparison{
		TotalDumps:      len(analyses),
		CommonFunctions: make(map[string]int),
		TimeRange:       make(map[string]string),
	}

	// Track time range
	var firstTime, lastTime time.Time
	for i, analysis := range analyses {
		t, _ := time.Parse(time.RFC3339, analysis.Timestamp)
		if i == 0 || t.Before(firstTime) {
			firstTime = t
		}
		if i == 0 || t.After(lastTime) {
			lastTime = t
		}
	}
	if len(analyses) > 0 {
		comparison.TimeRange["first"] = firstTime.Format(time.RFC3339)
		comparison.TimeRange["last"] = lastTime.Format(time.RFC3339)
	}

	crashGroups := make(map[string][]DumpAnalysis)
	frames := make(map[string][]string)
	var signatures []string
	for _, analysis := range analyses {
		if analysis.Report == nil {
			comparison.Unsymbolized++
			continue
		}
		stack := analysis.Report.CrashStack()
		for _, frame := range stack {
			comparison.CommonFunctions[frame]++
		}
		prefix, signature := stackSignature(stack, signatureDepth)
		if _, ok := crashGroups[signature]; !ok {
			signatures = append(signatures, signature)
			frames[signature] = prefix
		}
		crashGroups[signature] = append(crashGroups[signature], analysis)
	}

	for _, signature := range signatures {
		group := crashGroups[signature]
		if len(group) < 2 {
			continue
		}
		pattern := CrashPattern{
			StackSignature:  frames[signature],
			OccurrenceCount: len(group),
		}
		for _, analysis := range group {
			pattern.AffectedDumpFiles = append(pattern.AffectedDumpFiles, analysis.DumpFile)
			if analysis.Report.IsUseAfterFree() {
				pattern.UseAfterFree = true
			}
		}
		comparison.CrashPatterns = append(comparison.CrashPatterns, pattern)
	}

	// Sort patterns by occurrence count
	sort.SliceStable(comparison.CrashPatterns, func(i, j int) bool {
		return comparison.CrashPatterns[i].OccurrenceCount > comparison.CrashPatterns[j].OccurrenceCount
	})

	return comparison
}
