// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// File: cmd/minidump_types.go
// Purpose: Provides type definitions used for SyzyASan minidump analysis.
// Includes the saved per-dump analysis record and the cross-dump comparison
// produced by the --compare flag.

package cmd

// DumpAnalysis represents the complete analysis results for a minidump.
// Exactly one of Report and FrameNotFound is set.
type DumpAnalysis struct {
    Timestamp     string   `json:"timestamp" yaml:"timestamp"`
    DumpFile      string   `json:"dump_file" yaml:"dump_file"`
    FileInfo      FileInfo `json:"file_info" yaml:"file_info"`
    SymbolPath    string   `json:"symbol_path,omitempty" yaml:"symbol_path,omitempty"`
    Report        *Report  `json:"report,omitempty" yaml:"report,omitempty"`
    FrameNotFound string   `json:"frame_not_found,omitempty" yaml:"frame_not_found,omitempty"`
}

// FileInfo contains metadata about the dump file.
type FileInfo struct {
    Size    int64  `json:"size" yaml:"size"`
    Created string `json:"created" yaml:"created"`
}

// CrashPattern represents a crash stack prefix shared by several dumps.
type CrashPattern struct {
    StackSignature    []string `json:"stack_signature" yaml:"stack_signature"`
    UseAfterFree      bool     `json:"use_after_free" yaml:"use_after_free"`
    OccurrenceCount   int      `json:"occurrence_count" yaml:"occurrence_count"`
    AffectedDumpFiles []string `json:"dump_files" yaml:"dump_files"`
}

// DumpComparison represents the comparison results between multiple dumps.
type DumpComparison struct {
    TotalDumps      int               `json:"total_dumps" yaml:"total_dumps"`
    Unsymbolized    int               `json:"unsymbolized" yaml:"unsymbolized"`
    CommonFunctions map[string]int    `json:"function_distribution" yaml:"function_distribution"`
    CrashPatterns   []CrashPattern    `json:"crash_patterns" yaml:"crash_patterns"`
    TimeRange       map[string]string `json:"time_range" yaml:"time_range"`
}
