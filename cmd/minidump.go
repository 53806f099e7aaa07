// File: cmd/minidump.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// dumpPatterns are the file names searched when a directory is given.
var dumpPatterns = []string{
	"*.dmp",
	"*.mdmp",
	"*.dump",
}

// minidumpOptions are the resolved settings of the minidump command.
type minidumpOptions struct {
	CDBPath       string
	PDBPath       string
	Format        string
	OutputDir     string
	SentinelFrame string
	Marker        string
	Timeout       time.Duration
	MaxDumps      int
	Jobs          int
	Compare       bool
}

func loadMinidumpOptions(v *viper.Viper) minidumpOptions {
	return minidumpOptions{
		CDBPath:       v.GetString("cdb-path"),
		PDBPath:       v.GetString("pdb-path"),
		Format:        v.GetString("format"),
		OutputDir:     v.GetString("output-dir"),
		SentinelFrame: v.GetString("sentinel-frame"),
		Marker:        v.GetString("marker"),
		Timeout:       v.GetDuration("timeout"),
		MaxDumps:      v.GetInt("max-dumps"),
		Jobs:          v.GetInt("jobs"),
		Compare:       v.GetBool("compare"),
	}
}

// minidumpCmd represents the minidump symbolization command
var minidumpCmd = &cobra.Command{
	Use:   "minidump [dump_file_or_directory]",
	Short: "Symbolize SyzyASan minidumps",
	Long: `Symbolize minidumps generated by SyzyASan instrumented binaries.
The dump is opened in cdb.exe, the frame of the SyzyASan runtime error
handler is located, and the bad access information is printed together
with the crash, allocation and free stacks.

It can analyze a single minidump or every minidump in a directory:
  asantoolbox minidump crash.dmp --pdb-path C:\symbols
  asantoolbox minidump C:\crashes --max-dumps=5 --jobs=4 --compare

Stacks are normalized so that stacks from different builds of the same
binary compare equal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("please specify a minidump file or directory")
		}
		return runMinidumpAnalysis(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(minidumpCmd)
	minidumpCmd.Flags().String("cdb-path", DefaultCDBPath, "Path to cdb.exe")
	minidumpCmd.Flags().String("pdb-path", "", "Folder containing the PDBs, overrides the debugger symbol path")
	minidumpCmd.Flags().String("format", "text", "Output format: text, json or yaml")
	minidumpCmd.Flags().String("output-dir", "", "Directory to store json/yaml analysis results (default stdout)")
	minidumpCmd.Flags().String("sentinel-frame", DefaultSentinelFrame, "Frame holding the SyzyASan error info")
	minidumpCmd.Flags().String("marker", DefaultMarker, "Token echoed by the debugger after each command")
	minidumpCmd.Flags().Duration("timeout", 0, "Maximum duration of one debugger session (0 for no limit)")
	minidumpCmd.Flags().Int("max-dumps", 0, "Maximum number of minidumps to analyze")
	minidumpCmd.Flags().Int("jobs", 1, "Number of debugger sessions to run concurrently")
	minidumpCmd.Flags().Bool("compare", false, "Compare minidumps and identify recurring crash stacks")
}

// runMinidumpAnalysis is the main entry point for minidump analysis
func runMinidumpAnalysis(cmd *cobra.Command, path string) error {
	opts := loadMinidumpOptions(config)
	if err := validateFormat(opts.Format, "text", "json", "yaml"); err != nil {
		return err
	}
	if opts.Jobs < 1 {
		return fmt.Errorf("invalid jobs: %d. Must be at least 1", opts.Jobs)
	}

	saving := opts.OutputDir != "" && opts.Format != "text"
	if saving {
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	dumpFiles, err := findDumpFiles(path)
	if err != nil {
		return err
	}

	if len(dumpFiles) == 0 {
		return fmt.Errorf("no minidumps found in %s", path)
	}

	out := cmd.OutOrStdout()
	if opts.MaxDumps > 0 && len(dumpFiles) > opts.MaxDumps {
		fmt.Fprintf(out, "Limiting analysis to %d most recent minidumps\n", opts.MaxDumps)
		dumpFiles = dumpFiles[:opts.MaxDumps]
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]*DumpAnalysis, len(dumpFiles))
	var g errgroup.Group
	g.SetLimit(opts.Jobs)
	for i, dumpFile := range dumpFiles {
		g.Go(func() error {
			analysis, err := analyzeDump(ctx, dumpFile, opts)
			if err != nil {
				logger.WithField("dump", dumpFile).Errorf("analysis failed: %v", err)
				return nil
			}
			results[i] = &analysis
			return nil
		})
	}
	g.Wait()

	var analyses []DumpAnalysis
	for _, analysis := range results {
		if analysis != nil {
			analyses = append(analyses, *analysis)
		}
	}
	if len(analyses) == 0 {
		return fmt.Errorf("no minidumps were analyzed successfully")
	}

	for i, analysis := range analyses {
		switch {
		case opts.Format == "text":
			if i > 0 {
				fmt.Fprintln(out)
			}
			printAnalysis(out, analysis, len(dumpFiles) > 1)
		case saving:
			filename, err := saveAnalysis(analysis, opts.OutputDir, opts.Format)
			if err != nil {
				logger.WithField("dump", analysis.DumpFile).Errorf("failed to save analysis: %v", err)
				continue
			}
			fmt.Fprintf(out, "Analysis saved to: %s\n", filename)
		default:
			data, err := marshalOutput(analysis, opts.Format)
			if err != nil {
				return fmt.Errorf("failed to marshal analysis: %w", err)
			}
			fmt.Fprintln(out, string(data))
		}
	}

	// Compare dumps if requested
	if opts.Compare && len(analyses) > 1 {
		comparison := compareDumps(analyses)
		switch {
		case opts.Format == "text":
			fmt.Fprintln(out)
			printComparison(out, comparison)
		case saving:
			filename, err := saveComparison(comparison, opts.OutputDir, opts.Format)
			if err != nil {
				logger.Errorf("failed to save comparison results: %v", err)
				break
			}
			fmt.Fprintf(out, "Comparison results saved to: %s\n", filename)
		default:
			data, err := marshalOutput(comparison, opts.Format)
			if err != nil {
				return fmt.Errorf("failed to marshal comparison: %w", err)
			}
			fmt.Fprintln(out, string(data))
		}
	}

	return nil
}

// analyzeDump runs one debugger session over dumpPath. A dump whose error
// info frame cannot be located is not an error: the returned analysis carries
// the diagnostic instead of a report.
func analyzeDump(ctx context.Context, dumpPath string, opts minidumpOptions) (DumpAnalysis, error) {
	dumpPath, err := filepath.Abs(dumpPath)
	if err != nil {
		return DumpAnalysis{}, fmt.Errorf("failed to resolve dump path: %w", err)
	}
	analysis := DumpAnalysis{
		Timestamp:  time.Now().Format(time.RFC3339),
		DumpFile:   dumpPath,
		SymbolPath: opts.PDBPath,
	}

	fileInfo, err := os.Stat(dumpPath)
	if err != nil {
		return analysis, err
	}
	analysis.FileInfo = FileInfo{
		Size:    fileInfo.Size(),
		Created: fileInfo.ModTime().Format(time.RFC3339),
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	dbg, err := StartCDB(cmdExecutor, opts.CDBPath, dumpPath, opts.Marker)
	if err != nil {
		return analysis, fmt.Errorf("failed to start debugger: %w", err)
	}

	report, err := NewAnalyzer(dbg, AnalyzerConfig{
		DumpPath:      dumpPath,
		SymbolPath:    opts.PDBPath,
		SentinelFrame: opts.SentinelFrame,
		Logger:        logger.WithField("cdb", opts.CDBPath),
	}).Run(ctx)

	var notFound *FrameNotFoundError
	switch {
	case errors.As(err, &notFound):
		analysis.FrameNotFound = notFound.Error()
		return analysis, nil
	case err != nil:
		return analysis, err
	}
	analysis.Report = report
	return analysis, nil
}

// findDumpFiles locates minidumps in the specified path, newest first
func findDumpFiles(path string) ([]string, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !fileInfo.IsDir() {
		return []string{path}, nil
	}

	seen := make(map[string]bool)
	modTimes := make(map[string]time.Time)
	var dumpFiles []string
	for _, pattern := range dumpPatterns {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			continue
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() || seen[match] {
				continue
			}
			seen[match] = true
			modTimes[match] = info.ModTime()
			dumpFiles = append(dumpFiles, match)
		}
	}

	sort.SliceStable(dumpFiles, func(i, j int) bool {
		return modTimes[dumpFiles[i]].After(modTimes[dumpFiles[j]])
	})
	return dumpFiles, nil
}
