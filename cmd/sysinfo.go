// Description:
// This file is part of the asantoolbox. It implements the `sysinfo` command
// to gather and display the host and debugger environment used to symbolize
// SyzyASan minidumps.
//
// Features:
// - Concurrent data collection.
// - Flexible output formats: YAML and JSON.
// - Host information such as OS, architecture, hostname and CPU count.
// - Debugger information:
//   * cdb.exe path resolution (flag, ASANTOOLBOX_CDB_PATH or config file)
//   * cdb.exe presence and version banner from `cdb -version`
//   * The _NT_SYMBOL_PATH used by cdb when no --pdb-path is given
//
// Usage:
// - Run the `sysinfo` command to check that minidumps can be symbolized.
// - Example: `asantoolbox sysinfo --format=json`
//
// Note:
// - Handles errors gracefully and provides a summary of issues if any occur.
//

package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
)

// symbolPathEnv is the environment variable cdb reads its default symbol path from.
const symbolPathEnv = "_NT_SYMBOL_PATH"

// SysInfo contains host and debugger information collected by the sysinfo command.
type SysInfo struct {
    // OS is the operating system name.
    OS string `json:"os" yaml:"os"`

    // Architecture is the system's CPU architecture.
    Architecture string `json:"architecture" yaml:"architecture"`

    // Hostname is the system's network name.
    Hostname string `json:"hostname" yaml:"hostname"`

    // CPUs is the number of CPU cores available in the system.
    CPUs int `json:"cpus" yaml:"cpus"`

    // CDBPath is the debugger the minidump command would launch.
    CDBPath string `json:"cdb_path" yaml:"cdb_path"`

    // CDBFound reports whether CDBPath exists.
    CDBFound bool `json:"cdb_found" yaml:"cdb_found"`

    // CDBVersion is the first line printed by `cdb -version`.
    // This field is omitted if the debugger could not be run.
    CDBVersion string `json:"cdb_version,omitempty" yaml:"cdb_version,omitempty"`

    // SymbolPath is the value of _NT_SYMBOL_PATH.
    // This field is omitted if the variable is not set.
    SymbolPath string `json:"nt_symbol_path,omitempty" yaml:"nt_symbol_path,omitempty"`
}

// sysinfoCmd represents the sysinfo command that gathers and displays environment information.
// It supports output in either YAML (default) or JSON format via the --format flag.
var sysinfoCmd = &cobra.Command{
    Use:   "sysinfo",
    Short: "Display host and debugger information",
    Long:  `Gather and display the host and debugger environment used to symbolize minidumps.`,
    RunE: func(cmd *cobra.Command, args []string) error {
        return RunSysInfo(cmd, args)
    },
}

// getOS returns the operating system name using runtime information.
func getOS() string {
	return runtime.GOOS
}

// getArchitecture returns the system's CPU architecture using runtime information.
func getArchitecture() string {
	return runtime.GOARCH
}

// getHostname returns the system's network hostname.
// Returns an error if the hostname cannot be retrieved.
func getHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: failed to retrieve hostname: %w", err)
	}
	return hostname, nil
}

// getCPUCount returns the number of CPU cores available to the system
// using runtime information.
func getCPUCount() int {
	return runtime.NumCPU()
}

// getCDBVersion returns the version banner of the debugger at cdbPath.
// Returns an error if:
// - the debugger is not found at cdbPath
// - the debugger fails to run
func getCDBVersion(cdbPath string) (string, error) {
    if _, err := os.Stat(cdbPath); os.IsNotExist(err) {
        return "", fmt.Errorf("cdb: executable not found at %s", cdbPath)
    }

    output, err := cmdExecutor.Execute(cdbPath, "-version")
    if err != nil {
        return "", fmt.Errorf("cdb: failed to execute version check: %w", err)
    }
    for _, line := range strings.Split(string(output), "\n") {
        if line = strings.TrimSpace(line); line != "" {
            return line, nil
        }
    }
    return "", nil
}

// RunSysInfo gathers and displays host and debugger information.
// Host information is collected concurrently with the debugger check.
//
// The output format is taken from the --format flag ("yaml" or "json").
// Any errors encountered during collection are displayed in a summary before
// the output. Returns an error if:
// - The format is invalid
// - Any piece of information could not be collected
func RunSysInfo(cmd *cobra.Command, args []string) error {
    format := config.GetString("format")
    if err := validateFormat(format, "json", "yaml"); err != nil {
        return err
    }

    var wg sync.WaitGroup
    var mu sync.Mutex

    info := SysInfo{
        CDBPath:    config.GetString("cdb-path"),
        SymbolPath: os.Getenv(symbolPathEnv),
    }
    errs := make([]error, 0)

    // Concurrent data collection
    wg.Add(4)
    go func() { defer wg.Done(); info.OS = getOS() }()
    go func() { defer wg.Done(); info.Architecture = getArchitecture() }()
    go func() {
        defer wg.Done()
        hostname, err := getHostname()
        if err != nil {
            mu.Lock()
            errs = append(errs, err)
            mu.Unlock()
            return
        }
        info.Hostname = hostname
    }()
    go func() { defer wg.Done(); info.CPUs = getCPUCount() }()

    version, err := getCDBVersion(info.CDBPath)
    if err != nil {
        mu.Lock()
        errs = append(errs, err)
        mu.Unlock()
    }
    _, statErr := os.Stat(info.CDBPath)
    info.CDBFound = statErr == nil
    info.CDBVersion = version

    wg.Wait()

    out := cmd.OutOrStdout()
    if len(errs) > 0 {
        fmt.Fprintln(out, "\nSummary of errors:")
        for _, err := range errs {
            fmt.Fprintln(out, "-", err)
        }
    }

    output, err := marshalOutput(info, format)
    if err != nil {
        return fmt.Errorf("output: failed to generate: %w", err)
    }
    fmt.Fprintln(out, string(output))

    if len(errs) > 0 {
        return fmt.Errorf("errors occurred during system info collection")
    }
    return nil
}

// init initializes the sysinfo command and its flags.
// Sets up the following:
// - Adds sysinfo command to the root command
// - Initializes the format flag with default value "yaml"
// - Initializes the cdb-path flag shared with the minidump command
func init() {
    sysinfoCmd.Flags().String("format", "yaml", "Output format: yaml or json")
    sysinfoCmd.Flags().String("cdb-path", DefaultCDBPath, "Path to cdb.exe")
    rootCmd.AddCommand(sysinfoCmd)
}
