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

// File: root.go
// Package: cmd
//
// Description:
// This file contains the entry point and base configuration for the `asantoolbox` CLI.
// It defines the root command (`rootCmd`) that acts as the main command for the
// application and manages subcommands like `minidump` and `sysinfo`. The root
// command also sets up logging and layered configuration for every subcommand.
//
// Features:
// - Serves as the primary entry point for the `asantoolbox` CLI application.
// - Defines global flags (`--config`, `--log-level`).
// - Resolves every flag from the command line, `ASANTOOLBOX_*` environment
//   variables or a YAML config file, in that order of precedence.
//
// Usage:
// - Run the `asantoolbox` command without any arguments to see the help message:
//   `./asantoolbox`
// - Symbolize a minidump:
//   `./asantoolbox minidump crash.dmp --pdb-path C:\symbols`
//
// Authors:
// - Cloudberry Open Source Contributors

package cmd

import (
    "fmt"
    "os"
    "strings"

    "github.com/sirupsen/logrus"
    "github.com/spf13/cobra"
    "github.com/spf13/viper"
)

var (
    cfgFile string

    // logger is shared by every subcommand; output goes to stderr so that
    // reports on stdout stay clean.
    logger = logrus.New()

    // config holds the resolved settings of the running command.
    config = viper.New()
)

// rootCmd represents the base command when called without any subcommands.
// This command provides a help message and serves as the entry point for
// executing subcommands within the `asantoolbox` CLI.
var rootCmd = &cobra.Command{
    Use:   "asantoolbox",
    Short: "A toolbox for SyzyASan crash diagnostics",
    Long: `The asantoolbox CLI automates the analysis of crashes reported by
SyzyASan instrumented binaries. It drives cdb.exe over a minidump and
extracts the bad access information together with the crash, allocation
and free stacks.

Examples:
  - Display help for the root command:
    ./asantoolbox --help

  - Symbolize a minidump:
    ./asantoolbox minidump crash.dmp --pdb-path C:\symbols`,
    SilenceUsage: true,
    PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
        v, err := initConfig(cmd)
        if err != nil {
            return err
        }
        config = v
        return setupLogging(v.GetString("log-level"))
    },
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This function is called by main.main() to start the application.
func Execute() {
    err := rootCmd.Execute()
    if err != nil {
        os.Exit(1)
    }
}

// initConfig builds the configuration of cmd. Flags set on the command line
// win over ASANTOOLBOX_* environment variables, which win over the config file.
func initConfig(cmd *cobra.Command) (*viper.Viper, error) {
    v := viper.New()
    v.SetEnvPrefix("ASANTOOLBOX")
    v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
    v.AutomaticEnv()

    if cfgFile != "" {
        v.SetConfigFile(cfgFile)
        if err := v.ReadInConfig(); err != nil {
            return nil, fmt.Errorf("failed to read config file: %w", err)
        }
    }

    if err := v.BindPFlags(cmd.Flags()); err != nil {
        return nil, fmt.Errorf("failed to bind flags: %w", err)
    }
    return v, nil
}

// setupLogging configures the shared logger.
func setupLogging(level string) error {
    lvl, err := logrus.ParseLevel(level)
    if err != nil {
        return fmt.Errorf("invalid log level: %w", err)
    }
    logger.SetLevel(lvl)
    logger.SetOutput(os.Stderr)
    logger.SetFormatter(&logrus.TextFormatter{
        DisableTimestamp: lvl < logrus.DebugLevel,
        FullTimestamp:    true,
    })
    return nil
}

// init initializes the root command by defining global flags and configurations.
// Subcommands such as `minidump` are added to the root command in their own files.
func init() {
    rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
    rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn or error")
}
