// Package commands provides the CLI commands for h5runner.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telnet2/h5runner/internal/config"
	"github.com/telnet2/h5runner/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	logFile   bool
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "h5runner",
	Short: "h5runner - build and serve H5 applications",
	Long: `h5runner assembles the bundler configuration of an H5 project and
drives either a one-shot production build or a watch-and-serve
development loop.

Run 'h5runner build' for a production build, or 'h5runner dev'
to start the development server.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Also write logs to a file in the state directory")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("h5runner %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(pathsCmd)
}

// Execute runs the root command.
func Execute() error {
	defer logging.Close()
	return rootCmd.Execute()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(logLevel)
	cfg.Output = io.Discard
	if printLogs {
		cfg.Output = os.Stderr
		cfg.Pretty = true
	}
	if logFile {
		cfg.LogToFile = true
		cfg.LogDir = config.GetPaths().LogDir()
	}
	logging.Init(cfg)
	return nil
}

// GetWorkDir returns the project directory from flag, or the project root
// enclosing the current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return config.FindRoot(wd)
}
