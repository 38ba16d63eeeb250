package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/telnet2/h5runner/internal/build"
	"github.com/telnet2/h5runner/internal/config"
)

var (
	inspectDir  string
	inspectMode string
	inspectDiff bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the finalized configuration",
	Long: `Print the configuration handed to the compiler as JSON, without
compiling. With --diff, print how the development configuration differs
from the production one.`,
	RunE: runInspect,
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show system paths",
	RunE:  runPaths,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDir, "dir", "", "Project directory")
	inspectCmd.Flags().StringVar(&inspectMode, "mode", string(build.ModeProduction), "Profile to inspect (production|development)")
	inspectCmd.Flags().BoolVar(&inspectDiff, "diff", false, "Diff the production and development configurations")
}

func runInspect(cmd *cobra.Command, args []string) error {
	reporter := newReporter()
	runner := newRunner(reporter)
	out := cmd.OutOrStdout()

	if inspectDiff {
		prodCfg, err := loadConfig(inspectDir, string(build.ModeProduction), reporter)
		if err != nil {
			return err
		}
		devCfg, err := loadConfig(inspectDir, string(build.ModeDevelopment), reporter)
		if err != nil {
			return err
		}
		devCfg.IsWatch = true

		prod, err := runner.Configure(prodCfg)
		if err != nil {
			return err
		}
		dev, err := runner.Configure(devCfg)
		if err != nil {
			return err
		}
		lines, err := build.Diff(prod, dev)
		if err != nil {
			return err
		}

		del, ins := color.New(color.FgRed), color.New(color.FgGreen)
		if noColor {
			del.DisableColor()
			ins.DisableColor()
		}
		for _, l := range lines {
			switch l.Op {
			case build.DiffDelete:
				del.Fprintf(out, "- %s\n", l.Text)
			case build.DiffInsert:
				ins.Fprintf(out, "+ %s\n", l.Text)
			default:
				fmt.Fprintf(out, "  %s\n", l.Text)
			}
		}
		return nil
	}

	var mode build.Mode
	switch build.Mode(inspectMode) {
	case build.ModeProduction, build.ModeDevelopment:
		mode = build.Mode(inspectMode)
	default:
		return fmt.Errorf("unknown mode %q (want production or development)", inspectMode)
	}

	cfg, err := loadConfig(inspectDir, string(mode), reporter)
	if err != nil {
		return err
	}
	cfg.IsWatch = mode == build.ModeDevelopment

	final, err := runner.Configure(cfg)
	if err != nil {
		return err
	}
	data, err := build.Marshal(final)
	if err != nil {
		return err
	}
	fmt.Fprint(out, data)
	return nil
}

func runPaths(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "h5runner System Paths:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Config:   %s\n", paths.Config)
	fmt.Fprintf(out, "  Cache:    %s\n", paths.Cache)
	fmt.Fprintf(out, "  State:    %s\n", paths.State)
	fmt.Fprintf(out, "  Configs:  %s\n", paths.CompilerCacheDir())
	fmt.Fprintf(out, "  Logs:     %s\n", paths.LogDir())
	fmt.Fprintf(out, "  Global:   %s\n", config.GlobalConfigPath())
	return nil
}
