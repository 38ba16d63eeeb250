package commands

import (
	"github.com/spf13/cobra"

	"github.com/telnet2/h5runner/internal/build"
	"github.com/telnet2/h5runner/internal/config"
	"github.com/telnet2/h5runner/internal/logging"
	"github.com/telnet2/h5runner/pkg/types"
)

var (
	buildWatch bool
	buildDir   string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the project for production",
	Long: `Compile the project once with the production profile: extracted
stylesheets, minified output and no source maps.

With --watch the development loop is started instead, as by 'h5runner dev'.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "Watch and serve instead of building once")
	buildCmd.Flags().StringVar(&buildDir, "dir", "", "Project directory")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildWatch {
		return serve(cmd, buildDir, nil)
	}

	reporter := newReporter()
	cfg, err := loadConfig(buildDir, string(build.ModeProduction), reporter)
	if err != nil {
		return err
	}

	runner := newRunner(reporter)
	_, err = runner.Build(cmd.Context(), cfg)
	return err
}

func newReporter() *logging.Reporter {
	return logging.NewReporter(nil, logging.WithNoColor(noColor))
}

func newRunner(reporter *logging.Reporter) *build.Runner {
	return build.NewRunner(
		build.WithReporter(reporter),
		build.WithCacheDir(config.GetPaths().CompilerCacheDir()),
	)
}

// loadConfig loads the project configuration, reporting ignored options.
func loadConfig(dir, mode string, reporter *logging.Reporter) (*types.BuildConfig, error) {
	workDir, err := GetWorkDir(dir)
	if err != nil {
		return nil, err
	}
	loaded, err := config.Load(workDir, mode)
	if err != nil {
		return nil, err
	}
	for _, w := range loaded.Warnings {
		reporter.Notice("config", w)
	}
	logging.Debug().Strs("files", loaded.Files).Str("mode", mode).Msg("configuration loaded")
	return loaded.Config, nil
}
