package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telnet2/h5runner/internal/build"
	"github.com/telnet2/h5runner/internal/logging"
	"github.com/telnet2/h5runner/internal/merge"
)

var (
	devDir  string
	devPort int
	devHost string
	devOpen bool
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Start the development server",
	Long: `Compile the project with the development profile, serve the output and
recompile on every source change. Connected pages reload after each
successful compilation.`,
	RunE: runDev,
}

func init() {
	devCmd.Flags().StringVar(&devDir, "dir", "", "Project directory")
	devCmd.Flags().IntVarP(&devPort, "port", "p", 0, "Port to listen on")
	devCmd.Flags().StringVar(&devHost, "host", "", "Host to listen on")
	devCmd.Flags().BoolVar(&devOpen, "open", false, "Open the browser once the server listens")
}

func runDev(cmd *cobra.Command, args []string) error {
	overrides := merge.Layer{}
	if cmd.Flags().Changed("port") {
		overrides["port"] = devPort
	}
	if cmd.Flags().Changed("host") {
		overrides["host"] = devHost
	}
	if cmd.Flags().Changed("open") {
		overrides["open"] = devOpen
	}
	return serve(cmd, devDir, overrides)
}

// serve runs the development loop until interrupted.
func serve(cmd *cobra.Command, dir string, overrides merge.Layer) error {
	reporter := newReporter()
	cfg, err := loadConfig(dir, string(build.ModeDevelopment), reporter)
	if err != nil {
		return err
	}
	cfg.IsWatch = true
	if len(overrides) > 0 {
		devServer, err := merge.Merge(cfg.DevServer, overrides)
		if err != nil {
			return err
		}
		cfg.DevServer = devServer
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := newRunner(reporter).Build(ctx, cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	logging.Info().Msg("shutting down dev server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return res.Server.Close(shutdownCtx)
}
