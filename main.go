package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/selenium-go/testenv/driver"
	"github.com/selenium-go/testenv/envchecks"
	"github.com/selenium-go/testenv/framework"
	"github.com/selenium-go/testenv/testenv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

const shutdownTimeout = time.Second * 5

var errChecksFailed = errors.New("environment checks failed")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var params commandParams
	root := &cobra.Command{
		Use:           "testenv",
		Short:         "Browser test environment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	params.addGlobalFlags(root.PersistentFlags())
	root.AddCommand(newCheckCommand(&params), newEnvCommand(&params), newServeCommand(&params))
	return root
}

func newCheckCommand(params *commandParams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that the configured environment can run browser tests",
		Long: `Runs a short suite of checks against the configured environment: the test pages
are served, a driver session can be created and released, and for the remote
driver the grid reports ready.

Examples:
  # Check the default environment
  testenv check

  # Check only driver sessions, showing debug output for failures
  testenv check --run '^driver' --debug-output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, params)
		},
	}
	fs := cmd.Flags()
	fs.Var(&params.filters.MustMatch, "run", "regex pattern(s) to select checks to run")
	fs.Var(&params.filters.MustNotMatch, "skip", "regex pattern(s) to select checks not to run")
	fs.BoolVar(&params.debugOutput, "debug-output", false, "show debug output for failed checks")
	fs.BoolVar(&params.debugAll, "debug-all", false, "show debug output for all checks")
	return cmd
}

func runCheck(cmd *cobra.Command, params *commandParams) error {
	env, err := params.newEnvironment(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out)
	framework.PrintFilterDescription(out, params.filters)
	fmt.Fprintf(out, "Running environment checks (driver: %s, browser: %s)\n", env.Driver(), env.Browser())

	results := envchecks.Run(env, params.filters.AsFilter, params.testLogger(cmd))
	quitErr := env.Quit()

	fmt.Fprintln(out)
	framework.PrintResults(out, results)
	if quitErr != nil {
		return quitErr
	}
	if !results.OK() {
		return errChecksFailed
	}
	return nil
}

func newEnvCommand(params *commandParams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the browser, driver, and platform tests will run with",
		Long: `Starts the configured driver to read the browser version, then prints the
environment report.

Examples:
  testenv env
  testenv env --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := params.newEnvironment(cmd)
			if err != nil {
				return err
			}
			return errors.Join(env.PrintEnv(cmd.OutOrStdout(), params.format), env.Quit())
		},
	}
	cmd.Flags().StringVarP(&params.format, "format", "o", testenv.FormatTable, "output format (table|yaml)")
	return cmd
}

func newServeCommand(params *commandParams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fixture servers and keep them running",
		Long: `Starts the test page server, and the grid for the remote driver, then waits
for an interrupt. Useful for running browser tests from another process.

Examples:
  testenv serve
  testenv serve --driver remote --metrics-addr localhost:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, params)
		},
	}
	cmd.Flags().StringVar(&params.metricsAddr, "metrics-addr", "", "address to serve driver metrics on (disabled if empty)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, params *commandParams) (err error) {
	env, err := params.newEnvironment(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, env.Quit())
	}()
	out := cmd.OutOrStdout()

	app, err := env.AppServer()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Test pages: %s\n", app.BaseURL())

	if cfg := env.Config(); cfg.Driver == driver.Remote && cfg.RemoteURL == "" {
		grid, err := env.RemoteServer()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "WebDriver: %s\n", grid.WebDriverURL())
	}

	if params.metricsAddr != "" {
		router := chi.NewRouter()
		router.Use(middleware.Recoverer)
		router.Method(http.MethodGet, "/metrics", env.MetricsHandler())
		server := &http.Server{Addr: params.metricsAddr, Handler: router, ReadHeaderTimeout: shutdownTimeout}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "Metrics server error: %s\n", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(out, "Metrics: http://%s/metrics\n", params.metricsAddr)
	}

	fmt.Fprintln(out, "Press Ctrl+C to stop")
	<-ctx.Done()
	fmt.Fprintln(out, "Stopping")
	return nil
}
