// Command catalogsync runs the vendor catalog pipeline from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"catalogsync/internal/config"
	"catalogsync/internal/logger"
	"catalogsync/internal/pipeline"

	"github.com/spf13/cobra"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// app is shared by the subcommands once the root has loaded config.
type app struct {
	cfg        *config.Config
	logger     *logger.Logger
	components *pipeline.Components
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if a.components != nil {
		a.components.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
	if err == nil {
		return exitOK
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, context.Canceled) {
		return exitCancelled
	}
	return exitUsage
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogsync",
		Short:         "Sync a vendor CSV catalog into a Shopify store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return withCode(exitUsage, err)
			}
			a.cfg = cfg
			a.logger = logger.New(cfg.LogLevel)

			components, err := pipeline.Open(cfg, a.logger, false)
			if err != nil {
				return withCode(exitFailure, err)
			}
			a.components = components
			return nil
		},
	}

	root.AddCommand(newSyncCmd(a), newSplitCmd(a), newProbeCmd(a))
	return root
}

// runError maps a pipeline error to the process exit code.
func runError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return withCode(exitCancelled, err)
	}
	return withCode(exitFailure, err)
}
