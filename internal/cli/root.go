// Package cli defines the cobra command tree for realtorctl.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/app"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/config"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

// Opener connects to the listing backend. The returned func releases it.
type Opener func(ctx context.Context) (services.PropertyService, func(), error)

type options struct {
	format   string
	logLevel string
	open     Opener
}

// NewRootCmd creates the root command wired to the configured backends.
func NewRootCmd() *cobra.Command {
	o := &options{}
	o.open = o.openConfigured
	return newRootCmd(o)
}

// NewRootCmdWithOpener creates the root command on a caller-provided backend.
func NewRootCmdWithOpener(open Opener) *cobra.Command {
	return newRootCmd(&options{open: open})
}

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "realtorctl",
		Short:         "Operate the realtor listings back end",
		Long:          "Inspect listings, follow the live property query and run data migrations against the configured document store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&o.format, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newPropertiesCmd(o),
		newMigrateCmd(o),
	)
	return root
}

// openConfigured loads configuration the same way the server does.
func (o *options) openConfigured(ctx context.Context) (services.PropertyService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewConsole(os.Stderr, o.logLevel)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if err := a.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing backends: %v\n", err)
		}
	}
	return a.Properties, closeFn, nil
}

func (o *options) isJSON() bool {
	return o.format == "json"
}
