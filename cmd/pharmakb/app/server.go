// Package app wires the pharmakb command.
package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pharmakb/pharmakb/cmd/pharmakb/app/options"
	"github.com/pharmakb/pharmakb/internal/pharmakb"
	"github.com/pharmakb/pharmakb/pkg/app"
)

// NewApp creates the pharmakb application.
func NewApp() *app.App {
	opts := options.NewOptions()

	return app.NewApp(
		app.WithName(pharmakb.Name),
		app.WithDescription("Clinical pharmacogenomics knowledge service: ingests CPIC guideline PDFs and answers dosing questions grounded in the indexed passages."),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return run(opts)
		}),
	)
}

// run builds the server and blocks until a termination signal.
func run(opts *options.Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := opts.Config().NewServer(ctx)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
