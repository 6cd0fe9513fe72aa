package cli

import (
	"io"

	"github.com/rs/zerolog"

	errs "github.com/jtang613/pdbident/internal/errors"
	"github.com/jtang613/pdbident/internal/identity"
	"github.com/jtang613/pdbident/internal/report"
	"github.com/jtang613/pdbident/pkg/pdb/provider"
)

// Options selects the store to open and how to validate it.
type Options struct {
	Provider string
	File     string
	Hint     identity.Hint
}

// App runs one bootstrap, validate, report, teardown cycle.
type App struct {
	registry *provider.Registry
	stdout   io.Writer
	logger   zerolog.Logger
}

// NewApp returns an app bootstrapping providers from registry and writing
// the report to stdout.
func NewApp(registry *provider.Registry, stdout io.Writer, logger zerolog.Logger) *App {
	return &App{registry: registry, stdout: stdout, logger: logger}
}

// Run validates opts.File and writes its identity header. The terminator is
// written by the provider teardown, so a failed run writes nothing at all.
func (a *App) Run(opts Options) (err error) {
	sub, err := a.registry.Bootstrap(opts.Provider)
	if err != nil {
		return err
	}
	a.logger.Debug().Str("provider", sub.Name()).Msg("provider bootstrapped")

	rep := report.NewWriter(a.stdout)
	sub.OnTeardown(rep.Close)
	defer func() {
		if err != nil {
			errs.DeferRelease(a.logger, sub.Teardown, "provider teardown failed")
			return
		}
		err = sub.Teardown()
	}()

	res, err := identity.New(a.logger).Validate(sub.Source(), opts.File, opts.Hint)
	if err != nil {
		return err
	}

	return rep.Open(opts.File, res.Record)
}
