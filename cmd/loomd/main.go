// Package main provides the loomd binary entry point.
//
// loomd is a stand-in for an instrumented program: it owns an in-memory
// fix set and exposes it on the control port, so operator tooling and
// scripts can be exercised without a patched binary.
//
// Usage:
//
//	loomd [flags]
//
// Flags:
//
//	--host        Listen address (default: from config, 127.0.0.1)
//	--port        Control port (default: from config, 1221)
//	--identity    Reply to get_name (default: "<executable path> 0")
//	--config      Directory containing .loom/config.yaml (default: .)
//	--log-level   debug, info, warn or error (default: info)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/thruflo/loom/internal/config"
	"github.com/thruflo/loom/internal/control"
	"github.com/thruflo/loom/internal/fixes"
	"github.com/thruflo/loom/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	host      string
	port      int
	identity  string
	configDir string
	logLevel  string

	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	flagSet := pflag.NewFlagSet("loomd", pflag.ContinueOnError)
	flagSet.StringVar(&opts.host, "host", config.DefaultControlHost, "listen address")
	flagSet.IntVar(&opts.port, "port", config.DefaultControlPort, "control port (0 picks a free port)")
	flagSet.StringVar(&opts.identity, "identity", "", `reply to get_name (default "<executable path> 0")`)
	flagSet.StringVar(&opts.configDir, "config", ".", "directory containing .loom/config.yaml")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	flagSet.Visit(func(f *pflag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// resolve merges the config file and environment under the explicit flags.
func (o *options) resolve() (config.Control, logging.Level, error) {
	cfg, err := config.LoadConfig(o.configDir)
	if err != nil {
		return config.Control{}, 0, err
	}
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		return config.Control{}, 0, err
	}

	ctl := cfg.Control
	if o.set["host"] {
		ctl.Host = o.host
	}
	if o.set["port"] {
		ctl.Port = o.port
	}
	if o.set["identity"] {
		ctl.Identity = o.identity
	}
	if err := config.ValidateControl(&ctl); err != nil {
		return config.Control{}, 0, err
	}

	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return config.Control{}, 0, err
	}
	return ctl, level, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	ctl, level, err := opts.resolve()
	if err != nil {
		return err
	}
	logging.SetLevel(level)
	logger := logging.Default().WithComponent("loomd")

	set := fixes.NewSet(&loggingApplier{logger: logger})
	srv := control.NewServer(control.ServerOptions{
		Host:    ctl.Host,
		Port:    ctl.Port,
		Handler: control.NewFixHandler(ctl.Identity, set),
	})
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down", "fixes", set.Len())
		return srv.Stop()
	})
	return g.Wait()
}

// loggingApplier records fix changes. loomd has no code to patch, so every
// change is accepted.
type loggingApplier struct {
	logger *logging.Logger
}

func (a *loggingApplier) Apply(fix fixes.Fix) error {
	a.logger.Info("fix applied", "id", fix.ID, "extension", fix.Extension)
	return nil
}

func (a *loggingApplier) Revert(fix fixes.Fix) error {
	a.logger.Info("fix reverted", "id", fix.ID, "extension", fix.Extension)
	return nil
}
