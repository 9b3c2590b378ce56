package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dd0wney/cluso-graphmetrics/pkg/config"
	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

type globalOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "graphmetrics",
		Short: "Graph metrics engine",
		Long: `graphmetrics computes per-node degree statistics, eigenvector centrality,
a Louvain community partition with its modularity, and community boundary
flags for every link of a weighted directed graph.`,
		Version:      version,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: json or text")

	root.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newComputeCmd(opts),
		newCertCmd(),
		newVersionCmd(),
	)
	return root
}

// flagOverrides maps command line flags onto configuration fields. A flag only
// overrides the file and environment when it was set explicitly.
var flagOverrides = map[string]func(c *config.Config, v string) error{
	"log-level":      func(c *config.Config, v string) error { c.Log.Level = v; return nil },
	"log-format":     func(c *config.Config, v string) error { c.Log.Format = v; return nil },
	"addr":           func(c *config.Config, v string) error { c.Server.Addr = v; return nil },
	"runner":         func(c *config.Config, v string) error { c.Gateway.Runner = v; return nil },
	"policy":         func(c *config.Config, v string) error { c.Gateway.Policy = v; return nil },
	"snapshot":       func(c *config.Config, v string) error { c.Snapshot.Path = v; return nil },
	"transport":      func(c *config.Config, v string) error { c.Transport.Kind = v; return nil },
	"transport-addr": func(c *config.Config, v string) error { c.Transport.Addr = v; return nil },
	"nats-url":       func(c *config.Config, v string) error { c.Transport.NATSURL = v; return nil },
	"subject":        func(c *config.Config, v string) error { c.Transport.Subject = v; return nil },
	"timeout": func(c *config.Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Gateway.Timeout = d
		return nil
	},
	"workers": func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Transport.Workers = n
		return nil
	},
}

// load reads the configuration, applies explicitly set flags and validates the
// result
func (o *globalOptions) load(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	var flagErr error
	flags.Visit(func(f *pflag.Flag) {
		apply, ok := flagOverrides[f.Name]
		if !ok || flagErr != nil {
			return
		}
		if err := apply(cfg, f.Value.String()); err != nil {
			flagErr = fmt.Errorf("--%s: %w", f.Name, err)
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the default
func newLogger(cfg config.LogConfig) *logging.JSONLogger {
	logger := logging.NewLogger(os.Stderr, logging.ParseLevel(cfg.Level), logging.Format(cfg.Format))
	logging.SetDefaultLogger(logger)
	return logger
}

func engineOptions(cfg config.EngineConfig, logger logging.Logger) []engine.Option {
	return []engine.Option{
		engine.WithEigenvector(cfg.MaxIterations, cfg.Tolerance),
		engine.WithMaxPasses(cfg.MaxPasses),
		engine.WithTopK(cfg.TopK),
		engine.WithLogger(logger),
	}
}
