package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/mmap"

	"github.com/dd0wney/cluso-graphmetrics/pkg/config"
	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/gateway"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
	"github.com/dd0wney/cluso-graphmetrics/pkg/validation"
)

type computeOptions struct {
	output     string
	outFile    string
	noWeights  bool
	resolution float64
}

func newComputeCmd(g *globalOptions) *cobra.Command {
	opts := &computeOptions{}

	cmd := &cobra.Command{
		Use:   "compute [request.json | -]",
		Short: "Compute metrics for one request file",
		Long: `Compute metrics for a JSON request read from a file, or from stdin when the
argument is "-" or missing. The request has the same shape as the body of
POST /api/v1/metrics.`,
		Example: `  graphmetrics compute graph.json
  graphmetrics compute --runner remote --transport nats graph.json
  cat graph.json | graphmetrics compute -o json > result.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd.Flags())
			if err != nil {
				return err
			}
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			req, err := readRequest(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if opts.noWeights {
				req.UseWeights = false
			}
			if cmd.Flags().Changed("resolution") {
				req.LouvainResolution = opts.resolution
			}
			return runCompute(cmd, cfg, req, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	f.StringVar(&opts.outFile, "out", "", "also write the JSON result to this file")
	f.BoolVar(&opts.noWeights, "no-weights", false, "treat every link as weight 1")
	f.Float64Var(&opts.resolution, "resolution", 1.0, "Louvain resolution")
	f.String("runner", "", "where the computation runs: inprocess, pool or remote")
	f.Duration("timeout", 0, "computation timeout, 0 for none")
	f.String("transport", "", "remote runner transport: mangos, nats, http or zmq")
	f.String("transport-addr", "", "mangos or zmq worker address")
	f.String("nats-url", "", "NATS server URL")
	f.String("subject", "", "NATS subject prefix")
	return cmd
}

// readRequest decodes a request from path, or from stdin for "-". Files are
// memory mapped.
func readRequest(path string, stdin io.Reader) (engine.Request, error) {
	var data []byte
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return engine.Request{}, fmt.Errorf("read stdin: %w", err)
		}
		data = b
	} else {
		r, err := mmap.Open(path)
		if err != nil {
			return engine.Request{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer r.Close()

		data = make([]byte, r.Len())
		if _, err := r.ReadAt(data, 0); err != nil && err != io.EOF {
			return engine.Request{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	req := engine.NewRequest()
	if err := json.Unmarshal(data, &req); err != nil {
		return engine.Request{}, fmt.Errorf("decode request %s: %w", path, err)
	}
	return req, nil
}

func runCompute(cmd *cobra.Command, cfg *config.Config, req engine.Request, opts *computeOptions) error {
	if opts.output != "table" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	logger := newLogger(cfg.Log)
	reg := metrics.NewRegistry()

	runner, _, cleanup, err := newRunner(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup.close(); err != nil {
			logger.Warn("runner cleanup", logging.Error(err))
		}
	}()

	gw := gateway.New(runner,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithLimits(validation.Limits{MaxNodes: cfg.Gateway.MaxNodes, MaxLinks: cfg.Gateway.MaxLinks}),
		gateway.WithLogger(logger),
	)
	defer gw.Close()

	start := time.Now()
	result, err := gw.Compute(cmd.Context(), req)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if opts.outFile != "" {
		if err := writeResultFile(opts.outFile, result); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if opts.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err = fmt.Fprintln(out, renderSummary(result, runner.Name(), elapsed))
	return err
}

func writeResultFile(path string, result *engine.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
