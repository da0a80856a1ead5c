package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
	vybiumpep "github.com/vybium/vybium-pep/pkg/vybium-pep"
)

// runOptions are the inputs of the run command
type runOptions struct {
	configPath   string
	scenarioPath string
	logLevel     string
	storePath    string
	params       []string
	proof        bool
	threshold    float64
	metricsAddr  string
	logger       *vybiumpep.Logger
}

// runRequest is a fully resolved run
type runRequest struct {
	method string
	params vybiumpep.Params
	config *vybiumpep.Config
}

func runMethod(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return executeRun(ctx, cmd.OutOrStdout(), args, runOptions{
		configPath:   configPath,
		scenarioPath: scenarioArg,
		logLevel:     logLevel,
		storePath:    storePath,
		params:       paramFlags,
		proof:        showProof,
		threshold:    proofCutoff,
		metricsAddr:  metricsAddr,
	})
}

// resolve merges, in increasing precedence, the defaults, the config file,
// the scenario and the command line
func resolve(args []string, opts runOptions) (*runRequest, error) {
	cfg := vybiumpep.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := vybiumpep.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	req := &runRequest{params: vybiumpep.Params{}}
	if opts.scenarioPath != "" {
		s, err := loadScenario(opts.scenarioPath)
		if err != nil {
			return nil, err
		}
		if err := s.overlay(cfg); err != nil {
			return nil, err
		}
		req.method = s.Method
		for k, v := range s.Params {
			req.params[k] = v
		}
	}
	if len(args) == 1 {
		req.method = args[0]
	}
	if req.method == "" {
		return nil, errors.New("no method: pass one as argument or in a scenario")
	}

	flagParams, err := parseParams(opts.params)
	if err != nil {
		return nil, err
	}
	for k, v := range flagParams {
		req.params[k] = v
	}

	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.storePath != "" {
		cfg.StorePath = opts.storePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	req.config = cfg
	return req, nil
}

func executeRun(ctx context.Context, out io.Writer, args []string, opts runOptions) error {
	req, err := resolve(args, opts)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		shutdown, err := serveMetrics(opts.metricsAddr)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	var pepOpts []vybiumpep.Option
	if opts.logger != nil {
		pepOpts = append(pepOpts, vybiumpep.WithLogger(opts.logger))
	}
	run, err := vybiumpep.RunMethod(ctx, req.method, req.params, req.config, pepOpts...)
	if err != nil {
		return err
	}

	printRun(out, run, opts)
	if run.Result.Status != vybiumpep.StateSolved {
		return fmt.Errorf("%s: %s", run.Result.Status, run.Result.Reason)
	}
	return nil
}

func printRun(out io.Writer, run *vybiumpep.Run, opts runOptions) {
	in, res := run.Instance, run.Result
	fmt.Fprintf(out, "method:      %s\n", in.Method)
	fmt.Fprintf(out, "params:      %s\n", formatParams(in.Params))
	fmt.Fprintf(out, "guarantee:   %s\n", in.Guarantee)
	fmt.Fprint(out, res.Summary())
	if in.HasTheoretical() {
		kind := "upper bound"
		if in.Tight {
			kind = "tight"
		}
		fmt.Fprintf(out, "theoretical: %.9g (%s)\n", in.Theoretical, kind)
		if res.Status == vybiumpep.StateSolved {
			fmt.Fprintf(out, "gap:         %.3e\n", run.Gap())
		}
	}
	if opts.proof && res.Certificate != nil {
		fmt.Fprintln(out, "certificate:")
		fmt.Fprint(out, res.Certificate.Format(opts.threshold))
	}
}

// serveMetrics exposes the prometheus registry until the returned function
// is called
func serveMetrics(addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", utils.MetricsHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logStderr(fmt.Sprintf("metrics server: %v", err))
		}
	}()
	logStderr("serving metrics on http://" + ln.Addr().String() + "/metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
