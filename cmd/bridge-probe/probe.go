package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/gaborage/syncbridge/config"
	"github.com/gaborage/syncbridge/logger"
	"github.com/gaborage/syncbridge/observability"
	"github.com/gaborage/syncbridge/upstream"
)

const (
	outputTable = "table"
	outputJSON  = "json"

	defaultProbeTimeout = 60 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// errUnhealthy is returned when at least one upstream failed its probe.
var errUnhealthy = errors.New("one or more upstreams are unhealthy")

type probeOptions struct {
	ConfigPath string
	Output     string
	Timeout    time.Duration
}

type probeReport struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	Code       string `json:"code,omitempty"`
	Attempts   int    `json:"attempts"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	Total      int64  `json:"total_requests"`
	Successful int64  `json:"successful_requests"`
	Failed     int64  `json:"failed_requests"`
	Retried    int64  `json:"retried_requests"`
	Error      string `json:"error,omitempty"`
}

func runProbe(ctx context.Context, opts *probeOptions, stdout, stderr io.Writer) error {
	if opts.Output != outputTable && opts.Output != outputJSON {
		return fmt.Errorf("unsupported output %q (must be %s or %s)", opts.Output, outputTable, outputJSON)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWithWriter(stderr, cfg.Log.Level, cfg.Log.Pretty, logger.DefaultFilterConfig())

	provider, err := observability.NewProvider(&cfg.Observability, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := observability.Shutdown(provider, shutdownTimeout); err != nil {
			log.Warn().Err(err).Msg("Observability shutdown failed")
		}
	}()

	reg, err := upstream.New(cfg, log, provider)
	if err != nil {
		return fmt.Errorf("failed to build upstream clients: %w", err)
	}
	if len(reg.Names()) == 0 {
		return config.NewNotConfiguredError("upstreams", config.EnvVarFor("upstreams.<name>.base_url"), "upstreams")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results, probeErr := reg.Probe(ctx)
	reports := make([]probeReport, 0, len(results))
	for _, res := range results {
		reports = append(reports, newProbeReport(res))
	}

	if err := writeReports(stdout, opts.Output, reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if probeErr != nil {
		log.Debug().Err(probeErr).Msg("Probe failures")
		return errUnhealthy
	}
	return nil
}

func newProbeReport(res upstream.ProbeResult) probeReport {
	r := probeReport{
		Name:       res.Name,
		Path:       res.Path,
		Healthy:    res.Healthy(),
		StatusCode: res.StatusCode,
		Code:       res.Code,
		Attempts:   res.Attempts,
		ElapsedMS:  res.Elapsed.Milliseconds(),
		Total:      res.Stats.TotalRequests,
		Successful: res.Stats.SuccessfulRequests,
		Failed:     res.Stats.FailedRequests,
		Retried:    res.Stats.RetriedRequests,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

func writeReports(w io.Writer, format string, reports []probeReport) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UPSTREAM\tPATH\tHEALTHY\tSTATUS\tCODE\tATTEMPTS\tELAPSED\tTOTAL\tOK\tFAILED\tRETRIED")
	for _, r := range reports {
		status := "-"
		if r.StatusCode != 0 {
			status = fmt.Sprint(r.StatusCode)
		}
		code := r.Code
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%d\t%dms\t%d\t%d\t%d\t%d\n",
			r.Name, r.Path, r.Healthy, status, code, r.Attempts, r.ElapsedMS,
			r.Total, r.Successful, r.Failed, r.Retried)
	}
	return tw.Flush()
}
