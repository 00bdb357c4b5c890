package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gaborage/syncbridge/httpclient"
	"github.com/gaborage/syncbridge/logger"
)

// maxConcurrentProbes bounds the number of in-flight health checks.
const maxConcurrentProbes = 8

// ProbeResult is the outcome of one health check.
type ProbeResult struct {
	Name       string
	Path       string
	StatusCode int
	Code       string // machine code of a network or timeout failure
	Attempts   int
	Elapsed    time.Duration
	Stats      httpclient.Snapshot
	Err        error
}

// Healthy reports whether the probe got a 2xx answer.
func (p ProbeResult) Healthy() bool {
	return p.Err == nil && httpclient.IsSuccessStatus(p.StatusCode)
}

// Probe issues a GET to every upstream's health path concurrently and
// returns one result per upstream, in Names order. The error joins every
// failed probe; results are returned either way.
func (r *Registry) Probe(ctx context.Context) ([]ProbeResult, error) {
	names := r.Names()
	results := make([]ProbeResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)

	for i, name := range names {
		g.Go(func() error {
			results[i] = r.probe(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("upstream %s: %w", res.Name, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (r *Registry) probe(ctx context.Context, name string) ProbeResult {
	path := r.configs[name].HealthPath
	if path == "" {
		path = DefaultHealthPath
	}

	client := r.clients[name]
	result := ProbeResult{Name: name, Path: path}

	ctx = logger.WithHTTPCounter(ctx)
	start := time.Now()
	resp, err := client.Get(ctx, &httpclient.Request{Path: path})
	result.Elapsed = time.Since(start)
	result.Stats = client.Stats()

	if err != nil {
		result.Err = err
		result.StatusCode = httpclient.StatusCodeOf(err)
		result.Code = httpclient.CodeOf(err)
		result.Attempts = httpclient.AttemptsOf(err)
		r.log.Warn().
			Str("upstream", name).
			Str("path", path).
			Int("attempts", result.Attempts).
			Err(err).
			Msg("Upstream probe failed")
		return result
	}

	result.StatusCode = resp.StatusCode
	result.Attempts = int(resp.Stats.CallCount)
	r.log.Info().
		Str("upstream", name).
		Str("path", path).
		Int("status", resp.StatusCode).
		Int64("http_calls", logger.GetHTTPCounter(ctx)).
		Dur("elapsed", result.Elapsed).
		Msg("Upstream probe succeeded")
	return result
}
