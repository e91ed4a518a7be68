package httpengine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/worldline-go/klient"
	"golang.org/x/sync/semaphore"
)

// MaxConcurrentRequests bounds how many requests the engine will have in
// flight at once, across every recipe and every profile. This guards
// against a collection (or a runaway chain of request() calls) opening
// an unbounded number of sockets.
const MaxConcurrentRequests = 100

// Engine sends recipes that have been rendered into BuiltRequests. It
// holds up to two underlying HTTP clients: one with normal TLS verification
// and one with verification disabled for hosts the user has explicitly opted
// out of, selected per request by host rather than globally, so a
// collection mixing a self-signed staging host with a normal production
// host doesn't have to weaken security for both.
type Engine struct {
	standard *klient.Client
	insecure *klient.Client

	insecureHosts map[string]bool
	sem           *semaphore.Weighted
}

// Config is the subset of top-level configuration the engine needs.
type Config struct {
	FollowRedirects        bool
	IgnoreCertificateHosts []string
	RequestTimeout         time.Duration
	MaxConcurrentRequests  int
}

// NewEngine builds an Engine with a klient-backed HTTP client that verifies
// certificates and, only when IgnoreCertificateHosts is non-empty, a second
// one that skips verification for those hosts.
func NewEngine(cfg Config) (*Engine, error) {
	max := cfg.MaxConcurrentRequests
	if max <= 0 {
		max = MaxConcurrentRequests
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.FollowRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	standard, err := klient.New(
		klient.WithLogger(slog.Default()),
		klient.WithDisableBaseURLCheck(true),
	)
	if err != nil {
		return nil, fmt.Errorf("build standard http client: %w", err)
	}
	standard.HTTP.CheckRedirect = redirectPolicy
	standard.HTTP.Timeout = cfg.RequestTimeout

	var insecure *klient.Client
	if len(cfg.IgnoreCertificateHosts) > 0 {
		insecure, err = klient.New(
			klient.WithLogger(slog.Default()),
			klient.WithDisableBaseURLCheck(true),
			klient.WithInsecureSkipVerify(true),
		)
		if err != nil {
			return nil, fmt.Errorf("build insecure http client: %w", err)
		}
		insecure.HTTP.CheckRedirect = redirectPolicy
		insecure.HTTP.Timeout = cfg.RequestTimeout
	}

	hosts := make(map[string]bool, len(cfg.IgnoreCertificateHosts))
	for _, h := range cfg.IgnoreCertificateHosts {
		hosts[h] = true
	}

	return &Engine{
		standard:      standard,
		insecure:      insecure,
		insecureHosts: hosts,
		sem:           semaphore.NewWeighted(int64(max)),
	}, nil
}

func (e *Engine) clientFor(host string) *http.Client {
	if e.insecureHosts[host] {
		return e.insecure.HTTP
	}
	return e.standard.HTTP
}

// acquire blocks until a send slot is available or ctx is cancelled.
func (e *Engine) acquire(ctx context.Context) error {
	return e.sem.Acquire(ctx, 1)
}

func (e *Engine) release() {
	e.sem.Release(1)
}
