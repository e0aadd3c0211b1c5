package rag_augur

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// defaultOutboundRPS bounds how fast an adapter may fire requests at a
// local model-serving sidecar, smoothing bursts from concurrent
// pipeline stages (e.g. the Retriever's per-query fan-out) instead of
// saturating the sidecar's own request queue.
const defaultOutboundRPS = 20

// newOutboundLimiter builds the per-client limiter used by each
// rag_augur adapter before issuing an outbound HTTP call.
func newOutboundLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(defaultOutboundRPS), 5)
}

// retryableHTTP sends req up to three times with exponential backoff,
// retrying transient network errors and 5xx responses from the
// reranker service. 2xx/4xx responses are
// returned immediately without retry since those outcomes won't
// change on a resend. req.GetBody is used to rewind the request body
// between attempts; http.NewRequestWithContext sets it automatically
// for the bytes.Reader payloads these adapters build.
func retryableHTTP(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	attempt := 0
	return backoff.Retry(ctx, func() (*http.Response, error) {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			req.Body = body
		}
		attempt++

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("server error: status %d", resp.StatusCode)
		}
		return resp, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(3))
}
