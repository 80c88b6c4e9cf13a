// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers job status changes to the webhook URLs
// configured on a repository.
//
// Delivery is best effort: each URL gets one POST with a bounded
// timeout, failures are logged, and nothing about the job depends on
// the outcome. The body is signed with the repository secret
// (X-LittleCI-Signature-256: sha256=<hex>) so receivers can verify it
// the same way LittleCI verifies GitHub deliveries.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

// SignatureHeader carries the HMAC-SHA256 of the body.
const SignatureHeader = "X-LittleCI-Signature-256"

// DefaultTimeout bounds one delivery.
const DefaultTimeout = 10 * time.Second

// Event is the JSON body posted to repository webhooks.
type Event struct {
	ID         string       `json:"id"`
	Repository string       `json:"repository"`
	Status     store.Status `json:"status"`
	ExitCode   *int         `json:"exit_code"`
	URL        string       `json:"url,omitempty"`
}

// Config holds the parameters of a Notifier.
type Config struct {
	// HTTPClient defaults to a client with DefaultTimeout.
	HTTPClient *http.Client

	// SiteURL, when set, is used to build a link to the job.
	SiteURL string

	// Logger is required.
	Logger *slog.Logger
}

// Notifier posts events in the background.
type Notifier struct {
	client  *http.Client
	siteURL string
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New returns a Notifier.
func New(cfg Config) *Notifier {
	if cfg.Logger == nil {
		panic("notify: Logger is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Notifier{client: client, siteURL: cfg.SiteURL, logger: cfg.Logger}
}

// JobChanged posts the job's current status to every webhook of the
// repository. It returns immediately; Wait blocks until deliveries
// started so far have finished.
func (n *Notifier) JobChanged(repository store.Repository, job store.Job) {
	if len(repository.Webhooks) == 0 {
		return
	}
	event := Event{
		ID:         job.ID,
		Repository: repository.Slug,
		Status:     job.Status,
		ExitCode:   job.ExitCode,
	}
	if n.siteURL != "" {
		event.URL = fmt.Sprintf("%s/repositories/%s/jobs/%s", n.siteURL, repository.Slug, job.ID)
	}
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("encoding webhook event", "job", job.ID, "error", err)
		return
	}
	signature, err := trigger.Sign(trigger.SHA256, []byte(repository.Secret), body)
	if err != nil {
		n.logger.Error("signing webhook event", "job", job.ID, "error", err)
		return
	}

	for _, url := range repository.Webhooks {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.deliver(url, body, signature); err != nil {
				n.logger.Warn("webhook delivery failed",
					"repository", repository.Slug, "job", job.ID, "url", url, "error", err)
				return
			}
			n.logger.Debug("webhook delivered", "repository", repository.Slug, "job", job.ID, "url", url)
		}()
	}
}

// Wait blocks until all in-flight deliveries have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(url string, body []byte, signature string) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", "LittleCI")
	request.Header.Set(SignatureHeader, "sha256="+signature)

	response, err := n.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, 64<<10))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", response.Status)
	}
	return nil
}
