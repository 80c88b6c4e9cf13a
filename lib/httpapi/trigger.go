// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/littleci/littleci/lib/engine"
	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

// Headers read by the trigger endpoints.
const (
	headerSecretKey       = "X-Secret-Key"
	headerHubSignature    = "X-Hub-Signature"
	headerHubSignature256 = "X-Hub-Signature-256"
	headerGitHubEvent     = "X-GitHub-Event"
	headerGiteaSignature  = "X-Gitea-Signature"
	headerGiteaEvent      = "X-Gitea-Event"
)

// TriggerResponse is the body of a trigger request that was accepted.
// Status is "queued" with Job set, or "skipped" when the repository's
// trigger rules did not match.
type TriggerResponse struct {
	Status string     `json:"status"`
	Job    *store.Job `json:"job,omitempty"`
	URL    string     `json:"url,omitempty"`
}

func (h *Handler) handleTrigger(service trigger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, trigger.MaxBodySize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.sendError(w, http.StatusRequestEntityTooLarge, "trigger body exceeds %d bytes", tooLarge.Limit)
				return
			}
			h.sendError(w, http.StatusBadRequest, "reading trigger body: %v", err)
			return
		}

		request := trigger.Trigger{
			Service: service,
			Slug:    r.PathValue("slug"),
			Body:    body,
		}
		switch service {
		case trigger.ServiceGeneric:
			request.SecretKey = r.Header.Get(headerSecretKey)
			if request.SecretKey == "" {
				request.SecretKey = r.URL.Query().Get("key")
			}
		case trigger.ServiceGitHub:
			request.Signature = r.Header.Get(headerHubSignature)
			request.Signature256 = r.Header.Get(headerHubSignature256)
			request.Event = r.Header.Get(headerGitHubEvent)
		case trigger.ServiceGitea:
			request.Signature256 = r.Header.Get(headerGiteaSignature)
			request.Event = r.Header.Get(headerGiteaEvent)
		}

		job, err := h.engine.AuthorizeAndEnqueue(r.Context(), request)
		if errors.Is(err, engine.ErrSkipped) {
			h.writeJSON(w, http.StatusOK, TriggerResponse{Status: "skipped"})
			return
		}
		if err != nil {
			h.sendEngineError(w, r, err)
			return
		}

		h.writeJSON(w, http.StatusCreated, TriggerResponse{
			Status: string(job.Status),
			Job:    &job,
			URL:    h.jobURL(request.Slug, job.ID),
		})
	}
}

// jobURL links to a job's API resource under the configured site URL.
func (h *Handler) jobURL(slug, jobID string) string {
	if h.info.SiteURL == "" {
		return ""
	}
	return strings.TrimRight(h.info.SiteURL, "/") + "/api/repositories/" + slug + "/jobs/" + jobID
}
