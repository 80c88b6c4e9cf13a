// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/littleci/littleci/lib/outputlog"
	"github.com/littleci/littleci/lib/store"
	"github.com/littleci/littleci/lib/trigger"
)

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin exchanges a username and password for a session token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var request LoginRequest
	if !h.decodeJSON(w, r, &request) {
		return
	}
	session, err := h.authority.Login(r.Context(), request.Username, request.Password)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// HandleLogout revokes the presented token.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.authority.Logout(r.Header.Get("Authorization")); err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleConfig describes the server.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.info)
}

// HandleStatus reports running jobs and queue counts.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status(r.Context())
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// HandleListRepositories lists live repositories. Secrets are only
// returned by the single-repository endpoints.
func (h *Handler) HandleListRepositories(w http.ResponseWriter, r *http.Request) {
	repositories, err := h.engine.ListRepositories(r.Context())
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	for i := range repositories {
		repositories[i].Secret = ""
	}
	h.writeJSON(w, http.StatusOK, repositories)
}

// HandleCreateRepository registers a repository.
func (h *Handler) HandleCreateRepository(w http.ResponseWriter, r *http.Request) {
	var spec store.RepositorySpec
	if !h.decodeJSON(w, r, &spec) {
		return
	}
	repository, err := h.engine.CreateRepository(r.Context(), spec)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.logger.Info("repository created", "repository", repository.Slug, "principal", string(principalFrom(r.Context())))
	h.writeJSON(w, http.StatusCreated, repository)
}

// HandleGetRepository returns a repository, secret included.
func (h *Handler) HandleGetRepository(w http.ResponseWriter, r *http.Request) {
	repository, err := h.engine.GetRepository(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, repository)
}

// HandleUpdateRepository replaces a repository's definition. The slug
// and secret are unchanged.
func (h *Handler) HandleUpdateRepository(w http.ResponseWriter, r *http.Request) {
	var spec store.RepositorySpec
	if !h.decodeJSON(w, r, &spec) {
		return
	}
	repository, err := h.engine.UpdateRepository(r.Context(), r.PathValue("slug"), spec)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.logger.Info("repository updated", "repository", repository.Slug, "principal", string(principalFrom(r.Context())))
	h.writeJSON(w, http.StatusOK, repository)
}

// HandleDeleteRepository soft-deletes a repository, or purges it and
// its history with ?purge=true.
func (h *Handler) HandleDeleteRepository(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	purge, _ := strconv.ParseBool(r.URL.Query().Get("purge"))

	var err error
	if purge {
		err = h.engine.PurgeRepository(r.Context(), slug)
	} else {
		err = h.engine.DeleteRepository(r.Context(), slug)
	}
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.logger.Info("repository deleted", "repository", slug, "purge", purge, "principal", string(principalFrom(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegenerateSecret replaces a repository's secret.
func (h *Handler) HandleRegenerateSecret(w http.ResponseWriter, r *http.Request) {
	repository, err := h.engine.RegenerateSecret(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.logger.Info("repository secret regenerated", "repository", repository.Slug, "principal", string(principalFrom(r.Context())))
	h.writeJSON(w, http.StatusOK, repository)
}

// HandleListJobs lists a repository's jobs, newest first.
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.engine.ListJobs(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

// HandleEnqueue queues a build on behalf of the logged-in user. The
// optional body is a JSON object of string variables for the build.
func (h *Handler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	repository, err := h.engine.GetRepository(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}

	data := map[string]string{}
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "reading request body: %v", err)
			return
		}
		// Same shape as a generic trigger body: a JSON object whose
		// values become strings.
		data, err = trigger.FlattenJSON(body)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
	}

	job, err := h.engine.EnqueueAuthenticated(r.Context(), repository.ID, data, principalFrom(r.Context()))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, TriggerResponse{
		Status: string(job.Status),
		Job:    &job,
		URL:    h.jobURL(repository.Slug, job.ID),
	})
}

// HandleGetJob returns a job with its transition log and output
// summary.
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	details, err := h.engine.GetJobDetails(r.Context(), r.PathValue("slug"), r.PathValue("id"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

// HandleJobOutput returns a job's output as plain text. With
// ?follow=1 the response streams until the job finishes. When the
// client accepts zstd the body is zstd-compressed.
func (h *Handler) HandleJobOutput(w http.ResponseWriter, r *http.Request) {
	slug, jobID := r.PathValue("slug"), r.PathValue("id")
	follow, _ := strconv.ParseBool(r.URL.Query().Get("follow"))

	var reader io.ReadCloser
	var err error
	if follow {
		reader, err = h.engine.FollowJobOutput(r.Context(), slug, jobID)
	} else {
		reader, err = h.engine.GetJobOutput(r.Context(), slug, jobID)
	}
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Add("Vary", "Accept-Encoding")

	var body io.Writer = w
	var compressor io.WriteCloser
	if acceptsZstd(r.Header.Get("Accept-Encoding")) {
		w.Header().Set("Content-Encoding", "zstd")
		compressor, err = outputlog.NewCompressor(w, outputlog.FormatZstd)
		if err != nil {
			h.sendEngineError(w, r, err)
			return
		}
		body = compressor
	}
	w.WriteHeader(http.StatusOK)

	if follow {
		body = &flushWriter{writer: body, compressor: compressor, response: w}
	}
	if _, err := io.Copy(body, reader); err != nil {
		h.logger.Debug("streaming job output ended", "job", jobID, "error", err)
	}
	if compressor != nil {
		if err := compressor.Close(); err != nil {
			h.logger.Debug("finishing compressed output", "job", jobID, "error", err)
		}
	}
}

// HandleListAllJobs lists the most recent jobs across repositories.
func (h *Handler) HandleListAllJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.engine.ListAllJobs(r.Context())
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

// CancelResponse is the body of POST /api/jobs/{id}/cancel.
type CancelResponse struct {
	ID string `json:"id"`
}

// HandleCancelJob cancels a queued or running job. A running job is
// signalled and becomes cancelled once its process exits, so the
// response is 202.
func (h *Handler) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if err := h.engine.CancelJob(r.Context(), jobID, principalFrom(r.Context())); err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, CancelResponse{ID: jobID})
}

// acceptsZstd reports whether an Accept-Encoding header lists zstd
// with a non-zero quality.
func acceptsZstd(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "zstd") {
			continue
		}
		params = strings.ReplaceAll(params, " ", "")
		return params != "q=0" && params != "q=0.0" && params != "q=0.00" && params != "q=0.000"
	}
	return false
}

// flushWriter pushes each chunk of followed output to the client.
type flushWriter struct {
	writer     io.Writer
	compressor io.WriteCloser
	response   http.ResponseWriter
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.writer.Write(p)
	if err != nil {
		return n, err
	}
	if flusher, ok := f.compressor.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return n, err
		}
	}
	if err := http.NewResponseController(f.response).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}
