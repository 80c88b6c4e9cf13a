// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/littleci/littleci/lib/codec"
	"github.com/littleci/littleci/lib/testutil"
)

type cancelRequest struct {
	JobID string `cbor:"job_id"`
}

type cancelResult struct {
	JobID  string `cbor:"job_id"`
	Status string `cbor:"status"`
}

func TestClientCall(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("cancel-job", func(ctx context.Context, raw []byte) (any, error) {
			var request cancelRequest
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			if request.JobID == "" {
				return nil, errors.New("job_id is required")
			}
			return cancelResult{JobID: request.JobID, Status: "cancelled"}, nil
		})
	})
	client := NewClient(socketPath)
	ctx := context.Background()

	var result cancelResult
	if err := client.Call(ctx, "cancel-job", map[string]any{"job_id": "j1"}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.JobID != "j1" || result.Status != "cancelled" {
		t.Errorf("result = %+v", result)
	}

	// A nil result discards the response data.
	if err := client.Call(ctx, "cancel-job", map[string]any{"job_id": "j2"}, nil); err != nil {
		t.Fatalf("Call without result: %v", err)
	}

	err := client.Call(ctx, "cancel-job", nil, &result)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error = %v, want *ServiceError", err)
	}
	if serviceErr.Action != "cancel-job" || serviceErr.Message != "job_id is required" {
		t.Errorf("ServiceError = %+v", serviceErr)
	}
}

func TestClientCallNoServer(t *testing.T) {
	client := NewClient(filepath.Join(testutil.SocketDir(t), "missing.sock"))
	err := client.Call(context.Background(), "status", nil, nil)
	if err == nil {
		t.Fatal("Call succeeded without a server")
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		t.Errorf("connection failure reported as ServiceError: %v", err)
	}
}
