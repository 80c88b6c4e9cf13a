// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/littleci/littleci/lib/codec"
	"github.com/littleci/littleci/lib/testutil"
)

// sendRequest connects to a Unix socket, sends a CBOR request, and
// returns the decoded response envelope.
func sendRequest(t *testing.T, socketPath string, request any) Response {
	t.Helper()

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to socket: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

// startServer serves s until the test ends and returns the socket
// path once it is listening.
func startServer(t *testing.T, register func(*SocketServer)) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")
	server := NewSocketServer(socketPath, slog.New(slog.DiscardHandler))
	if register != nil {
		register(server)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "socket server shutdown"); err != nil {
			t.Errorf("Serve() = %v", err)
		}
		if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
			t.Errorf("socket file left behind: %v", err)
		}
	})
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "socket server ready")
	return socketPath
}

type echoRequest struct {
	Message string `cbor:"message"`
}

func TestSocketServerDispatch(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
			var request echoRequest
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return map[string]string{"message": request.Message}, nil
		})
		server.Handle("nothing", func(ctx context.Context, raw []byte) (any, error) {
			return nil, nil
		})
		server.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
			return nil, errors.New("no such job")
		})
	})

	t.Run("echo", func(t *testing.T) {
		response := sendRequest(t, socketPath, map[string]any{"action": "echo", "message": "hi"})
		if !response.OK {
			t.Fatalf("response = %+v, want ok", response)
		}
		var data map[string]string
		if err := codec.Unmarshal(response.Data, &data); err != nil {
			t.Fatalf("decoding data: %v", err)
		}
		if data["message"] != "hi" {
			t.Errorf("message = %q, want hi", data["message"])
		}
	})

	t.Run("nil result", func(t *testing.T) {
		response := sendRequest(t, socketPath, map[string]any{"action": "nothing"})
		if !response.OK || len(response.Data) != 0 {
			t.Errorf("response = %+v, want ok without data", response)
		}
	})

	t.Run("handler error", func(t *testing.T) {
		response := sendRequest(t, socketPath, map[string]any{"action": "fail"})
		if response.OK || response.Error != "no such job" {
			t.Errorf("response = %+v", response)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		response := sendRequest(t, socketPath, map[string]any{"action": "reboot"})
		if response.OK || response.Error != `unknown action "reboot"` {
			t.Errorf("response = %+v", response)
		}
	})

	t.Run("missing action", func(t *testing.T) {
		response := sendRequest(t, socketPath, map[string]any{"message": "hi"})
		if response.OK || response.Error != "missing required field: action" {
			t.Errorf("response = %+v", response)
		}
	})
}

func TestSocketServerFileMode(t *testing.T) {
	socketPath := startServer(t, nil)
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if mode := info.Mode().Perm(); mode != SocketMode {
		t.Errorf("socket mode = %o, want %o", mode, SocketMode)
	}
}

func TestSocketServerReplacesStaleSocket(t *testing.T) {
	directory := testutil.SocketDir(t)
	socketPath := filepath.Join(directory, "admin.sock")
	if err := os.WriteFile(socketPath, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	server := NewSocketServer(socketPath, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "socket server ready")
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "socket server shutdown"); err != nil {
		t.Errorf("Serve() = %v", err)
	}
}

func TestSocketServerDuplicateHandlerPanics(t *testing.T) {
	server := NewSocketServer("/unused", slog.New(slog.DiscardHandler))
	server.Handle("status", func(context.Context, []byte) (any, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Error("duplicate Handle did not panic")
		}
	}()
	server.Handle("status", func(context.Context, []byte) (any, error) { return nil, nil })
}
