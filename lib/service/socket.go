// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/littleci/littleci/lib/codec"
)

// ActionFunc handles one admin action. raw is the whole CBOR request,
// action field included. A nil result answers {ok: true}; anything
// else is encoded into the response's data field.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the envelope of every socket reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketMode is the permission of the socket file. Anyone who can open
// the socket administers the server; requests carry no credentials.
const SocketMode os.FileMode = 0o600

const (
	// requestDeadline bounds reading the request. The CLI writes it
	// right after connecting.
	requestDeadline = 30 * time.Second

	responseDeadline = 10 * time.Second

	// maxRequestSize caps one request. The largest is an enqueue
	// with its job data.
	maxRequestSize = 1 << 20
)

// SocketServer answers CBOR requests on a Unix socket, one request and
// one response per connection. Register actions with Handle before
// Serve.
type SocketServer struct {
	path     string
	handlers map[string]ActionFunc
	logger   *slog.Logger
	ready    chan struct{}

	// inflight counts connections still being answered; Serve waits
	// for them before returning.
	inflight sync.WaitGroup
}

func NewSocketServer(path string, logger *slog.Logger) *SocketServer {
	return &SocketServer{
		path:     path,
		handlers: make(map[string]ActionFunc),
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the socket listens with SocketMode applied.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Handle registers the handler of an action. Registering an action
// twice panics.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Serve listens until ctx is cancelled, then waits for requests in
// flight. A socket file left by a previous server is replaced, and the
// file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	listener, err := s.listen()
	if err != nil {
		return err
	}
	defer func() {
		listener.Close()
		os.Remove(s.path)
	}()
	close(s.ready)
	s.logger.Info("admin socket listening", "path", s.path)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accepting admin connection", "error", err)
			continue
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			defer conn.Close()
			s.answer(ctx, conn)
		}()
	}

	s.inflight.Wait()
	return nil
}

func (s *SocketServer) listen() (net.Listener, error) {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket %s: %w", s.path, err)
	}
	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, SocketMode); err != nil {
		listener.Close()
		os.Remove(s.path)
		return nil, fmt.Errorf("restricting %s: %w", s.path, err)
	}
	return listener, nil
}

// answer reads one request from conn and writes its response.
func (s *SocketServer) answer(ctx context.Context, conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(requestDeadline))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if !errors.Is(err, io.EOF) {
			s.reply(conn, failure(fmt.Sprintf("invalid request: %v", err)))
		}
		return
	}
	s.reply(conn, s.dispatch(ctx, raw))
}

// dispatch routes a decoded request by its action field.
func (s *SocketServer) dispatch(ctx context.Context, raw codec.RawMessage) Response {
	var envelope struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &envelope); err != nil {
		return failure(fmt.Sprintf("invalid request: %v", err))
	}
	if envelope.Action == "" {
		return failure("missing required field: action")
	}
	handler, exists := s.handlers[envelope.Action]
	if !exists {
		return failure(fmt.Sprintf("unknown action %q", envelope.Action))
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("admin action failed", "action", envelope.Action, "error", err)
		return failure(err.Error())
	}
	if result == nil {
		return Response{OK: true}
	}
	data, err := codec.Marshal(result)
	if err != nil {
		return failure(fmt.Sprintf("internal: encoding %s result: %v", envelope.Action, err))
	}
	return Response{OK: true, Data: data}
}

func failure(message string) Response {
	return Response{Error: message}
}

// reply writes response. The connection closes either way, so a
// failed write is only logged.
func (s *SocketServer) reply(conn net.Conn, response Response) {
	conn.SetWriteDeadline(time.Now().Add(responseDeadline))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("writing admin response", "error", err)
	}
}
