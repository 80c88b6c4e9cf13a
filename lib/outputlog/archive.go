// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package outputlog

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Format is an archive compression format.
type Format string

const (
	// FormatZstd is the default: best ratio for build logs.
	FormatZstd Format = "zstd"

	// FormatLZ4 trades ratio for speed. Uses the lz4 frame format,
	// readable by the lz4 command-line tool.
	FormatLZ4 Format = "lz4"
)

// ParseFormat parses a format name. The empty string selects zstd.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatZstd:
		return FormatZstd, nil
	case FormatLZ4:
		return FormatLZ4, nil
	default:
		return "", fmt.Errorf("outputlog: unknown archive format %q (want zstd or lz4)", name)
	}
}

// Extension returns the conventional file extension of the format.
func (f Format) Extension() string {
	if f == FormatLZ4 {
		return ".lz4"
	}
	return ".zst"
}

// Archive writes a compressed copy of the job's output to w. The
// output is read once from the start; callers archive finished jobs.
func (s *Store) Archive(jobID string, w io.Writer, format Format) error {
	reader, err := s.Open(jobID)
	if err != nil {
		return err
	}
	defer reader.Close()

	compressor, err := NewCompressor(w, format)
	if err != nil {
		return err
	}
	if _, err := io.Copy(compressor, reader); err != nil {
		compressor.Close()
		return fmt.Errorf("outputlog: archiving %s: %w", jobID, err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("outputlog: finishing archive of %s: %w", jobID, err)
	}
	return nil
}

// NewCompressor returns a streaming compressor that writes format
// frames to w. Close flushes the final frame; it does not close w.
func NewCompressor(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case FormatZstd, "":
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("outputlog: zstd encoder: %w", err)
		}
		return encoder, nil
	case FormatLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("outputlog: unknown archive format %q", format)
	}
}

// NewDecompressor is the inverse of NewCompressor.
func NewDecompressor(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case FormatZstd, "":
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("outputlog: zstd decoder: %w", err)
		}
		return decoder.IOReadCloser(), nil
	case FormatLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("outputlog: unknown archive format %q", format)
	}
}

// Digest returns the hex BLAKE3-256 digest of the job's output as
// written so far.
func (s *Store) Digest(jobID string) (string, error) {
	reader, err := s.Open(jobID)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("outputlog: hashing %s: %w", jobID, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
