// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is the Accept-Encoding header value a client should
// send when it decodes bodies with [NewBodyReader].
const AcceptEncoding = "zstd, gzip"

// ErrUnsupportedEncoding is returned by NewBodyReader for a
// Content-Encoding it cannot undo.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// NewBodyReader wraps body with the decoders needed to undo
// contentEncoding (the raw Content-Encoding header value). Codings
// listed in the header are undone in reverse order of application.
// Every supported decoder returns data as soon as the server flushes
// it, so records arrive while the stream stays open.
//
// Closing the returned reader releases decoder resources only; the
// caller still owns and closes body.
func NewBodyReader(contentEncoding string, body io.Reader) (io.ReadCloser, error) {
	reader := io.NopCloser(body)
	var closers []io.Closer

	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		switch coding {
		case "", "identity":
			continue

		case "gzip", "x-gzip":
			gzipReader, err := gzip.NewReader(reader)
			if err != nil {
				closeAll(closers)
				return nil, fmt.Errorf("opening gzip stream: %w", err)
			}
			closers = append(closers, gzipReader)
			reader = gzipReader

		case "zstd":
			// A single decoder goroutine keeps decoding in step with
			// the reads instead of racing ahead on a live stream.
			zstdReader, err := zstd.NewReader(reader, zstd.WithDecoderConcurrency(1))
			if err != nil {
				closeAll(closers)
				return nil, fmt.Errorf("opening zstd stream: %w", err)
			}
			readCloser := zstdReader.IOReadCloser()
			closers = append(closers, readCloser)
			reader = readCloser

		default:
			closeAll(closers)
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, coding)
		}
	}

	return &decodedBody{Reader: reader, closers: closers}, nil
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (body *decodedBody) Close() error {
	return closeAll(body.closers)
}

// closeAll closes decoders outermost first and returns the first
// error.
func closeAll(closers []io.Closer) error {
	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
