package httptransport

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// errDecompressedTooLarge is a sentinel for decompressed size limit violations.
var errDecompressedTooLarge = errors.New("decompressed data exceeds maximum size limit")

// maxDecompressedReader wraps an io.Reader to enforce a decompressed size limit.
type maxDecompressedReader struct {
	reader   io.Reader
	limit    int64
	consumed int64
}

func (r *maxDecompressedReader) Read(p []byte) (int, error) {
	if r.consumed >= r.limit {
		return 0, errDecompressedTooLarge
	}

	if maxRead := r.limit - r.consumed; int64(len(p)) > maxRead {
		p = p[:maxRead]
	}

	n, err := r.reader.Read(p)
	r.consumed += int64(n)

	if r.consumed >= r.limit && err == nil {
		var dummy [1]byte
		if _, peekErr := r.reader.Read(dummy[:]); peekErr == nil {
			return n, errDecompressedTooLarge
		}
	}

	return n, err
}

// newSafeRequestReader wraps a request body with compressed and decompressed
// size limits, decoding gzip when the Content-Encoding header asks for it.
// The cleanup function must be called after the body has been consumed.
func newSafeRequestReader(w http.ResponseWriter, r *http.Request, limits Limits) (io.Reader, func(), error) {
	if r.ContentLength > 0 && r.ContentLength > limits.MaxBodyBytes {
		return nil, func() {}, fmt.Errorf("request body too large: %d bytes (max %d)", r.ContentLength, limits.MaxBodyBytes)
	}

	limited := http.MaxBytesReader(w, r.Body, limits.MaxBodyBytes)

	encoding := strings.TrimSpace(strings.ToLower(r.Header.Get("Content-Encoding")))
	switch encoding {
	case "":
		return limited, func() {}, nil
	case "gzip":
	default:
		return nil, func() {}, fmt.Errorf("unsupported content encoding: %s", encoding)
	}

	gz, err := gzip.NewReader(limited)
	if err != nil {
		return nil, func() {}, fmt.Errorf("invalid gzip data: %w", err)
	}
	reader := &maxDecompressedReader{reader: gz, limit: limits.MaxDecompressedBytes}
	return reader, func() { gz.Close() }, nil
}

// newSafeResponseReader wraps a response body the same way, keyed off the
// response's Content-Encoding header.
func newSafeResponseReader(resp *http.Response, limits Limits) (io.Reader, func(), error) {
	limited := io.LimitReader(resp.Body, limits.MaxBodyBytes)

	encoding := strings.TrimSpace(strings.ToLower(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "":
		return limited, func() {}, nil
	case "gzip":
	default:
		return nil, func() {}, fmt.Errorf("unsupported content encoding: %s", encoding)
	}

	gz, err := gzip.NewReader(limited)
	if err != nil {
		return nil, func() {}, fmt.Errorf("invalid gzip data: %w", err)
	}
	reader := &maxDecompressedReader{reader: gz, limit: limits.MaxDecompressedBytes}
	return reader, func() { gz.Close() }, nil
}
