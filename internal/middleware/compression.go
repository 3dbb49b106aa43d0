package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// compressWriter wraps http.ResponseWriter so response bytes pass through
// the negotiated compressor.
type compressWriter struct {
	io.Writer
	http.ResponseWriter
	wroteHeader bool
}

func (w *compressWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.Writer.Write(b)
}

// Compress returns a middleware that negotiates a response encoding with
// the client: brotli when accepted, gzip otherwise, identity as the final
// fallback. Vary is always set so intermediaries never serve one client's
// encoding to another. Upgrade requests pass through untouched — a wrapped
// writer cannot be hijacked for WebSockets.
func Compress(next http.Handler) http.Handler {
	// Pool writers to reduce allocations
	brPool := sync.Pool{
		New: func() interface{} {
			return brotli.NewWriter(io.Discard)
		},
	}
	gzPool := sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}

		accept := r.Header.Get("Accept-Encoding")
		switch {
		case strings.Contains(accept, "br"):
			bw := brPool.Get().(*brotli.Writer)
			defer brPool.Put(bw)
			bw.Reset(w)
			defer bw.Close()

			w.Header().Set("Content-Encoding", "br")
			w.Header().Del("Content-Length") // Length changes after compression

			next.ServeHTTP(&compressWriter{Writer: bw, ResponseWriter: w}, r)

		case strings.Contains(accept, "gzip"):
			gz := gzPool.Get().(*gzip.Writer)
			defer gzPool.Put(gz)
			gz.Reset(w)
			defer gz.Close()

			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Del("Content-Length")

			next.ServeHTTP(&compressWriter{Writer: gz, ResponseWriter: w}, r)

		default:
			next.ServeHTTP(w, r)
		}
	})
}
