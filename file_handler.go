package serve

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
)

// newFileHandler will return the handler serving the files found in the
// served folder. Path to file mapping, directory listings, redirects,
// MIME types, and the error status codes are all done by http.FileServer.
func newFileHandler(c *Configuration, m *metrics, ek *errorKernel) http.Handler {
	var h http.Handler = http.FileServer(http.Dir(c.ServeFolder))

	if c.Compression == "g" {
		h = gzhttp.GzipHandler(h)
	}

	return requestMiddleware(h, m, ek)
}

// requestMiddleware will give each request an ID, and record the
// outcome of the request in the metrics and the debug log.
func requestMiddleware(next http.Handler, m *metrics, ek *errorKernel) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		// Nothing written means an implicit 200.
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		elapsed := time.Since(start)

		m.promRequestsTotal.With(prometheus.Labels{"method": r.Method, "code": strconv.Itoa(rec.status)}).Inc()
		m.promResponseBytesTotal.Add(float64(rec.bytes))
		m.promRequestDuration.Observe(elapsed.Seconds())

		ek.logDebug("request served",
			"requestID", id,
			"remote", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", elapsed,
		)
	})
}

// responseRecorder keeps the status code and the number of body bytes
// written to the wrapped ResponseWriter.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// ReadFrom is used by io.Copy in http.FileServer. Forwarding it keeps
// the sendfile path of the wrapped ResponseWriter.
func (r *responseRecorder) ReadFrom(src io.Reader) (int64, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	var n int64
	var err error
	if rf, ok := r.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(src)
	} else {
		n, err = io.Copy(r.ResponseWriter, src)
	}
	r.bytes += int(n)
	return n, err
}

// Unwrap is used by http.ResponseController to reach the underlying
// ResponseWriter.
func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
