package serve

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestFileHandler(t *testing.T, c *Configuration) (http.Handler, *metrics) {
	t.Helper()

	m := newMetrics("")
	ek, _ := newTestErrorKernel(c, m)
	return newFileHandler(c, m, ek), m
}

func doRequest(h http.Handler, method string, target string, header http.Header) *http.Response {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func TestFileHandlerServesFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hi")

	h, _ := newTestFileHandler(t, newTestConfiguration(t, dir))
	resp := doRequest(h, http.MethodGet, "/hello.txt", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %v, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("got content type %q, want text/plain", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "hi" {
		t.Fatalf("got body %q, want %q", b, "hi")
	}
}

func TestFileHandlerHead(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hi")

	h, _ := newTestFileHandler(t, newTestConfiguration(t, dir))
	resp := doRequest(h, http.MethodHead, "/hello.txt", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %v, want 200", resp.StatusCode)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "2" {
		t.Fatalf("got content length %q, want 2", cl)
	}
	b, _ := io.ReadAll(resp.Body)
	if len(b) != 0 {
		t.Fatalf("expected no body for HEAD, got %q", b)
	}
}

func TestFileHandlerDirectoryListing(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hi")

	h, _ := newTestFileHandler(t, newTestConfiguration(t, dir))
	resp := doRequest(h, http.MethodGet, "/", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %v, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("got content type %q, want text/html", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `href="hello.txt"`) {
		t.Fatalf("listing does not contain hello.txt: %s", b)
	}
}

func TestFileHandlerDirectoryRedirect(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0700); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	h, _ := newTestFileHandler(t, newTestConfiguration(t, dir))
	resp := doRequest(h, http.MethodGet, "/sub", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("got status %v, want 301", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "sub/" {
		t.Fatalf("got location %q, want sub/", loc)
	}
}

func TestFileHandlerMissingFile(t *testing.T) {
	dir := t.TempDir()

	h, m := newTestFileHandler(t, newTestConfiguration(t, dir))
	resp := doRequest(h, http.MethodGet, "/missing.txt", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %v, want 404", resp.StatusCode)
	}

	got := testutil.ToFloat64(m.promRequestsTotal.With(prometheus.Labels{"method": http.MethodGet, "code": "404"}))
	if got != 1 {
		t.Fatalf("got %v requests counted with 404, want 1", got)
	}
}

func TestFileHandlerTraversal(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "served")
	if err := os.Mkdir(dir, 0700); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	writeTestFile(t, parent, "secret.txt", "secret")

	h, _ := newTestFileHandler(t, newTestConfiguration(t, dir))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secret.txt"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatalf("file outside the served folder was served: %q", rec.Body.String())
	}
}

func TestFileHandlerRequestID(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hi")

	h, m := newTestFileHandler(t, newTestConfiguration(t, dir))

	ids := map[string]struct{}{}
	for i := 0; i < 3; i++ {
		resp := doRequest(h, http.MethodGet, "/hello.txt", nil)
		resp.Body.Close()

		id := resp.Header.Get("X-Request-Id")
		if id == "" {
			t.Fatalf("missing X-Request-Id header")
		}
		ids[id] = struct{}{}
	}

	if len(ids) != 3 {
		t.Fatalf("expected 3 unique request ids, got %v", len(ids))
	}

	if got := testutil.ToFloat64(m.promResponseBytesTotal); got != 6 {
		t.Fatalf("got %v response bytes, want 6", got)
	}
}

func TestFileHandlerGzip(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("hello world\n", 400)
	writeTestFile(t, dir, "big.txt", content)

	c := newTestConfiguration(t, dir)
	c.Compression = "g"
	h, _ := newTestFileHandler(t, c)

	resp := doRequest(h, http.MethodGet, "/big.txt", http.Header{"Accept-Encoding": []string{"gzip"}})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %v, want 200", resp.StatusCode)
	}
	if ce := resp.Header.Get("Content-Encoding"); ce != "gzip" {
		t.Fatalf("got content encoding %q, want gzip", ce)
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	b, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading gzip body failed: %v", err)
	}
	if string(b) != content {
		t.Fatalf("decompressed body differs from file content")
	}

	// No compression without Accept-Encoding.
	resp = doRequest(h, http.MethodGet, "/big.txt", nil)
	defer resp.Body.Close()
	if ce := resp.Header.Get("Content-Encoding"); ce != "" {
		t.Fatalf("got content encoding %q, want none", ce)
	}
}

func TestFileHandlerDebugLog(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hi")

	c := newTestConfiguration(t, dir)
	c.LogLevel = string(logDebug)
	m := newMetrics("")
	ek, buf := newTestErrorKernel(c, m)
	h := newFileHandler(c, m, ek)

	resp := doRequest(h, http.MethodGet, "/hello.txt", nil)
	resp.Body.Close()

	out := buf.String()
	for _, want := range []string{"request served", "path=/hello.txt", "status=200", "requestID=" + resp.Header.Get("X-Request-Id")} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q: %s", want, out)
		}
	}
}

// readerFromRecorder is a ResponseWriter that also implements
// io.ReaderFrom, like the ResponseWriter of net/http.
type readerFromRecorder struct {
	*httptest.ResponseRecorder
	readFromCalled bool
}

func (r *readerFromRecorder) ReadFrom(src io.Reader) (int64, error) {
	r.readFromCalled = true
	return io.Copy(r.ResponseRecorder, src)
}

func TestFileHandlerForwardsReadFrom(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("x", 8192)
	writeTestFile(t, dir, "big.txt", content)

	h, m := newTestFileHandler(t, newTestConfiguration(t, dir))

	rec := &readerFromRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/big.txt", nil))

	if !rec.readFromCalled {
		t.Fatalf("ReadFrom of the wrapped ResponseWriter was not used")
	}
	if rec.Body.String() != content {
		t.Fatalf("got %v body bytes, want %v", rec.Body.Len(), len(content))
	}
	if got := testutil.ToFloat64(m.promResponseBytesTotal); got != float64(len(content)) {
		t.Fatalf("got %v response bytes, want %v", got, len(content))
	}
}

func TestResponseRecorderReadFromFallback(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: w}

	n, err := rec.ReadFrom(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if n != 5 || rec.bytes != 5 || rec.status != http.StatusOK {
		t.Fatalf("got n=%v bytes=%v status=%v, want 5, 5, 200", n, rec.bytes, rec.status)
	}
	if w.Body.String() != "hello" {
		t.Fatalf("got body %q, want hello", w.Body.String())
	}
}
