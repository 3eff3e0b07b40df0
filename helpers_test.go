package serve

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// newTestConfiguration returns a configuration serving dir, with the
// logging turned off.
func newTestConfiguration(t *testing.T, dir string) *Configuration {
	t.Helper()

	c := newConfigurationDefaults()
	c.ServeFolder = dir
	c.LogLevel = string(logNone)
	return &c
}

func newTestErrorKernel(c *Configuration, m *metrics) (*errorKernel, *bytes.Buffer) {
	var buf bytes.Buffer
	return newErrorKernel(c, &buf, m), &buf
}

func writeTestFile(t *testing.T, dir string, name string, content string) {
	t.Helper()

	err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600)
	if err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
}
