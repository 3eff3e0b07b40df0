package serve

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// server is the structure that will hold the state about the running
// file server.
type server struct {
	// Configuration options used for running the server
	configuration *Configuration
	// The listener bound to the configured port
	listener net.Listener
	// The http server serving the files on the listener
	httpServer *http.Server
	// errorKernel is doing all the logging
	errorKernel *errorKernel
	// metric exporter
	metrics *metrics
	// folderWatcher is only set if enabled in the configuration.
	folderWatcher *folderWatcher
	// Version of package
	version string
}

// NewServer will prepare and return a server type. The listener is bound
// to the configured port on all interfaces here, so a port that is taken
// or not allowed will make NewServer return an error.
func NewServer(configuration *Configuration, version string) (*server, error) {
	metrics := newMetrics(configuration.PromHostAndPort)
	errorKernel := newErrorKernel(configuration, os.Stderr, metrics)

	log.Printf("args: %v\n", configuration.Args)
	log.Printf("port: %v\n", configuration.Port)

	if configuration.portErr != nil {
		errorKernel.logWarn("NewServer: port argument not used as given", "port", configuration.Port, "error", configuration.portErr)
	}

	if errorKernel.debugEnabled() {
		b, err := configuration.dump()
		if err != nil {
			errorKernel.logWarn("NewServer: failed to dump configuration", "error", err)
		} else {
			errorKernel.logDebug("NewServer: using configuration\n" + string(b))
		}
	}

	addr := net.JoinHostPort("", strconv.Itoa(configuration.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error: NewServer: failed to listen on %v: %w", addr, err)
	}

	var fw *folderWatcher
	if configuration.EnableFolderWatch {
		fw, err = newFolderWatcher(configuration.ServeFolder, metrics, errorKernel)
		if err != nil {
			listener.Close()
			return nil, err
		}
	}

	s := server{
		configuration: configuration,
		listener:      listener,
		httpServer: &http.Server{
			Handler: newFileHandler(configuration, metrics, errorKernel),
		},
		errorKernel:   errorKernel,
		metrics:       metrics,
		folderWatcher: fw,
		version:       version,
	}

	return &s, nil
}

// Port returns the port the server is bound to.
func (s *server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Start will serve the files until the process is killed. It only returns
// if serving fails.
func (s *server) Start() error {
	log.Printf("Starting serve, version=%+v\n", s.version)
	s.metrics.promVersion.With(prometheus.Labels{"version": s.version}).Set(1)

	// Start collecting the metrics
	if s.metrics.hostAndPort != "" {
		go func() {
			err := s.metrics.start()
			if err != nil {
				s.errorKernel.logError("Start: metrics listener stopped", "error", err)
			}
		}()
	}

	if s.folderWatcher != nil {
		go s.folderWatcher.run()
	}

	log.Printf("Serving at http://localhost:%v\n", s.Port())

	err := s.httpServer.Serve(s.listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("error: Start: failed to serve: %w", err)
	}

	return nil
}

// close stops the http server and the folder watcher. There is no
// graceful handling of ongoing requests.
func (s *server) close() {
	s.httpServer.Close()
	if s.folderWatcher != nil {
		s.folderWatcher.close()
	}
}
