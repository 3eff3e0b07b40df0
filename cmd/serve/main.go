package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"runtime"

	_ "net/http/pprof"

	"github.com/pkg/profile"
	"github.com/postmannen/serve"
)

// Use ldflags to set version
// go run -ldflags "-X main.version=v0.1.0" ./cmd/serve/. 9090
// or
// env GOOS=linux GOARCH=amd64 go build -ldflags "-X main.version=v0.1.0" -o serve ./cmd/serve/
var version string

func main() {

	c, err := serve.NewConfiguration(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Printf("%v\n", err)
		os.Exit(2)
	}

	// Start profiling if profiling port is specified
	if c.ProfilingPort != "" {

		switch c.Profiling {
		case "block":
			defer profile.Start(profile.BlockProfile).Stop()
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		case "trace":
			defer profile.Start(profile.TraceProfile, profile.ProfilePath(".")).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.MemProfileRate(1)).Stop()
		}

		go func() {
			err := http.ListenAndServe("localhost:"+c.ProfilingPort, nil)
			if err != nil {
				log.Printf("error: main: profiling listener stopped: %v\n", err)
			}
		}()

	}

	if c.SetBlockProfileRate != 0 {
		runtime.SetBlockProfileRate(c.SetBlockProfileRate)
	}

	s, err := serve.NewServer(c, version)
	if err != nil {
		log.Printf("%v\n", err)
		os.Exit(1)
	}

	// Blocks until the process is killed.
	err = s.Start()
	if err != nil {
		log.Printf("%v\n", err)
		os.Exit(1)
	}
}
