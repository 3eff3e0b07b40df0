package serve

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

// Configuration are the structure that holds all the different
// configuration options used with both flags and environment variables.
// If a new field is added to this struct there should also be added a
// flag for it in NewConfiguration, and a default value in
// newConfigurationDefaults.
type Configuration struct {
	// Port the file server listens on. Resolved from the first positional
	// argument, and not settable by flag or env.
	Port int `comment:"Port the file server listens on"`
	// Args are the raw positional arguments given at startup
	Args []string `comment:"The raw positional arguments given at startup"`
	// ServeFolder, the folder where the files to serve are located
	ServeFolder string `comment:"ServeFolder, the folder where the files to serve are located" validate:"required,dir"`
	// LogLevel
	LogLevel string `comment:"LogLevel error/info/warning/debug/none." validate:"oneof=error info warning debug none"`
	// LogConsoleTimestamps
	LogConsoleTimestamps bool `comment:"LogConsoleTimestamps true/false for enabling or disabling timestamps when printing errors and information to stderr"`
	// Host and port for prometheus listener, e.g. localhost:2112
	PromHostAndPort string `comment:"Host and port for prometheus listener, e.g. localhost:2112" validate:"omitempty,hostname_port"`
	// The number of the profiling port
	ProfilingPort string `comment:"The number of the profiling port" validate:"omitempty,numeric"`
	// Profiling type to start when the profiling port is set
	Profiling string `comment:"Profiling type to start when the profiling port is set, block/cpu/trace/mem" validate:"oneof=block cpu trace mem"`
	// SetBlockProfileRate for block profiling
	SetBlockProfileRate int `comment:"SetBlockProfileRate for block profiling" validate:"gte=0"`
	// Compression g for gzip, empty for no compression
	Compression string `comment:"Compression g for gzip, empty for no compression" validate:"omitempty,oneof=g"`
	// EnableFolderWatch will watch the served folder and report changes
	EnableFolderWatch bool `comment:"EnableFolderWatch will watch the served folder and report changes"`

	// portErr is set when a port argument was given but could not be parsed.
	portErr error
}

// NewConfiguration will parse the flags and positional arguments given
// in args, and return a *Configuration. Values not given as flags are
// picked up from the environment, and if not found there the defaults
// are used.
func NewConfiguration(args []string) (*Configuration, error) {
	c := newConfigurationDefaults()

	fs := newFlagSet(&c)

	err := fs.Parse(args)
	switch {
	case errors.Is(err, flag.ErrHelp):
		return nil, err

	// Arguments that could not be parsed as flags, like "-abc", are
	// all treated as positional, and the defaults are used for the rest.
	case err != nil:
		c = newConfigurationDefaults()
		newFlagSet(&c)

		flagErr := fmt.Errorf("warning: NewConfiguration: failed to parse flags, using the arguments as positional: %w", err)
		c.Args = args
		c.Port, c.portErr = ResolvePort(c.Args)
		c.portErr = errors.Join(flagErr, c.portErr)

	default:
		c.Args = fs.Args()
		c.Port, c.portErr = ResolvePort(c.Args)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// newFlagSet will return the flags for the fields of c. Creating the
// flags sets the values found in the environment on c.
func newFlagSet(c *Configuration) *flag.FlagSet {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: serve [flags] [port]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&c.ServeFolder, "serveFolder", CheckEnv("SERVE_FOLDER", c.ServeFolder), "the folder to serve files from. Defaults to the current working directory")
	fs.StringVar(&c.LogLevel, "logLevel", CheckEnv("LOG_LEVEL", c.LogLevel), "error/info/warning/debug/none")
	fs.BoolVar(&c.LogConsoleTimestamps, "logConsoleTimestamps", CheckEnv("LOG_CONSOLE_TIMESTAMPS", c.LogConsoleTimestamps), "true/false for enabling or disabling timestamps when printing errors and information to stderr")
	fs.StringVar(&c.PromHostAndPort, "promHostAndPort", CheckEnv("PROM_HOST_AND_PORT", c.PromHostAndPort), "host and port for prometheus listener, e.g. localhost:2112. No value means not to start the listener")
	fs.StringVar(&c.ProfilingPort, "profilingPort", CheckEnv("PROFILING_PORT", c.ProfilingPort), "The number of the profiling port")
	fs.StringVar(&c.Profiling, "profiling", CheckEnv("PROFILING", c.Profiling), "the profile to start when profilingPort is set, block/cpu/trace/mem")
	fs.IntVar(&c.SetBlockProfileRate, "setBlockProfileRate", CheckEnv("BLOCK_PROFILE_RATE", c.SetBlockProfileRate), "Enable block profiling by setting the value to f.ex. 1. 0 = disabled")
	fs.StringVar(&c.Compression, "compression", CheckEnv("COMPRESSION", c.Compression), "compression method to use for responses. g = gzip. Undefined value will default to no compression")
	fs.BoolVar(&c.EnableFolderWatch, "enableFolderWatch", CheckEnv("ENABLE_FOLDER_WATCH", c.EnableFolderWatch), "true/false, watch the served folder and log the changes")

	return fs
}

// Get a Configuration struct with the default values set.
func newConfigurationDefaults() Configuration {
	c := Configuration{
		Port:                 DefaultPort,
		ServeFolder:          ".",
		LogLevel:             "info",
		LogConsoleTimestamps: false,
		PromHostAndPort:      "",
		ProfilingPort:        "",
		Profiling:            "cpu",
		SetBlockProfileRate:  0,
		Compression:          "",
		EnableFolderWatch:    false,
	}
	return c
}

// validate checks the values set in the Configuration, and returns a
// single error listing all the fields with an invalid value.
func (c *Configuration) validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return fmt.Errorf("error: validate: %w", err)
	}

	msgs := []string{}
	for _, fe := range vErrs {
		msgs = append(msgs, fmt.Sprintf("%v=%q failed on %q", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag()))
	}

	return fmt.Errorf("error: validate: invalid configuration: %v", strings.Join(msgs, ", "))
}

// CheckEnv will return the value of the environment variable key
// converted to the type of v. If the variable is not set, v is returned.
func CheckEnv[T any](key string, v T) T {
	val, ok := os.LookupEnv(key)
	if !ok {
		return v
	}

	var out any
	switch any(v).(type) {
	case int:
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("error: failed to convert env %v to int: %v\n", key, err)
		}
		out = n
	case string:
		out = val
	case bool:
		switch val {
		case "true", "1":
			out = true
		case "false", "0", "":
			out = false
		default:
			log.Fatalf("error: failed to convert env %v to bool: %q\n", key, val)
		}
	default:
		return v
	}

	return out.(T)
}

// configurationDump is the printable form of the Configuration, with the
// keys named as the flags.
type configurationDump struct {
	Port                 int      `yaml:"port"`
	Args                 []string `yaml:"args"`
	ServeFolder          string   `yaml:"serveFolder"`
	LogLevel             string   `yaml:"logLevel"`
	LogConsoleTimestamps bool     `yaml:"logConsoleTimestamps"`
	PromHostAndPort      string   `yaml:"promHostAndPort"`
	ProfilingPort        string   `yaml:"profilingPort"`
	Profiling            string   `yaml:"profiling"`
	SetBlockProfileRate  int      `yaml:"setBlockProfileRate"`
	Compression          string   `yaml:"compression"`
	EnableFolderWatch    bool     `yaml:"enableFolderWatch"`
}

// dump will return the configuration in yaml format.
func (c *Configuration) dump() ([]byte, error) {
	var cd configurationDump
	err := copier.Copy(&cd, c)
	if err != nil {
		return nil, fmt.Errorf("error: dump: failed to copy configuration: %w", err)
	}

	b, err := yaml.Marshal(cd)
	if err != nil {
		return nil, fmt.Errorf("error: dump: failed to marshal configuration: %w", err)
	}

	return b, nil
}
