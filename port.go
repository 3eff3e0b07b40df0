package serve

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is used when no valid port argument is given.
const DefaultPort = 8080

// ResolvePort returns the port given as the first element of args, or
// DefaultPort if args is empty or the first element is not an integer.
// A definite port is always returned. The error is only set when an
// argument was given but could not be parsed, so the caller can tell a
// missing argument from a malformed one.
//
// No range check is done, an invalid port will fail when binding.
func ResolvePort(args []string) (int, error) {
	if len(args) == 0 {
		return DefaultPort, nil
	}

	port, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return DefaultPort, fmt.Errorf("warning: ResolvePort: could not parse port %q, using default %v: %w", args[0], DefaultPort, err)
	}

	return port, nil
}
