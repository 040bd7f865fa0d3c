package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Endpoint identifies a replica by its (host, port) listen address and
// provides the total order the ring election and the endpoint comparator
// rely on: compare host bytes lexicographically, then port numerically.
// Endpoint equality implies identity.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String renders the endpoint in host:port form.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Less reports whether e sorts before other under the ring's total order.
func (e Endpoint) Less(other Endpoint) bool {
	if e.Host != other.Host {
		return e.Host < other.Host
	}
	return e.Port < other.Port
}

// Equal reports whether e and other name the same endpoint.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.Host == other.Host && e.Port == other.Port
}

// ParseEndpoint parses a "host:port" string into an Endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return Endpoint{}, fmt.Errorf("wire: invalid endpoint %q: missing port", s)
	}
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return Endpoint{}, fmt.Errorf("wire: invalid endpoint %q: %w", s, err)
	}
	return Endpoint{Host: s[:idx], Port: port}, nil
}
