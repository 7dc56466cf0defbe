package config

import (
	"fmt"
	"strings"
)

// Refresh says which cached artifacts must be rebuilt instead of reused.
type Refresh struct {
	// Server overwrites archives already present on the webserver.
	Server bool
	// Compression rebuilds the staged upload archive.
	Compression bool
	// Data fetches a dataset even if its directory already exists.
	Data bool
}

// ParseRefresh builds a Refresh from target names. "all" selects every
// target; unknown names are rejected.
func ParseRefresh(targets []string) (Refresh, error) {
	var r Refresh
	for _, target := range targets {
		switch strings.TrimSpace(strings.ToLower(target)) {
		case "":
		case "server":
			r.Server = true
		case "compression":
			r.Compression = true
		case "data":
			r.Data = true
		case "all":
			r = Refresh{Server: true, Compression: true, Data: true}
		default:
			return Refresh{}, fmt.Errorf("unknown refresh target: %s", target)
		}
	}
	return r, nil
}

// Merge returns the union of r and other.
func (r Refresh) Merge(other Refresh) Refresh {
	return Refresh{
		Server:      r.Server || other.Server,
		Compression: r.Compression || other.Compression,
		Data:        r.Data || other.Data,
	}
}

func (r Refresh) String() string {
	var on []string
	if r.Server {
		on = append(on, "server")
	}
	if r.Compression {
		on = append(on, "compression")
	}
	if r.Data {
		on = append(on, "data")
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ",")
}
