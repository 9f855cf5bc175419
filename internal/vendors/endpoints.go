package vendors

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/engagic/engagic/internal/types"
)

//go:embed endpoints.toml
var endpointsTOML string

// Endpoint is one vendor's entry in the embedded catalog.
type Endpoint struct {
	API string  `toml:"api"`
	Web string  `toml:"web"`
	RPS float64 `toml:"rps"`
}

var (
	endpointsOnce sync.Once
	endpoints     map[string]Endpoint
)

func loadEndpoints() {
	endpointsOnce.Do(func() {
		if err := toml.Unmarshal([]byte(endpointsTOML), &endpoints); err != nil {
			panic(fmt.Sprintf("embedded endpoints.toml is invalid: %v", err))
		}
	})
}

// EndpointFor returns the catalog entry for a vendor. Templates are
// returned unexpanded; use Endpoint.Expand with the city slug.
func EndpointFor(v types.Vendor) Endpoint {
	loadEndpoints()
	return endpoints[string(v)]
}

// RateLimit returns the catalog requests-per-second budget for a vendor,
// falling back to a conservative 1 rps for unknown entries.
func RateLimit(v types.Vendor) float64 {
	loadEndpoints()
	if e, ok := endpoints[string(v)]; ok && e.RPS > 0 {
		return e.RPS
	}
	return 1.0
}

// Expand substitutes the city slug into an endpoint template.
func expand(template, slug string) string {
	return strings.ReplaceAll(template, "{slug}", slug)
}

// api returns the slug-expanded API base for this adapter's city.
func (b *base) api() string { return expand(b.endpoint.API, b.city.Slug) }

// web returns the slug-expanded web base for this adapter's city.
func (b *base) web() string { return expand(b.endpoint.Web, b.city.Slug) }
