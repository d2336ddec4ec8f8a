// Package vhost implements the virtual host manifest (spec.md §5): each
// virtual host directory under the project root carries a small YAML
// manifest naming its base URL, the host_variable substitution name, and
// the header fields that seed its slice of the emitted Swagger document.
//
// Grounded on the now-retired internal/manifest/manifest.go's Twin/Manifest
// pair (one named entry per twin, keyed map, Load/TwinNames/Twin lookup);
// repurposed here from "named mock server process" to "named virtual API
// host" with a different field set but the same load-and-index shape.
package vhost

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// VHost is one virtual host: a base URL requests are dispatched against,
// the variable name its host substitutes for (spec.md's host_variable),
// and the Swagger document header fields it contributes.
type VHost struct {
	Name        string `yaml:"-"`
	BaseURL     string `yaml:"base_url"`
	HostVar     string `yaml:"host_variable"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	BasePath    string `yaml:"base_path"`
}

// Manifest indexes every virtual host declared under a project root.
type Manifest struct {
	Hosts map[string]VHost
}

// Load reads a single virtual host's manifest.yaml file.
func Load(path string) (VHost, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return VHost{}, fmt.Errorf("vhost: reading %s: %w", path, err)
	}
	var v VHost
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return VHost{}, fmt.Errorf("vhost: parsing %s: %w", path, err)
	}
	if v.BaseURL == "" {
		return VHost{}, fmt.Errorf("vhost: %s: base_url is required", path)
	}
	if v.HostVar == "" {
		return VHost{}, fmt.Errorf("vhost: %s: host_variable is required", path)
	}
	return v, nil
}

// NewManifest builds a Manifest from a set of named, already-loaded hosts.
func NewManifest(hosts map[string]VHost) *Manifest {
	m := &Manifest{Hosts: map[string]VHost{}}
	for name, v := range hosts {
		v.Name = name
		m.Hosts[name] = v
	}
	return m
}

// Get looks up a virtual host by name.
func (m *Manifest) Get(name string) (VHost, bool) {
	v, ok := m.Hosts[name]
	return v, ok
}

// Names returns every virtual host name, sorted, for deterministic
// iteration when building the plan tree or the Swagger documents.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Hosts))
	for n := range m.Hosts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BaseURLs returns the name->base URL map the runtime needs to resolve a
// concrete API's absolute request URL.
func (m *Manifest) BaseURLs() map[string]string {
	out := make(map[string]string, len(m.Hosts))
	for n, v := range m.Hosts {
		out[n] = v.BaseURL
	}
	return out
}
