// Package targets is the static registry of capture targets. A target pairs
// a capture profile (proxy topology, env overrides, output directory) with an
// analysis profile (report title, body renderer, header redaction set).
package targets

import (
	"fmt"
	"sort"

	"probekit/models"
)

// Target bundles everything probekit needs to capture and analyze traffic
// for one application.
type Target struct {
	Capture  models.CaptureProfile
	Analysis models.AnalysisProfile
}

// registry maps target names to constructors. Constructors return fresh
// values so callers can mutate their copy without affecting later loads.
var registry = map[string]func() Target{
	"codex": codexTarget,
}

// Load returns the named target or an error listing the known names.
func Load(name string) (Target, error) {
	build, ok := registry[name]
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q (available: %v)", name, Names())
	}
	return build(), nil
}

// Names returns all registered target names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
