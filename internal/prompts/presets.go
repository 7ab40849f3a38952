package prompts

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// Preset returns a bundled template definition by name. Presets are
// selected by value from configuration; there is no subclassing or dynamic
// lookup behind them.
func Preset(name string) (*Definition, error) {
	data, err := presetFS.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: unknown preset %q (have %s)",
			ErrConfig, name, strings.Join(Presets(), ", "))
	}
	return Parse(data)
}

// Presets lists the bundled preset names.
func Presets() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}
