package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var (
	builtinMu    sync.Mutex
	builtinCache = map[string]*Schema{}
)

// Builtin returns the embedded option table for a workflow config section.
// Each table is parsed once per process and shared read-only afterwards.
func Builtin(section string) (*Schema, error) {
	builtinMu.Lock()
	defer builtinMu.Unlock()

	if s, ok := builtinCache[section]; ok {
		return s, nil
	}

	content, err := builtinFS.ReadFile("builtin/" + section + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no built-in schema for section '%s' (available: %s)", section, strings.Join(BuiltinSections(), ", "))
	}

	s, err := ParseSchema(content)
	if err != nil {
		return nil, fmt.Errorf("built-in schema '%s': %w", section, err)
	}
	builtinCache[section] = s
	return s, nil
}

// BuiltinSections lists the sections that have an embedded option table
func BuiltinSections() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}
