package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigArtifact is the immutable, normalized result of a successful validation
type ConfigArtifact struct {
	ConfigVersion string         `json:"configVersion"` // sha256:hex
	Section       string         `json:"section,omitempty"`
	Values        map[string]any `json:"values"` // option path -> normalized value
}

// GenerateArtifact creates a config artifact from normalized option values.
// The values map is copied; later changes to it do not affect the artifact.
func GenerateArtifact(section string, values map[string]any) ConfigArtifact {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}

	return ConfigArtifact{
		ConfigVersion: ComputeConfigVersion(copied),
		Section:       section,
		Values:        copied,
	}
}

// ComputeConfigVersion computes the SHA-256 hash of the values in canonical form.
// Returns the hash prefixed with "sha256:".
func ComputeConfigVersion(values map[string]any) string {
	hash := sha256.Sum256(canonicalValuesJSON(values))
	return "sha256:" + hex.EncodeToString(hash[:])
}

// ToCanonicalJSON serializes the artifact to canonical JSON (sorted keys, no whitespace).
func (a ConfigArtifact) ToCanonicalJSON() ([]byte, error) {
	// struct fields are declared in alphabetical order of their JSON names
	out := a
	if out.Values == nil {
		out.Values = map[string]any{}
	}
	return json.Marshal(out)
}

// ToJSON serializes the artifact to pretty-printed JSON for human readability.
func (a ConfigArtifact) ToJSON() ([]byte, error) {
	out := a
	if out.Values == nil {
		out.Values = map[string]any{}
	}
	return json.MarshalIndent(out, "", "  ")
}

// Keys returns the option paths of the artifact in sorted order
func (a ConfigArtifact) Keys() []string {
	keys := make([]string, 0, len(a.Values))
	for k := range a.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tree rebuilds the nested configuration, wrapped in the section name when set.
func (a ConfigArtifact) Tree() map[string]any {
	tree := make(map[string]any)
	for path, v := range a.Values {
		parts := strings.Split(path, ".")
		cur := tree
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	if a.Section == "" {
		return tree
	}
	return map[string]any{a.Section: tree}
}

// ConfigJSON serializes the nested configuration as indented JSON
func (a ConfigArtifact) ConfigJSON() ([]byte, error) {
	return json.MarshalIndent(a.Tree(), "", "  ")
}

// ConfigYAML serializes the nested configuration as YAML
func (a ConfigArtifact) ConfigYAML() ([]byte, error) {
	return yaml.Marshal(a.Tree())
}

// canonicalValuesJSON produces canonical JSON for just the values map.
// encoding/json sorts map keys at every level.
func canonicalValuesJSON(values map[string]any) []byte {
	if len(values) == 0 {
		return []byte("{}")
	}
	data, err := json.Marshal(values)
	if err != nil {
		return []byte(err.Error())
	}
	return data
}
