package drift

import (
	"encoding/json"
	"sort"
	"time"

	"gridcfg/internal/artifact"
	"gridcfg/internal/baseline"
	"gridcfg/internal/rules"
)

// DriftType represents the type of configuration change.
type DriftType string

const (
	DriftAdded   DriftType = "added"   // Key in current but not baseline
	DriftRemoved DriftType = "removed" // Key in baseline but not current
	DriftChanged DriftType = "changed" // Key in both with different values
)

// KeyDrift represents a single key's drift.
type KeyDrift struct {
	Key           string    `json:"key"`
	Type          DriftType `json:"type"`
	BaselineValue string    `json:"baselineValue,omitempty"`
	CurrentValue  string    `json:"currentValue,omitempty"`
}

// DriftReport contains the full drift analysis.
type DriftReport struct {
	HasDrift     bool       `json:"hasDrift"`
	BaselineName string     `json:"baselineName"`
	BaselineHash string     `json:"baselineHash"`
	CurrentHash  string     `json:"currentHash"`
	BaselineTime time.Time  `json:"baselineTime"`
	Source       string     `json:"source,omitempty"` // config file being checked
	Changes      []KeyDrift `json:"changes"`
}

// Detect compares a validated artifact against a baseline.
// Values are compared by their JSON encoding, so a baseline read back from
// disk matches the normalized value it was saved from.
func Detect(b baseline.Baseline, current artifact.ConfigArtifact, source string) DriftReport {
	report := DriftReport{
		BaselineName: b.Name,
		BaselineHash: b.ConfigHash,
		CurrentHash:  current.ConfigVersion,
		BaselineTime: b.Timestamp,
		Source:       source,
		Changes:      []KeyDrift{},
	}

	if b.ConfigHash == current.ConfigVersion {
		return report
	}

	for _, key := range unionKeys(b.ConfigValues, current.Values) {
		baselineVal, inBaseline := b.ConfigValues[key]
		currentVal, inCurrent := current.Values[key]

		switch {
		case inBaseline && !inCurrent:
			report.Changes = append(report.Changes, KeyDrift{
				Key:           key,
				Type:          DriftRemoved,
				BaselineValue: rules.FormatValue(baselineVal),
			})
		case !inBaseline && inCurrent:
			report.Changes = append(report.Changes, KeyDrift{
				Key:          key,
				Type:         DriftAdded,
				CurrentValue: rules.FormatValue(currentVal),
			})
		case !sameJSON(baselineVal, currentVal):
			report.Changes = append(report.Changes, KeyDrift{
				Key:           key,
				Type:          DriftChanged,
				BaselineValue: rules.FormatValue(baselineVal),
				CurrentValue:  rules.FormatValue(currentVal),
			})
		}
	}

	report.HasDrift = len(report.Changes) > 0
	return report
}

func unionKeys(a, b map[string]any) []string {
	all := make(map[string]bool, len(a)+len(b))
	for k := range a {
		all[k] = true
	}
	for k := range b {
		all[k] = true
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sameJSON reports whether a and b encode to the same JSON
func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}
