package baseline

import (
	"time"

	"gridcfg/internal/artifact"
)

// Baseline is a stored known-good normalized configuration for drift comparison.
type Baseline struct {
	Name         string         `json:"name"`         // Baseline identifier
	Section      string         `json:"section"`      // Config section the values belong to
	ConfigHash   string         `json:"configHash"`   // Artifact configVersion
	ConfigValues map[string]any `json:"configValues"` // Normalized option values
	Source       string         `json:"source"`       // Config file the baseline was taken from
	Timestamp    time.Time      `json:"timestamp"`    // When baseline was created
}

// BaselineSummary is a lightweight view for listing baselines.
type BaselineSummary struct {
	Name       string    `json:"name"`
	Section    string    `json:"section"`
	ConfigHash string    `json:"configHash"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

// FromArtifact builds a baseline from a validated artifact
func FromArtifact(name, source string, art artifact.ConfigArtifact, now time.Time) Baseline {
	return Baseline{
		Name:         name,
		Section:      art.Section,
		ConfigHash:   art.ConfigVersion,
		ConfigValues: art.Values,
		Source:       source,
		Timestamp:    now.UTC().Truncate(time.Second),
	}
}

// Summary returns the listing view of b
func (b Baseline) Summary() BaselineSummary {
	return BaselineSummary{
		Name:       b.Name,
		Section:    b.Section,
		ConfigHash: b.ConfigHash,
		Source:     b.Source,
		Timestamp:  b.Timestamp,
	}
}
