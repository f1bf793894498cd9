package drift

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatCLI formats drift report for terminal output.
func FormatCLI(report DriftReport) string {
	if !report.HasDrift {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚠️  Configuration drift detected since baseline '%s':\n", report.BaselineName))

	for _, change := range report.Changes {
		switch change.Type {
		case DriftAdded:
			sb.WriteString(fmt.Sprintf("  + %s: (new) → %s\n", change.Key, change.CurrentValue))
		case DriftRemoved:
			sb.WriteString(fmt.Sprintf("  - %s: %s → (removed)\n", change.Key, change.BaselineValue))
		case DriftChanged:
			sb.WriteString(fmt.Sprintf("  ~ %s: %s → %s\n", change.Key, change.BaselineValue, change.CurrentValue))
		}
	}

	sb.WriteString("\nValidation result is unaffected.\n")
	return sb.String()
}

// FormatCI formats drift report as GitHub Actions warning annotations.
func FormatCI(report DriftReport) string {
	if !report.HasDrift {
		return ""
	}

	file := report.Source
	if file == "" {
		file = "config.yaml"
	}

	var sb strings.Builder
	for _, change := range report.Changes {
		var msg string
		switch change.Type {
		case DriftAdded:
			msg = fmt.Sprintf("Config drift: %s added (value: %s)", change.Key, change.CurrentValue)
		case DriftRemoved:
			msg = fmt.Sprintf("Config drift: %s removed (was: %s)", change.Key, change.BaselineValue)
		case DriftChanged:
			msg = fmt.Sprintf("Config drift: %s changed from '%s' to '%s'", change.Key, change.BaselineValue, change.CurrentValue)
		}
		sb.WriteString(fmt.Sprintf("::warning file=%s::%s\n", file, msg))
	}

	sb.WriteString(fmt.Sprintf("\n⚠️  Configuration drift detected: %d change(s) since baseline '%s'\n", len(report.Changes), report.BaselineName))
	return sb.String()
}

// FormatJSON formats drift report as JSON.
func FormatJSON(report DriftReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatComparison formats a two-document comparison for terminal output
func FormatComparison(c Comparison) string {
	var sb strings.Builder
	if !c.HasDifferences() {
		sb.WriteString(fmt.Sprintf("No differences between %s and %s\n", c.First, c.Second))
		return sb.String()
	}

	if diff := c.KeyDifference(); len(diff) > 0 {
		sb.WriteString("That is the difference in key names:\n")
		for _, key := range c.OnlyInFirst {
			sb.WriteString(fmt.Sprintf("  - %s (only in %s)\n", key, c.First))
		}
		for _, key := range c.OnlyInSecond {
			sb.WriteString(fmt.Sprintf("  + %s (only in %s)\n", key, c.Second))
		}
	}

	if len(c.Changed) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("That is the comparison result:\n")
		for _, d := range c.Changed {
			sb.WriteString(fmt.Sprintf("  ~ %s: %s → %s\n", d.Key, d.First, d.Second))
		}
	}
	return sb.String()
}

// FormatComparisonJSON formats a comparison as JSON
func FormatComparisonJSON(c Comparison) (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
