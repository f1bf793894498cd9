package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"

	"gridcfg/internal/drift"
	"gridcfg/internal/validator"
)

var (
	colorOK    = color.New(color.FgGreen)
	colorError = color.New(color.FgRed)
	colorFail  = color.New(color.FgRed, color.Bold)
)

// printTextReport writes the human-readable outcome of one file.
// Success goes to stdout; errors, annotations and drift go to stderr.
func (a *app) printTextReport(rep fileReport) {
	if rep.Err != nil {
		var ee *exitError
		msg := rep.Err.Error()
		if errors.As(rep.Err, &ee) && ee.err != nil {
			msg = ee.err.Error()
		}
		if a.ciMode() {
			fmt.Fprintf(a.stderr, "::error file=%s::%s\n", rep.Path, msg)
			return
		}
		colorError.Fprintln(a.stderr, "Error:", msg)
		return
	}

	if !rep.Result.Valid {
		if a.ciMode() {
			for _, verr := range rep.Result.Errors {
				fmt.Fprintf(a.stderr, "::error file=%s::%s\n", rep.Path, describeError(rep.Path, verr))
			}
		} else {
			for _, verr := range rep.Result.Errors {
				colorError.Fprintln(a.stderr, describeError(rep.Path, verr))
			}
		}
		colorFail.Fprintf(a.stderr, "❌ %s: validation failed: %d error(s)\n", rep.Path, len(rep.Result.Errors))
		return
	}

	colorOK.Fprintf(a.stdout, "✓ %s: config valid (configVersion %s)\n", rep.Path, rep.Artifact.ConfigVersion)
	if rep.Drift != nil {
		if a.ciMode() {
			fmt.Fprint(a.stderr, drift.FormatCI(*rep.Drift))
		} else {
			fmt.Fprint(a.stderr, drift.FormatCLI(*rep.Drift))
		}
	}
}

// describeError formats a validation error, naming its origin when it did not come from the file
func describeError(path string, verr validator.ValidationError) string {
	msg := validator.FormatError(verr)
	if verr.Source != "" && verr.Source != path {
		msg += fmt.Sprintf(" (from %s)", verr.Source)
	}
	return msg
}

type jsonError struct {
	Key     string   `json:"key"`
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Source  string   `json:"source,omitempty"`
	Value   string   `json:"value,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
	Rule    string   `json:"rule,omitempty"`
}

type jsonFile struct {
	File          string             `json:"file"`
	Valid         bool               `json:"valid"`
	ConfigVersion string             `json:"configVersion,omitempty"`
	Errors        []jsonError        `json:"errors,omitempty"`
	Error         string             `json:"error,omitempty"`
	Drift         *drift.DriftReport `json:"drift,omitempty"`
}

type jsonReport struct {
	Valid   bool       `json:"valid"`
	Section string     `json:"section"`
	Files   []jsonFile `json:"files"`
}

// printJSONReport writes one JSON document covering every file to stdout
func (a *app) printJSONReport(section string, reports []fileReport) error {
	out := jsonReport{Valid: true, Section: section, Files: make([]jsonFile, 0, len(reports))}
	for _, rep := range reports {
		f := jsonFile{File: rep.Path, Valid: rep.valid(), Drift: rep.Drift}
		if rep.Err != nil {
			var ee *exitError
			f.Error = rep.Err.Error()
			if errors.As(rep.Err, &ee) && ee.err != nil {
				f.Error = ee.err.Error()
			}
		}
		if f.Valid {
			f.ConfigVersion = rep.Artifact.ConfigVersion
		}
		for _, verr := range rep.Result.Errors {
			f.Errors = append(f.Errors, jsonError{
				Key:     verr.Key,
				Kind:    string(verr.Kind),
				Message: validator.FormatError(verr),
				Source:  verr.Source,
				Value:   verr.Value,
				Allowed: verr.Allowed,
				Rule:    verr.Rule,
			})
		}
		out.Valid = out.Valid && f.Valid
		out.Files = append(out.Files, f)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fail(exitInvalid, "cannot serialize report: %w", err)
	}
	fmt.Fprintln(a.stdout, string(data))
	return nil
}
