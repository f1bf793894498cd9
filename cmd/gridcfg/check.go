package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gridcfg/internal/artifact"
	"gridcfg/internal/baseline"
	"gridcfg/internal/document"
	"gridcfg/internal/drift"
	"gridcfg/internal/resolver"
	"gridcfg/internal/schema"
	"gridcfg/internal/validator"
	"gridcfg/internal/watch"
)

const defaultConfigFile = "config.yaml"

// inputFlags are the override and output flags shared by check and run
type inputFlags struct {
	sets         []string
	envFile      string
	baseline     string
	detectDrift  string
	artifactFile string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringArrayVar(&f.sets, "set", nil, "override an option, e.g. --set operational_reserve.epsilon_load=0.05 (repeatable)")
	fl.StringVar(&f.envFile, "env-file", "", "read GRIDCFG_OPT_* overrides from a .env file")
	fl.StringVar(&f.baseline, "baseline", "", "store the normalized config as a named baseline")
	fl.StringVar(&f.detectDrift, "detect-drift", "", "report drift against a named baseline")
	fl.StringVar(&f.artifactFile, "artifact-file", "", "write the config artifact (with configVersion) as JSON")
}

// fileReport is the outcome of validating one config file
type fileReport struct {
	Path     string
	Result   validator.ValidationResult
	Artifact artifact.ConfigArtifact
	Drift    *drift.DriftReport
	Err      error // load or override failure; Result is empty when set
}

func (r fileReport) valid() bool {
	return r.Err == nil && r.Result.Valid
}

// overrideSet is the parsed --env-file and --set input, reused for every file
type overrideSet struct {
	dotenv []string
	origin string
	sets   []resolver.Override
}

func (a *app) prepareOverrides(f *inputFlags) (overrideSet, error) {
	var o overrideSet
	if f.envFile != "" {
		env, err := resolver.ReadDotEnv(f.envFile)
		if err != nil {
			return o, fail(exitLoadError, "%w", err)
		}
		o.dotenv = env
		o.origin = f.envFile
	}
	for _, arg := range f.sets {
		ov, err := resolver.ParseSet(arg)
		if err != nil {
			return o, fail(exitInvalid, "%w", err)
		}
		o.sets = append(o.sets, ov)
	}
	return o, nil
}

// validateFile loads path, selects the section, applies overrides and validates.
func (a *app) validateFile(s *schema.Schema, path string, o overrideSet) fileReport {
	rep := fileReport{Path: path}

	doc, err := document.Load(path)
	if err != nil {
		rep.Err = fail(exitLoadError, "%s: %w", path, err)
		return rep
	}
	if sub, ok := doc.Section(s.Name()); ok {
		doc = sub
	} else if v, present := doc.Get(s.Name()); present && v == nil {
		doc = document.FromMap(map[string]any{}, doc.Source())
	}

	var overrides []resolver.Override
	if o.origin != "" {
		overrides = append(overrides, resolver.FromEnviron(s, o.dotenv, o.origin)...)
	}
	overrides = append(overrides, resolver.FromEnviron(s, a.environ, "environment")...)
	overrides = append(overrides, o.sets...)
	doc, err = resolver.Apply(s, doc, overrides)
	if err != nil {
		rep.Err = fail(exitInvalid, "%s: %w", path, err)
		return rep
	}

	rep.Result = validator.Validate(s, doc, validator.WithFileChecker(validator.DirChecker(filepath.Dir(path))))
	if rep.Result.Valid {
		rep.Artifact = artifact.GenerateArtifact(s.Name(), rep.Result.Values)
	}
	a.logger.Debug("validated", "file", path, "valid", rep.Result.Valid, "errors", len(rep.Result.Errors))
	return rep
}

// validateAll validates files concurrently against one schema; reports keep argument order
func (a *app) validateAll(s *schema.Schema, paths []string, o overrideSet) []fileReport {
	reports := make([]fileReport, len(paths))
	var g errgroup.Group
	g.SetLimit(8)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			reports[i] = a.validateFile(s, path, o)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// afterValidation stores baselines, detects drift and writes artifacts for a valid report
func (a *app) afterValidation(rep *fileReport, f *inputFlags) error {
	if !rep.valid() {
		return nil
	}
	store := a.baselineStore()

	if f.detectDrift != "" {
		b, err := store.Load(rep.Artifact.Section, f.detectDrift)
		if err != nil {
			if errors.Is(err, baseline.ErrBaselineNotFound) {
				return fail(exitNoBaseline, "baseline not found: %s", f.detectDrift)
			}
			return fail(exitInvalid, "cannot load baseline: %w", err)
		}
		report := drift.Detect(b, rep.Artifact, rep.Path)
		rep.Drift = &report
	}

	if f.baseline != "" {
		b := baseline.FromArtifact(f.baseline, rep.Path, rep.Artifact, a.clock())
		if err := store.Save(b); err != nil {
			return fail(exitInvalid, "cannot save baseline: %w", err)
		}
		a.logger.Info("baseline saved", "name", f.baseline, "configVersion", rep.Artifact.ConfigVersion)
	}

	if f.artifactFile != "" {
		if err := rep.Artifact.WriteToFile(f.artifactFile); err != nil {
			return fail(exitInvalid, "cannot write artifact: %s: %w", f.artifactFile, err)
		}
	}
	return nil
}

func (a *app) newCheckCmd() *cobra.Command {
	var (
		flags   inputFlags
		jsonOut bool
		output  string
		watchOn bool
	)

	cmd := &cobra.Command{
		Use:   "check [config files...]",
		Short: "Validate config files and report every error",
		Long: `Validate one or more configuration files (YAML, JSON or TOML) against the
option schema. Files are validated in parallel and reported in argument order.
Defaults to ./config.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{defaultConfigFile}
			}
			single := flags.baseline != "" || flags.artifactFile != "" || output != ""
			if single && len(paths) > 1 {
				return fail(exitInvalid, "--baseline, --artifact-file and --output take a single config file")
			}

			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			o, err := a.prepareOverrides(&flags)
			if err != nil {
				return err
			}

			check := func(paths []string) error {
				reports := a.validateAll(s, paths, o)
				var postErr error
				for i := range reports {
					if err := a.afterValidation(&reports[i], &flags); err != nil && postErr == nil {
						postErr = err
					}
					if output != "" && reports[i].valid() {
						if err := a.writeNormalized(reports[i].Artifact, output); err != nil && postErr == nil {
							postErr = err
						}
					}
				}
				if jsonOut {
					if err := a.printJSONReport(s.Name(), reports); err != nil {
						return err
					}
				} else {
					for _, rep := range reports {
						a.printTextReport(rep)
					}
				}
				if postErr != nil {
					return postErr
				}
				return checkExit(reports)
			}

			err = check(paths)
			if !watchOn {
				return err
			}
			a.reportError(err)
			return a.watchAndCheck(paths, check)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the normalized config (.yaml/.json, '-' for stdout)")
	cmd.Flags().BoolVar(&watchOn, "watch", false, "re-validate whenever a config file changes")
	return cmd
}

// checkExit picks the exit status for a set of reports: load errors outrank validation failures
func checkExit(reports []fileReport) error {
	code := exitOK
	for _, rep := range reports {
		switch {
		case rep.Err != nil:
			var ee *exitError
			if errors.As(rep.Err, &ee) && ee.code > code {
				code = ee.code
			} else if code < exitInvalid {
				code = exitInvalid
			}
		case !rep.Result.Valid && code < exitInvalid:
			code = exitInvalid
		}
	}
	if code == exitOK {
		return nil
	}
	return &exitError{code: code}
}

func (a *app) writeNormalized(art artifact.ConfigArtifact, output string) error {
	if output == "-" {
		data, err := art.ConfigYAML()
		if err != nil {
			return fail(exitInvalid, "cannot serialize config: %w", err)
		}
		_, err = a.stdout.Write(data)
		return err
	}
	if err := art.WriteConfig(output); err != nil {
		return fail(exitInvalid, "cannot write config: %s: %w", output, err)
	}
	return nil
}

// watchAndCheck re-runs check for changed files until the context is cancelled
func (a *app) watchAndCheck(paths []string, check func([]string) error) error {
	w, err := watch.New(paths, a.settings.GetDuration("watch_debounce"), a.logger)
	if err != nil {
		return fail(exitInvalid, "%w", err)
	}

	// events carry absolute paths; report files under the names they were given
	given := make(map[string]string, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			given[filepath.Clean(abs)] = p
		}
	}

	fmt.Fprintf(a.stderr, "Watching %d file(s) for changes (Ctrl-C to stop)\n", len(paths))
	return w.Run(a.ctx, func(changed []string) {
		names := make([]string, len(changed))
		for i, c := range changed {
			names[i] = c
			if p, ok := given[c]; ok {
				names[i] = p
			}
		}
		a.reportError(check(names))
	})
}

// reportError prints err unless it only carries an already reported exit status
func (a *app) reportError(err error) {
	var ee *exitError
	if errors.As(err, &ee) && ee.err == nil {
		return
	}
	if err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
	}
}
