package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gridcfg/internal/baseline"
	"gridcfg/internal/schema"
)

// Exit codes
const (
	exitOK         = 0
	exitInvalid    = 1 // validation failed or usage error
	exitLoadError  = 3 // schema or document could not be loaded
	exitNoBaseline = 4
)

const defaultSection = "electricity"

func main() {
	// a missing .env is normal
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Environ(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError carries an exit code through cobra's error return.
// A nil err means the failure has already been reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fail(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// app holds the process surroundings so commands can run in tests
type app struct {
	ctx      context.Context
	environ  []string
	stdout   io.Writer
	stderr   io.Writer
	settings *viper.Viper
	logger   *slog.Logger
	clock    func() time.Time
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, environ []string, stdout, stderr io.Writer) int {
	a := &app{
		ctx:      ctx,
		environ:  environ,
		stdout:   stdout,
		stderr:   stderr,
		settings: viper.New(),
		logger:   slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		clock:    time.Now,
	}

	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "Error:", ee.err)
		}
		return ee.code
	}
	// flag parsing and argument count errors from cobra
	fmt.Fprintln(stderr, "Error:", err)
	return exitInvalid
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gridcfg",
		Short: "Validate PyPSA-Earth configuration sections",
		Long: `gridcfg checks the electricity (and solving) sections of a PyPSA-Earth
configuration against a typed option schema, normalizes the values,
and gates workflow runs on the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initSettings(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("settings", "", "settings file (default is $HOME/.gridcfg/settings.yaml)")
	pf.String("section", defaultSection, "config section to validate")
	pf.String("schema", "", "option schema file (default: built-in table for the section)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.Bool("no-color", false, "disable colored output")
	pf.Bool("ci", false, "emit GitHub Actions annotations")

	root.AddCommand(a.newCheckCmd())
	root.AddCommand(a.newRunCmd())
	root.AddCommand(a.newDiffCmd())
	root.AddCommand(a.newBaselineCmd())
	root.AddCommand(a.newSchemaCmd())
	return root
}

// settingKeys maps viper keys to their persistent flag names
var settingKeys = map[string]string{
	"section":        "section",
	"schema":         "schema",
	"log_level":      "log-level",
	"no_color":       "no-color",
	"ci":             "ci",
	"baseline_dir":   "",
	"watch_debounce": "",
}

// initSettings layers tool settings: defaults, then the settings file, then
// GRIDCFG_* variables, then flags.
func (a *app) initSettings(cmd *cobra.Command) error {
	v := a.settings
	v.SetDefault("section", defaultSection)
	v.SetDefault("log_level", "warn")
	v.SetDefault("baseline_dir", baseline.ResolveDir(nil))

	path, _ := cmd.Flags().GetString("settings")
	explicit := path != ""
	if !explicit {
		if home, ok := lookupEnv(a.environ, "HOME"); ok && home != "" {
			path = filepath.Join(home, ".gridcfg", "settings.yaml")
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return fail(exitInvalid, "failed to read settings %s: %w", path, err)
			}
		}
	}

	for key, flag := range settingKeys {
		if val, ok := lookupEnv(a.environ, "GRIDCFG_"+strings.ToUpper(key)); ok && val != "" {
			v.Set(key, val)
		}
		if flag != "" && cmd.Flags().Changed(flag) {
			v.Set(key, cmd.Flags().Lookup(flag).Value.String())
		}
	}

	if _, ok := lookupEnv(a.environ, "NO_COLOR"); ok || v.GetBool("no_color") {
		color.NoColor = true
	}

	level, err := parseLevel(v.GetString("log_level"))
	if err != nil {
		return fail(exitInvalid, "%w", err)
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	a.logger.Debug("settings resolved", "file", v.ConfigFileUsed(), "section", v.GetString("section"))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level '%s'", s)
	}
	return level, nil
}

func (a *app) section() string {
	return a.settings.GetString("section")
}

// ciMode reports whether GitHub Actions annotations are wanted
func (a *app) ciMode() bool {
	if a.settings.GetBool("ci") {
		return true
	}
	return envBool(a.environ, "CI")
}

func (a *app) baselineStore() *baseline.Store {
	return baseline.NewStore(a.settings.GetString("baseline_dir"))
}

// loadSchema returns the --schema file or the built-in table for the section
func (a *app) loadSchema() (*schema.Schema, error) {
	if path := a.settings.GetString("schema"); path != "" {
		s, err := schema.LoadSchemaFromPath(path)
		if err != nil {
			return nil, fail(exitLoadError, "%w", err)
		}
		a.logger.Debug("schema loaded", "path", path, "options", len(s.Paths()))
		return s, nil
	}
	s, err := schema.Builtin(a.section())
	if err != nil {
		return nil, fail(exitLoadError, "%w", err)
	}
	return s, nil
}

func lookupEnv(environ []string, name string) (string, bool) {
	prefix := name + "="
	for i := len(environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(environ[i], prefix) {
			return strings.TrimPrefix(environ[i], prefix), true
		}
	}
	return "", false
}

// envBool checks if an environment variable is set to a truthy value
func envBool(environ []string, name string) bool {
	val, _ := lookupEnv(environ, name)
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes"
}
