// Package baseline keeps known-good normalized configs on disk so later checks
// can report drift. Each config section has its own namespace:
//
//	<dir>/<section>/<name>.json
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrBaselineNotFound is returned when a baseline doesn't exist.
var ErrBaselineNotFound = errors.New("baseline not found")

// DirEnvVar overrides the baseline directory
const DirEnvVar = "GRIDCFG_BASELINE_DIR"

// Store reads and writes baselines under Dir
type Store struct {
	Dir string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// DefaultDir returns ~/.gridcfg/baselines, or a relative fallback without a home directory
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gridcfg", "baselines")
	}
	return filepath.Join(home, ".gridcfg", "baselines")
}

// ResolveDir picks GRIDCFG_BASELINE_DIR from environ, else DefaultDir
func ResolveDir(environ []string) string {
	prefix := DirEnvVar + "="
	for _, env := range environ {
		if dir, ok := strings.CutPrefix(env, prefix); ok && dir != "" {
			return dir
		}
	}
	return DefaultDir()
}

// Save writes b into its section, replacing a baseline of the same name there.
// The file is replaced atomically so a concurrent check never reads half a baseline.
func (s *Store) Save(b Baseline) error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("baseline name must not be empty")
	}
	if strings.TrimSpace(b.Section) == "" {
		return fmt.Errorf("baseline '%s' has no config section", b.Name)
	}

	file := s.file(b.Section, b.Name)
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode baseline '%s': %w", b.Name, err)
	}
	return writeFileAtomic(file, data, 0644)
}

// Load reads the named baseline of a section
func (s *Store) Load(section, name string) (Baseline, error) {
	b, err := readBaseline(s.file(section, name))
	if errors.Is(err, os.ErrNotExist) {
		return Baseline{}, fmt.Errorf("%w: %s", ErrBaselineNotFound, name)
	}
	if err != nil {
		return Baseline{}, err
	}
	if b.Section != section {
		return Baseline{}, fmt.Errorf("baseline '%s' records section '%s', stored under '%s'", name, b.Section, section)
	}
	return b, nil
}

// List summarizes every readable baseline of every section, ordered by
// section then name. Files that do not decode are skipped.
func (s *Store) List() ([]BaselineSummary, error) {
	files, err := filepath.Glob(filepath.Join(s.Dir, "*", "*.json"))
	if err != nil {
		return nil, err
	}

	summaries := []BaselineSummary{}
	for _, f := range files {
		b, err := readBaseline(f)
		if err != nil {
			continue
		}
		summaries = append(summaries, b.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Section != summaries[j].Section {
			return summaries[i].Section < summaries[j].Section
		}
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

// Delete removes the named baseline of a section
func (s *Store) Delete(section, name string) error {
	err := os.Remove(s.file(section, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrBaselineNotFound, name)
	}
	return err
}

// Exists reports whether a section has a baseline called name
func (s *Store) Exists(section, name string) bool {
	_, err := os.Stat(s.file(section, name))
	return err == nil
}

func (s *Store) file(section, name string) string {
	return filepath.Join(s.Dir, fileName(section), fileName(name)+".json")
}

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_")

// fileName maps a baseline or section name to a single path element
func fileName(name string) string {
	return unsafeChars.Replace(name)
}

func readBaseline(path string) (Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Baseline{}, err
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, fmt.Errorf("corrupt baseline %s: %w", path, err)
	}
	if b.ConfigValues == nil {
		b.ConfigValues = map[string]any{}
	}
	return b, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
