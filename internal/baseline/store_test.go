package baseline

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"gridcfg/internal/artifact"
)

// genConfigValues generates normalized value maps that survive a JSON round trip unchanged
func genConfigValues() gopter.Gen {
	return gen.MapOf(gen.Identifier(), gen.AlphaString()).Map(func(m map[string]string) map[string]any {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	})
}

// genBaseline generates random baselines
func genBaseline() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(), // name
		gen.OneConstOf("electricity", "solving"),
		genConfigValues(),
		gen.Identifier(), // source
	).Map(func(vals []interface{}) Baseline {
		values := vals[2].(map[string]any)
		return Baseline{
			Name:         vals[0].(string),
			Section:      vals[1].(string),
			ConfigHash:   artifact.ComputeConfigVersion(values),
			ConfigValues: values,
			Source:       vals[3].(string) + ".yaml",
			Timestamp:    time.Now().UTC().Truncate(time.Second),
		}
	})
}

// Feature: baselines, Property 1: Baseline Round-Trip
// For any valid baseline, saving and loading preserves all fields.
func TestBaselineRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("save then load preserves baseline", prop.ForAll(
		func(b Baseline) bool {
			tmpDir, err := os.MkdirTemp("", "baseline-test-*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(tmpDir)

			store := NewStore(tmpDir)
			if err := store.Save(b); err != nil {
				return false
			}
			loaded, err := store.Load(b.Section, b.Name)
			if err != nil {
				return false
			}

			return loaded.Name == b.Name &&
				loaded.Section == b.Section &&
				loaded.ConfigHash == b.ConfigHash &&
				loaded.Source == b.Source &&
				reflect.DeepEqual(loaded.ConfigValues, b.ConfigValues) &&
				loaded.Timestamp.Equal(b.Timestamp)
		},
		genBaseline(),
	))

	properties.TestingRun(t)
}

// Feature: baselines, Property 2: Baseline Directory Configuration
// When GRIDCFG_BASELINE_DIR is set, that directory is used.
func TestResolveDirRespectsEnvVar(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ResolveDir uses GRIDCFG_BASELINE_DIR when set", prop.ForAll(
		func(customDir string) bool {
			return ResolveDir([]string{"PATH=/bin", DirEnvVar + "=" + customDir}) == customDir
		},
		gen.Identifier().Map(func(s string) string {
			return "/custom/" + s
		}),
	))

	properties.Property("ResolveDir uses default when env var not set", prop.ForAll(
		func(otherVar string) bool {
			return ResolveDir([]string{"OTHER_VAR=" + otherVar}) == DefaultDir()
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

// Feature: baselines, Property 3: Multiple Named Baselines
// Baselines with distinct names are stored separately, and one name may be
// reused across sections.
func TestMultipleNamedBaselines(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("multiple baselines with different names are stored separately", prop.ForAll(
		func(name1, name2 string) bool {
			if name1 == name2 {
				return true
			}

			tmpDir, err := os.MkdirTemp("", "baseline-test-*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(tmpDir)

			store := NewStore(tmpDir)
			for _, b := range []Baseline{
				{Name: name1, Section: "electricity", ConfigHash: "sha256:hash1"},
				{Name: name2, Section: "electricity", ConfigHash: "sha256:hash2"},
				{Name: name1, Section: "solving", ConfigHash: "sha256:hash3"},
			} {
				if err := store.Save(b); err != nil {
					return false
				}
			}

			loaded1, err := store.Load("electricity", name1)
			if err != nil {
				return false
			}
			loaded2, err := store.Load("electricity", name2)
			if err != nil {
				return false
			}
			loaded3, err := store.Load("solving", name1)
			if err != nil {
				return false
			}
			return loaded1.ConfigHash == "sha256:hash1" &&
				loaded2.ConfigHash == "sha256:hash2" &&
				loaded3.ConfigHash == "sha256:hash3"
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

// Feature: baselines, Property 4: Baseline List and Delete
// List returns every saved baseline and delete removes exactly the named one.
func TestBaselineListAndDelete(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("list returns all saved baselines, delete removes specific one", prop.ForAll(
		func(name string) bool {
			tmpDir, err := os.MkdirTemp("", "baseline-test-*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(tmpDir)

			store := NewStore(tmpDir)
			if err := store.Save(Baseline{Name: name, Section: "electricity", ConfigHash: "sha256:hash", ConfigValues: map[string]any{}}); err != nil {
				return false
			}

			summaries, err := store.List()
			if err != nil || len(summaries) != 1 || summaries[0].Name != name {
				return false
			}

			if err := store.Delete("electricity", name); err != nil {
				return false
			}
			if store.Exists("electricity", name) {
				return false
			}

			summaries, err = store.List()
			return err == nil && len(summaries) == 0
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestList_SortedBySectionThenName(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	for _, b := range []Baseline{
		{Name: "zeta", Section: "solving"},
		{Name: "zeta", Section: "electricity"},
		{Name: "alpha", Section: "electricity"},
	} {
		if err := store.Save(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "electricity", "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "electricity", "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	summaries, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, s := range summaries {
		got = append(got, s.Section+"/"+s.Name)
	}
	want := []string{"electricity/alpha", "electricity/zeta", "solving/zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestList_MissingDir(t *testing.T) {
	summaries, err := NewStore(filepath.Join(t.TempDir(), "absent")).List()
	if err != nil || len(summaries) != 0 {
		t.Errorf("List() = %v, %v", summaries, err)
	}
}

func TestFromArtifact(t *testing.T) {
	art := artifact.GenerateArtifact("electricity", map[string]any{"base_voltage": 380.0})
	now := time.Date(2026, 3, 1, 12, 30, 15, 999, time.FixedZone("CET", 3600))

	b := FromArtifact("reference", "config.yaml", art, now)
	if b.ConfigHash != art.ConfigVersion || b.Section != "electricity" || b.Source != "config.yaml" {
		t.Errorf("FromArtifact() = %+v", b)
	}
	if b.Timestamp.Location() != time.UTC || b.Timestamp.Nanosecond() != 0 {
		t.Errorf("Timestamp = %v, want UTC truncated to seconds", b.Timestamp)
	}
}

func TestSave_RejectsMissingNameOrSection(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(Baseline{Name: " ", Section: "electricity"}); err == nil {
		t.Error("Save() with a blank name should fail")
	}
	if err := store.Save(Baseline{Name: "prod"}); err == nil {
		t.Error("Save() without a section should fail")
	}
}

func TestSave_LayoutAndSanitizedName(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := store.Save(Baseline{Name: "runs/2026", Section: "electricity"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "electricity", "runs_2026.json")); err != nil {
		t.Errorf("expected <section>/<sanitized name>.json: %v", err)
	}
	if !store.Exists("electricity", "runs/2026") {
		t.Error("Exists() should find the sanitized baseline")
	}
	if store.Exists("solving", "runs/2026") {
		t.Error("Exists() found the baseline under another section")
	}

	entries, err := os.ReadDir(filepath.Join(dir, "electricity"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("section directory holds %d entries, want only the baseline", len(entries))
	}
}

func TestLoad_RejectsMisfiledBaseline(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "solving"), 0755); err != nil {
		t.Fatal(err)
	}
	content := `{"name": "prod", "section": "electricity", "configHash": "sha256:x"}`
	if err := os.WriteFile(filepath.Join(dir, "solving", "prod.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(dir).Load("solving", "prod"); err == nil {
		t.Error("Load() should reject a baseline recorded for another section")
	}
}

func TestDefaultDir(t *testing.T) {
	dir := DefaultDir()
	if dir == "" {
		t.Error("DefaultDir returned empty string")
	}
	if !filepath.IsAbs(dir) && dir != filepath.Join(".gridcfg", "baselines") {
		t.Errorf("DefaultDir returned unexpected path: %s", dir)
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := NewStore(t.TempDir()).Load("electricity", "nonexistent")
	if !errors.Is(err, ErrBaselineNotFound) {
		t.Errorf("expected ErrBaselineNotFound, got %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	err := NewStore(t.TempDir()).Delete("electricity", "nonexistent")
	if !errors.Is(err, ErrBaselineNotFound) {
		t.Errorf("expected ErrBaselineNotFound, got %v", err)
	}
}
