package validator

import (
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"gridcfg/internal/document"
	"gridcfg/internal/schema"
)

func electricity(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Builtin("electricity")
	if err != nil {
		t.Fatalf("Builtin(electricity) error = %v", err)
	}
	return s
}

func parseDoc(t *testing.T, content string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(content), document.FormatYAML, "config.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func kinds(errs []ValidationError) []ErrorKind {
	out := make([]ErrorKind, len(errs))
	for i, e := range errs {
		out[i] = e.Kind
	}
	return out
}

func keys(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Key
	}
	return out
}

func TestValidate_EmptyDocumentGetsAllDefaults(t *testing.T) {
	s := electricity(t)
	result := Validate(s, parseDoc(t, ""))

	if !result.Valid {
		t.Fatalf("expected valid, got errors: %v", FormatErrors(result))
	}

	for _, opt := range s.Options() {
		v, present := result.Values[opt.Path]
		if opt.HasDefault() != present {
			t.Errorf("%s: default present = %v, want %v", opt.Path, present, opt.HasDefault())
			continue
		}
		if present && !reflect.DeepEqual(v, opt.Default) {
			t.Errorf("%s = %#v, want default %#v", opt.Path, v, opt.Default)
		}
	}

	got, ok := result.Config.Get("operational_reserve.epsilon_load")
	if !ok || got != 0.02 {
		t.Errorf("normalized config epsilon_load = %v (%v), want 0.02", got, ok)
	}
}

func TestValidate_SingleErrorCases(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantKey  string
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name:     "epsilon_load above range",
			content:  "operational_reserve:\n  epsilon_load: 1.5\n",
			wantKey:  "operational_reserve.epsilon_load",
			wantKind: KindRange,
			wantMsg:  "1.5 is above maximum 1",
		},
		{
			name:     "custom_powerplants outside enumeration",
			content:  "custom_powerplants: delete\n",
			wantKey:  "custom_powerplants",
			wantKind: KindEnumeration,
			wantMsg:  "'delete' is not valid, must be one of: false, merge, replace",
		},
		{
			name:     "hydrogen pipeline without hydrogen store",
			content:  "extendable_carriers:\n  Link: [H2 pipeline]\n  Store: [battery]\n",
			wantKey:  "extendable_carriers.Link",
			wantKind: KindDependency,
			wantMsg:  "h2-pipeline-needs-h2-store",
		},
		{
			name:     "unknown top-level key",
			content:  "clustering: 5\n",
			wantKey:  "clustering",
			wantKind: KindUnknownKey,
		},
		{
			name:     "unknown nested mapping reported once",
			content:  "clustering:\n  simplify: true\n  cluster_network:\n    algorithm: kmeans\n",
			wantKey:  "clustering",
			wantKind: KindUnknownKey,
		},
		{
			name:     "unknown key inside known group",
			content:  "max_hours:\n  methanol: 10\n",
			wantKey:  "max_hours.methanol",
			wantKind: KindUnknownKey,
		},
		{
			name:     "bool outside closed string set",
			content:  "hvdc_as_lines: yes please\n",
			wantKey:  "hvdc_as_lines",
			wantKind: KindTypeMismatch,
			wantMsg:  "expected bool",
		},
		{
			name:     "string where float expected",
			content:  "co2limit: lots\n",
			wantKey:  "co2limit",
			wantKind: KindTypeMismatch,
		},
		{
			name:     "non-integral int",
			content:  "automatic_emission_base_year: 1990.5\n",
			wantKey:  "automatic_emission_base_year",
			wantKind: KindTypeMismatch,
		},
		{
			name:     "scalar where group expected",
			content:  "max_hours: 6\n",
			wantKey:  "max_hours",
			wantKind: KindTypeMismatch,
			wantMsg:  "expected a mapping",
		},
		{
			name:     "list member outside subset",
			content:  "extendable_carriers:\n  Generator: [OCGT, nuclear]\n",
			wantKey:  "extendable_carriers.Generator",
			wantKind: KindEnumeration,
			wantMsg:  "'nuclear' not allowed",
		},
		{
			name:     "true in allow_false enumeration",
			content:  "custom_powerplants: true\n",
			wantKey:  "custom_powerplants",
			wantKind: KindEnumeration,
		},
		{
			name:     "string True in allow_false enumeration",
			content:  "custom_powerplants: \"True\"\n",
			wantKey:  "custom_powerplants",
			wantKind: KindEnumeration,
			wantMsg:  "'true' is not valid",
		},
		{
			name:     "true in allow_false float",
			content:  "estimate_renewable_capacities:\n  p_nom_max: true\n",
			wantKey:  "estimate_renewable_capacities.p_nom_max",
			wantKind: KindTypeMismatch,
		},
		{
			name:     "negative capacity in float map",
			content:  "BAU_mincapacities:\n  solar: 5\n  onwind: -1\n",
			wantKey:  "BAU_mincapacities",
			wantKind: KindRange,
		},
		{
			name:     "empty path",
			content:  "agg_p_nom_limits: ''\n",
			wantKey:  "agg_p_nom_limits",
			wantKind: KindPath,
		},
		{
			name:     "voltage list outside allowed levels",
			content:  "voltages: [220, 400]\n",
			wantKey:  "voltages",
			wantKind: KindEnumeration,
		},
	}

	s := electricity(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(s, parseDoc(t, tt.content))
			if result.Valid {
				t.Fatal("expected invalid result")
			}
			if result.Config != nil {
				t.Error("invalid result must not carry a normalized config")
			}
			if len(result.Errors) != 1 {
				t.Fatalf("expected exactly 1 error, got %d: %v", len(result.Errors), FormatErrors(result))
			}
			e := result.Errors[0]
			if e.Key != tt.wantKey || e.Kind != tt.wantKind {
				t.Errorf("error = %s %s, want %s %s", e.Key, e.Kind, tt.wantKey, tt.wantKind)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", e.Message, tt.wantMsg)
			}
			if e.Source != "config.yaml" {
				t.Errorf("Source = %q, want config.yaml", e.Source)
			}
		})
	}
}

func TestValidate_SubsetErrorNamesOffendingMembers(t *testing.T) {
	result := Validate(electricity(t), parseDoc(t, "extendable_carriers:\n  Generator: [OCGT, nuclear, coal]\n"))
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", FormatErrors(result))
	}
	e := result.Errors[0]
	if e.Value != "nuclear, coal" {
		t.Errorf("Value = %q, want only the offending members", e.Value)
	}
	if len(e.Allowed) == 0 {
		t.Error("Allowed is empty for a subset error")
	}
}

func TestValidate_Coercion(t *testing.T) {
	s := electricity(t)
	result := Validate(s, parseDoc(t, `
hvdc_as_lines: "True"
automatic_emission: FALSE
co2limit: "1e8"
base_voltage: 220
automatic_emission_base_year: 2000.0
estimate_renewable_capacities:
  p_nom_max: "False"
powerplants_filter: false
BAU_mincapacities:
  solar: 1
  onwind: 2.5
`))
	if !result.Valid {
		t.Fatalf("expected valid, got %v", FormatErrors(result))
	}

	want := map[string]any{
		"hvdc_as_lines":                           true,
		"automatic_emission":                      false,
		"co2limit":                                1e8,
		"base_voltage":                            220.0,
		"automatic_emission_base_year":            2000,
		"estimate_renewable_capacities.p_nom_max": false,
		"powerplants_filter":                      false,
		"BAU_mincapacities":                       map[string]float64{"solar": 1, "onwind": 2.5},
	}
	for path, w := range want {
		if got := result.Values[path]; !reflect.DeepEqual(got, w) {
			t.Errorf("%s = %#v, want %#v", path, got, w)
		}
	}
}

func TestValidate_NullsAreAbsent(t *testing.T) {
	s := electricity(t)
	result := Validate(s, parseDoc(t, "co2limit:\noperational_reserve:\nmax_hours: {}\n"))
	if !result.Valid {
		t.Fatalf("expected valid, got %v", FormatErrors(result))
	}
	if result.Values["co2limit"] != 7.75e7 {
		t.Errorf("co2limit = %v, want default", result.Values["co2limit"])
	}
	if result.Values["max_hours.H2"] != 168.0 {
		t.Errorf("max_hours.H2 = %v, want default", result.Values["max_hours.H2"])
	}
}

func TestValidate_DottedAndNestedSamePath(t *testing.T) {
	s := electricity(t)
	content := "\"max_hours.battery\": 1\nmax_hours:\n  battery: 2\n  H2: 100\n"

	// map iteration order varies between runs, so repeat the same input
	for i := 0; i < 200; i++ {
		result := Validate(s, parseDoc(t, content))
		if result.Valid {
			t.Fatalf("run %d: expected invalid, got max_hours.battery = %v", i, result.Values["max_hours.battery"])
		}
		if len(result.Errors) != 1 {
			t.Fatalf("run %d: errors = %v, want exactly one", i, FormatErrors(result))
		}
		e := result.Errors[0]
		if e.Key != "max_hours.battery" || e.Kind != KindTypeMismatch || !strings.Contains(e.Message, "set more than once") {
			t.Fatalf("run %d: error = %+v", i, e)
		}
	}
}

func TestValidate_ErrorOrdering(t *testing.T) {
	s := electricity(t)
	result := Validate(s, parseDoc(t, `
zzz: 1
SAFE_reservemargin: -1
aaa: 2
operational_reserve:
  epsilon_load: 2
base_voltage: 100
`))

	wantKeys := []string{"base_voltage", "operational_reserve.epsilon_load", "SAFE_reservemargin", "aaa", "zzz"}
	if got := keys(result.Errors); !reflect.DeepEqual(got, wantKeys) {
		t.Errorf("error keys = %v, want %v", got, wantKeys)
	}
	wantKinds := []ErrorKind{KindEnumeration, KindRange, KindRange, KindUnknownKey, KindUnknownKey}
	if got := kinds(result.Errors); !reflect.DeepEqual(got, wantKinds) {
		t.Errorf("error kinds = %v, want %v", got, wantKinds)
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	s := electricity(t)
	result := Validate(s, parseDoc(t, `
operational_reserve:
  epsilon_load: 1.5
  epsilon_vres: -0.1
custom_powerplants: delete
extendable_carriers:
  Link: [H2 pipeline]
  Store: [battery]
  StorageUnit: [battery]
max_hours:
  battery: 0
unknown_a: 1
`))

	counts := CountByKind(result.Errors)
	if counts[KindRange] != 2 || counts[KindEnumeration] != 1 || counts[KindUnknownKey] != 1 || counts[KindDependency] != 2 {
		t.Errorf("unexpected error counts %v: %v", counts, FormatErrors(result))
	}

	// dependency errors are keyed at the first key the rule references
	depKeys := map[string]bool{}
	for _, e := range result.Errors {
		if e.Kind == KindDependency {
			depKeys[e.Key] = true
		}
	}
	if !depKeys["extendable_carriers.Link"] || !depKeys["extendable_carriers.StorageUnit"] {
		t.Errorf("dependency error keys = %v", depKeys)
	}
}

func TestValidate_DependencyRuleOrderAndSkipping(t *testing.T) {
	s, err := schema.ParseSchema([]byte(`
section: test
options:
  a:
    type: int
  b:
    type: int
    max: 10
rules:
  - name: a-below-b
    rule: 'a < b'
  - name: a-positive
    rule: 'a > 0'
`))
	if err != nil {
		t.Fatalf("ParseSchema() error = %v", err)
	}

	result := Validate(s, parseDoc(t, "a: 0\nb: 0\n"))
	wantKinds := []ErrorKind{KindDependency, KindDependency}
	if got := kinds(result.Errors); !reflect.DeepEqual(got, wantKinds) {
		t.Fatalf("kinds = %v, want %v", got, wantKinds)
	}
	if result.Errors[0].Rule != "a-below-b" || result.Errors[1].Rule != "a-positive" {
		t.Errorf("rules = %s, %s; want declaration order", result.Errors[0].Rule, result.Errors[1].Rule)
	}

	// a rule whose key failed a per-key check is skipped
	result = Validate(s, parseDoc(t, "a: 20\nb: 11\n"))
	if got := kinds(result.Errors); !reflect.DeepEqual(got, []ErrorKind{KindRange}) {
		t.Errorf("kinds = %v, want only the range error", got)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	s, err := schema.ParseSchema([]byte(`
section: test
options:
  solver.name:
    type: enum
    values: [glpk, highs]
    required: true
  solver.threads:
    type: int
    default: 1
`))
	if err != nil {
		t.Fatalf("ParseSchema() error = %v", err)
	}

	result := Validate(s, parseDoc(t, ""))
	if len(result.Errors) != 1 || result.Errors[0].Kind != KindMissingRequired || result.Errors[0].Key != "solver.name" {
		t.Fatalf("errors = %v, want one MissingRequiredKeyError for solver.name", FormatErrors(result))
	}

	result = Validate(s, parseDoc(t, "solver:\n  name: highs\n"))
	if !result.Valid {
		t.Fatalf("expected valid, got %v", FormatErrors(result))
	}
	if result.Values["solver.threads"] != 1 {
		t.Errorf("solver.threads = %v, want default 1", result.Values["solver.threads"])
	}
}

func TestValidate_FileChecker(t *testing.T) {
	s := electricity(t)
	doc := parseDoc(t, "agg_p_nom_limits: data/limits.csv\n")

	if result := Validate(s, doc); !result.Valid {
		t.Fatalf("without a checker the path is only checked for form: %v", FormatErrors(result))
	}

	var asked []string
	missing := FileCheckerFunc(func(p string) bool {
		asked = append(asked, p)
		return false
	})
	result := Validate(s, doc, WithFileChecker(missing))
	if len(result.Errors) != 1 || result.Errors[0].Kind != KindPath {
		t.Fatalf("errors = %v, want one PathError", FormatErrors(result))
	}
	if !reflect.DeepEqual(asked, []string{"data/limits.csv"}) {
		t.Errorf("checker asked about %v; defaults must not be checked", asked)
	}

	// defaulted paths are not checked
	if result := Validate(s, parseDoc(t, ""), WithFileChecker(missing)); !result.Valid {
		t.Errorf("defaulted path should not be checked: %v", FormatErrors(result))
	}
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "agg.csv"), []byte("country,carrier,min,max\n"), 0644); err != nil {
		t.Fatal(err)
	}

	fc := DirChecker(dir)
	if !fc.Exists("data/agg.csv") {
		t.Error("relative path should resolve against base dir")
	}
	if !fc.Exists(filepath.Join(dir, "data", "agg.csv")) {
		t.Error("absolute path should be used as is")
	}
	if fc.Exists("data/missing.csv") {
		t.Error("missing file reported as existing")
	}
}

func TestValidate_OverrideOrigin(t *testing.T) {
	s := electricity(t)
	doc := parseDoc(t, "co2limit: 1\n").Set("operational_reserve.epsilon_load", 3.0, "--set operational_reserve.epsilon_load")

	result := Validate(s, doc)
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v", FormatErrors(result))
	}
	if result.Errors[0].Source != "--set operational_reserve.epsilon_load" {
		t.Errorf("Source = %q", result.Errors[0].Source)
	}
}

// genValidElectricity builds random documents that satisfy the electricity table
func genValidElectricity() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(0.001, 1),
		gen.Float64Range(0, 1e9),
		gen.OneConstOf(220, 300, 380, "380"),
		gen.OneConstOf(true, false, "True", "false", "FALSE"),
		gen.IntRange(1900, 2100),
		gen.OneConstOf(false, "merge", "replace", "False"),
		gen.OneConstOf([]any{"battery", "H2"}, []any{"H2"}),
		gen.Float64Range(0, 100),
	).Map(func(vals []interface{}) map[string]any {
		return map[string]any{
			"operational_reserve": map[string]any{
				"epsilon_load": vals[0],
				"activate":     vals[3],
			},
			"co2limit":                     vals[1],
			"base_voltage":                 vals[2],
			"hvdc_as_lines":                vals[3],
			"automatic_emission_base_year": float64(vals[4].(int)),
			"custom_powerplants":           vals[5],
			"extendable_carriers":          map[string]any{"Store": vals[6]},
			"BAU_maxcapacities":            map[string]any{"solar": vals[7]},
		}
	})
}

// Feature: option-validation, Property 1: Idempotence
// Re-validating a normalized document yields the identical document with zero errors.
func TestValidate_Idempotence_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	s := electricity(t)

	properties.Property("normalized output validates to itself", prop.ForAll(
		func(tree map[string]any) bool {
			first := Validate(s, document.FromMap(tree, "gen"))
			if !first.Valid {
				t.Logf("first pass errors: %v", FormatErrors(first))
				return false
			}
			second := Validate(s, first.Config)
			if !second.Valid {
				t.Logf("second pass errors: %v", FormatErrors(second))
				return false
			}
			return reflect.DeepEqual(first.Config.Tree(), second.Config.Tree()) &&
				reflect.DeepEqual(first.Values, second.Values)
		},
		genValidElectricity(),
	))

	properties.TestingRun(t)
}

// Feature: option-validation, Property 2: Order Independence
// Permuting the input key order changes neither the output nor the errors.
func TestValidate_OrderIndependence_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	s := electricity(t)

	blocks := []string{
		"co2limit: 5e7\n",
		"custom_powerplants: delete\n",
		"operational_reserve:\n  epsilon_vres: 0.5\n  epsilon_load: 1.5\n",
		"extendable_carriers:\n  Store: [battery]\n  Link: [H2 pipeline]\n",
		"unknown_b: 1\n",
		"unknown_a:\n  nested: true\n",
		"max_hours:\n  H2: 24\n  battery: 3\n",
		"hvdc_as_lines: maybe\n",
	}
	baseline := Validate(s, parseDoc(t, strings.Join(blocks, "")))

	properties.Property("permuted documents validate identically", prop.ForAll(
		func(seed int64) bool {
			shuffled := append([]string(nil), blocks...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			result := Validate(s, parseDoc(t, strings.Join(shuffled, "")))
			return reflect.DeepEqual(result, baseline)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Feature: option-validation, Property 3: Unknown Key Accounting
// Every unrecognized top-level key yields exactly one UnknownKeyError.
func TestValidate_UnknownKeys_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	s := electricity(t)

	properties.Property("one error per unknown key", prop.ForAll(
		func(names []string) bool {
			tree := map[string]any{}
			for _, n := range names {
				tree["x_"+n] = map[string]any{"inner": n}
			}
			result := Validate(s, document.FromMap(tree, "gen"))
			if len(result.Errors) != len(tree) {
				return false
			}
			for i, e := range result.Errors {
				if e.Kind != KindUnknownKey || tree[e.Key] == nil {
					return false
				}
				if i > 0 && result.Errors[i-1].Key >= e.Key {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
