package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// TestConfig represents a test configuration structure.
type TestConfig struct {
	Config string `help:"Config file path"`

	StringField   string        `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField     bool          `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField      int           `toml:"test.int_field" env:"INT_FIELD"`
	SliceField    []string      `toml:"test.slice_field" env:"SLICE_FIELD"`
	DurationField time.Duration `toml:"test.duration_field" env:"DURATION_FIELD"`

	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rworker.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeTempConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
slice_field = ["item1", "item2", "item3"]
duration_field = "1m30s"

[nested]
value = "nested value"
`)

	config := &TestConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "hello world" {
		t.Errorf("StringField = %q, want %q", config.StringField, "hello world")
	}
	if !config.BoolField {
		t.Errorf("BoolField = %v, want true", config.BoolField)
	}
	if config.IntField != 42 {
		t.Errorf("IntField = %d, want 42", config.IntField)
	}
	expectedSlice := []string{"item1", "item2", "item3"}
	if !reflect.DeepEqual(config.SliceField, expectedSlice) {
		t.Errorf("SliceField = %v, want %v", config.SliceField, expectedSlice)
	}
	if config.DurationField != 90*time.Second {
		t.Errorf("DurationField = %v, want 1m30s", config.DurationField)
	}
	if config.NestedString != "nested value" {
		t.Errorf("NestedString = %q, want %q", config.NestedString, "nested value")
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("RWORKER_STRING_FIELD", "env string")
	t.Setenv("RWORKER_BOOL_FIELD", "false")
	t.Setenv("RWORKER_INT_FIELD", "123")
	t.Setenv("RWORKER_SLICE_FIELD", "a,b,c")
	t.Setenv("RWORKER_DURATION_FIELD", "250ms")
	t.Setenv("RWORKER_NESTED_VALUE", "env nested")

	config := &TestConfig{BoolField: true}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env string" {
		t.Errorf("StringField = %q, want %q", config.StringField, "env string")
	}
	if config.BoolField {
		t.Errorf("BoolField = %v, want false", config.BoolField)
	}
	if config.IntField != 123 {
		t.Errorf("IntField = %d, want 123", config.IntField)
	}
	if !reflect.DeepEqual(config.SliceField, []string{"a", "b", "c"}) {
		t.Errorf("SliceField = %v, want [a b c]", config.SliceField)
	}
	if config.DurationField != 250*time.Millisecond {
		t.Errorf("DurationField = %v, want 250ms", config.DurationField)
	}
	if config.NestedString != "env nested" {
		t.Errorf("NestedString = %q, want %q", config.NestedString, "env nested")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeTempConfig(t, `
[test]
string_field = "toml value"
int_field = 100
`)
	t.Setenv("RWORKER_STRING_FIELD", "env value")
	t.Setenv("RWORKER_INT_FIELD", "200")

	cmd := &cobra.Command{}
	var port int
	cmd.Flags().IntVar(&port, "int-field", 0, "")
	if err := cmd.Flags().Set("int-field", "300"); err != nil {
		t.Fatal(err)
	}

	config := &TestConfig{Config: path, IntField: 300}
	if err := LoadConfig(config, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env value" {
		t.Errorf("env should override TOML, got %q", config.StringField)
	}
	if config.IntField != 300 {
		t.Errorf("CLI flag should win, got %d", config.IntField)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":             "port",
		"LoggingLevel":     "logging-level",
		"PoolPrepared":     "pool-prepared",
		"ChannelTransport": "channel-transport",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"pool": map[string]any{
			"prepared": int64(2),
			"nested":   map[string]any{"deep": "x"},
		},
		"flat": "y",
	}

	if got := getNestedValue(data, "pool.prepared"); got != int64(2) {
		t.Errorf("pool.prepared = %v", got)
	}
	if got := getNestedValue(data, "pool.nested.deep"); got != "x" {
		t.Errorf("pool.nested.deep = %v", got)
	}
	if got := getNestedValue(data, "flat"); got != "y" {
		t.Errorf("flat = %v", got)
	}
	if got := getNestedValue(data, "flat.child"); got != nil {
		t.Errorf("flat.child = %v, want nil", got)
	}
	if got := getNestedValue(data, "missing.key"); got != nil {
		t.Errorf("missing.key = %v, want nil", got)
	}
}

func TestSetFieldValueIgnoresMismatchedTypes(t *testing.T) {
	s := &TestConfig{IntField: 7}
	v := reflect.ValueOf(s).Elem()

	setFieldValue(v.FieldByName("IntField"), "not a number")
	if s.IntField != 7 {
		t.Errorf("IntField changed to %d", s.IntField)
	}

	setFieldValue(v.FieldByName("DurationField"), int64(3))
	if s.DurationField != 3*time.Second {
		t.Errorf("integer durations are seconds, got %v", s.DurationField)
	}

	setFieldValue(v.FieldByName("StringField"), true)
	if s.StringField != "true" {
		t.Errorf("bool into string = %q, want \"true\"", s.StringField)
	}
}

func TestSetFieldValueFromStringTrimsSlices(t *testing.T) {
	s := &TestConfig{}
	v := reflect.ValueOf(s).Elem()
	setFieldValueFromString(v.FieldByName("SliceField"), " a , b , c ")
	if !reflect.DeepEqual(s.SliceField, []string{"a", "b", "c"}) {
		t.Errorf("SliceField = %v", s.SliceField)
	}

	setFieldValueFromString(v.FieldByName("BoolField"), "maybe")
	if s.BoolField {
		t.Error("unparseable bool should be ignored")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &TestConfig{Config: "nonexistent_file.toml"}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeTempConfig(t, "[test\ninvalid toml syntax\n")
	if err := LoadConfig(&TestConfig{Config: path}, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

// LoggingOptions matches the logging fields in main.go Options struct.
type LoggingOptions struct {
	Config         string `help:"Config file path"`
	LoggingLevel   string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPool    string `toml:"logging.pool" env:"LOGGING_POOL"`
	LoggingProcess string `toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingAPI     string `toml:"logging.api" env:"LOGGING_API"`
}

func TestLoadLoggingModuleLevels(t *testing.T) {
	path := writeTempConfig(t, `
[logging]
level = "info"
format = "json"
pool = "debug"
process = "warn"
api = "error"
`)

	config := &LoggingOptions{
		Config:         path,
		LoggingLevel:   "info",
		LoggingFormat:  "text",
		LoggingPool:    "info",
		LoggingProcess: "info",
		LoggingAPI:     "info",
	}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	tests := []struct {
		field string
		got   string
		want  string
	}{
		{"LoggingLevel", config.LoggingLevel, "info"},
		{"LoggingFormat", config.LoggingFormat, "json"},
		{"LoggingPool", config.LoggingPool, "debug"},
		{"LoggingProcess", config.LoggingProcess, "warn"},
		{"LoggingAPI", config.LoggingAPI, "error"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}

	cfg := LoadLoggingConfig(path)
	if cfg.Format != "json" || cfg.Modules["pool"] != "debug" || cfg.Modules["api"] != "error" {
		t.Errorf("LoadLoggingConfig = %+v", cfg)
	}
	if _, ok := cfg.Modules["level"]; ok {
		t.Error("level must not be treated as a module")
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	for _, path := range []string{"", "does-not-exist.toml"} {
		cfg := LoadLoggingConfig(path)
		if cfg.Level != "info" || cfg.Format != "text" || len(cfg.Modules) != 0 {
			t.Errorf("LoadLoggingConfig(%q) = %+v, want defaults", path, cfg)
		}
	}
}
