// ABOUTME: Tests for the layered config loader
// ABOUTME: Covers TOML, env and flag precedence plus malformed input
package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// testConfig mirrors the shape of Options with one field per supported kind.
type testConfig struct {
	Config string

	StringField   string        `toml:"test.string_field" env:"TEST_STRING_FIELD"`
	BoolField     bool          `toml:"test.bool_field" env:"TEST_BOOL_FIELD"`
	IntField      int           `toml:"test.int_field" env:"TEST_INT_FIELD"`
	FloatField    float64       `toml:"test.float_field" env:"TEST_FLOAT_FIELD"`
	DurationField time.Duration `toml:"test.duration_field" env:"TEST_DURATION_FIELD" flag:"wait"`

	NestedString string `toml:"nested.value" env:"TEST_NESTED_VALUE"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "multiplay.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
float_field = 0.25
duration_field = "1500ms"

[nested]
value = "nested value"
`)

	config := &testConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "hello world" {
		t.Errorf("Expected StringField to be 'hello world', got '%s'", config.StringField)
	}
	if !config.BoolField {
		t.Errorf("Expected BoolField to be true, got %v", config.BoolField)
	}
	if config.IntField != 42 {
		t.Errorf("Expected IntField to be 42, got %d", config.IntField)
	}
	if config.FloatField != 0.25 {
		t.Errorf("Expected FloatField to be 0.25, got %v", config.FloatField)
	}
	if config.DurationField != 1500*time.Millisecond {
		t.Errorf("Expected DurationField to be 1.5s, got %v", config.DurationField)
	}
	if config.NestedString != "nested value" {
		t.Errorf("Expected NestedString to be 'nested value', got '%s'", config.NestedString)
	}
}

func TestLoadConfigNumericDurationIsSeconds(t *testing.T) {
	path := writeConfig(t, "[test]\nduration_field = 3\n")

	config := &testConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.DurationField != 3*time.Second {
		t.Errorf("Expected 3s, got %v", config.DurationField)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "toml value"
bool_field = true
int_field = 100
`)

	t.Setenv("MULTIPLAY_TEST_STRING_FIELD", "env override")
	t.Setenv("MULTIPLAY_TEST_BOOL_FIELD", "false")
	t.Setenv("MULTIPLAY_TEST_DURATION_FIELD", "250ms")

	config := &testConfig{Config: path}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env override" {
		t.Errorf("Expected StringField to be 'env override', got '%s'", config.StringField)
	}
	if config.BoolField {
		t.Errorf("Expected BoolField to be false (env override), got %v", config.BoolField)
	}
	if config.IntField != 100 {
		t.Errorf("Expected IntField to be 100 (from TOML), got %d", config.IntField)
	}
	if config.DurationField != 250*time.Millisecond {
		t.Errorf("Expected DurationField 250ms (env), got %v", config.DurationField)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	path := writeConfig(t, "[test]\nstring_field = \"toml value\"\nduration_field = \"9s\"\n")
	t.Setenv("MULTIPLAY_TEST_STRING_FIELD", "env value")

	config := &testConfig{Config: path}
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd.Flags(), config)
	if err := cmd.Flags().Parse([]string{"--string-field", "flag value", "--wait", "2s"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if err := LoadConfig(config, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.StringField != "flag value" {
		t.Errorf("Expected flag to win, got %q", config.StringField)
	}
	if config.DurationField != 2*time.Second {
		t.Errorf("Expected flag duration 2s, got %v", config.DurationField)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &testConfig{Config: filepath.Join(t.TempDir(), "nonexistent.toml")}

	// The default file is optional
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing default file: %v", err)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	config := &testConfig{}
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd.Flags(), config)
	missing := filepath.Join(t.TempDir(), "nonexistent.toml")
	if err := cmd.Flags().Parse([]string{"--config", missing}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	err := LoadConfig(config, cmd)
	if !errors.Is(err, ErrMissingOrMalformed) {
		t.Fatalf("Expected ErrMissingOrMalformed, got %v", err)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"invalid toml", "[test\ninvalid toml syntax\n", nil},
		{"wrong type", "[test]\nint_field = \"forty\"\n", nil},
		{"bad duration", "[test]\nduration_field = \"soon\"\n", nil},
		{"bad env int", "", map[string]string{"MULTIPLAY_TEST_INT_FIELD": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			config := &testConfig{Config: writeConfig(t, tt.content)}
			err := LoadConfig(config, nil)
			if !errors.Is(err, ErrMissingOrMalformed) {
				t.Fatalf("Expected ErrMissingOrMalformed, got %v", err)
			}
		})
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"value": "nested_value",
			},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"level1.nonexistent", nil},
	}

	for _, test := range tests {
		result := getNestedValue(data, test.path)
		if result != test.expected {
			t.Errorf("getNestedValue(%q) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestFlagName(t *testing.T) {
	typ := reflect.TypeOf(testConfig{})

	tests := []struct {
		field string
		want  string
	}{
		{"Config", "config"},
		{"StringField", "string-field"},
		{"DurationField", "wait"},
	}

	for _, tt := range tests {
		field, ok := typ.FieldByName(tt.field)
		if !ok {
			t.Fatalf("field %s not found", tt.field)
		}
		if got := FlagName(field); got != tt.want {
			t.Errorf("FlagName(%s) = %q, want %q", tt.field, got, tt.want)
		}
	}
}
