package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "CAMVIEW_"

var durationType = reflect.TypeOf(time.Duration(0))

// LoadConfig fills a flat options struct with precedence
// CLI flag > environment > TOML file > struct defaults.
//
// Fields are mapped with `toml:"section.key"` and `env:"KEY"` tags. The file
// path is read from a string field named Config. If cmd is non-nil, flags the
// user set explicitly are left untouched.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: expected pointer to struct, got %T", opts)
	}
	v = v.Elem()

	var changed map[string]bool
	if cmd != nil {
		changed = changedFlags(cmd.Flags())
		// Flags inherited from a parent are only merged while executing.
		for name := range changedFlags(cmd.PersistentFlags()) {
			changed[name] = true
		}
	}

	if path := configPath(v); path != "" {
		if err := applyFile(v, path, changed); err != nil {
			return err
		}
	}

	applyEnv(v, changed)
	return nil
}

func changedFlags(fs *pflag.FlagSet) map[string]bool {
	changed := make(map[string]bool)
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

func configPath(v reflect.Value) string {
	f := v.FieldByName("Config")
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

// applyFile applies TOML values. A missing file is not an error.
func applyFile(v reflect.Value, path string, changed map[string]bool) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	t := v.Type()
	for i := range v.NumField() {
		ft := t.Field(i)
		if changed[fieldNameToFlag(ft.Name)] {
			continue
		}
		key := ft.Tag.Get("toml")
		if key == "" {
			continue
		}
		if value := getNestedValue(doc, key); value != nil {
			if err := setFieldValue(v.Field(i), value); err != nil {
				return fmt.Errorf("config key %s: %w", key, err)
			}
		}
	}
	return nil
}

// applyEnv applies environment overrides. Unparseable values are ignored.
func applyEnv(v reflect.Value, changed map[string]bool) {
	t := v.Type()
	for i := range v.NumField() {
		ft := t.Field(i)
		if changed[fieldNameToFlag(ft.Name)] {
			continue
		}
		key := ft.Tag.Get("env")
		if key == "" {
			continue
		}
		if value, ok := os.LookupEnv(EnvPrefix + key); ok && value != "" {
			setFieldValueFromString(v.Field(i), value)
		}
	}
}

// fieldNameToFlag converts a struct field name to the flag name humacli
// derives from it, e.g. "GracePeriodMs" -> "grace-period-ms".
func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue resolves a dotted key in a decoded TOML document.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current[parts[len(parts)-1]]
}

func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		switch x := value.(type) {
		case string:
			d, err := time.ParseDuration(x)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		case int64:
			field.SetInt(x * int64(time.Millisecond))
		default:
			return fmt.Errorf("expected duration, got %T", value)
		}
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, ok := value.(int64)
		if !ok {
			return fmt.Errorf("expected integer, got %T", value)
		}
		field.SetInt(i)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		slice := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string array item, got %T", item)
			}
			slice = append(slice, s)
		}
		field.Set(reflect.ValueOf(slice))
	}
	return nil
}

func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		if d, err := time.ParseDuration(value); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			slice := make([]string, 0, len(parts))
			for _, part := range parts {
				if p := strings.TrimSpace(part); p != "" {
					slice = append(slice, p)
				}
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}
