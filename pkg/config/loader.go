package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/go-playground/validator/v10"
	"github.com/openfroyo/cbc/pkg/netalloc"
	"gopkg.in/yaml.v3"
)

// EnvDB overrides store.path.
const EnvDB = "CBC_DB"

// Format is the syntax of a configuration source.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatOf picks the format from a file extension. JSON is read as YAML.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
}

// ValidationError locates one configuration problem.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors is every problem found in one load.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.String()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Load reads path, applies defaults and the CBC_DB override, and
// validates the result. An empty path loads the defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		applyEnv(cfg)
		return cfg, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, format, path)
}

// Parse decodes data over the defaults. name labels error positions.
func Parse(data []byte, format Format, name string) (*Config, error) {
	cfg := Default()

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
	case FormatCUE:
		raw, err := compileCUE(data, name)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}

	if cfg.Telemetry == nil {
		cfg.Telemetry = Default().Telemetry
	}
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// compileCUE checks data against the schema and returns it as JSON.
func compileCUE(data []byte, name string) ([]byte, error) {
	ctx, def, err := schema()
	if err != nil {
		return nil, err
	}

	val := ctx.CompileBytes(data, cue.Filename(name))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err, val, name)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(err, val, name)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, convertCUEErrors(err, val, name)
	}
	return raw, nil
}

// convertCUEErrors flattens err into ValidationErrors. Errors without a
// position of their own, such as failed disjunctions, are placed at the
// closest input value on their path, or at the file named name.
func convertCUEErrors(err error, src cue.Value, name string) error {
	var out ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		if len(path) > 0 && path[0] == "#Config" {
			path = path[1:]
		}
		ve := ValidationError{
			File:    name,
			Path:    strings.Join(path, "."),
			Message: cueerrors.Details(e, nil),
		}

		pos, ok := errorPosition(e, name)
		if !ok {
			pos, ok = inputPosition(src, path)
		}
		if ok {
			ve.File = pos.Filename()
			ve.Line = pos.Line()
			ve.Column = pos.Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		return err
	}
	return out
}

// errorPosition returns the first position in file name reported by e or
// by the errors it wraps. Positions inside the schema are skipped.
func errorPosition(e cueerrors.Error, name string) (token.Pos, bool) {
	for err := error(e); err != nil; err = errors.Unwrap(err) {
		for _, p := range cueerrors.Positions(err) {
			if p.IsValid() && p.Filename() == name {
				return p, true
			}
		}
	}
	return token.NoPos, false
}

// inputPosition returns the position of the deepest value of src along
// path.
func inputPosition(src cue.Value, path []string) (token.Pos, bool) {
	if src.Err() != nil {
		return token.NoPos, false
	}
	for n := len(path); n > 0; n-- {
		sels := make([]cue.Selector, n)
		for i, p := range path[:n] {
			sels[i] = cue.Str(p)
		}
		v := src.LookupPath(cue.MakePath(sels...))
		if v.Exists() && v.Pos().IsValid() {
			return v.Pos(), true
		}
	}
	return token.NoPos, false
}

func applyEnv(cfg *Config) {
	if db := os.Getenv(EnvDB); db != "" {
		cfg.Store.Path = db
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report yaml key paths
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("ipv4prefix", func(fl validator.FieldLevel) bool {
		_, err := netalloc.ParseInterface("", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("octal", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseUint(fl.Field().String(), 8, 32)
		return err == nil
	})
	return v
}

// Validate checks cfg, including the telemetry section.
func Validate(cfg *Config) error {
	var out ValidationErrors

	if err := validate.Struct(cfg); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Path:    strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: describe(fe),
			})
		}
	}

	if cfg.Telemetry != nil {
		if err := cfg.Telemetry.Validate(); err != nil {
			out = append(out, ValidationError{Path: "telemetry", Message: err.Error()})
		}
	}

	if len(out) > 0 {
		return out
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "ipv4prefix":
		return fmt.Sprintf("%q is not an IPv4 address with prefix length", fe.Value())
	case "duration":
		return fmt.Sprintf("%q is not a duration", fe.Value())
	case "octal":
		return fmt.Sprintf("%q is not an octal file mode", fe.Value())
	default:
		return fmt.Sprintf("failed %s=%s on %v", fe.Tag(), fe.Param(), fe.Value())
	}
}
