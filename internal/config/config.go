// Package config loads the project configuration from kotars.cue or
// kotars.yaml. Both formats are checked against the same embedded CUE
// schema, which also supplies the defaults.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kotars/internal/glue"
	"github.com/roach88/kotars/internal/render"
)

//go:embed schema.cue
var schemaSource string

// FileNames are the configuration files looked up, in order.
var FileNames = []string{"kotars.cue", "kotars.yaml", "kotars.yml"}

// Config is the resolved project configuration. Paths are relative to the
// directory holding the configuration file.
type Config struct {
	// Package is the host package. When empty, the package declared in
	// the sources is used.
	Package string `json:"host_package,omitempty" yaml:"host_package"`

	Prefix         string `json:"prefix,omitempty" yaml:"prefix"`
	Suffix         string `json:"suffix,omitempty" yaml:"suffix"`
	EraseOptionals bool   `json:"erase_optionals,omitempty" yaml:"erase_optionals"`

	// Library is loaded by the generated host objects.
	Library     string `json:"library,omitempty" yaml:"library"`
	PackageDirs bool   `json:"package_dirs,omitempty" yaml:"package_dirs"`

	Sources  []string `json:"sources,omitempty" yaml:"sources"`
	Glue     string   `json:"glue,omitempty" yaml:"glue"`
	Expand   []string `json:"expand,omitempty" yaml:"expand"`
	Output   string   `json:"output,omitempty" yaml:"output"`
	Manifest string   `json:"manifest,omitempty" yaml:"manifest"`

	// Dir is the directory the configuration was loaded from.
	Dir string `json:"-" yaml:"-"`
}

// Error is a configuration error with its position when known.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := resolve(cuecontext.New(), "defaults", func(ctx *cue.Context) cue.Value {
		return ctx.CompileString("{}")
	})
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Find returns the first configuration file in dir, or "" when there is
// none.
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads the configuration in path, selecting the format by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg *Config
	switch filepath.Ext(path) {
	case ".cue":
		cfg, err = ParseCUE(path, data)
	case ".yaml", ".yml":
		cfg, err = ParseYAML(path, data)
	default:
		return nil, &Error{Path: path, Message: "unknown config format, expected .cue or .yaml"}
	}
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Discover loads the configuration file in dir, or returns Default when
// there is none.
func Discover(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		cfg := Default()
		cfg.Dir = dir
		Logger().Debug("no config file, using defaults")
		return cfg, nil
	}
	return Load(path)
}

// ParseCUE parses a CUE configuration.
func ParseCUE(name string, data []byte) (*Config, error) {
	return resolve(cuecontext.New(), name, func(ctx *cue.Context) cue.Value {
		return ctx.CompileBytes(data, cue.Filename(name))
	})
}

// ParseYAML parses a YAML configuration. Unknown keys are rejected.
func ParseYAML(name string, data []byte) (*Config, error) {
	var raw Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Path: name, Message: err.Error()}
	}
	return resolve(cuecontext.New(), name, func(ctx *cue.Context) cue.Value {
		return ctx.Encode(raw)
	})
}

func resolve(ctx *cue.Context, name string, build func(*cue.Context) cue.Value) (*Config, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, convert(name, err)
	}

	v := build(ctx)
	if err := v.Err(); err != nil {
		return nil, convert(name, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(); err != nil {
		return nil, convert(name, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, convert(name, err)
	}
	return &cfg, nil
}

func convert(name string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Path: name, Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Path: name, Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		out.Pos = pos[0]
	}
	return out
}

// Resolve returns p relative to the configuration directory.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// PackageFor returns the configured package, falling back to declared.
func (c *Config) PackageFor(declared string) string {
	if c.Package != "" {
		return c.Package
	}
	return declared
}

// GlueOptions returns the glue generator options.
func (c *Config) GlueOptions() glue.Options {
	return glue.Options{Prefix: c.Prefix, Suffix: c.Suffix, EraseOptionals: c.EraseOptionals}
}

// Renderer returns a host renderer for pkg using the same naming as the
// glue.
func (c *Config) Renderer(pkg string) *render.Renderer {
	return &render.Renderer{
		Encoder:     c.GlueOptions().Encoder(pkg),
		Library:     c.Library,
		PackageDirs: c.PackageDirs,
	}
}
