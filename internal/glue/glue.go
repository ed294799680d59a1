// Package glue renders the native glue module for a bundle of extracted
// declarations: the package constant, the runtime prelude, and for every
// entity its embedded record followed by its shims and entry points.
//
// The module is meant to be declared as a child of the crate root that
// holds the marked declarations (mod kotars_glue;), so it reaches them,
// private fields included, through use super::*.
package glue

import (
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/kotars/internal/codec"
	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/marshal"
	"github.com/roach88/kotars/internal/signature"
)

// FileName is the default name of the generated module.
const FileName = "kotars_glue.rs"

//go:embed prelude.rs
var prelude string

// Prelude returns the runtime support every glue module starts with.
func Prelude() string { return prelude }

// Options tune naming. The zero value uses the default conventions.
type Options struct {
	Prefix string
	Suffix string

	// EraseOptionals encodes optional primitives with their primitive
	// descriptor in field reads, constructors and callbacks. Host fields
	// declared Int? are boxed, so generated glue boxes unless told not to.
	EraseOptionals bool
}

// Encoder returns the signature encoder for pkg under these options.
func (o Options) Encoder(pkg string) *signature.Encoder {
	return &signature.Encoder{
		Package:      pkg,
		Prefix:       o.Prefix,
		Suffix:       o.Suffix,
		BoxOptionals: !o.EraseOptionals,
	}
}

type writer struct {
	b strings.Builder
}

func (w *writer) line(format string, args ...any) {
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *writer) block(s string) {
	w.b.WriteString(strings.TrimRight(s, "\n"))
	w.b.WriteString("\n\n")
}

func (w *writer) record(r codec.Record) error {
	block, err := codec.Encode(r)
	if err != nil {
		return err
	}
	w.b.WriteString(block)
	w.b.WriteByte('\n')
	return nil
}

// Generate renders the glue module for b.
func Generate(b *ir.Bundle, opts Options) ([]byte, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}
	enc := opts.Encoder(b.Package)
	classes := marshal.Classes(b)

	w := &writer{}
	w.line("// @generated by kotars %s. Do not edit.", ir.GeneratorVersion)
	w.line("#![allow(dead_code, unused_imports, clippy::all)]")
	w.line("")
	w.line("use super::*;")
	w.line("")
	w.line("%s", codec.PackageLine(b.Package))
	w.line("")
	w.block(prelude)

	entries := 0
	for _, class := range b.Classes {
		w.line("// %s", class.Name)
		if err := w.record(codec.ClassRecord(class)); err != nil {
			return nil, fmt.Errorf("class %s: %w", class.Name, err)
		}
		w.block(marshal.ClassShim(class, enc))

		for _, fn := range b.FunctionsOf(class.Name) {
			entry, err := marshal.EntryPoint(fn, enc, classes)
			if err != nil {
				return nil, err
			}
			if err := w.record(codec.FunctionRecord(fn)); err != nil {
				return nil, fmt.Errorf("function %s::%s: %w", fn.Owner, fn.Name, err)
			}
			w.block(entry.Rust())
			entries++
		}
	}

	for _, data := range b.DataClasses {
		shim, err := marshal.DataClassShim(data, enc)
		if err != nil {
			return nil, err
		}
		w.line("// %s", data.Name)
		if err := w.record(codec.DataClassRecord(data)); err != nil {
			return nil, fmt.Errorf("data class %s: %w", data.Name, err)
		}
		w.block(shim)
	}

	for _, iface := range b.Interfaces {
		bridge, err := marshal.Bridge(iface, enc)
		if err != nil {
			return nil, err
		}
		w.line("// %s", iface.Name)
		if err := w.record(codec.InterfaceRecord(iface)); err != nil {
			return nil, fmt.Errorf("interface %s: %w", iface.Name, err)
		}
		w.block(bridge)
	}

	out := strings.TrimRight(w.b.String(), "\n") + "\n"
	Logger().Info("generated glue",
		zap.String("package", b.Package),
		zap.Int("classes", len(b.Classes)),
		zap.Int("data_classes", len(b.DataClasses)),
		zap.Int("interfaces", len(b.Interfaces)),
		zap.Int("entry_points", entries),
		zap.Int("bytes", len(out)))
	return []byte(out), nil
}

// Validate checks that the bundle is closed: every function belongs to a
// class, every callback type names a declared interface, and no name is
// declared twice.
func Validate(b *ir.Bundle) error {
	kinds := make(map[string]string)
	declare := func(name, kind string) error {
		if prev, ok := kinds[name]; ok {
			return fmt.Errorf("%s declared as both %s and %s", name, prev, kind)
		}
		kinds[name] = kind
		return nil
	}
	for _, s := range b.Classes {
		if err := declare(s.Name, "class"); err != nil {
			return err
		}
	}
	for _, s := range b.DataClasses {
		if err := declare(s.Name, "data class"); err != nil {
			return err
		}
	}
	for _, i := range b.Interfaces {
		if err := declare(i.Name, "interface"); err != nil {
			return err
		}
	}

	check := func(where string, t ir.WireType) error {
		inner, _ := ir.Unwrap(t)
		switch v := inner.(type) {
		case ir.CallbackType:
			if kinds[v.Name] != "interface" {
				return fmt.Errorf("%s: callback type %s is not a declared interface", where, v.Name)
			}
		case ir.NamedType:
			if _, ok := kinds[v.Name]; !ok {
				Logger().Warn("type is not declared in this bundle; it must implement IntoEnv/FromEnv itself",
					zap.String("where", where), zap.String("type", v.Name))
			}
		}
		return nil
	}
	checkFn := func(fn ir.Function) error {
		where := fn.Owner + "::" + fn.Name
		for _, p := range fn.NamedParameters() {
			if err := check(where+" "+p.Name, p.Type); err != nil {
				return err
			}
		}
		if fn.ReturnType != nil {
			return check(where+" return", fn.ReturnType)
		}
		return nil
	}

	seen := make(map[string]bool)
	for _, fn := range b.Functions {
		if kinds[fn.Owner] != "class" {
			return fmt.Errorf("function %s::%s: %s is not a declared class", fn.Owner, fn.Name, fn.Owner)
		}
		key := fn.Owner + "::" + fn.Name
		if seen[key] {
			return fmt.Errorf("function %s declared twice", key)
		}
		seen[key] = true
		if err := checkFn(fn); err != nil {
			return err
		}
	}
	// Class fields stay native; only data class fields cross the boundary.
	// A data class is copied field by field, which cannot lend a handle.
	for _, s := range b.DataClasses {
		for i, f := range s.Fields {
			where := s.Name + "." + f.SafeName(i)
			inner, _ := ir.Unwrap(f.Type)
			if n, ok := inner.(ir.NamedType); ok && kinds[n.Name] == "class" {
				return fmt.Errorf("%s: class %s cannot be a data class field", where, n.Name)
			}
			if err := check(where, f.Type); err != nil {
				return err
			}
		}
	}
	for _, iface := range b.Interfaces {
		for _, fn := range iface.Functions {
			if err := checkFn(fn); err != nil {
				return err
			}
		}
	}
	return nil
}
