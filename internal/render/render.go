// Package render turns scanned IR into host-language (Kotlin) sources:
// one file per class, data class and interface, plus the fixed support
// file that releases leaked native objects.
package render

import (
	_ "embed"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/signature"
)

// SupportFileName is the name of the fixed support file.
const SupportFileName = "AutoCloseThread.kt"

//go:embed AutoCloseThread.kt
var supportSource string

const indentUnit = "    "

// File is one rendered source file. Path is slash-separated and relative
// to the output directory.
type File struct {
	Path    string
	Content []byte
}

// Renderer renders Kotlin for one package.
type Renderer struct {
	// Encoder supplies the package and the host object naming; it must
	// match the encoder the glue was generated with.
	Encoder *signature.Encoder

	// Library, when set, is loaded by every host object before its first
	// external call.
	Library string

	// PackageDirs nests files under directories named after the package.
	PackageDirs bool
}

// New returns a Renderer for pkg with default naming.
func New(pkg string) *Renderer {
	return &Renderer{Encoder: signature.New(pkg)}
}

func (r *Renderer) header(b *strings.Builder) {
	fmt.Fprintf(b, "// @generated by kotars %s. Do not edit.\n", ir.GeneratorVersion)
	if pkg := r.Encoder.Package; pkg != "" {
		fmt.Fprintf(b, "package %s\n", pkg)
	}
	b.WriteString("\n")
}

// SupportFile renders the phantom-reference safety net that disposes
// objects collected without close().
func (r *Renderer) SupportFile() string {
	var b strings.Builder
	r.header(&b)
	b.WriteString(supportSource)
	return b.String()
}

// Class renders a handle-backed class: instance forwarders for functions
// with a receiver, companion forwarders for the rest, close(), and the
// private object holding the external declarations.
func (r *Renderer) Class(s ir.Struct, fns []ir.Function) (string, error) {
	object := r.Encoder.HostObject(s.Name)

	var members, statics, externals [][]string
	for _, fn := range fns {
		if fn.Owner != s.Name {
			return "", fmt.Errorf("function %s::%s rendered into class %s", fn.Owner, fn.Name, s.Name)
		}
		if err := ir.ValidateParameters(fn.Parameters); err != nil {
			return "", fmt.Errorf("function %s::%s: %w", fn.Owner, fn.Name, err)
		}

		name := KotlinName(signature.CamelCase(fn.Name))
		if name == "close" && len(fn.NamedParameters()) == 0 && !fn.IsStatic() {
			return "", fmt.Errorf("function %s::%s clashes with AutoCloseable.close()", fn.Owner, fn.Name)
		}
		ret := returnSuffix(fn.ReturnType)
		var params, args, external []string
		for _, p := range fn.Parameters {
			switch v := p.(type) {
			case ir.Receiver:
				args = append(args, "this.pointer")
				external = append(external, "pointer: Long")
			case ir.Named:
				decl := KotlinName(v.Name) + ": " + signature.KotlinType(v.Type)
				params = append(params, decl)
				args = append(args, KotlinName(v.Name))
				external = append(external, decl)
			}
		}

		forwarder := []string{
			fmt.Sprintf("fun %s(%s)%s =", name, strings.Join(params, ", "), ret),
			fmt.Sprintf("%s%s.%s(%s)", indentUnit, object, name, strings.Join(args, ", ")),
		}
		if fn.IsStatic() {
			statics = append(statics, forwarder)
		} else {
			members = append(members, forwarder)
		}
		externals = append(externals, []string{
			"@JvmStatic",
			fmt.Sprintf("external fun %s(%s)%s", name, strings.Join(external, ", "), ret),
		})
	}

	var b strings.Builder
	r.header(&b)
	fmt.Fprintf(&b, "class %s private constructor(private val pointer: Long) : AutoCloseable {\n", s.Name)
	fmt.Fprintf(&b, "    private val resource: NativeResource = thread.addObject(this, pointer, %q) { %s.destroy(it) }\n", s.Name, object)
	for _, m := range members {
		b.WriteString("\n")
		writeLines(&b, 1, m)
	}
	b.WriteString("\n")
	b.WriteString("    override fun close() {\n")
	b.WriteString("        resource.close()\n")
	b.WriteString("        thread.remove(resource)\n")
	b.WriteString("    }\n")
	if len(statics) > 0 {
		b.WriteString("\n")
		b.WriteString("    companion object {\n")
		for i, m := range statics {
			if i > 0 {
				b.WriteString("\n")
			}
			writeLines(&b, 2, m)
		}
		b.WriteString("    }\n")
	}
	b.WriteString("}\n")

	b.WriteString("\n")
	fmt.Fprintf(&b, "private object %s {\n", object)
	if r.Library != "" {
		b.WriteString("    init {\n")
		fmt.Fprintf(&b, "        System.loadLibrary(%q)\n", r.Library)
		b.WriteString("    }\n\n")
	}
	for _, e := range externals {
		writeLines(&b, 1, e)
		b.WriteString("\n")
	}
	writeLines(&b, 1, []string{"@JvmStatic", "external fun destroy(pointer: Long)"})
	b.WriteString("}\n")
	return b.String(), nil
}

// DataClass renders a by-value data class. Unnamed fields are called
// param<index>; a struct without fields becomes a plain class.
func (r *Renderer) DataClass(s ir.Struct) string {
	var b strings.Builder
	r.header(&b)
	if len(s.Fields) == 0 {
		fmt.Fprintf(&b, "class %s\n", s.Name)
		return b.String()
	}
	fmt.Fprintf(&b, "data class %s(\n", s.Name)
	for i, f := range s.Fields {
		fmt.Fprintf(&b, "    val %s: %s,\n", KotlinName(f.SafeName(i)), signature.KotlinType(f.Type))
	}
	b.WriteString(")\n")
	return b.String()
}

// Interface renders a callback contract. The receiver is dropped: it is
// the implementing object itself.
func (r *Renderer) Interface(i ir.Interface) string {
	var b strings.Builder
	r.header(&b)
	if len(i.Functions) == 0 {
		fmt.Fprintf(&b, "interface %s\n", i.Name)
		return b.String()
	}
	fmt.Fprintf(&b, "interface %s {\n", i.Name)
	for n, fn := range i.Functions {
		if n > 0 {
			b.WriteString("\n")
		}
		var params []string
		for _, p := range fn.NamedParameters() {
			params = append(params, KotlinName(p.Name)+": "+signature.KotlinType(p.Type))
		}
		fmt.Fprintf(&b, "    fun %s(%s)%s\n", KotlinName(signature.CamelCase(fn.Name)), strings.Join(params, ", "), returnSuffix(fn.ReturnType))
	}
	b.WriteString("}\n")
	return b.String()
}

// Bundle renders every entity of b plus the support file. Functions are
// grouped under their owning class; a function whose owner is not a
// declared class is an error.
func (r *Renderer) Bundle(b *ir.Bundle) ([]File, error) {
	for _, fn := range b.Functions {
		if _, ok := b.Class(fn.Owner); !ok {
			return nil, fmt.Errorf("function %s::%s: no class declaration for %s", fn.Owner, fn.Name, fn.Owner)
		}
	}

	files := []File{r.file(strings.TrimSuffix(SupportFileName, ".kt"), r.SupportFile())}
	for _, s := range b.DataClasses {
		files = append(files, r.file(s.Name, r.DataClass(s)))
	}
	for _, s := range b.Classes {
		src, err := r.Class(s, b.FunctionsOf(s.Name))
		if err != nil {
			return nil, err
		}
		files = append(files, r.file(s.Name, src))
	}
	for _, i := range b.Interfaces {
		files = append(files, r.file(i.Name, r.Interface(i)))
	}

	Logger().Debug("rendered bundle",
		zap.String("package", r.Encoder.Package),
		zap.Int("files", len(files)))
	return files, nil
}

func (r *Renderer) file(name, content string) File {
	p := name + ".kt"
	if r.PackageDirs && r.Encoder.Package != "" {
		p = path.Join(strings.ReplaceAll(r.Encoder.Package, ".", "/"), p)
	}
	return File{Path: p, Content: []byte(content)}
}

func returnSuffix(t ir.WireType) string {
	if t == nil {
		return ""
	}
	return ": " + signature.KotlinType(t)
}

func writeLines(b *strings.Builder, depth int, lines []string) {
	prefix := strings.Repeat(indentUnit, depth)
	for _, l := range lines {
		b.WriteString(prefix + l + "\n")
	}
}

var hardKeywords = map[string]bool{
	"as": true, "break": true, "class": true, "continue": true, "do": true,
	"else": true, "false": true, "for": true, "fun": true, "if": true,
	"in": true, "interface": true, "is": true, "null": true, "object": true,
	"package": true, "return": true, "super": true, "this": true, "throw": true,
	"true": true, "try": true, "typealias": true, "typeof": true, "val": true,
	"var": true, "when": true, "while": true,
}

// KotlinName quotes identifiers that are hard keywords in Kotlin.
func KotlinName(name string) string {
	if hardKeywords[name] {
		return "`" + name + "`"
	}
	return name
}
