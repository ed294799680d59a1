package codec

import (
	"fmt"
	"strings"

	"github.com/roach88/kotars/internal/ir"
)

// Markers and tags of the record format.
const (
	StartMarker = "JNI_BINDING_START"
	EndMarker   = "JNI_BINDING_END"

	TagFunction  = "JNI_FN_DATA"
	TagClass     = "JNI_CLASS"
	TagDataClass = "JNI_DATA_CLASS"
	TagInterface = "JNI_INTERFACE"

	// PackagePrefix starts the one declaration line that names the host
	// package in generated glue.
	PackagePrefix = `pub const JNI_PACKAGE_NAME: &str = "`

	commentPrefix = "/// "
)

// Tags lists every record tag.
var Tags = []string{TagFunction, TagClass, TagDataClass, TagInterface}

// CheckTags reports an error if any tag occurs inside another, which
// would let a substring match misclassify a record.
func CheckTags(tags []string) error {
	for i, a := range tags {
		if a == "" || strings.ContainsAny(a, " \t") {
			return fmt.Errorf("tag %q must be a non-empty word", a)
		}
		for j, b := range tags {
			if i != j && strings.Contains(b, a) {
				return fmt.Errorf("tag %q occurs inside tag %q", a, b)
			}
		}
	}
	return nil
}

// Record pairs an IR node with the tag that classifies it.
type Record struct {
	Tag  string
	Node any // ir.Function, ir.Struct or ir.Interface
}

// FunctionRecord tags an impl or free function.
func FunctionRecord(fn ir.Function) Record { return Record{Tag: TagFunction, Node: fn} }

// ClassRecord tags a handle-backed class.
func ClassRecord(s ir.Struct) Record { return Record{Tag: TagClass, Node: s} }

// DataClassRecord tags a by-value data class.
func DataClassRecord(s ir.Struct) Record { return Record{Tag: TagDataClass, Node: s} }

// InterfaceRecord tags a callback interface.
func InterfaceRecord(i ir.Interface) Record { return Record{Tag: TagInterface, Node: i} }

func (r Record) check() error {
	var ok bool
	switch r.Tag {
	case TagFunction:
		_, ok = r.Node.(ir.Function)
	case TagClass, TagDataClass:
		_, ok = r.Node.(ir.Struct)
	case TagInterface:
		_, ok = r.Node.(ir.Interface)
	default:
		return fmt.Errorf("unknown tag %q", r.Tag)
	}
	if !ok {
		return fmt.Errorf("tag %s cannot carry %T", r.Tag, r.Node)
	}
	return nil
}

// Line renders the record line without its comment prefix:
// "<TAG> <canonical json>".
func (r Record) Line() (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	v, err := ir.ToValue(r.Node)
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.Tag, err)
	}
	payload, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.Tag, err)
	}
	return r.Tag + " " + string(payload), nil
}

// Encode renders a complete three-line record block.
func Encode(r Record) (string, error) {
	line, err := r.Line()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(commentPrefix + StartMarker + " v" + ir.RecordVersion + "\n")
	b.WriteString(commentPrefix + line + "\n")
	b.WriteString(commentPrefix + EndMarker)
	return b.String(), nil
}

// PackageLine renders the package declaration PackageName looks for.
func PackageLine(pkg string) string {
	return PackagePrefix + pkg + `";`
}
