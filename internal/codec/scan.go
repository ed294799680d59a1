package codec

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/roach88/kotars/internal/ir"
)

// ErrNoPackage is returned when no package declaration line exists.
var ErrNoPackage = errors.New("package name not found")

// Error locates a malformed record.
type Error struct {
	Line int
	Tag  string
	Err  error
}

func (e *Error) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("line %d: %s record: %v", e.Line, e.Tag, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const docAttrPrefix = `#[doc = "`

// Scan recovers every record inside START/END blocks of text. Records
// outside a block are ignored. The bundle's package is filled in when a
// package line is present.
func Scan(text string) (*ir.Bundle, error) {
	b := &ir.Bundle{}
	if pkg, err := PackageName(text); err == nil {
		b.Package = pkg
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo, openedAt := 0, 0
	for sc.Scan() {
		lineNo++
		content, ok, err := recordText(sc.Text())
		if err != nil {
			return nil, &Error{Line: lineNo, Err: err}
		}
		if !ok {
			continue
		}

		if rest, found := strings.CutPrefix(content, StartMarker); found {
			if openedAt != 0 {
				return nil, &Error{Line: lineNo, Err: fmt.Errorf("%s inside block opened at line %d", StartMarker, openedAt)}
			}
			if err := checkVersion(rest); err != nil {
				return nil, &Error{Line: lineNo, Err: err}
			}
			openedAt = lineNo
			continue
		}
		if content == EndMarker {
			if openedAt == 0 {
				return nil, &Error{Line: lineNo, Err: fmt.Errorf("%s without %s", EndMarker, StartMarker)}
			}
			openedAt = 0
			continue
		}

		tag, payload, found := strings.Cut(content, " ")
		if !found || !isTag(tag) {
			continue
		}
		if openedAt == 0 {
			Logger().Debug("ignoring record outside block", zap.Int("line", lineNo), zap.String("tag", tag))
			continue
		}
		if err := decode(b, tag, payload); err != nil {
			return nil, &Error{Line: lineNo, Tag: tag, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if openedAt != 0 {
		return nil, &Error{Line: openedAt, Err: fmt.Errorf("%s is never closed", StartMarker)}
	}

	Logger().Debug("scanned records",
		zap.Int("lines", lineNo),
		zap.Int("functions", len(b.Functions)),
		zap.Int("classes", len(b.Classes)),
		zap.Int("data_classes", len(b.DataClasses)),
		zap.Int("interfaces", len(b.Interfaces)))
	return b, nil
}

// PackageName returns the value of the first package declaration line.
func PackageName(text string) (string, error) {
	for line := range strings.Lines(text) {
		_, rest, found := strings.Cut(line, PackagePrefix)
		if !found {
			continue
		}
		name, _, closed := strings.Cut(rest, `"`)
		if !closed {
			return "", fmt.Errorf("unterminated package declaration: %q", strings.TrimSpace(line))
		}
		return name, nil
	}
	return "", ErrNoPackage
}

// recordText returns the comment text of a literal doc comment or of an
// expanded #[doc = "..."] attribute, without the single leading space.
func recordText(line string) (string, bool, error) {
	trimmed := strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(trimmed, "///"); ok {
		if strings.HasPrefix(rest, "/") {
			return "", false, nil // //// is a plain comment
		}
		return strings.TrimPrefix(rest, " "), true, nil
	}

	rest, ok := strings.CutPrefix(trimmed, docAttrPrefix)
	if !ok {
		return "", false, nil
	}
	quoted, ok := strings.CutSuffix(rest, `"]`)
	if !ok {
		return "", false, nil
	}
	text, err := unquoteRust(quoted)
	if err != nil {
		return "", false, err
	}
	return strings.TrimPrefix(text, " "), true, nil
}

func checkVersion(rest string) error {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}
	if rest != "v"+ir.RecordVersion {
		return fmt.Errorf("unsupported record version %q (want v%s)", rest, ir.RecordVersion)
	}
	return nil
}

func isTag(s string) bool {
	for _, t := range Tags {
		if s == t {
			return true
		}
	}
	return false
}

func decode(b *ir.Bundle, tag, payload string) error {
	data := []byte(payload)
	switch tag {
	case TagFunction:
		var fn ir.Function
		if err := json.Unmarshal(data, &fn); err != nil {
			return err
		}
		b.Functions = append(b.Functions, fn)
	case TagClass, TagDataClass:
		var s ir.Struct
		if err := strictDecode(data, &s); err != nil {
			return err
		}
		if s.Fields == nil {
			s.Fields = []ir.Field{}
		}
		if tag == TagClass {
			b.Classes = append(b.Classes, s)
		} else {
			b.DataClasses = append(b.DataClasses, s)
		}
	case TagInterface:
		var i ir.Interface
		if err := strictDecode(data, &i); err != nil {
			return err
		}
		if i.Functions == nil {
			i.Functions = []ir.Function{}
		}
		b.Interfaces = append(b.Interfaces, i)
	}
	return nil
}

func strictDecode(data []byte, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after record")
	}
	return nil
}

// unquoteRust undoes the escaping of a Rust string literal body as the
// expansion step prints it.
func unquoteRust(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", errors.New("dangling backslash")
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '0':
			b.WriteByte(0)
		case '\\', '"', '\'':
			b.WriteByte(s[i])
		case 'x':
			if i+2 >= len(s) {
				return "", errors.New(`short \x escape`)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil || v > 0x7f {
				return "", fmt.Errorf(`bad \x escape %q`, s[i-1:i+3])
			}
			b.WriteByte(byte(v))
			i += 2
		case 'u':
			end := strings.IndexByte(s[i:], '}')
			if i+1 >= len(s) || s[i+1] != '{' || end < 0 {
				return "", errors.New(`malformed \u escape`)
			}
			hex := strings.ReplaceAll(s[i+2:i+end], "_", "")
			v, err := strconv.ParseUint(hex, 16, 32)
			if err != nil || !utf8.ValidRune(rune(v)) {
				return "", fmt.Errorf(`bad \u escape %q`, s[i-1:i+end+1])
			}
			b.WriteRune(rune(v))
			i += end
		default:
			return "", fmt.Errorf(`unknown escape \%c`, s[i])
		}
	}
	return b.String(), nil
}
