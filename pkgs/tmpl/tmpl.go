// Package tmpl expands text templates with named variables.
//
// A template is plain text in which ${NAME} is replaced by the value of
// variable NAME and $$ stands for a literal dollar sign. Lines whose first
// non-blank character is '%' are directives that include or drop the lines
// that follow them:
//
//	% if CMAKE_SDK in [LINUX, FREEBSD]:
//	...
//	% else:
//	...
//	% end
//
// Conditions are "NAME in [A, B, ...]", "NAME == A" and "NAME != A"; values
// may be quoted. A line starting with "%%" emits a line starting with '%'.
package tmpl

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUndefinedVariable is returned when a template refers to a variable that
// was not supplied.
var ErrUndefinedVariable = errors.New("undefined variable")

// SyntaxError reports a malformed template.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type frame struct {
	line     int
	parent   bool // whether the enclosing block is active
	cond     bool
	inElse   bool
	emitting bool
}

// Expand renders src with vars. It has no side effects: the same input always
// yields the same bytes.
func Expand(src []byte, vars map[string]string) ([]byte, error) {
	var (
		out   bytes.Buffer
		stack []*frame
	)
	active := func() bool {
		if len(stack) == 0 {
			return true
		}
		return stack[len(stack)-1].emitting
	}

	lines := bytes.SplitAfter(src, []byte("\n"))
	for i, raw := range lines {
		lineNo := i + 1
		line := string(raw)
		if line == "" {
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "%%") {
			line = strings.Replace(line, "%%", "%", 1)
		} else if strings.HasPrefix(trimmed, "%") {
			directive := strings.TrimSpace(trimmed[1:])
			switch {
			case strings.HasPrefix(directive, "if ") && strings.HasSuffix(directive, ":"):
				parent := active()
				cond := false
				if parent {
					var err error
					cond, err = evalCond(strings.TrimSuffix(directive[len("if "):], ":"), vars, lineNo)
					if err != nil {
						return nil, err
					}
				}
				stack = append(stack, &frame{line: lineNo, parent: parent, cond: cond, emitting: parent && cond})
			case directive == "else:":
				if len(stack) == 0 {
					return nil, &SyntaxError{Line: lineNo, Msg: "% else without % if"}
				}
				f := stack[len(stack)-1]
				if f.inElse {
					return nil, &SyntaxError{Line: lineNo, Msg: "duplicate % else"}
				}
				f.inElse = true
				f.emitting = f.parent && !f.cond
			case directive == "end":
				if len(stack) == 0 {
					return nil, &SyntaxError{Line: lineNo, Msg: "% end without % if"}
				}
				stack = stack[:len(stack)-1]
			default:
				return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("unknown directive %q", directive)}
			}
			continue
		}
		if !active() {
			continue
		}
		if err := substitute(&out, line, vars, lineNo); err != nil {
			return nil, err
		}
	}
	if len(stack) > 0 {
		return nil, &SyntaxError{Line: stack[len(stack)-1].line, Msg: "unterminated % if"}
	}
	return out.Bytes(), nil
}

func substitute(out *bytes.Buffer, line string, vars map[string]string, lineNo int) error {
	for {
		i := strings.IndexByte(line, '$')
		if i < 0 || i == len(line)-1 {
			out.WriteString(line)
			return nil
		}
		out.WriteString(line[:i])
		switch line[i+1] {
		case '$':
			out.WriteByte('$')
			line = line[i+2:]
		case '{':
			end := strings.IndexByte(line[i+2:], '}')
			if end < 0 {
				return &SyntaxError{Line: lineNo, Msg: "unterminated ${"}
			}
			name := line[i+2 : i+2+end]
			if !isName(name) {
				return &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("invalid variable name %q", name)}
			}
			val, ok := vars[name]
			if !ok {
				return fmt.Errorf("line %d: %w %s", lineNo, ErrUndefinedVariable, name)
			}
			out.WriteString(val)
			line = line[i+3+end:]
		default:
			out.WriteByte('$')
			line = line[i+1:]
		}
	}
}

func evalCond(expr string, vars map[string]string, lineNo int) (bool, error) {
	expr = strings.TrimSpace(expr)
	n := nameLen(expr)
	name, rest := expr[:n], strings.TrimSpace(expr[n:])
	if !isName(name) {
		return false, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("invalid variable name in condition %q", expr)}
	}
	var op, rhs string
	switch {
	case strings.HasPrefix(rest, "=="), strings.HasPrefix(rest, "!="):
		op, rhs = rest[:2], strings.TrimSpace(rest[2:])
	case strings.HasPrefix(rest, "in ") || strings.HasPrefix(rest, "in["):
		op, rhs = "in", strings.TrimSpace(rest[2:])
	default:
		return false, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("malformed condition %q", expr)}
	}
	val, ok := vars[name]
	if !ok {
		return false, fmt.Errorf("line %d: %w %s", lineNo, ErrUndefinedVariable, name)
	}

	switch op {
	case "in":
		if !strings.HasPrefix(rhs, "[") || !strings.HasSuffix(rhs, "]") {
			return false, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("expected list after in, got %q", rhs)}
		}
		return slices.Contains(splitList(rhs[1:len(rhs)-1]), val), nil
	case "==":
		return val == unquote(rhs), nil
	default:
		return val != unquote(rhs), nil
	}
}

// splitList splits a comma-separated list. Commas inside quoted items do not
// separate.
func splitList(s string) []string {
	var (
		list  []string
		quote rune
		start int
	)
	add := func(item string) {
		if item = unquote(strings.TrimSpace(item)); item != "" {
			list = append(list, item)
		}
	}
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ',':
			add(s[start:i])
			start = i + 1
		}
	}
	add(s[start:])
	return list
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// nameLen returns the length of the variable name at the start of s.
func nameLen(s string) int {
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return i
		}
	}
	return len(s)
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Names returns the variables referenced by ${NAME} in src, in order of first
// appearance. Directive conditions are not included.
func Names(src []byte) []string {
	var names []string
	s := string(src)
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			return names
		}
		if i > 0 && s[i-1] == '$' {
			s = s[i+2:]
			continue
		}
		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			return names
		}
		name := s[i+2 : i+2+end]
		if isName(name) && !slices.Contains(names, name) {
			names = append(names, name)
		}
		s = s[i+3+end:]
	}
}
