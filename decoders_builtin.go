package resfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ParseError is the error returned by the built-in decoders.
type ParseError struct {
	Source  string
	Line    int // 1-based, 0 when unknown
	Column  int // 1-based, 0 when unknown
	Message string
	Log     string
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.Source, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Source, e.Message)
	}
}

// ErrorLog returns the diagnostic with a source excerpt when one is available.
func (e *ParseError) ErrorLog() string {
	if e.Log == "" {
		return e.Error()
	}
	return e.Error() + "\n" + e.Log
}

// DefaultDecoders returns a table with the built-in formats: .json, .toml,
// .yaml, .yml and .cue.
func DefaultDecoders() *DecoderTable {
	t := NewDecoderTable()
	_ = t.Register(".json", DecoderFunc(DecodeJSON))
	_ = t.Register(".toml", DecoderFunc(DecodeTOML))
	_ = t.Register(".yaml", DecoderFunc(DecodeYAML))
	_ = t.Register(".yml", DecoderFunc(DecodeYAML))
	_ = t.Register(".cue", DecoderFunc(DecodeCUE))
	return t
}

// DecodeJSON decodes a JSON document.
func DecodeJSON(source, text string) (Value, error) {
	var v any
	err := json.Unmarshal([]byte(text), &v)
	if err == nil {
		return v, nil
	}

	perr := &ParseError{Source: source, Message: err.Error()}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		perr.Line, perr.Column = lineColumn(text, syntaxErr.Offset)
	case errors.As(err, &typeErr):
		perr.Line, perr.Column = lineColumn(text, typeErr.Offset)
	}
	perr.Log = excerpt(text, perr.Line, perr.Column)
	return nil, perr
}

// DecodeTOML decodes a TOML document into a map.
func DecodeTOML(source, text string) (Value, error) {
	v := map[string]any{}
	err := toml.Unmarshal([]byte(text), &v)
	if err == nil {
		return v, nil
	}

	perr := &ParseError{Source: source, Message: err.Error()}
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		perr.Line, perr.Column = decodeErr.Position()
		perr.Log = decodeErr.String()
	}
	return nil, perr
}

// DecodeYAML decodes a YAML document.
func DecodeYAML(source, text string) (Value, error) {
	var v any
	err := yaml.Unmarshal([]byte(text), &v)
	if err == nil {
		return v, nil
	}

	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	perr := &ParseError{Source: source, Message: msg}
	if rest, ok := strings.CutPrefix(msg, "line "); ok {
		if n, _, found := strings.Cut(rest, ":"); found {
			if line, convErr := strconv.Atoi(n); convErr == nil {
				perr.Line = line
				perr.Message = strings.TrimSpace(rest[len(n)+1:])
			}
		}
	}
	perr.Log = excerpt(text, perr.Line, 0)
	return nil, perr
}

// DecodeCUE evaluates a CUE document and exports it as plain data.
func DecodeCUE(source, text string) (Value, error) {
	v := cuecontext.New().CompileString(text, cue.Filename(source))
	if err := v.Err(); err != nil {
		return nil, cueParseError(source, err)
	}

	var out any
	if err := v.Decode(&out); err != nil {
		return nil, cueParseError(source, err)
	}
	return out, nil
}

func cueParseError(source string, err error) *ParseError {
	perr := &ParseError{
		Source:  source,
		Message: err.Error(),
		Log:     strings.TrimSpace(cueerrors.Details(err, nil)),
	}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		pos := errs[0].Position()
		if pos.IsValid() {
			perr.Line, perr.Column = pos.Line(), pos.Column()
		}
		perr.Message = errs[0].Error()
	}
	return perr
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(text string, offset int64) (int, int) {
	if offset <= 0 {
		return 0, 0
	}
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	col := int(offset) - strings.LastIndexByte(before, '\n') - 1
	if col < 1 {
		col = 1
	}
	return line, col
}

// excerpt returns the offending line with a caret under column.
func excerpt(text string, line, column int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(text, "\n")
	if line > len(lines) {
		return ""
	}
	src := lines[line-1]
	if column <= 0 {
		return fmt.Sprintf("%4d | %s", line, src)
	}
	return fmt.Sprintf("%4d | %s\n     | %s^", line, src, strings.Repeat(" ", column-1))
}
