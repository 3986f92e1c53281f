package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nexuscore/agentkit/pkg/errs"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks value against s using draft-compliant JSON-Schema semantics (enum,
// multipleOf, exclusiveMinimum, uniqueItems, ...) via santhosh-tekuri/jsonschema
// rather than hand-rolled type/range checks, so the Tool Registry and Guardrails share
// exactly the same validation engine as the rendered schema document itself.
//
// On failure it returns an *errs.Error of KindValidation carrying the dotted path to
// the first offending value and what was expected vs found, matching the Registry's
// InvalidArguments{path, expected, found} contract.
func Validate(s *Schema, value any) *errs.Error {
	doc := Render(s)
	raw, err := json.Marshal(doc)
	if err != nil {
		return errs.New(errs.KindProcessing, "schema.Validate", "render schema: "+err.Error())
	}

	compiler := jsonschema.NewCompiler()
	const resource = "inline.json"
	if err := compiler.AddResource(resource, strings.NewReader(string(raw))); err != nil {
		return errs.New(errs.KindProcessing, "schema.Validate", "compile schema: "+err.Error())
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return errs.New(errs.KindProcessing, "schema.Validate", "compile schema: "+err.Error())
	}

	if err := compiled.Validate(value); err != nil {
		return translateValidationError(err)
	}
	return nil
}

// translateValidationError converts a jsonschema.ValidationError into the dotted-path
// InvalidArguments shape the spec requires.
func translateValidationError(err error) *errs.Error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return errs.New(errs.KindValidation, "schema.Validate", err.Error())
	}
	leaf := deepestCause(ve)
	path := instancePath(leaf)
	e := errs.New(errs.KindValidation, "schema.Validate", path+": "+leaf.Message)
	e.Cause = err
	return e
}

// deepestCause walks to the most specific (deepest) validation failure, since
// top-level errors are usually just "doesn't validate with ..." wrappers.
func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	cur := ve
	for len(cur.Causes) > 0 {
		cur = cur.Causes[0]
	}
	return cur
}

func instancePath(ve *jsonschema.ValidationError) string {
	loc := ve.InstanceLocation
	if len(loc) == 0 {
		return "$"
	}
	return "$." + strings.Join(loc, ".")
}

// NormalizeNullArgs implements the spec's null-argument law: a JSON null payload is
// treated as an empty object iff s is an Object schema with zero required properties;
// any other Kind, or any Object with at least one required property, rejects null
// with KindValidation (reified by the caller as ToolCall.NullArguments).
func NormalizeNullArgs(s *Schema, raw json.RawMessage) (json.RawMessage, *errs.Error) {
	if !isJSONNull(raw) {
		return raw, nil
	}
	if s.Kind == KindObject && len(s.RequiredProperties()) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return nil, errs.New(errs.KindValidation, "schema.NormalizeNullArgs", "null arguments not permitted: schema has required fields or is not an object")
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// Path is a parsed dotted-path accessor expression, e.g. "user.addresses.0.city".
type Path []string

// ParsePath splits a dotted path into its segments.
func ParsePath(p string) Path {
	if p == "" {
		return nil
	}
	return strings.Split(p, ".")
}

func (p Path) String() string { return strings.Join(p, ".") }

// navigate walks value by the path segments, returning the *errs.Error MissingSegment
// shape on a dead end.
func navigate(value any, path Path) (any, *errs.Error) {
	cur := value
	for i, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, missingSegment(path, i)
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, missingSegment(path, i)
			}
			cur = node[idx]
		default:
			return nil, missingSegment(path, i)
		}
	}
	return cur, nil
}

func missingSegment(path Path, i int) *errs.Error {
	return errs.New(errs.KindValidation, "schema.navigate",
		fmt.Sprintf("missing segment %q at %s", path[i], path[:i+1]))
}

func expectedType(path Path, expected string, found any) *errs.Error {
	return errs.New(errs.KindValidation, "schema.navigate",
		fmt.Sprintf("expected %s at %s, found %T", expected, path, found))
}

// GetString returns the string at path within value.
func GetString(value any, path string) (string, *errs.Error) {
	p := ParsePath(path)
	v, err := navigate(value, p)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", expectedType(p, "string", v)
	}
	return s, nil
}

// GetInt returns the integer at path within value (a whole-valued JSON number).
func GetInt(value any, path string) (int64, *errs.Error) {
	p := ParsePath(path)
	v, err := navigate(value, p)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok || f != float64(int64(f)) {
		return 0, expectedType(p, "int", v)
	}
	return int64(f), nil
}

// GetDouble returns the float64 at path within value.
func GetDouble(value any, path string) (float64, *errs.Error) {
	p := ParsePath(path)
	v, err := navigate(value, p)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, expectedType(p, "number", v)
	}
	return f, nil
}

// GetBoolean returns the boolean at path within value.
func GetBoolean(value any, path string) (bool, *errs.Error) {
	p := ParsePath(path)
	v, err := navigate(value, p)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, expectedType(p, "boolean", v)
	}
	return b, nil
}

// GetArray returns the array at path within value.
func GetArray(value any, path string) ([]any, *errs.Error) {
	p := ParsePath(path)
	v, err := navigate(value, p)
	if err != nil {
		return nil, err
	}
	a, ok := v.([]any)
	if !ok {
		return nil, expectedType(p, "array", v)
	}
	return a, nil
}

// GetObject returns the object at path within value.
func GetObject(value any, path string) (map[string]any, *errs.Error) {
	p := ParsePath(path)
	v, err := navigate(value, p)
	if err != nil {
		return nil, err
	}
	o, ok := v.(map[string]any)
	if !ok {
		return nil, expectedType(p, "object", v)
	}
	return o, nil
}
