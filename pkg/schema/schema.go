// Package schema implements the declarative, JSON-Schema-like description of tool
// parameters used by the Tool Registry and Guardrails. A Schema is a tagged variant
// built with a combinator-style builder (object().withProperty(...)) since Go has no
// compile-time reflection over arbitrary source types to derive one automatically.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind is the tagged-variant discriminant for Schema.
type Kind string

const (
	KindString   Kind = "string"
	KindInteger  Kind = "integer"
	KindNumber   Kind = "number"
	KindBoolean  Kind = "boolean"
	KindArray    Kind = "array"
	KindObject   Kind = "object"
	KindNullable Kind = "nullable"
)

// Property describes one named member of an Object schema.
type Property struct {
	Name     string
	Schema   *Schema
	Required bool
}

// Schema is the tagged variant over the supported JSON-Schema-like shapes. Only the
// fields relevant to Kind are populated; zero value elsewhere.
type Schema struct {
	Kind        Kind
	Description string

	// String
	MinLength *int
	MaxLength *int
	Enum      []string

	// Integer / Number
	Min          *float64
	Max          *float64
	ExclusiveMin bool
	ExclusiveMax bool
	MultipleOf   *float64

	// Array
	Items    *Schema
	MinItems *int
	MaxItems *int
	Unique   bool

	// Object
	Properties           []Property
	AdditionalProperties bool

	// Nullable
	Inner *Schema
}

// Describe sets the schema's description and returns it for chaining.
func (s *Schema) Describe(d string) *Schema {
	s.Description = d
	return s
}

// String builds a String schema.
func String() *Schema { return &Schema{Kind: KindString} }

// WithMinLength sets the minimum length constraint.
func (s *Schema) WithMinLength(n int) *Schema { s.MinLength = &n; return s }

// WithMaxLength sets the maximum length constraint.
func (s *Schema) WithMaxLength(n int) *Schema { s.MaxLength = &n; return s }

// WithEnum restricts a String schema to a fixed set of values.
func (s *Schema) WithEnum(values ...string) *Schema { s.Enum = values; return s }

// Integer builds an Integer schema.
func Integer() *Schema { return &Schema{Kind: KindInteger} }

// Number builds a Number schema.
func Number() *Schema { return &Schema{Kind: KindNumber} }

// WithMin sets the inclusive (or exclusive, via WithExclusiveMin) minimum.
func (s *Schema) WithMin(v float64) *Schema { s.Min = &v; return s }

// WithMax sets the inclusive (or exclusive, via WithExclusiveMax) maximum.
func (s *Schema) WithMax(v float64) *Schema { s.Max = &v; return s }

// WithExclusiveMin marks the Min bound as exclusive.
func (s *Schema) WithExclusiveMin() *Schema { s.ExclusiveMin = true; return s }

// WithExclusiveMax marks the Max bound as exclusive.
func (s *Schema) WithExclusiveMax() *Schema { s.ExclusiveMax = true; return s }

// WithMultipleOf constrains the value to be a multiple of v.
func (s *Schema) WithMultipleOf(v float64) *Schema { s.MultipleOf = &v; return s }

// Boolean builds a Boolean schema.
func Boolean() *Schema { return &Schema{Kind: KindBoolean} }

// Array builds an Array schema over the given item schema.
func Array(items *Schema) *Schema { return &Schema{Kind: KindArray, Items: items} }

// WithMinItems sets the minimum item count.
func (s *Schema) WithMinItems(n int) *Schema { s.MinItems = &n; return s }

// WithMaxItems sets the maximum item count.
func (s *Schema) WithMaxItems(n int) *Schema { s.MaxItems = &n; return s }

// WithUniqueItems requires array items be distinct.
func (s *Schema) WithUniqueItems() *Schema { s.Unique = true; return s }

// Object builds an empty Object schema.
func Object() *Schema {
	return &Schema{Kind: KindObject, AdditionalProperties: true}
}

// WithProperty adds a named property; required marks it as mandatory on validation.
func (s *Schema) WithProperty(name string, propSchema *Schema, required bool) *Schema {
	s.Properties = append(s.Properties, Property{Name: name, Schema: propSchema, Required: required})
	return s
}

// WithAdditionalProperties controls whether unknown object keys are tolerated.
func (s *Schema) WithAdditionalProperties(allowed bool) *Schema {
	s.AdditionalProperties = allowed
	return s
}

// Strict promotes every declared property to required, matching providers that require
// a fully-required "strict" function schema.
func (s *Schema) Strict() *Schema {
	for i := range s.Properties {
		s.Properties[i].Required = true
	}
	return s
}

// RequiredProperties returns the names of the schema's required object properties.
// Non-Object schemas always return nil.
func (s *Schema) RequiredProperties() []string {
	if s.Kind != KindObject {
		return nil
	}
	var req []string
	for _, p := range s.Properties {
		if p.Required {
			req = append(req, p.Name)
		}
	}
	return req
}

// Nullable wraps a schema, allowing the value to also be JSON null.
func Nullable(inner *Schema) *Schema { return &Schema{Kind: KindNullable, Inner: inner} }

// Flavor selects the dialect used by Render for a tool's JSON-Schema document.
type Flavor string

const (
	// FlavorBareObject renders a raw JSON-Schema document, e.g. {"type":"object",...}.
	FlavorBareObject Flavor = "bare_object"
	// FlavorOpenAIFunctions renders {"type":"function","function":{"name",...,"parameters"}}.
	FlavorOpenAIFunctions Flavor = "openai_functions"
)

// Render serializes s to its JSON-Schema representation, total and deterministic:
// properties are held in a map, so they marshal in sorted key order, required names
// are sorted, and Nullable is encoded as "type": [T, "null"].
func Render(s *Schema) map[string]any {
	doc := renderNode(s)
	return doc
}

func renderNode(s *Schema) map[string]any {
	doc := map[string]any{}
	if s.Description != "" {
		doc["description"] = s.Description
	}

	switch s.Kind {
	case KindString:
		doc["type"] = "string"
		if s.MinLength != nil {
			doc["minLength"] = *s.MinLength
		}
		if s.MaxLength != nil {
			doc["maxLength"] = *s.MaxLength
		}
		if len(s.Enum) > 0 {
			doc["enum"] = append([]string{}, s.Enum...)
		}
	case KindInteger, KindNumber:
		if s.Kind == KindInteger {
			doc["type"] = "integer"
		} else {
			doc["type"] = "number"
		}
		if s.Min != nil {
			if s.ExclusiveMin {
				doc["exclusiveMinimum"] = *s.Min
			} else {
				doc["minimum"] = *s.Min
			}
		}
		if s.Max != nil {
			if s.ExclusiveMax {
				doc["exclusiveMaximum"] = *s.Max
			} else {
				doc["maximum"] = *s.Max
			}
		}
		if s.MultipleOf != nil {
			doc["multipleOf"] = *s.MultipleOf
		}
	case KindBoolean:
		doc["type"] = "boolean"
	case KindArray:
		doc["type"] = "array"
		if s.Items != nil {
			doc["items"] = renderNode(s.Items)
		}
		if s.MinItems != nil {
			doc["minItems"] = *s.MinItems
		}
		if s.MaxItems != nil {
			doc["maxItems"] = *s.MaxItems
		}
		if s.Unique {
			doc["uniqueItems"] = true
		}
	case KindObject:
		doc["type"] = "object"
		props := map[string]any{}
		var required []string
		for _, p := range s.Properties {
			props[p.Name] = renderNode(p.Schema)
			if p.Required {
				required = append(required, p.Name)
			}
		}
		doc["properties"] = props
		if len(required) > 0 {
			sort.Strings(required)
			doc["required"] = required
		}
		doc["additionalProperties"] = s.AdditionalProperties
	case KindNullable:
		inner := renderNode(s.Inner)
		t, ok := inner["type"]
		if ok {
			inner["type"] = []any{t, "null"}
		} else {
			inner["type"] = []any{"null"}
		}
		return mergeDescription(inner, s.Description)
	}

	return doc
}

func mergeDescription(doc map[string]any, desc string) map[string]any {
	if desc != "" {
		doc["description"] = desc
	}
	return doc
}

// RenderTool renders a tool's argument schema per the given flavor, the shape the
// Tool Registry hands to a provider's tool-declaration protocol.
func RenderTool(flavor Flavor, name, description string, args *Schema) map[string]any {
	params := Render(args)
	switch flavor {
	case FlavorOpenAIFunctions:
		return map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        name,
				"description": description,
				"parameters":  params,
			},
		}
	default: // FlavorBareObject
		params["title"] = name
		if description != "" {
			params["description"] = description
		}
		return params
	}
}

// ToJSON allows a rendered Schema document to be serialized directly.
func ToJSON(s *Schema) ([]byte, error) {
	return json.Marshal(Render(s))
}

// Parse reconstructs a *Schema from a rendered JSON-Schema document, the inverse of
// Render, used by the round-trip invariant (Schema round-trip: parse(render(s)) == s
// up to description whitespace).
func Parse(doc map[string]any) (*Schema, error) {
	return parseNode(doc)
}

func parseNode(doc map[string]any) (*Schema, error) {
	if t, ok := doc["type"]; ok {
		if arr, ok := t.([]any); ok {
			return parseNullable(doc, arr)
		}
	}

	t, _ := doc["type"].(string)
	desc, _ := doc["description"].(string)

	switch t {
	case "string":
		s := String().Describe(desc)
		if v, ok := doc["minLength"]; ok {
			n := int(toFloat(v))
			s.MinLength = &n
		}
		if v, ok := doc["maxLength"]; ok {
			n := int(toFloat(v))
			s.MaxLength = &n
		}
		if v, ok := doc["enum"]; ok {
			s.Enum = toStringSlice(v)
		}
		return s, nil
	case "integer", "number":
		var s *Schema
		if t == "integer" {
			s = Integer()
		} else {
			s = Number()
		}
		s.Describe(desc)
		if v, ok := doc["minimum"]; ok {
			f := toFloat(v)
			s.Min = &f
		}
		if v, ok := doc["exclusiveMinimum"]; ok {
			f := toFloat(v)
			s.Min = &f
			s.ExclusiveMin = true
		}
		if v, ok := doc["maximum"]; ok {
			f := toFloat(v)
			s.Max = &f
		}
		if v, ok := doc["exclusiveMaximum"]; ok {
			f := toFloat(v)
			s.Max = &f
			s.ExclusiveMax = true
		}
		if v, ok := doc["multipleOf"]; ok {
			f := toFloat(v)
			s.MultipleOf = &f
		}
		return s, nil
	case "boolean":
		return Boolean().Describe(desc), nil
	case "array":
		var items *Schema
		if v, ok := doc["items"].(map[string]any); ok {
			var err error
			items, err = parseNode(v)
			if err != nil {
				return nil, err
			}
		}
		s := Array(items).Describe(desc)
		if v, ok := doc["minItems"]; ok {
			n := int(toFloat(v))
			s.MinItems = &n
		}
		if v, ok := doc["maxItems"]; ok {
			n := int(toFloat(v))
			s.MaxItems = &n
		}
		if v, ok := doc["uniqueItems"].(bool); ok {
			s.Unique = v
		}
		return s, nil
	case "object":
		s := Object().Describe(desc)
		required := map[string]bool{}
		for _, r := range toStringSlice(doc["required"]) {
			required[r] = true
		}
		if props, ok := doc["properties"].(map[string]any); ok {
			names := make([]string, 0, len(props))
			for n := range props {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, name := range names {
				propDoc, ok := props[name].(map[string]any)
				if !ok {
					return nil, fmt.Errorf("schema: property %q is not an object", name)
				}
				propSchema, err := parseNode(propDoc)
				if err != nil {
					return nil, err
				}
				s.WithProperty(name, propSchema, required[name])
			}
		}
		if v, ok := doc["additionalProperties"].(bool); ok {
			s.AdditionalProperties = v
		}
		return s, nil
	default:
		return nil, fmt.Errorf("schema: unsupported type %q", t)
	}
}

func parseNullable(doc map[string]any, types []any) (*Schema, error) {
	var innerType string
	for _, t := range types {
		ts, _ := t.(string)
		if ts != "null" {
			innerType = ts
		}
	}
	innerDoc := map[string]any{}
	for k, v := range doc {
		if k == "type" {
			continue
		}
		innerDoc[k] = v
	}
	innerDoc["type"] = innerType
	inner, err := parseNode(innerDoc)
	if err != nil {
		return nil, err
	}
	desc := inner.Description
	inner.Description = ""
	return Nullable(inner).Describe(desc), nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
