package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderObjectWithRequired(t *testing.T) {
	s := Object().
		WithProperty("city", String().Describe("city name"), true).
		WithProperty("units", String().WithEnum("c", "f"), false)

	doc := Render(s)
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, []string{"city"}, doc["required"])
	assert.Equal(t, true, doc["additionalProperties"])

	props := doc["properties"].(map[string]any)
	city := props["city"].(map[string]any)
	assert.Equal(t, "string", city["type"])
	assert.Equal(t, "city name", city["description"])
}

func TestRenderNullable(t *testing.T) {
	s := Nullable(String())
	doc := Render(s)
	assert.ElementsMatch(t, []any{"string", "null"}, doc["type"])
}

func TestRenderToolOpenAIFlavor(t *testing.T) {
	args := Object().WithProperty("city", String(), true)
	doc := RenderTool(FlavorOpenAIFunctions, "get_weather", "fetch weather", args)
	assert.Equal(t, "function", doc["type"])
	fn := doc["function"].(map[string]any)
	assert.Equal(t, "get_weather", fn["name"])
}

func TestSchemaRoundTrip(t *testing.T) {
	cases := []*Schema{
		String().WithMinLength(1).WithMaxLength(10).WithEnum("a", "b"),
		Integer().WithMin(0).WithMax(100).WithMultipleOf(5),
		Number().WithMin(0).WithExclusiveMin(),
		Boolean(),
		Array(String()).WithMinItems(1).WithUniqueItems(),
		Object().WithProperty("name", String(), true).WithProperty("age", Integer(), false),
		Nullable(String()),
	}
	for _, s := range cases {
		doc := Render(s)
		parsed, err := Parse(doc)
		require.NoError(t, err)
		assert.Equal(t, doc, Render(parsed))
	}
}

func TestValidateSuccess(t *testing.T) {
	s := Object().WithProperty("city", String(), true)
	value := map[string]any{"city": "Paris"}
	assert.Nil(t, Validate(s, value))
}

func TestValidateMissingRequired(t *testing.T) {
	s := Object().WithProperty("city", String(), true)
	err := Validate(s, map[string]any{})
	require.NotNil(t, err)
}

func TestNormalizeNullArgsNoRequiredProps(t *testing.T) {
	s := Object()
	out, err := NormalizeNullArgs(s, []byte("null"))
	require.Nil(t, err)
	assert.JSONEq(t, "{}", string(out))
}

func TestNormalizeNullArgsWithRequiredFails(t *testing.T) {
	s := Object().WithProperty("city", String(), true)
	_, err := NormalizeNullArgs(s, []byte("null"))
	require.NotNil(t, err)
}

func TestGetStringPath(t *testing.T) {
	value := map[string]any{
		"user": map[string]any{
			"addresses": []any{
				map[string]any{"city": "Paris"},
			},
		},
	}
	got, err := GetString(value, "user.addresses.0.city")
	require.Nil(t, err)
	assert.Equal(t, "Paris", got)

	_, err = GetString(value, "user.addresses.1.city")
	require.NotNil(t, err)
}
