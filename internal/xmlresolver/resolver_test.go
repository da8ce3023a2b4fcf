package xmlresolver_test

import (
	"strings"
	"testing"

	"github.com/hydromet/datanode/internal/formats"
	"github.com/hydromet/datanode/internal/xmlresolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var waterLevelFormat = mustConfig([]map[string]any{
	{"Parameter": "MonitoringPoint", "TagHierarchy": []string{"data", "row", "station"}},
	{"Parameter": "ObservedPropertySymbol", "TagHierarchy": []string{"data", "row", "sensor"}, "Variable": "OBS"},
	{"Parameter": "ObservedPropertyValue", "TagHierarchy": []string{"data", "row", "value"}, "ValueConversion": "/10"},
	{"Parameter": "Date", "TagHierarchy": []string{"data", "row", "time"}},
})

var waterLevelSymbols = xmlresolver.SymbolMappings{
	"h": {"OBS": "WL"},
	"Q": {"OBS": "DIS"},
}

func TestResolve(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `<data>
		<row>
			<station>A1</station>
			<sensor>WL</sensor>
			<value>1220</value>
			<time>2020-10-27T09:00:00Z</time>
		</row>
		<row>
			<station>B2</station>
			<sensor>DIS</sensor>
			<value>35.5</value>
			<time>2020-10-27T09:10:00Z</time>
		</row>
	</data>`)

	rows, err := xmlresolver.Resolve(waterLevelFormat, doc, []string{"data", "row"}, xmlresolver.Options{
		Symbols: waterLevelSymbols,
	})
	require.NoError(t, err, "Resolve should not return an error")
	require.Len(t, rows, 2, "one row per repeating fragment")

	first := resolvedGroup(t, rows[0])
	point, ok := first.First(formats.MonitoringPoint)
	require.True(t, ok, "group should carry the monitoring point")
	assert.Equal(t, "A1", point.Value, "monitoring point value mismatch")

	symbol, ok := first.First(formats.ObservedPropertySymbol)
	require.True(t, ok, "group should carry the property symbol")
	assert.Equal(t, "h", symbol.Value, "external symbol should map to the internal one")

	value, ok := first.First(formats.ObservedPropertyValue)
	require.True(t, ok, "group should carry the value")
	assert.Equal(t, "122", value.Value, "scale conversion /10 should apply")

	symbol, ok = resolvedGroup(t, rows[1]).First(formats.ObservedPropertySymbol)
	require.True(t, ok, "second group should carry the property symbol")
	assert.Equal(t, "Q", symbol.Value, "second row maps to discharge")
}

func TestResolveRowFailureKeepsSiblings(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `<data>
		<row>
			<station>A1</station>
			<sensor>WL</sensor>
			<value>1220</value>
			<time>2020-10-27T09:00:00Z</time>
		</row>
		<row>
			<station>B2</station>
			<sensor>WL</sensor>
			<time>2020-10-27T09:10:00Z</time>
		</row>
	</data>`)

	rows, err := xmlresolver.Resolve(waterLevelFormat, doc, []string{"data", "row"}, xmlresolver.Options{
		Symbols: waterLevelSymbols,
	})
	require.NoError(t, err, "a fragment-level failure is not a document failure")
	require.Len(t, rows, 2, "both fragments should be reported")

	point, ok := resolvedGroup(t, rows[0]).First(formats.MonitoringPoint)
	require.True(t, ok, "the well-formed row should resolve")
	assert.Equal(t, "A1", point.Value, "monitoring point value mismatch")

	require.Error(t, rows[1].Err, "the row without a value should carry its error")
	var missingErr xmlresolver.MissingValueError
	require.ErrorAs(t, rows[1].Err, &missingErr, "error should identify the parameter")
	assert.Equal(t, formats.ObservedPropertyValue, missingErr.Parameter.Type, "wrong parameter reported")
	assert.Nil(t, rows[1].Group, "a failed row carries no group")
}

func TestResolveValueConversion(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rawValue   string
		conversion string

		want    string
		wantErr bool
	}{
		"Divide":            {rawValue: "1220", conversion: "/10", want: "122"},
		"Multiply":          {rawValue: "3", conversion: "*5", want: "15"},
		"No conversion":     {rawValue: "12.50", conversion: "", want: "12.5"},
		"Unknown grammar":   {rawValue: "7", conversion: "x2", want: "7"},
		"Empty means zero":  {rawValue: "", conversion: "", want: "0"},
		"Empty then scaled": {rawValue: "", conversion: "/10", want: "0"},
		"Non numeric":       {rawValue: "high", conversion: "", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := mustConfig([]map[string]any{
				{"Parameter": "ObservedPropertyValue", "TagHierarchy": []string{"row", "value"}, "ValueConversion": tc.conversion},
			})
			doc := parseDoc(t, `<row><value>`+tc.rawValue+`</value></row>`)

			rows, err := xmlresolver.Resolve(cfg, doc, []string{"row"}, xmlresolver.Options{})
			require.NoError(t, err, "Resolve should not return an error")
			require.Len(t, rows, 1, "one row expected")
			if tc.wantErr {
				require.Error(t, rows[0].Err, "the row should carry the rejected value's error")
				return
			}

			value, ok := resolvedGroup(t, rows[0]).First(formats.ObservedPropertyValue)
			require.True(t, ok, "group should carry the value")
			assert.Equal(t, tc.want, value.Value, "converted value mismatch")
		})
	}
}

func TestResolveSkipEmptyValueTag(t *testing.T) {
	t.Parallel()

	cfg := mustConfig([]map[string]any{
		{"Parameter": "MonitoringPoint", "TagHierarchy": []string{"data", "row", "station"}},
		{"Parameter": "ObservedPropertyValue", "TagHierarchy": []string{"data", "row", "value"}},
	})
	doc := parseDoc(t, `<data>
		<row><station>A1</station><value></value></row>
		<row><station>B2</station><value>4</value></row>
	</data>`)

	rows, err := xmlresolver.Resolve(cfg, doc, []string{"data", "row"}, xmlresolver.Options{
		SkipEmptyValueTag: true,
	})
	require.NoError(t, err, "Resolve should not return an error")
	require.Len(t, rows, 1, "the empty-valued row should be dropped")

	point, ok := resolvedGroup(t, rows[0]).First(formats.MonitoringPoint)
	require.True(t, ok, "surviving group should carry the monitoring point")
	assert.Equal(t, "B2", point.Value, "wrong row survived")
}

func TestResolveMissingParameters(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `<row><station>A1</station></row>`)

	t.Run("Required", func(t *testing.T) {
		t.Parallel()

		cfg := mustConfig([]map[string]any{
			{"Parameter": "MonitoringPoint", "TagHierarchy": []string{"row", "station"}},
			{"Parameter": "ObservedPropertyValue", "TagHierarchy": []string{"row", "value"}},
		})

		rows, err := xmlresolver.Resolve(cfg, doc, []string{"row"}, xmlresolver.Options{})
		require.NoError(t, err, "Resolve should not return an error")
		require.Len(t, rows, 1, "one row expected")
		require.Error(t, rows[0].Err, "a missing required parameter fails the row")

		var missingErr xmlresolver.MissingValueError
		require.ErrorAs(t, rows[0].Err, &missingErr, "error should identify the parameter")
		assert.Equal(t, formats.ObservedPropertyValue, missingErr.Parameter.Type, "wrong parameter reported")
	})

	t.Run("Optional", func(t *testing.T) {
		t.Parallel()

		cfg := mustConfig([]map[string]any{
			{"Parameter": "MonitoringPoint", "TagHierarchy": []string{"row", "station"}},
			{"Parameter": "ObservedPropertyValue", "TagHierarchy": []string{"row", "value"}, "Optional": true},
		})

		rows, err := xmlresolver.Resolve(cfg, doc, []string{"row"}, xmlresolver.Options{})
		require.NoError(t, err, "a missing optional parameter is not fatal")
		require.Len(t, rows, 1, "one row expected")

		_, ok := resolvedGroup(t, rows[0]).First(formats.ObservedPropertyValue)
		assert.False(t, ok, "the absent optional item should be dropped from the group")
	})
}

func TestResolveAttributeExtraction(t *testing.T) {
	t.Parallel()

	cfg := mustConfig([]map[string]any{
		{"Parameter": "MonitoringPoint", "TagHierarchy": []string{"data", "row"}, "Attribute": "station"},
		{"Parameter": "ObservedPropertyValue", "TagHierarchy": []string{"data", "row", "value"}},
	})
	doc := parseDoc(t, `<data><row station="A1"><value>3</value></row></data>`)

	rows, err := xmlresolver.Resolve(cfg, doc, []string{"data", "row"}, xmlresolver.Options{})
	require.NoError(t, err, "Resolve should not return an error")
	require.Len(t, rows, 1, "one row expected")

	point, ok := resolvedGroup(t, rows[0]).First(formats.MonitoringPoint)
	require.True(t, ok, "group should carry the monitoring point")
	assert.Equal(t, "A1", point.Value, "attribute value mismatch")
}

func TestResolveNoFragments(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, `<data><other/></data>`)

	_, err := xmlresolver.Resolve(waterLevelFormat, doc, []string{"data", "row"}, xmlresolver.Options{})
	require.Error(t, err, "a document without anchor fragments should be rejected")
	assert.ErrorContains(t, err, "data/row", "error should name the anchor path")
}

func TestMapSymbol(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		external string
		variable string

		want string
	}{
		"Known symbol":     {external: "WL", variable: "OBS", want: "h"},
		"Other variable":   {external: "WL", variable: "OTHER", want: ""},
		"Unknown symbol":   {external: "XX", variable: "OBS", want: ""},
		"Empty everything": {external: "", variable: "", want: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := waterLevelSymbols.MapSymbol(tc.external, tc.variable)
			assert.Equal(t, tc.want, got, "mapped symbol mismatch")
		})
	}
}

func resolvedGroup(t *testing.T, row xmlresolver.Row) *xmlresolver.Group {
	t.Helper()

	require.NoError(t, row.Err, "row should have resolved")
	require.NotNil(t, row.Group, "resolved row should carry a group")
	return row.Group
}

func mustConfig(entries []map[string]any) *formats.Config {
	cfg, err := formats.NewConfig(entries)
	if err != nil {
		panic(err)
	}
	return cfg
}

func parseDoc(t *testing.T, doc string) *xmlresolver.Node {
	t.Helper()

	root, err := xmlresolver.Parse(strings.NewReader(doc))
	require.NoError(t, err, "Setup: Parse should not return an error")
	return root
}
