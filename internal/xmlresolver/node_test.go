package xmlresolver_test

import (
	"strings"
	"testing"

	"github.com/hydromet/datanode/internal/xmlresolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		doc string

		wantErr bool
	}{
		"Simple document":     {doc: `<a><b>text</b></a>`},
		"Namespaced document": {doc: `<ns:a xmlns:ns="urn:x"><ns:b>text</ns:b></ns:a>`},
		"Declaration header":  {doc: `<?xml version="1.0"?><a/>`},

		"Empty input":           {doc: ``, wantErr: true},
		"Unclosed element":      {doc: `<a><b></a>`, wantErr: true},
		"Text only":             {doc: `just text`, wantErr: true},
		"Multiple roots":        {doc: `<a/><b/>`, wantErr: true},
		"Dangling end element":  {doc: `</a>`, wantErr: true},
		"Truncated mid element": {doc: `<a><b>`, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root, err := xmlresolver.Parse(strings.NewReader(tc.doc))
			if tc.wantErr {
				require.Error(t, err, "Parse should reject the document")
				return
			}
			require.NoError(t, err, "Parse should not return an error")
			require.NotNil(t, root, "Parse should return a root node")
		})
	}
}

func TestFindMatchesLocalNames(t *testing.T) {
	t.Parallel()

	doc := `<ns:stations xmlns:ns="urn:x">
		<ns:station code="A1"><ns:name>Alpha</ns:name></ns:station>
		<ns:station code="B2"><ns:name>Beta</ns:name></ns:station>
	</ns:stations>`

	root, err := xmlresolver.Parse(strings.NewReader(doc))
	require.NoError(t, err, "Setup: Parse should not return an error")

	// Configured paths may carry prefixes; matching is on local names.
	matches := root.Find([]string{"x:station", "name"})
	require.Len(t, matches, 2, "both stations should match")
	assert.Equal(t, "Alpha", matches[0].TrimmedText(), "document order should be preserved")
	assert.Equal(t, "Beta", matches[1].TrimmedText(), "document order should be preserved")

	first := root.First([]string{"station"})
	require.NotNil(t, first, "First should find a station")
	code, ok := first.Attr("code")
	require.True(t, ok, "attribute should be found")
	assert.Equal(t, "A1", code, "attribute value mismatch")

	_, ok = first.Attr("missing")
	assert.False(t, ok, "unknown attribute should not be found")

	assert.Nil(t, root.First([]string{"nowhere"}), "First on a missing path should be nil")
}

func TestTrimmedText(t *testing.T) {
	t.Parallel()

	root, err := xmlresolver.Parse(strings.NewReader("<a>\n\t 12.5 \n</a>"))
	require.NoError(t, err, "Setup: Parse should not return an error")
	assert.Equal(t, "12.5", root.TrimmedText(), "surrounding whitespace should be trimmed")
}
