package xmlresolver_test

import (
	"testing"

	"github.com/hydromet/datanode/internal/xmlresolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUploadOptions(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		doc string

		want    xmlresolver.UploadOptions
		wantErr bool
	}{
		"No options block": {
			doc:  `<data><row/></data>`,
			want: xmlresolver.UploadOptions{},
		},
		"Empty options block": {
			doc:  `<data><UploadOptions/></data>`,
			want: xmlresolver.UploadOptions{},
		},
		"Ignore undefined points": {
			doc:  `<data><UploadOptions><ignoreUndefinedPoints>true</ignoreUndefinedPoints></UploadOptions></data>`,
			want: xmlresolver.UploadOptions{IgnoreUndefinedPoints: true},
		},
		"Truthy numeric value": {
			doc:  `<data><UploadOptions><ignoreUndefinedPoints>1</ignoreUndefinedPoints></UploadOptions></data>`,
			want: xmlresolver.UploadOptions{IgnoreUndefinedPoints: true},
		},
		"Falsy value": {
			doc:  `<data><UploadOptions><ignoreUndefinedPoints>no</ignoreUndefinedPoints></UploadOptions></data>`,
			want: xmlresolver.UploadOptions{},
		},

		"Unknown option": {
			doc:     `<data><UploadOptions><turboMode>1</turboMode></UploadOptions></data>`,
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := xmlresolver.ParseUploadOptions(parseDoc(t, tc.doc))
			if tc.wantErr {
				require.Error(t, err, "ParseUploadOptions should reject the block")
				return
			}
			require.NoError(t, err, "ParseUploadOptions should not return an error")
			assert.Equal(t, tc.want, got, "parsed options mismatch")
		})
	}
}
