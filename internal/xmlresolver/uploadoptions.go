package xmlresolver

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hydromet/datanode/internal/formats"
)

// UploadOptions is the optional per-document tuning block of an upload.
type UploadOptions struct {
	// IgnoreUndefinedPoints skips rows whose monitoring point is unknown
	// instead of failing them.
	IgnoreUndefinedPoints bool `mapstructure:"ignoreUndefinedPoints"`
}

// ParseUploadOptions reads the UploadOptions block under the document root.
// Unknown option names are a hard error; option values follow the canonical
// truthy-string rule. An absent block yields the zero options.
func ParseUploadOptions(doc *Node) (UploadOptions, error) {
	block := doc.First([]string{"UploadOptions"})
	if block == nil {
		return UploadOptions{}, nil
	}

	raw := make(map[string]any, len(block.Children))
	for _, child := range block.Children {
		raw[child.Name.Local] = formats.Truthy(child.TrimmedText())
	}

	var opts UploadOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &opts,
		ErrorUnused: true,
	})
	if err != nil {
		return UploadOptions{}, fmt.Errorf("failed to create decoder: %v", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return UploadOptions{}, fmt.Errorf("invalid upload options: %w", err)
	}

	return opts, nil
}
