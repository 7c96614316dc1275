package resolver

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// decode parses the raw bytes of an environment file into a top-level
// mapping, choosing the decoder by file extension. JSON files may carry
// comments and trailing commas; they are stripped before decoding.
func decode(path string, data []byte) (map[string]any, error) {
	raw := make(map[string]any)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported environment file extension %q", ext)
	}

	return raw, nil
}
