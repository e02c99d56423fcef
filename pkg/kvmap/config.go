package kvmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// fileOptions is the schema of an options file. The file is JSONC
// (JSON with comments and trailing commas), standardized via hujson
// before decoding, so deployments can annotate their sizing choices.
type fileOptions struct {
	Capacity int    `json:"capacity"`
	Backend  string `json:"backend,omitempty"`
}

// LoadOptionsFile reads a JSONC options file and returns the Options it
// describes. Recognized fields:
//
//	capacity  (required)  fixed slab capacity in entries, >= 1
//	backend   (optional)  compute backend name; "cpu" is the only one
//	                      this module ships and the default when empty
//
// Host programs that need a non-default [Options.Device] set it on the
// returned Options themselves; a device handle has no file representation.
func LoadOptionsFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("kvmap: read options file: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Options{}, fmt.Errorf("kvmap: invalid options file %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	var fo fileOptions
	if err := dec.Decode(&fo); err != nil {
		return Options{}, fmt.Errorf("kvmap: invalid options file %s: %w", path, err)
	}

	if fo.Capacity < 1 {
		return Options{}, fmt.Errorf("kvmap: options file %s: capacity must be >= 1, got %d", path, fo.Capacity)
	}
	switch fo.Backend {
	case "", "cpu":
	default:
		return Options{}, fmt.Errorf("kvmap: options file %s: unknown backend %q (only \"cpu\" is available)", path, fo.Backend)
	}

	return Options{Capacity: fo.Capacity}, nil
}
