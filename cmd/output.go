package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// writePayload renders v as indented JSON or YAML.
func writePayload(w io.Writer, v any, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode json")
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
	default:
		return eris.Errorf("unknown output format %q (want json or yaml)", format)
	}
	return nil
}
