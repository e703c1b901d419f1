package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML captures the `type` discriminator separately from the rest
// of the fragment's fields, which are kept generic for the registry to
// validate against the provider's declared schema.
func (f *Fragment) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode fragment: %w", err)
	}

	typeVal, ok := raw["type"]
	if !ok {
		return fmt.Errorf("fragment missing required 'type' discriminator")
	}
	typeStr, ok := typeVal.(string)
	if !ok {
		return fmt.Errorf("fragment 'type' must be a string, got %T", typeVal)
	}
	delete(raw, "type")

	f.Type = typeStr
	f.Raw = raw
	return nil
}

// MarshalYAML re-attaches the type discriminator for round-tripping.
func (f Fragment) MarshalYAML() (any, error) {
	out := make(map[string]any, len(f.Raw)+1)
	for k, v := range f.Raw {
		out[k] = v
	}
	out["type"] = f.Type
	return out, nil
}
