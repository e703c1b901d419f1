package config

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// DumpPretty renders cfg as pretty-printed JSON for diagnostic logging,
// e.g. when a `switch_config` message lands and the operator wants to see
// exactly what was loaded.
func DumpPretty(cfg *AppConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(pretty.Pretty(raw)), nil
}

// FragmentField reads a single field out of a fragment's raw JSON
// representation by dotted path, without requiring the caller to know the
// fragment's full Go shape.
func FragmentField(cfg *AppConfig, category, path string) (string, bool) {
	frag, ok := cfg.Fragments[category]
	if !ok {
		return "", false
	}
	raw, err := json.Marshal(frag.Raw)
	if err != nil {
		return "", false
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

// SetFragmentField patches a single field on a fragment's raw settings by
// dotted path and re-decodes it back into the map, used when applying a
// targeted `switch_config` update without reloading the whole file.
func SetFragmentField(cfg *AppConfig, category, path, value string) error {
	frag, ok := cfg.Fragments[category]
	if !ok {
		frag = &Fragment{Raw: map[string]any{}}
		cfg.Fragments[category] = frag
	}
	raw, err := json.Marshal(frag.Raw)
	if err != nil {
		return err
	}
	updated, err := sjson.SetBytes(raw, path, value)
	if err != nil {
		return err
	}
	var out map[string]any
	if err := json.Unmarshal(updated, &out); err != nil {
		return err
	}
	frag.Raw = out
	return nil
}
