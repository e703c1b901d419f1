// Package registry implements the Provider Registry (spec §4.1): a runtime
// map from (category, type) to a config schema and a constructor, so that
// adding a provider never touches the orchestrator, the config loader, or
// the session manager.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// Constructor builds a service instance from validated, provider-specific
// settings and an optional system prompt (used by agent/LLM providers).
type Constructor func(settings map[string]any, systemPrompt string) (any, error)

type entry struct {
	schema      *gojsonschema.Schema
	constructor Constructor
}

// Registry is a read-mostly map keyed by (category, type). Registration
// happens at process init and is not required to be thread-safe; lookups
// after init may happen concurrently across sessions.
type Registry struct {
	entries map[string]map[string]entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]map[string]entry)}
}

// Register declares a provider for (category, type): exampleSettings is any
// Go value whose shape documents the provider's config (a schema is derived
// from it via reflection, mirroring the teacher's agent-SDK tool-schema
// generation), and constructor builds the service once settings validate.
func (r *Registry) Register(category, providerType string, exampleSettings any, constructor Constructor) error {
	reflector := &jsonschema.Reflector{}
	doc := reflector.Reflect(exampleSettings)
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("registry: marshal schema for %s/%s: %w", category, providerType, err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("registry: compile schema for %s/%s: %w", category, providerType, err)
	}

	if _, ok := r.entries[category]; !ok {
		r.entries[category] = make(map[string]entry)
	}
	r.entries[category][providerType] = entry{schema: schema, constructor: constructor}
	return nil
}

// Types lists every provider type registered for category.
func (r *Registry) Types(category string) []string {
	types := make([]string, 0, len(r.entries[category]))
	for t := range r.entries[category] {
		types = append(types, t)
	}
	return types
}

// Create validates settings against the declared schema for (category,
// type) and, if it passes, invokes the constructor. Returns an error for
// an unknown (category, type) or a schema mismatch.
func (r *Registry) Create(category, providerType string, settings map[string]any, systemPrompt string) (any, error) {
	byType, ok := r.entries[category]
	if !ok {
		return nil, fmt.Errorf("registry: unknown category %q", category)
	}
	e, ok := byType[providerType]
	if !ok {
		return nil, fmt.Errorf("registry: unknown provider %q in category %q", providerType, category)
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("registry: marshal settings: %w", err)
	}
	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("registry: validate settings: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("registry: settings for %s/%s failed validation: %v", category, providerType, result.Errors())
	}

	return e.constructor(settings, systemPrompt)
}
