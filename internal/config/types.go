// Package config loads the on-disk configuration described in spec §4.2
// and §6: a main YAML file naming one service per category, each resolved
// to a separate fragment file carrying a `type` discriminator plus
// provider-specific settings, with `${VAR}`/`$VAR` environment
// interpolation and a final pass of hard environment overrides.
package config

// AppConfig is the fully loaded, interpolated configuration.
type AppConfig struct {
	Persona  string
	Services ServiceNames
	System   SystemConfig

	// Fragments holds the resolved, interpolated fragment for each
	// service category, keyed by category ("asr", "tts", "agent", "vad").
	Fragments map[string]*Fragment
}

// ServiceNames names which configured instance of each category to use,
// e.g. Services.ASR == "whisper-local" resolves to
// services/asr/whisper-local.yaml.
type ServiceNames struct {
	ASR   string `yaml:"asr"`
	TTS   string `yaml:"tts"`
	Agent string `yaml:"agent"`
	VAD   string `yaml:"vad"`
}

// SystemConfig carries process-level settings.
type SystemConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
}

// Fragment is one provider's discriminated-union configuration: a `type`
// tag plus arbitrary provider-specific settings. The Config Loader does
// not itself know the shape of every provider's settings — that is the
// Provider Registry's job (internal/registry), which validates Raw against
// the schema registered for (category, Type) before constructing the
// provider.
type Fragment struct {
	Type string
	Raw  map[string]any
}
