package configutil

import "time"

// Config is the ambient configuration for the recoadapter process: the
// defaults and dial parameters that stand in for a site-supplied
// NamedProperties override until one is present, per SPEC_FULL.md's
// distinction between ambient config and the per-session property snapshot.
type Config struct {
	Transport TransportConfig `mapstructure:"transport"`
	Log       LogConfig       `mapstructure:"log"`
	Adapter   AdapterConfig   `mapstructure:"adapter"`
}

type TransportConfig struct {
	DefaultBaseURL string        `mapstructure:"default_base_url"`
	HandshakeWait  time.Duration `mapstructure:"handshake_wait"`
	SendQueueSize  int           `mapstructure:"send_queue_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AdapterConfig struct {
	SingleShot           bool `mapstructure:"single_shot"`
	PreferredFrameMillis int  `mapstructure:"preferred_frame_millis"`
}

var configSchema = Schema{
	Optional: []string{
		"transport.default_base_url",
		"transport.handshake_wait",
		"transport.send_queue_size",
		"log.level",
		"adapter.single_shot",
		"adapter.preferred_frame_millis",
	},
}

// Load validates a raw settings map (e.g. viper's AllSettings()) against the
// known configuration keys, decodes it into a Config seeded with defaults,
// and validates the result.
func Load(settings map[string]any) (Config, error) {
	if err := ValidateSettings(flattenSettings(settings), configSchema); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Transport: TransportConfig{
			DefaultBaseURL: "wss://speech.recognition.local/v1",
			HandshakeWait:  10 * time.Second,
			SendQueueSize:  256,
		},
		Log: LogConfig{Level: "info"},
		Adapter: AdapterConfig{
			PreferredFrameMillis: 128,
		},
	}
	if err := DecodeSettings(settings, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a config that cannot bring a session up: no transport
// dial target, or a preferred audio chunk duration that isn't positive.
func (c Config) Validate() error {
	if err := RequireString(c.Transport.DefaultBaseURL, "transport.default_base_url"); err != nil {
		return err
	}
	if c.Adapter.PreferredFrameMillis <= 0 {
		return RequireString("", "adapter.preferred_frame_millis")
	}
	return nil
}

// flattenSettings turns a nested settings map (the shape viper.AllSettings
// produces for dotted keys like "transport.default_base_url") into a flat,
// dot-joined map so it can be checked against a Schema of dotted key names.
func flattenSettings(input map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto("", input, out)
	return out
}

func flattenInto(prefix string, input map[string]any, out map[string]any) {
	for k, v := range input {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(key, nested, out)
			continue
		}
		out[key] = v
	}
}
