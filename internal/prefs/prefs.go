// Package prefs loads persisted user preferences from an optional YAML file
// and RENDERGRAPH_* environment variables.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is the preferences file looked up when none is given.
const DefaultPath = ".rendergraph/config.yaml"

// EnvPrefix prefixes environment overrides, e.g. RENDERGRAPH_LOG_LEVEL.
const EnvPrefix = "RENDERGRAPH"

// Prefs holds all persisted preferences.
type Prefs struct {
	LogLevel   string     `mapstructure:"log_level"`
	LogFormat  string     `mapstructure:"log_format"`
	NodeViewer NodeViewer `mapstructure:"node_viewer"`
	Relay      Relay      `mapstructure:"relay"`
	Watch      Watch      `mapstructure:"watch"`
}

// NodeViewer holds the toggles that gate the side-effecting appliers in
// viewer mode. Render mode ignores them.
type NodeViewer struct {
	UpdateScripts         bool `mapstructure:"update_scripts"`
	UpdatePath            bool `mapstructure:"update_path"`
	UpdateViewLayerPasses bool `mapstructure:"update_view_layer_passes"`
}

// Relay configures the socket.io service relay. An empty URL disables it.
type Relay struct {
	URL                string        `mapstructure:"url"`
	Namespace          string        `mapstructure:"namespace"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// Watch configures the live viewer.
type Watch struct {
	Debounce   time.Duration `mapstructure:"debounce"`
	StatusPort int           `mapstructure:"status_port"`
}

// Defaults returns the preferences used when nothing is configured.
func Defaults() Prefs {
	return Prefs{
		LogLevel:  "info",
		LogFormat: "text",
		Relay: Relay{
			Namespace: "/",
			Timeout:   15 * time.Second,
		},
		Watch: Watch{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Load reads preferences from path, falling back to DefaultPath when path is
// empty. A missing default file is not an error; a missing explicit one is.
// Overrides are keyed like the file, e.g. "log_level", and take precedence
// over both the file and the environment. It returns the file actually used,
// or "" when none was read.
func Load(path string, overrides map[string]any) (Prefs, string, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	used := path
	if used == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			used = DefaultPath
		}
	}
	if used != "" {
		v.SetConfigFile(used)
		if err := v.ReadInConfig(); err != nil {
			return Prefs{}, "", fmt.Errorf("reading preferences %s: %w", used, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var p Prefs
	if err := v.Unmarshal(&p); err != nil {
		return Prefs{}, "", fmt.Errorf("decoding preferences: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Prefs{}, "", err
	}
	return p, used, nil
}

func setDefaults(v *viper.Viper, d Prefs) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("node_viewer.update_scripts", d.NodeViewer.UpdateScripts)
	v.SetDefault("node_viewer.update_path", d.NodeViewer.UpdatePath)
	v.SetDefault("node_viewer.update_view_layer_passes", d.NodeViewer.UpdateViewLayerPasses)
	v.SetDefault("relay.url", d.Relay.URL)
	v.SetDefault("relay.namespace", d.Relay.Namespace)
	v.SetDefault("relay.timeout", d.Relay.Timeout)
	v.SetDefault("relay.insecure_skip_verify", d.Relay.InsecureSkipVerify)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.status_port", d.Watch.StatusPort)
}

// Validate checks enumerations and ranges.
func (p Prefs) Validate() error {
	var errs []error
	switch p.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", p.LogLevel))
	}
	switch p.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log_format %q: must be text or json", p.LogFormat))
	}
	if p.Relay.Timeout < 0 {
		errs = append(errs, fmt.Errorf("relay.timeout must not be negative"))
	}
	if p.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative"))
	}
	if p.Watch.StatusPort < 0 || p.Watch.StatusPort > 65535 {
		errs = append(errs, fmt.Errorf("watch.status_port %d out of range", p.Watch.StatusPort))
	}
	return errors.Join(errs...)
}
