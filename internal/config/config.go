package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kimai-deck/internal/domain"
)

// Key kinds.
const (
	KindToggle  = "toggle"
	KindDisplay = "display"
	KindStop    = "stop"
)

const (
	appName        = "kimai-deck"
	layoutFile     = "deck.yaml"
	defaultAddr    = "127.0.0.1:8787"
	defaultTimeout = 10 * time.Second

	envConfig   = "KIMAI_DECK_CONFIG"
	envURL      = "KIMAI_URL"
	envToken    = "KIMAI_API_TOKEN"
	envTimeout  = "KIMAI_TIMEOUT"
	envDSN      = "JOURNAL_DSN"
	envHTTPAddr = "KIMAI_DECK_HTTP_ADDR"
)

// Config holds the key layout file merged with environment overrides.
type Config struct {
	Kimai struct {
		URL      string
		APIToken string
		Timeout  time.Duration // default: 10s
	}
	Journal struct {
		DSN string // Empty disables the MySQL journal
	}
	HTTP struct {
		Addr string // default: 127.0.0.1:8787
	}
	Keys []Key
	Path string // Layout file that was read, empty if none
}

// Key is one configured key.
type Key struct {
	Name        string
	Kind        string // toggle (default), display or stop
	ProjectID   string
	ActivityID  string
	Description string
}

// KeyConfig returns the settings a key consumes.
func (c Config) KeyConfig(k Key) domain.KeyConfig {
	return domain.KeyConfig{
		ServiceURL:  c.Kimai.URL,
		APIToken:    c.Kimai.APIToken,
		ProjectID:   k.ProjectID,
		ActivityID:  k.ActivityID,
		Description: k.Description,
	}
}

// Key looks up a key by name.
func (c Config) Key(name string) (Key, bool) {
	for _, k := range c.Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

type fileLayout struct {
	Kimai struct {
		URL      string `yaml:"url"`
		APIToken string `yaml:"api_token"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"kimai"`
	Journal struct {
		DSN string `yaml:"dsn"`
	} `yaml:"journal"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Keys []fileKey `yaml:"keys"`
}

type fileKey struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	ProjectID   scalarID `yaml:"project_id"`
	ActivityID  scalarID `yaml:"activity_id"`
	Description string   `yaml:"description"`
}

// scalarID accepts ids written either as numbers or as strings.
type scalarID string

func (s *scalarID) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a scalar", n.Line)
	}
	*s = scalarID(strings.TrimSpace(n.Value))
	return nil
}

// Load reads the key layout and applies environment overrides.
// An empty path falls back to KIMAI_DECK_CONFIG and then to the user config
// directory; only an explicitly named file has to exist. Missing Kimai
// credentials are not an error here: keys report them when pressed.
func Load(path string) (Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = os.Getenv(envConfig)
		explicit = path != ""
	}
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}

	var layout fileLayout
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &layout); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
			cfg.Path = path
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// No layout yet; env alone may still configure a display-only run.
		default:
			return cfg, fmt.Errorf("read key layout: %w", err)
		}
	}

	cfg.Kimai.URL = firstNonEmpty(os.Getenv(envURL), layout.Kimai.URL)
	cfg.Kimai.APIToken = firstNonEmpty(os.Getenv(envToken), layout.Kimai.APIToken)
	cfg.Kimai.Timeout = defaultTimeout
	if t := firstNonEmpty(os.Getenv(envTimeout), layout.Kimai.Timeout); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("%s must be a positive duration, got %q", envTimeout, t)
		}
		cfg.Kimai.Timeout = d
	}
	cfg.Journal.DSN = firstNonEmpty(os.Getenv(envDSN), layout.Journal.DSN)
	cfg.HTTP.Addr = firstNonEmpty(os.Getenv(envHTTPAddr), layout.HTTP.Addr, defaultAddr)

	seen := make(map[string]bool)
	for i, fk := range layout.Keys {
		k := Key{
			Name:        strings.TrimSpace(fk.Name),
			Kind:        strings.ToLower(strings.TrimSpace(fk.Kind)),
			ProjectID:   string(fk.ProjectID),
			ActivityID:  string(fk.ActivityID),
			Description: fk.Description,
		}
		if k.Name == "" {
			return cfg, fmt.Errorf("keys[%d]: name is required", i)
		}
		if seen[k.Name] {
			return cfg, fmt.Errorf("keys[%d]: duplicate key name %q", i, k.Name)
		}
		seen[k.Name] = true
		switch k.Kind {
		case "":
			k.Kind = KindToggle
		case KindToggle, KindDisplay, KindStop:
		default:
			return cfg, fmt.Errorf("keys[%d]: unknown kind %q", i, k.Kind)
		}
		cfg.Keys = append(cfg.Keys, k)
	}
	return cfg, nil
}

// DefaultPath is the layout file under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, appName, layoutFile), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
