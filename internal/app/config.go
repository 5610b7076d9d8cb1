package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"termbridge/internal/render"
	"termbridge/internal/resize"
	"termbridge/internal/session"
	"termbridge/internal/term"
)

const (
	DefaultEndpoint = "ws://127.0.0.1:8000/api/v1/terminal/session"
	EnvPrefix       = "TERMBRIDGE"
)

// Config controls runtime behavior for the bridge host.
type Config struct {
	Endpoint      string            `yaml:"endpoint" split_words:"true"`
	Headers       map[string]string `yaml:"headers" split_words:"true"`
	DialTimeoutMS int               `yaml:"dial_timeout_ms" split_words:"true"`
	SendQueue     int               `yaml:"send_queue" split_words:"true"`
	LogPath       string            `yaml:"log_path" split_words:"true"`
	Debug         bool              `yaml:"debug" split_words:"true"`
	Banner        []string          `yaml:"banner" ignored:"true"`
	Render        RenderConfig      `yaml:"render" split_words:"true"`
	Screen        ScreenConfig      `yaml:"screen" split_words:"true"`
	Resize        ResizeConfig      `yaml:"resize" split_words:"true"`
	Palette       PaletteConfig     `yaml:"palette" ignored:"true"`
}

type RenderConfig struct {
	Mode       string `yaml:"mode" split_words:"true"`
	FPS        int    `yaml:"fps" split_words:"true"`
	CellWidth  int    `yaml:"cell_width" split_words:"true"`
	CellHeight int    `yaml:"cell_height" split_words:"true"`
}

type ScreenConfig struct {
	Scrollback int `yaml:"scrollback" split_words:"true"`
	Cols       int `yaml:"cols" split_words:"true"`
	Rows       int `yaml:"rows" split_words:"true"`
}

type ResizeConfig struct {
	SettleMS int `yaml:"settle_ms" split_words:"true"`
}

type PaletteConfig struct {
	Foreground string   `yaml:"foreground"`
	Background string   `yaml:"background"`
	Cursor     string   `yaml:"cursor"`
	ANSI       []string `yaml:"ansi"`
}

func DefaultConfig() Config {
	return Config{
		Endpoint:      DefaultEndpoint,
		DialTimeoutMS: int(session.DefaultDialTimeout / time.Millisecond),
		SendQueue:     session.DefaultSendQueue,
		Banner:        session.DefaultBanner,
		Render: RenderConfig{
			Mode:       string(render.PreferAuto),
			FPS:        render.DefaultFPS,
			CellWidth:  1,
			CellHeight: 1,
		},
		Screen: ScreenConfig{
			Scrollback: term.DefaultScrollback,
			Cols:       term.DefaultCols,
			Rows:       term.DefaultRows,
		},
		Resize: ResizeConfig{
			SettleMS: int(resize.DefaultSettle / time.Millisecond),
		},
		Palette: PaletteConfig{
			Foreground: render.DefaultForeground,
			Background: render.DefaultBackground,
			Cursor:     render.DefaultCursor,
		},
	}
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays TERMBRIDGE_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("load env config: %w", err)
	}
	return nil
}

// AddHeader parses a "Key: Value" pair into Headers.
func (c *Config) AddHeader(raw string) error {
	k, v, ok := strings.Cut(raw, ":")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("invalid header %q, want \"Key: Value\"", raw)
	}
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	c.Headers[k] = strings.TrimSpace(v)
	return nil
}

func (c *Config) Validate() error {
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	switch {
	case strings.HasPrefix(c.Endpoint, "ws://"), strings.HasPrefix(c.Endpoint, "wss://"),
		strings.HasPrefix(c.Endpoint, "http://"), strings.HasPrefix(c.Endpoint, "https://"):
	default:
		return fmt.Errorf("invalid endpoint %q, want a ws:// or wss:// URL", c.Endpoint)
	}

	switch strings.ToLower(strings.TrimSpace(c.Render.Mode)) {
	case "", "auto", "screen", "gpu", "tcell", "canvas", "cpu-canvas", "cpu":
	default:
		return fmt.Errorf("invalid render mode %q", c.Render.Mode)
	}
	c.Render.Mode = string(render.NormalizePreference(c.Render.Mode))
	if c.Render.FPS <= 0 {
		c.Render.FPS = render.DefaultFPS
	}
	if c.Render.FPS > 240 {
		return fmt.Errorf("invalid fps %d", c.Render.FPS)
	}
	if c.Render.CellWidth <= 0 {
		c.Render.CellWidth = 1
	}
	if c.Render.CellHeight <= 0 {
		c.Render.CellHeight = 1
	}

	if c.Screen.Scrollback < 0 {
		return fmt.Errorf("invalid scrollback %d", c.Screen.Scrollback)
	}
	if c.Screen.Cols <= 0 {
		c.Screen.Cols = term.DefaultCols
	}
	if c.Screen.Rows <= 0 {
		c.Screen.Rows = term.DefaultRows
	}
	if c.Resize.SettleMS < 0 {
		c.Resize.SettleMS = 0
	}
	if c.DialTimeoutMS <= 0 {
		c.DialTimeoutMS = int(session.DefaultDialTimeout / time.Millisecond)
	}
	if c.SendQueue <= 0 {
		c.SendQueue = session.DefaultSendQueue
	}
	if len(c.Palette.ANSI) > 16 {
		return fmt.Errorf("palette has %d ansi colours, want at most 16", len(c.Palette.ANSI))
	}
	return nil
}

// Preference is the validated renderer preference.
func (c Config) Preference() render.Preference {
	return render.NormalizePreference(c.Render.Mode)
}

func (c Config) CellMetrics() render.CellMetrics {
	return render.CellMetrics{Width: c.Render.CellWidth, Height: c.Render.CellHeight}
}

func (c Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Resize.SettleMS) * time.Millisecond
}
