package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/queryhub/chat-web-ui/internal/session"
	"github.com/queryhub/chat-web-ui/internal/stream"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort       = "8080"
	envPort           = "CHATWEBUI_PORT"
	envAPIBaseURL     = "CHATWEBUI_API_BASE_URL"
	envSessionSecure  = "CHATWEBUI_SECURE_COOKIES"
	sessionTypeCookie = "cookie"
	sessionTypeBolt   = "bolt"
)

type sessionConfig interface {
	store(cfgDir string) (session.Store, func() error, error)
}

// BaseSessionConfig contains the common fields for all session store configurations.
type BaseSessionConfig struct {
	Type       string `yaml:"type"`
	CookieName string `yaml:"cookieName"`
	Secure     bool   `yaml:"secure"`
}

type cookieSessionConfig struct {
	BaseSessionConfig `yaml:",inline"`
}

type boltSessionConfig struct {
	BaseSessionConfig `yaml:",inline"`
	Path              string `yaml:"path"`
}

type streamConfig struct {
	ChunkSize           int  `yaml:"chunkSize"`
	CarryPartialMarkers bool `yaml:"carryPartialMarkers"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type config struct {
	Port           string        `yaml:"port"`
	APIBaseURL     string        `yaml:"apiBaseURL"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	Session        sessionConfig `yaml:"session"`
	Stream         streamConfig  `yaml:"stream"`
	Log            logConfig     `yaml:"log"`
}

func defaultConfig() config {
	return config{
		Port: defaultPort,
		Session: cookieSessionConfig{BaseSessionConfig{
			Type:       sessionTypeCookie,
			CookieName: session.DefaultCookieName,
		}},
		Stream: streamConfig{
			ChunkSize:           stream.DefaultChunkSize,
			CarryPartialMarkers: true,
		},
		Log: logConfig{Level: "info", Format: "text"},
	}
}

// loadConfig reads the config file at path when it exists, then applies environment overrides.
// Without a file the defaults are used and the API base URL must come from the environment.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && err != io.EOF {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	case !os.IsNotExist(err):
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c *config) applyEnv() {
	if port := os.Getenv(envPort); port != "" {
		c.Port = port
	}
	if baseURL := os.Getenv(envAPIBaseURL); baseURL != "" {
		c.APIBaseURL = baseURL
	}
	if os.Getenv(envSessionSecure) == "true" {
		switch s := c.Session.(type) {
		case cookieSessionConfig:
			s.Secure = true
			c.Session = s
		case boltSessionConfig:
			s.Secure = true
			c.Session = s
		}
	}
}

func (c config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("apiBaseURL is required (set it in the config file or %s)", envAPIBaseURL)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.Stream.ChunkSize < 0 {
		return fmt.Errorf("stream chunkSize must not be negative")
	}
	return nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port           string         `yaml:"port"`
		APIBaseURL     string         `yaml:"apiBaseURL"`
		RequestTimeout time.Duration  `yaml:"requestTimeout"`
		Session        map[string]any `yaml:"session"`
		Stream         *struct {
			ChunkSize           *int  `yaml:"chunkSize"`
			CarryPartialMarkers *bool `yaml:"carryPartialMarkers"`
		} `yaml:"stream"`
		Log *logConfig `yaml:"log"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	c.APIBaseURL = rawConfig.APIBaseURL
	c.RequestTimeout = rawConfig.RequestTimeout

	// Omitted fields keep their defaults.
	if s := rawConfig.Stream; s != nil {
		if s.ChunkSize != nil {
			c.Stream.ChunkSize = *s.ChunkSize
		}
		if s.CarryPartialMarkers != nil {
			c.Stream.CarryPartialMarkers = *s.CarryPartialMarkers
		}
	}
	if rawConfig.Log != nil {
		if rawConfig.Log.Level != "" {
			c.Log.Level = rawConfig.Log.Level
		}
		if rawConfig.Log.Format != "" {
			c.Log.Format = rawConfig.Log.Format
		}
	}

	if rawConfig.Session == nil {
		return nil
	}

	sessionType, ok := rawConfig.Session["type"].(string)
	if !ok {
		return fmt.Errorf("session type is required")
	}

	sessionRawYAML, err := yaml.Marshal(rawConfig.Session)
	if err != nil {
		return err
	}

	switch sessionType {
	case sessionTypeCookie:
		s := cookieSessionConfig{}
		if err := yaml.Unmarshal(sessionRawYAML, &s); err != nil {
			return err
		}
		c.Session = s
	case sessionTypeBolt:
		s := boltSessionConfig{}
		if err := yaml.Unmarshal(sessionRawYAML, &s); err != nil {
			return err
		}
		c.Session = s
	default:
		return fmt.Errorf("unknown session type: %s", sessionType)
	}

	return nil
}

func (s cookieSessionConfig) store(string) (session.Store, func() error, error) {
	return session.NewCookieStore(s.CookieName, s.Secure), func() error { return nil }, nil
}

func (s boltSessionConfig) store(cfgDir string) (session.Store, func() error, error) {
	path := s.Path
	if path == "" {
		path = filepath.Join(cfgDir, "sessions.db")
	}

	b, err := session.NewBoltStore(path, s.CookieName, s.Secure)
	if err != nil {
		return nil, nil, err
	}
	return b, b.Close, nil
}
