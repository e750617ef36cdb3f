// Package config reads server settings from BLOG_* environment variables.
// A .env file in the working directory is loaded first if present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host string
	Port int

	SessionTTL     time.Duration
	MaxRequestSize int
	MetricsWindow  time.Duration

	StaticRoot string

	Workers      int
	QueueSize    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	LogLevel string
	LogDev   bool
}

func Default() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8080,
		SessionTTL:     86400 * time.Second,
		MaxRequestSize: 1 << 20,
		MetricsWindow:  60 * time.Second,
		StaticRoot:     "static",
		Workers:        64,
		QueueSize:      1024,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		LogLevel:       "info",
	}
}

// Load reads .env (optional) and the environment on top of Default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from any env-like source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.str("BLOG_HOST", &c.Host)
	p.num("BLOG_PORT", &c.Port)
	p.seconds("BLOG_SESSION_EXPIRE", &c.SessionTTL)
	p.num("BLOG_MAX_REQ", &c.MaxRequestSize)
	p.seconds("BLOG_METRICS_WINDOW", &c.MetricsWindow)
	p.str("BLOG_STATIC_ROOT", &c.StaticRoot)
	p.num("BLOG_WORKERS", &c.Workers)
	p.num("BLOG_QUEUE", &c.QueueSize)
	p.duration("BLOG_READ_TIMEOUT", &c.ReadTimeout)
	p.duration("BLOG_WRITE_TIMEOUT", &c.WriteTimeout)
	p.str("BLOG_LOG_LEVEL", &c.LogLevel)
	p.flag("BLOG_LOG_DEV", &c.LogDev)

	if p.err != nil {
		return Config{}, p.err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.MaxRequestSize <= 0:
		return fmt.Errorf("config: max request size must be positive")
	case c.MetricsWindow <= 0:
		return fmt.Errorf("config: metrics window must be positive")
	case c.SessionTTL <= 0:
		return fmt.Errorf("config: session ttl must be positive")
	case c.Workers <= 0:
		return fmt.Errorf("config: workers must be positive")
	case c.QueueSize < 0:
		return fmt.Errorf("config: queue size must not be negative")
	case c.ReadTimeout < 0 || c.WriteTimeout < 0:
		return fmt.Errorf("config: read and write timeouts must not be negative")
	}
	return nil
}

// Addr is host:port for logs.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// parser keeps the first error so Load reads like a list of fields
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(key)
	return v, ok && v != ""
}

func (p *parser) fail(key, v string, err error) {
	p.err = fmt.Errorf("config: %s=%q: %w", key, v, err)
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) num(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = n
}

func (p *parser) flag(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = b
}

func (p *parser) seconds(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = time.Duration(n) * time.Second
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = d
}
