package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Filename is the name of the global configuration file inside the
// app directory.
const Filename = "config.toml"

// Config represents the global configuration store. Only the proxy
// table is consulted by the bootstrap code.
type Config struct {
	Proxy struct {
		HTTPS   string `toml:"https"`
		HTTP    string `toml:"http"`
		NoProxy string `toml:"no_proxy"`
	} `toml:"proxy"`

	path string
}

var (
	current     *Config
	currentErr  error
	currentOnce sync.Once
)

// Load reads the configuration file from appDir. A missing file is
// not an error and yields an empty configuration.
func Load(appDir string) (*Config, error) {
	path := filepath.Join(appDir, Filename)
	cfg := &Config{path: path}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Current returns the process-wide configuration for appDir, loading
// it on first use.
func Current(appDir string) (*Config, error) {
	currentOnce.Do(func() {
		current, currentErr = Load(appDir)
	})
	return current, currentErr
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// HTTPSProxyURL returns the configured HTTPS proxy, falling back to
// the https_proxy environment variables. Empty means no proxy.
func (c *Config) HTTPSProxyURL() string {
	if c != nil && c.Proxy.HTTPS != "" {
		return c.Proxy.HTTPS
	}
	return firstEnv("https_proxy", "HTTPS_PROXY")
}

// HTTPProxyURL is like HTTPSProxyURL for plain HTTP traffic.
func (c *Config) HTTPProxyURL() string {
	if c != nil && c.Proxy.HTTP != "" {
		return c.Proxy.HTTP
	}
	return firstEnv("http_proxy", "HTTP_PROXY")
}

// NoProxy returns the hosts that bypass the proxy.
func (c *Config) NoProxy() string {
	if c != nil && c.Proxy.NoProxy != "" {
		return c.Proxy.NoProxy
	}
	return firstEnv("no_proxy", "NO_PROXY")
}

// ProxyEnv returns the environment assignments that forward the proxy
// configuration to a subprocess.
func (c *Config) ProxyEnv() []string {
	env := []string{}
	if https := c.HTTPSProxyURL(); https != "" {
		env = append(env, "HTTPS_PROXY="+https, "https_proxy="+https)
	}
	if http := c.HTTPProxyURL(); http != "" {
		env = append(env, "HTTP_PROXY="+http, "http_proxy="+http)
	}
	if noProxy := c.NoProxy(); noProxy != "" {
		env = append(env, "NO_PROXY="+noProxy, "no_proxy="+noProxy)
	}
	return env
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return ""
}
