package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the optional ftpreq configuration file.
//
//	timeout = "15s"
//	verbose = false
//
//	[[host]]
//	name = "ftp.example.com"
//	user = "alice"
//	password = "s3cret"
type Config struct {
	Timeout Delay  `toml:"timeout"`
	Verbose bool   `toml:"verbose"`
	Hosts   []Host `toml:"host"`
}

// Host holds the credentials used for one server.
type Host struct {
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// Delay is a time.Duration written as a string such as "30s".
type Delay time.Duration

// Duration returns d as a time.Duration.
func (d Delay) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses the duration string.
func (d *Delay) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Delay(v)
	return nil
}

// Load decodes a TOML configuration from r.
func (c *Config) Load(r io.Reader) error {
	md, err := toml.DecodeReader(r, c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var c Config
	if err := c.Load(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// credentials returns the entry for host, matched case-insensitively.
func (c *Config) credentials(host string) (Host, bool) {
	for _, h := range c.Hosts {
		if strings.EqualFold(h.Name, host) {
			return h, true
		}
	}
	return Host{}, false
}
