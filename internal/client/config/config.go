package config

// Config holds runtime settings for the wiki CLI.
//
// Fields:
//   - ServerURL: base URL of the reference host (http or https).
//   - Token: the join token minted by the server operator.
type Config struct {
	ServerURL string
	Token     string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8787"
	c.Token = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
