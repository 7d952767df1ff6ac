package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML config file. Pointer fields distinguish
// "not set" from zero values.
type Config struct {
	LibPath            string `yaml:"lib_path"`
	ComplementaryLogic *bool  `yaml:"complementary_logic"`
	Mode               string `yaml:"mode"`
	LogLevel           string `yaml:"log_level"`
	HumanLogs          *bool  `yaml:"human_logs"`
	CacheDir           string `yaml:"cache_dir"`
	Concurrency        *int   `yaml:"concurrency"`
	ServerAddress      string `yaml:"server_address"`
}

// libPathEnv fills the library directory when neither a flag nor the config
// file set it.
const libPathEnv = "AFFX_LIB_PATH"

// DefaultConfigPath returns <user config dir>/affxfusion/config.yaml, or ""
// when the config dir is unknown.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "affxfusion", "config.yaml")
}

// LoadConfig reads path. A missing file yields a zero Config; a file that
// does not parse is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// apply copies config values into the global options whose flags were not
// set on the command line.
func (g *globals) apply(cmd *cli.Command, cfg Config) {
	if cfg.LibPath != "" && !cmd.IsSet("lib-path") {
		g.libPath = cfg.LibPath
	}
	if g.libPath == "" {
		g.libPath = os.Getenv(libPathEnv)
	}
	if cfg.ComplementaryLogic != nil && !cmd.IsSet("complementary") {
		g.complementary = *cfg.ComplementaryLogic
	}
	if cfg.Mode != "" && !cmd.IsSet("mode") {
		g.mode = cfg.Mode
	}
	if cfg.LogLevel == "debug" && !cmd.IsSet("debug") {
		g.debug = true
	}
	if cfg.HumanLogs != nil && !cmd.IsSet("human") {
		g.human = *cfg.HumanLogs
	}
	if cfg.CacheDir != "" && !cmd.IsSet("cache-dir") {
		g.cacheDir = cfg.CacheDir
	}
	if cfg.Concurrency != nil && !cmd.IsSet("concurrency") {
		g.concurrency = *cfg.Concurrency
	}
	g.serverAddress = cfg.ServerAddress
}
