package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all tunables for the relay process: capture-link, DCS-BIOS
// and HTTP listener addresses, the STUN server list, and the H.264 encoder
// bitrate.
type Config struct {
	// C5 capture-link TCP listener.
	CaptureLinkAddr string `mapstructure:"capture_link_addr"`

	// C8 DCS-BIOS TCP client target.
	DCSBIOSAddr string `mapstructure:"dcs_bios_addr"`

	// C12 HTTP surface.
	HTTPAddr string `mapstructure:"http_addr"`
	CORSOpen bool   `mapstructure:"cors_open"`

	// C7 WebRTC session manager.
	STUNServers []string `mapstructure:"stun_servers"`

	// C6 encoder bitrate, in bits per second. Configurable rather than
	// hardcoded so a single binary serves different network conditions.
	EncoderBitrateBPS int `mapstructure:"encoder_bitrate_bps"`

	// C9 control-definitions store.
	ControlRefDir string `mapstructure:"control_ref_dir"`

	// Logging.
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// LogFile, when set, tees logs to a size-rotated file in addition to
	// stderr. Empty means stderr only.
	LogFile        string `mapstructure:"log_file"`
	LogMaxSizeMB   int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups  int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		CaptureLinkAddr:   "127.0.0.1:5476",
		DCSBIOSAddr:       "127.0.0.1:7778",
		HTTPAddr:          "0.0.0.0:3511",
		CORSOpen:          false,
		STUNServers:       []string{"stun:stun.l.google.com:19302"},
		EncoderBitrateBPS: 60_000,
		ControlRefDir:     defaultControlRefDir(),
		LogLevel:          "info",
		LogFormat:         "text",
		LogFile:           "",
		LogMaxSizeMB:      50,
		LogMaxBackups:     3,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	explicitFileMissing := false
	if cfgFile != "" {
		if _, statErr := os.Stat(cfgFile); statErr != nil {
			explicitFileMissing = true
		}
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("mfdrelay")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("MFDRELAY")

	if !explicitFileMissing {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config has invalid values: %v", errs[0])
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("capture_link_addr", cfg.CaptureLinkAddr)
	v.Set("dcs_bios_addr", cfg.DCSBIOSAddr)
	v.Set("http_addr", cfg.HTTPAddr)
	v.Set("cors_open", cfg.CORSOpen)
	v.Set("stun_servers", cfg.STUNServers)
	v.Set("encoder_bitrate_bps", cfg.EncoderBitrateBPS)
	v.Set("control_ref_dir", cfg.ControlRefDir)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("log_file", cfg.LogFile)
	v.Set("log_max_size_mb", cfg.LogMaxSizeMB)
	v.Set("log_max_backups", cfg.LogMaxBackups)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "mfdrelay.yaml")
		if err := os.MkdirAll(configDir(), 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// defaultControlRefDir resolves the fixed %APPDATA%\DCS-BIOS\control-reference-json
// path DCS-BIOS installs on Windows, with analogous per-OS locations
// elsewhere since DCS itself is Windows-only but the relay should not hard
// fail to start on other platforms during development.
func defaultControlRefDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "DCS-BIOS", "control-reference-json")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "DCS-BIOS", "control-reference-json")
	default:
		return filepath.Join(os.Getenv("HOME"), ".config", "dcs-bios", "control-reference-json")
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "mfdrelay")
	case "darwin":
		return "/Library/Application Support/mfdrelay"
	default:
		return "/etc/mfdrelay"
	}
}
