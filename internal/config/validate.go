package config

import (
	"fmt"
	"net"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"warning": true,
	"error": true,
}

// Validate checks the config for invalid values. Addresses and bitrate are
// load-bearing for the components that bind/dial them, so errors here are
// returned to the caller rather than merely logged; Load treats any
// returned error as fatal at startup.
func (c *Config) Validate() []error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.CaptureLinkAddr); err != nil {
		errs = append(errs, fmt.Errorf("capture_link_addr %q is invalid: %w", c.CaptureLinkAddr, err))
	}
	if _, _, err := net.SplitHostPort(c.DCSBIOSAddr); err != nil {
		errs = append(errs, fmt.Errorf("dcs_bios_addr %q is invalid: %w", c.DCSBIOSAddr, err))
	}
	if _, _, err := net.SplitHostPort(c.HTTPAddr); err != nil {
		errs = append(errs, fmt.Errorf("http_addr %q is invalid: %w", c.HTTPAddr, err))
	}

	if c.EncoderBitrateBPS <= 0 {
		errs = append(errs, fmt.Errorf("encoder_bitrate_bps %d must be positive", c.EncoderBitrateBPS))
	}

	if len(c.STUNServers) == 0 {
		errs = append(errs, fmt.Errorf("stun_servers must contain at least one URL"))
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	return errs
}
