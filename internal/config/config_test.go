// SPDX-License-Identifier: MIT

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLedgerPath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/spatelier"
	assert.Equal(t, "/var/lib/spatelier/spatelier.db", cfg.LedgerPath())
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"empty temp root", func(c *Config) { c.TempRoot = "" }},
		{"no video extensions", func(c *Config) { c.VideoExtensions = nil }},
		{"empty subtitle marker", func(c *Config) { c.SubtitleMarker = "" }},
		{"unknown worker mode", func(c *Config) { c.Worker.Mode = "forked" }},
		{"zero poll interval", func(c *Config) { c.Worker.PollInterval = 0 }},
		{"zero stuck timeout", func(c *Config) { c.Worker.StuckJobTimeout = 0 }},
		{"negative max retries", func(c *Config) { c.Worker.MaxRetries = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWorkerModes(t *testing.T) {
	for _, mode := range []string{"thread", "daemon", "auto"} {
		cfg := Default()
		cfg.Worker.Mode = mode
		assert.NoError(t, cfg.Validate(), "mode %q", mode)
	}
}
