// Arvid Client
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Arvid Client.
//
// Arvid Client is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Arvid Client is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Arvid Client.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCfgPath = "/cfg/arvid.toml"

func envMap(m map[string]string) LookupEnvFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, fs afero.Fs, data string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll("/cfg", 0o750))
	require.NoError(t, afero.WriteFile(fs, testCfgPath, []byte(data), 0o600))
}

func TestNewConfigWritesDefaults(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, nil)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, testCfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "config_schema = 1")

	assert.Equal(t, testCfgPath, cfg.Path())
	assert.Empty(t, cfg.ServerAddress())
	assert.Equal(t, 32100, cfg.ServerPort())
	assert.Equal(t, "native", cfg.ByteOrder())
	assert.Equal(t, time.Second, cfg.SettleTime())
	assert.Equal(t, BlitTypeBlocking, cfg.BlitType())
	assert.Equal(t, 2, cfg.CompressionLevel())
	assert.Zero(t, cfg.CoreLimit())
	assert.Zero(t, cfg.FirstCoreIndex())
	assert.Nil(t, cfg.CoreMap())
	assert.False(t, cfg.PinThreads())
	assert.Equal(t, time.Second, cfg.StartupTimeout())
	assert.Zero(t, cfg.UpdatePacketRate())
	assert.False(t, cfg.DebugLogging())
}

func TestLoadFileValues(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, `
config_schema = 1
debug_logging = true

[server]
address = "192.168.1.50"
port = 32101
byte_order = "big"
settle_time = "250ms"

[blit]
type = "non_blocking"
compression_level = 1

[cores]
limit = 4
first_index = 2
map = [3, 2, 1, 0]
pin_threads = true
startup_timeout = "2s"

[update]
packet_rate = 500.0
`)

	cfg, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, nil)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.50", cfg.ServerAddress())
	assert.Equal(t, 32101, cfg.ServerPort())
	assert.Equal(t, "big", cfg.ByteOrder())
	assert.Equal(t, 250*time.Millisecond, cfg.SettleTime())
	assert.Equal(t, BlitTypeNonBlocking, cfg.BlitType())
	assert.Equal(t, 1, cfg.CompressionLevel())
	assert.Equal(t, 4, cfg.CoreLimit())
	assert.Equal(t, 2, cfg.FirstCoreIndex())
	assert.Equal(t, []int{3, 2, 1, 0}, cfg.CoreMap())
	assert.True(t, cfg.PinThreads())
	assert.Equal(t, 2*time.Second, cfg.StartupTimeout())
	assert.InDelta(t, 500.0, cfg.UpdatePacketRate(), 0)
	assert.True(t, cfg.DebugLogging())
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config_schema = 1\n[server]\naddress = \"arvid.local\"\n")

	cfg, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, nil)
	require.NoError(t, err)
	assert.Equal(t, "arvid.local", cfg.ServerAddress())
	assert.Equal(t, 32100, cfg.ServerPort())
	assert.Equal(t, 2, cfg.CompressionLevel())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config_schema = 1\n[server]\naddress = \"10.0.0.1\"\n[cores]\nlimit = 6\n")

	cfg, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, envMap(map[string]string{
		ServerEnv:                "10.0.0.2",
		CoreCountEnv:             "2",
		CoreIndexEnv:             "4",
		CoreMapEnvPrefix + "0":   "5",
		CoreMapEnvPrefix + "1":   "6",
		CoreMapEnvPrefix + "2":   " ",
		"ARVID_UNRELATED_SETTING": "x",
	}))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2", cfg.ServerAddress())
	assert.Equal(t, 2, cfg.CoreLimit())
	assert.Equal(t, 4, cfg.FirstCoreIndex())
	assert.Equal(t, []int{5, 6, -1, -1, -1, -1, -1, -1}, cfg.CoreMap())
	assert.Equal(t, 2, cfg.Values().Cores.Limit)

	// overrides never reach the file
	require.NoError(t, cfg.Save())
	data, err := afero.ReadFile(fs, testCfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "10.0.0.1")
	assert.NotContains(t, string(data), "10.0.0.2")

	cfg.SetServerAddress("10.0.0.3")
	assert.Equal(t, "10.0.0.3", cfg.ServerAddress())
}

func TestEnvironmentCoreCountIsClamped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  int
	}{
		{value: "99", want: 8},
		{value: "-3", want: 0},
		{value: "1", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			cfg, err := NewConfigWithFs(afero.NewMemMapFs(), testCfgPath, BaseDefaults,
				envMap(map[string]string{CoreCountEnv: tt.value}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.CoreLimit())
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		env  map[string]string
	}{
		{name: "blit type", data: "config_schema = 1\n[blit]\ntype = \"turbo\"\n"},
		{name: "port", data: "config_schema = 1\n[server]\nport = 0\n"},
		{name: "compression level", data: "config_schema = 1\n[blit]\ncompression_level = 12\n"},
		{name: "byte order", data: "config_schema = 1\n[server]\nbyte_order = \"middle\"\n"},
		{name: "settle time", data: "config_schema = 1\n[server]\nsettle_time = \"soon\"\n"},
		{name: "core limit", data: "config_schema = 1\n[cores]\nlimit = 9\n"},
		{name: "core map length", data: "config_schema = 1\n[cores]\nmap = [0,1,2,3,4,5,6,7,8]\n"},
		{name: "core map entry", data: "config_schema = 1\n[cores]\nmap = [-2]\n"},
		{name: "packet rate", data: "config_schema = 1\n[update]\npacket_rate = -1.0\n"},
		{name: "env core count", data: "config_schema = 1\n", env: map[string]string{CoreCountEnv: "many"}},
		{name: "env core map", data: "config_schema = 1\n", env: map[string]string{CoreMapEnvPrefix + "3": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := afero.NewMemMapFs()
			writeConfig(t, fs, tt.data)
			_, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, envMap(tt.env))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadSchemaMismatch(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config_schema = 7\n")
	_, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestLoadMalformedFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "config_schema = [\n")
	_, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, nil)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, nil)
	require.NoError(t, err)

	cfg.SetServerAddress("arvid.lan:32100")
	cfg.SetBlitType(BlitTypeNonBlocking)
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfigWithFs(fs, testCfgPath, BaseDefaults, nil)
	require.NoError(t, err)
	assert.Equal(t, "arvid.lan:32100", reloaded.ServerAddress())
	assert.Equal(t, BlitTypeNonBlocking, reloaded.BlitType())
}

func TestDefaultDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AppName, filepath.Base(DefaultDir()))
}
