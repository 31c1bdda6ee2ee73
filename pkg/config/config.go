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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/helpers/syncutil"
	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	SchemaVersion = 1
	AppName       = "arvid"
	CfgFile       = "arvid.toml"
	CfgEnv        = "ARVID_CFG"

	ServerEnv        = "ARVID_SERVER"
	CoreCountEnv     = "ARVID_CORE_COUNT"
	CoreIndexEnv     = "ARVID_CORE_INDEX"
	CoreMapEnvPrefix = "ARVID_CORE_MAP_"

	BlitTypeBlocking    = "blocking"
	BlitTypeNonBlocking = "non_blocking"

	// MaxCoreMap is how many ARVID_CORE_MAP_<n> variables are read.
	MaxCoreMap = 8
)

type Values struct {
	Server       Server `toml:"server"`
	Blit         Blit   `toml:"blit"`
	Cores        Cores  `toml:"cores"`
	Update       Update `toml:"update"`
	ConfigSchema int    `toml:"config_schema"`
	DebugLogging bool   `toml:"debug_logging"`
}

type Server struct {
	Address    string `toml:"address,omitempty" validate:"omitempty,hostname_port|hostname|ip"`
	ByteOrder  string `toml:"byte_order" validate:"omitempty,oneof=native little big"`
	SettleTime string `toml:"settle_time" validate:"omitempty,duration"`
	Port       int    `toml:"port" validate:"min=1,max=65535"`
}

type Blit struct {
	Type             string `toml:"type" validate:"oneof=blocking non_blocking"`
	CompressionLevel int    `toml:"compression_level" validate:"min=1,max=9"`
}

type Cores struct {
	// Map pins task n to processor Map[n]. Negative entries are unset.
	Map            []int  `toml:"map,omitempty" validate:"max=8,dive,min=-1,max=255"`
	StartupTimeout string `toml:"startup_timeout" validate:"omitempty,duration"`
	// Limit caps the number of compression tasks, 0 for no cap.
	Limit      int  `toml:"limit" validate:"min=0,max=8"`
	FirstIndex int  `toml:"first_index" validate:"min=0,max=255"`
	PinThreads bool `toml:"pin_threads"`
}

type Update struct {
	// PacketRate limits firmware packets per second, 0 for no limit.
	PacketRate float64 `toml:"packet_rate" validate:"min=0"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Server: Server{
		Port:       32100,
		ByteOrder:  "native",
		SettleTime: "1s",
	},
	Blit: Blit{
		Type:             BlitTypeBlocking,
		CompressionLevel: 2,
	},
	Cores: Cores{
		StartupTimeout: "1s",
	},
}

// LookupEnvFunc has the signature of os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// overrides holds values taken from the environment. They win over the
// file and are never written back to it.
type overrides struct {
	address    *string
	coreLimit  *int
	firstIndex *int
	coreMap    []int
}

type Instance struct {
	fs        afero.Fs
	lookupEnv LookupEnvFunc
	validate  *validator.Validate
	env       overrides
	cfgPath   string
	vals      Values
	defaults  Values
	mu        syncutil.RWMutex
}

var ErrInvalidConfig = errors.New("invalid config")

// DefaultDir returns the per-user config directory.
func DefaultDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// NewConfig loads the config file in configDir, or the file named by
// ARVID_CFG, writing defaults first if it does not exist.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}
	return NewConfigWithFs(afero.NewOsFs(), cfgPath, defaults, os.LookupEnv)
}

// NewConfigWithFs is NewConfig on an explicit filesystem and environment.
//
//nolint:gocritic // config struct copied for immutability
func NewConfigWithFs(fs afero.Fs, cfgPath string, defaults Values, lookupEnv LookupEnvFunc) (*Instance, error) {
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}
	cfg := Instance{
		fs:        fs,
		lookupEnv: lookupEnv,
		validate:  newValidator(),
		cfgPath:   cfgPath,
		vals:      defaults,
		defaults:  defaults,
	}

	exists, err := afero.Exists(fs, cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !exists {
		log.Info().Msg("saving new default config to disk")

		err := fs.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err = cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return v
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := afero.ReadFile(c.fs, c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	env, err := readOverrides(c.lookupEnv)
	if err != nil {
		return err
	}

	effective := applyOverrides(newVals, env)
	if err := c.validate.Struct(&effective); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c.vals = newVals
	c.env = env
	return nil
}

func readOverrides(lookupEnv LookupEnvFunc) (overrides, error) {
	var env overrides

	if v, ok := lookupEnv(ServerEnv); ok && v != "" {
		env.address = &v
	}

	readInt := func(key string) (*int, error) {
		v, ok := lookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
		}
		log.Info().Str("env", key).Int("value", n).Msg("config override from environment")
		return &n, nil
	}

	var err error
	if env.coreLimit, err = readInt(CoreCountEnv); err != nil {
		return env, err
	}
	if env.firstIndex, err = readInt(CoreIndexEnv); err != nil {
		return env, err
	}

	coreMap := make([]int, MaxCoreMap)
	found := false
	for i := range coreMap {
		n, err := readInt(CoreMapEnvPrefix + strconv.Itoa(i))
		if err != nil {
			return env, err
		}
		coreMap[i] = -1
		if n != nil {
			coreMap[i] = *n
			found = true
		}
	}
	if found {
		env.coreMap = coreMap
	}
	return env, nil
}

//nolint:gocritic // config struct copied for immutability
func applyOverrides(v Values, env overrides) Values {
	if env.address != nil {
		v.Server.Address = *env.address
	}
	if env.coreLimit != nil {
		// the environment cap is not bounded like the file value
		v.Cores.Limit = min(max(*env.coreLimit, 0), MaxCoreMap)
	}
	if env.firstIndex != nil {
		v.Cores.FirstIndex = *env.firstIndex
	}
	if env.coreMap != nil {
		v.Cores.Map = env.coreMap
	}
	return v
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	// set current schema version
	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(c.fs, c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) Path() string {
	return c.cfgPath
}

// Values returns the effective configuration, environment overrides
// included.
func (c *Instance) Values() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return applyOverrides(c.vals, c.env)
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Warn().Msgf("invalid duration %q, using %s", s, fallback)
		return fallback
	}
	return d
}
