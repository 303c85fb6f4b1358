// Copyright 2024 The gokern Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg defines the configuration surface of the machine and binds it
// to command-line flags and an optional YAML config file, with flags taking
// precedence.
package cfg

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root of the configuration tree.
type Config struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	Machine MachineConfig `yaml:"machine" mapstructure:"machine"`
}

// LoggingConfig controls the kernel log.
type LoggingConfig struct {
	// Severity below which log records are discarded.
	Severity LogSeverity `yaml:"severity" mapstructure:"severity"`

	// Format is "text" or "json".
	Format string `yaml:"format" mapstructure:"format"`

	// FilePath, if set, sends the log to a rotated file instead of stderr.
	FilePath string `yaml:"file-path" mapstructure:"file-path"`

	// MaxFileSizeMb bounds each rotated log file.
	MaxFileSizeMb int `yaml:"max-file-size-mb" mapstructure:"max-file-size-mb"`

	// BackupFileCount bounds how many rotated files are kept. Zero keeps
	// them all.
	BackupFileCount int `yaml:"backup-file-count" mapstructure:"backup-file-count"`
}

// MachineConfig controls the simulated hardware.
type MachineConfig struct {
	// UserMemory is the size of the user page pool.
	UserMemory ByteSize `yaml:"user-memory" mapstructure:"user-memory"`

	// ConsoleInput is queued as keyboard input at boot.
	ConsoleInput string `yaml:"console-input" mapstructure:"console-input"`
}

// Default returns the configuration used when neither flags nor a config
// file say otherwise.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Severity:      InfoSeverity,
			Format:        "text",
			MaxFileSizeMb: 10,
		},
		Machine: MachineConfig{
			UserMemory: 4 << 20,
		},
	}
}

// BindFlags declares every flag and binds it into viper.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.String(
		"log-severity",
		string(InfoSeverity),
		"Severity below which log records are discarded. "+
			"One of trace, debug, info, warning, error, off.")
	if err := viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.String("log-format", "text", "Log record format: text or json.")
	if err := viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.String(
		"log-file",
		"",
		"Write the kernel log to this rotated file instead of stderr.")
	if err := viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.Int("log-file-size-mb", 10, "Maximum size of each rotated log file.")
	if err := viper.BindPFlag("logging.max-file-size-mb", flagSet.Lookup("log-file-size-mb")); err != nil {
		return err
	}

	flagSet.Int("log-backup-count", 0, "Rotated log files to keep; 0 keeps all.")
	if err := viper.BindPFlag("logging.backup-file-count", flagSet.Lookup("log-backup-count")); err != nil {
		return err
	}

	flagSet.String(
		"user-memory",
		"4M",
		"Size of the user page pool, e.g. 512K or 4M. Rounded down to whole pages.")
	if err := viper.BindPFlag("machine.user-memory", flagSet.Lookup("user-memory")); err != nil {
		return err
	}

	flagSet.String("console-input", "", "Bytes queued as keyboard input at boot.")
	if err := viper.BindPFlag("machine.console-input", flagSet.Lookup("console-input")); err != nil {
		return err
	}

	return nil
}

// Load unmarshals the effective configuration out of viper.
func Load() (Config, error) {
	c := Default()
	if err := viper.Unmarshal(&c, viper.DecodeHook(decodeHook())); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate rejects configurations the machine cannot honor.
func (c *Config) Validate() error {
	if err := c.Logging.Severity.validate(); err != nil {
		return err
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	if c.Machine.UserMemory < 1<<12 {
		return fmt.Errorf(
			"user-memory must hold at least one page, got %d bytes",
			c.Machine.UserMemory)
	}

	return nil
}
