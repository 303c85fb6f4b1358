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

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/cfg"
	"github.com/gokern/gokern/internal/logger"
	"github.com/gokern/gokern/samples"
	"github.com/jacobsa/timeutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	bindErr error

	// Files copied from the host into the simulated file system before the
	// command runs, as name=hostpath pairs.
	preloadFiles []string
)

var rootCmd = &cobra.Command{
	Use:   "gokern [flags] command [arg]...",
	Short: "Boot the teaching kernel and run a user command line",
	Long: `gokern boots a simulated 32-bit machine, installs the sample user
programs, executes the given command line as a user process, waits
for it, and exits with the process's status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}

		if err := logger.Setup(config.Logging); err != nil {
			return err
		}

		return run(config, strings.Join(args, " "))
	},
	SilenceUsage: true,
}

func loadConfig() (cfg.Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return cfg.Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return cfg.Load()
}

func run(config cfg.Config, cmdline string) error {
	m := gokern.NewMachine(config.Machine, timeutil.RealClock(), os.Stdout)
	samples.InstallAll(m)

	for _, spec := range preloadFiles {
		name, hostPath, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("malformed --file %q, want name=hostpath", spec)
		}

		contents, err := os.ReadFile(hostPath)
		if err != nil {
			return fmt.Errorf("reading %q: %w", hostPath, err)
		}

		if !m.InstallFile(name, contents) {
			return fmt.Errorf("installing %q: illegal name", name)
		}
	}

	tid := m.Exec(cmdline)
	if tid == gokern.TidError {
		return fmt.Errorf("exec %q failed", cmdline)
	}

	// A process that halts the machine never reports an exit status, so
	// wait for whichever comes first: the status or the halt.
	exited := make(chan int32, 1)
	go func() { exited <- m.Wait(tid) }()

	select {
	case status := <-exited:
		logger.Infof("process %d exited with status %d", tid, status)
		os.Exit(int(status) & 0xff)
	case <-m.Done():
		logger.Infof("machine halted")
		os.Exit(0)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config-file", "", "Path to a YAML config file.")
	rootCmd.PersistentFlags().StringArrayVar(
		&preloadFiles,
		"file",
		nil,
		"Copy a host file into the simulated file system, as name=hostpath. Repeatable.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
