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

// Package abandon execs the command line formed by its arguments and exits
// without waiting, orphaning the child. The kernel must detach the child's
// record so that neither side touches freed state when the child later
// exits.
package abandon

import (
	"strings"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
)

const Name = "abandon"

// Install installs the program into m.
func Install(m *gokern.Machine) {
	m.InstallProgram(Name, kerntesting.StandardImage(), Program)
}

// Program is the program body.
func Program(ctx *gokern.UserContext) int32 {
	args := ctx.Args()
	if len(args) < 2 {
		return 100
	}

	cmdline := strings.Join(args[1:], " ")
	ctx.Store(kerntesting.DataBase, append([]byte(cmdline), 0))

	if ctx.Syscall(trap.SysExec, kerntesting.DataBase) == -1 {
		return 101
	}

	return 0
}
