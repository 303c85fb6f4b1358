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

// Package launcher execs the command line formed by its arguments, waits
// for the child, and exits with the child's status. It exercises exec and
// wait from user mode.
package launcher

import (
	"strings"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
)

const Name = "launcher"

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

	tid := ctx.Syscall(trap.SysExec, kerntesting.DataBase)
	if tid == -1 {
		return 101
	}

	return ctx.Syscall(trap.SysWait, uint32(tid))
}
