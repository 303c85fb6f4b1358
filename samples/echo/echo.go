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

// Package echo writes its arguments to the console, space-separated, as a
// single burst.
package echo

import (
	"strings"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
)

const Name = "echo"

// Install installs the program into m.
func Install(m *gokern.Machine) {
	m.InstallProgram(Name, kerntesting.StandardImage(), Program)
}

// Program is the program body.
func Program(ctx *gokern.UserContext) int32 {
	args := ctx.Args()

	out := strings.Join(args[1:], " ") + "\n"
	ctx.Store(kerntesting.DataBase, []byte(out))

	n := ctx.Syscall(trap.SysWrite, 1, kerntesting.DataBase, uint32(len(out)))
	if n != int32(len(out)) {
		return 1
	}

	return 0
}
