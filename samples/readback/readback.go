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

// Package readback reads N bytes from the keyboard (its first argument, up
// to the data page's capacity) and echoes them to the console in one burst.
package readback

import (
	"strconv"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
)

const Name = "readback"

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

	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 || n > 4096 {
		return 101
	}

	if got := ctx.Syscall(trap.SysRead, 0, kerntesting.DataBase, uint32(n)); got != int32(n) {
		return 102
	}

	if got := ctx.Syscall(trap.SysWrite, 1, kerntesting.DataBase, uint32(n)); got != int32(n) {
		return 103
	}

	return 0
}
