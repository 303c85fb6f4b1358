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

// Package writefile opens the file named by its first argument and writes
// one byte at its start, exiting with the number of bytes the file system
// accepted. Against a running executable that is 0; against anything else
// with room it is 1.
package writefile

import (
	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
)

const Name = "writefile"

const (
	nameOfs = 0
	bufOfs  = 256
)

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

	ctx.Store(kerntesting.DataBase+nameOfs, append([]byte(args[1]), 0))
	ctx.Store(kerntesting.DataBase+bufOfs, []byte{'X'})

	fd := ctx.Syscall(trap.SysOpen, kerntesting.DataBase+nameOfs)
	if fd < 2 {
		return 101
	}

	ctx.Syscall(trap.SysSeek, uint32(fd), 0)
	n := ctx.Syscall(trap.SysWrite, uint32(fd), kerntesting.DataBase+bufOfs, 1)
	ctx.Syscall(trap.SysClose, uint32(fd))

	return n
}
