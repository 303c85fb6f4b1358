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

// Package filetest drives the file descriptor surface against "sample.txt":
// open, filesize, read, seek, tell, close, and descriptor numbering.
// Distinct failure codes name the step that went wrong.
package filetest

import (
	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
)

const Name = "filetest"

// Offsets into the data page for the strings and buffers the program needs
// in its own memory.
const (
	nameOfs = 0
	bufOfs  = 256
)

// Install installs the program into m.
func Install(m *gokern.Machine) {
	m.InstallProgram(Name, kerntesting.StandardImage(), Program)
}

// Program is the program body. It expects "sample.txt" to exist and to hold
// at least 8 bytes.
func Program(ctx *gokern.UserContext) int32 {
	namePtr := uint32(kerntesting.DataBase + nameOfs)
	bufPtr := uint32(kerntesting.DataBase + bufOfs)
	ctx.Store(kerntesting.DataBase+nameOfs, []byte("sample.txt\x00"))

	fd := ctx.Syscall(trap.SysOpen, namePtr)
	if fd < 2 {
		return 10
	}

	size := ctx.Syscall(trap.SysFilesize, uint32(fd))
	if size < 8 {
		return 11
	}

	if n := ctx.Syscall(trap.SysRead, uint32(fd), bufPtr, 4); n != 4 {
		return 12
	}
	if ctx.Syscall(trap.SysTell, uint32(fd)) != 4 {
		return 13
	}

	ctx.Syscall(trap.SysSeek, uint32(fd), 0)
	if ctx.Syscall(trap.SysTell, uint32(fd)) != 0 {
		return 14
	}

	// Reading the whole file must stop at its length.
	if n := ctx.Syscall(trap.SysRead, uint32(fd), bufPtr, 4096-bufOfs); n != size {
		return 15
	}

	ctx.Syscall(trap.SysClose, uint32(fd))

	// A closed descriptor no longer reads, and tells zero.
	if ctx.Syscall(trap.SysRead, uint32(fd), bufPtr, 1) != -1 {
		return 16
	}
	if ctx.Syscall(trap.SysTell, uint32(fd)) != 0 {
		return 17
	}

	// Descriptors are not recycled.
	fd2 := ctx.Syscall(trap.SysOpen, namePtr)
	if fd2 != fd+1 {
		return 18
	}
	ctx.Syscall(trap.SysClose, uint32(fd2))

	return 0
}
