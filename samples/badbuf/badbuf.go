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

// Package badbuf passes the read system call a buffer that starts in valid
// memory but runs into kernel space. The kernel must terminate it with
// status -1 before the read touches anything.
package badbuf

import (
	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
)

const Name = "badbuf"

// Install installs the program into m.
func Install(m *gokern.Machine) {
	m.InstallProgram(Name, kerntesting.StandardImage(), Program)
}

// Program is the program body. It expects "sample.txt" to exist.
func Program(ctx *gokern.UserContext) int32 {
	ctx.Store(kerntesting.DataBase, []byte("sample.txt\x00"))

	fd := ctx.Syscall(trap.SysOpen, kerntesting.DataBase)
	if fd <= 1 {
		return 1
	}

	// The last 32 bytes before the kernel boundary, asking for 100.
	ctx.Syscall(trap.SysRead, uint32(fd), 0xBFFFFFE0, 100)

	// Should not have survived the read.
	return 1
}
