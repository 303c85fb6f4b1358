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

// Package badsyscall raises a system call number the kernel doesn't know.
// The dispatcher must terminate it with status -1.
package badsyscall

import (
	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
)

const Name = "badsyscall"

// Install installs the program into m.
func Install(m *gokern.Machine) {
	m.InstallProgram(Name, kerntesting.StandardImage(), Program)
}

// Program is the program body.
func Program(ctx *gokern.UserContext) int32 {
	ctx.Syscall(0x5A)

	// Should not have survived the trap.
	return 1
}
