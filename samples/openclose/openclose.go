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

// Package openclose drives the create/remove/open lifecycle: a created then
// removed name must not open. Distinct failure codes name the step that
// went wrong.
package openclose

import (
	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
)

const Name = "openclose"

// Install installs the program into m.
func Install(m *gokern.Machine) {
	m.InstallProgram(Name, kerntesting.StandardImage(), Program)
}

// Program is the program body.
func Program(ctx *gokern.UserContext) int32 {
	ctx.Store(kerntesting.DataBase, []byte("a\x00"))

	if ctx.Syscall(trap.SysCreate, kerntesting.DataBase, 0) != 1 {
		return 10
	}

	if ctx.Syscall(trap.SysRemove, kerntesting.DataBase) != 1 {
		return 11
	}

	if ctx.Syscall(trap.SysOpen, kerntesting.DataBase) != -1 {
		return 12
	}

	return 0
}
