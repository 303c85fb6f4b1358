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

package gokern_test

import (
	"testing"
	"time"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/cfg"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
	. "github.com/jacobsa/ogletest"
)

func TestMachine(t *testing.T) { RunTests(t) }

type MachineTest struct {
	kerntesting.KernelTest
}

func init() { RegisterTestSuite(&MachineTest{}) }

func (t *MachineTest) HaltClosesDone() {
	t.Machine.InstallProgram("halter", kerntesting.StandardImage(),
		func(ctx *gokern.UserContext) int32 {
			ctx.Syscall(trap.SysHalt)

			// halt powers the machine off; nothing runs after it.
			return 1
		})

	tid := t.Machine.Exec("halter")
	AssertNe(gokern.TidError, tid)

	select {
	case <-t.Machine.Done():
	case <-time.After(5 * time.Second):
		AddFailure("Machine did not halt")
	}

	// Halting again is a no-op.
	t.Machine.Halt()
}

func (t *MachineTest) UnknownInterruptVectorKillsProcess() {
	t.Machine.InstallProgram("badvec", kerntesting.StandardImage(),
		func(ctx *gokern.UserContext) int32 {
			ctx.RaiseInterrupt(0x31)

			// Should not have survived the trap.
			return 1
		})

	tid := t.Machine.Exec("badvec")
	AssertNe(gokern.TidError, tid)
	ExpectEq(-1, t.Machine.Wait(tid))
}

func (t *MachineTest) ConsoleInputFromConfig() {
	// Input configured at boot is already queued when the first process
	// reads fd 0.
	t.Config = cfg.MachineConfig{
		UserMemory:   cfg.Default().Machine.UserMemory,
		ConsoleInput: "queued",
	}
	t.KernelTest.SetUp(nil)

	t.Machine.InstallProgram("reader", kerntesting.StandardImage(),
		func(ctx *gokern.UserContext) int32 {
			if ctx.Syscall(trap.SysRead, 0, kerntesting.DataBase, 6) != 6 {
				return 1
			}

			got := ctx.Load(kerntesting.DataBase, 6)
			if string(got) != "queued" {
				return 2
			}

			return 0
		})

	tid := t.Machine.Exec("reader")
	AssertNe(gokern.TidError, tid)
	ExpectEq(0, t.Machine.Wait(tid))
}

func (t *MachineTest) InstallFileRejectsIllegalNames() {
	ExpectFalse(t.Machine.InstallFile("a-name-that-is-far-too-long", nil))
	ExpectTrue(t.Machine.InstallFile("ok", []byte("x")))
}
