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

package gokern

import (
	"encoding/binary"

	"github.com/gokern/gokern/trap"
	"github.com/gokern/gokern/vmem"
)

// enterUser is the return-to-user trampoline. On real hardware this would
// materialize the prepared interrupt frame and drop to ring 3; here it
// transfers control to the program body registered for the thread's
// executable. When the body returns, a crt0-style shim delivers its return
// value through the exit system call, so enterUser never returns.
func (m *Machine) enterUser(t *Thread, f *trap.Frame) {
	prog := m.lookupProgram(t.name)
	if prog == nil {
		// The image loaded but the simulated CPU has no body to run for it:
		// the process dies the way a process running garbage would.
		m.logger.Info("no program body registered", "name", t.name)
		m.exitThread(t, -1)
	}

	ctx := &UserContext{m: m, t: t, f: f}
	status := prog(ctx)
	ctx.Exit(status)
	panic("not reached")
}

// UserContext is a user program's view of the machine: its own registers
// and memory, and the trap instruction. Everything a program does to the
// kernel goes through Syscall, so kernel-side validation applies exactly as
// it would to machine code.
type UserContext struct {
	m *Machine
	t *Thread
	f *trap.Frame
}

// Syscall pushes num and args onto the user stack and raises interrupt
// 0x30, returning the value the kernel left in the accumulator. The pushes
// are ordinary user-mode stores: if the stack has run out of its page, the
// process takes a page fault and dies.
func (c *UserContext) Syscall(num uint32, args ...uint32) int32 {
	words := make([]uint32, 0, 4)
	words = append(words, num)
	words = append(words, args...)

	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}

	esp := c.f.ESP - vmem.UserAddr(len(buf))
	if !c.t.pd.UserWrite(esp, buf) {
		c.m.pageFault(c.t, esp)
	}

	saved := c.f.ESP
	c.f.ESP = esp
	c.m.raiseInt(c.t, trap.VecSyscall, c.f)
	c.f.ESP = saved

	return int32(c.f.EAX)
}

// RaiseInterrupt raises an arbitrary vector from user mode, with the
// current frame. Vectors without a user-callable gate kill the process.
func (c *UserContext) RaiseInterrupt(vec uint8) {
	c.m.raiseInt(c.t, vec, c.f)
}

// Exit delivers status to the kernel. It does not return.
func (c *UserContext) Exit(status int32) {
	c.Syscall(trap.SysExit, uint32(status))
	panic("not reached")
}

// Args reads argc/argv from the initial stack the kernel built. At program
// start the stack pointer rests on the fake return address, with argc and
// argv in the two words above it.
func (c *UserContext) Args() []string {
	argc, ok := c.t.pd.ReadWord(c.f.ESP + 4)
	if !ok {
		c.m.pageFault(c.t, c.f.ESP+4)
	}
	argvBase, ok := c.t.pd.ReadWord(c.f.ESP + 8)
	if !ok {
		c.m.pageFault(c.t, c.f.ESP+8)
	}

	out := make([]string, 0, argc)
	for i := uint32(0); i < argc; i++ {
		slot := vmem.UserAddr(argvBase + 4*i)
		ptr, ok := c.t.pd.ReadWord(slot)
		if !ok {
			c.m.pageFault(c.t, slot)
		}

		s, ok := c.t.pd.CopyInString(vmem.UserAddr(ptr), vmem.PGSize)
		if !ok {
			c.m.pageFault(c.t, vmem.UserAddr(ptr))
		}
		out = append(out, s)
	}

	return out
}

// Load reads n bytes of memory at addr as a user-mode access, taking a
// page fault (and dying) if the range is not readable user memory. Passing
// a null or kernel pointer here is how programs in the test suite commit
// suicide by dereference.
func (c *UserContext) Load(addr vmem.UserAddr, n uint32) []byte {
	if !c.t.pd.RangeValid(addr, n) {
		c.m.pageFault(c.t, addr)
	}

	buf := make([]byte, n)
	c.t.pd.CopyIn(buf, addr)
	return buf
}

// Store writes p at addr as a user-mode access, honoring the writable bit.
// A bad address or a read-only page takes a page fault.
func (c *UserContext) Store(addr vmem.UserAddr, p []byte) {
	if !c.t.pd.UserWrite(addr, p) {
		c.m.pageFault(c.t, addr)
	}
}

// StackPointer returns the program's current stack pointer.
func (c *UserContext) StackPointer() vmem.UserAddr {
	return c.f.ESP
}
