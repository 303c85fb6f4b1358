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
	"github.com/gokern/gokern/trap"
	"github.com/gokern/gokern/vmem"
)

// Name bounds for validating user-supplied strings: command lines may fill
// a page, file names may not exceed the file system's limit plus a NUL
// (rounded up to 16, uniformly, across create/remove/open).
const (
	maxCmdlineLen  = vmem.PGSize
	maxFileNameLen = 16
)

var sysNames = map[uint32]string{
	trap.SysHalt:     "halt",
	trap.SysExit:     "exit",
	trap.SysExec:     "exec",
	trap.SysWait:     "wait",
	trap.SysCreate:   "create",
	trap.SysRemove:   "remove",
	trap.SysOpen:     "open",
	trap.SysFilesize: "filesize",
	trap.SysRead:     "read",
	trap.SysWrite:    "write",
	trap.SysSeek:     "seek",
	trap.SysTell:     "tell",
	trap.SysClose:    "close",
}

func sysName(num uint32) string {
	if name, ok := sysNames[num]; ok {
		return name
	}

	return "unknown"
}

// handleSyscall decodes and dispatches one system call. On entry the user
// stack pointer in the frame points at the syscall number, with up to three
// argument words above it. The 32-bit result is delivered through the
// frame's accumulator.
//
// This is the single funnel that turns validation failures into a -1 exit;
// the handlers below assume their inputs have been validated.
func (m *Machine) handleSyscall(t *Thread, f *trap.Frame) {
	esp := f.ESP

	// Validate the syscall number's slot before touching it.
	if !t.pd.RangeValid(esp, 4) {
		m.exitThread(t, -1)
	}
	num, _ := t.pd.ReadWord(esp)

	// args validates the number slot plus n argument slots, then reads the
	// arguments. Any invalid slot terminates the caller.
	args := func(n uint32) []uint32 {
		if !t.pd.RangeValid(esp, (n+1)*4) {
			m.exitThread(t, -1)
		}

		out := make([]uint32, n)
		for i := uint32(0); i < n; i++ {
			out[i], _ = t.pd.ReadWord(esp + 4 + vmem.UserAddr(4*i))
		}
		return out
	}

	m.logger.Debug("<- syscall",
		"tid", int32(t.tid), "name", t.name, "op", sysName(num))

	switch num {
	case trap.SysHalt:
		m.Halt()
		panic(machineHalted{})

	case trap.SysExit:
		a := args(1)
		m.exitThread(t, int32(a[0]))

	case trap.SysExec:
		a := args(1)
		cmdPtr := vmem.UserAddr(a[0])
		if !t.pd.CStringValid(cmdPtr, maxCmdlineLen) {
			m.exitThread(t, -1)
		}
		cmdline, ok := t.pd.CopyInString(cmdPtr, maxCmdlineLen)
		if !ok {
			m.exitThread(t, -1)
		}
		f.EAX = uint32(m.processExecute(t, cmdline))

	case trap.SysWait:
		a := args(1)
		f.EAX = uint32(m.processWait(t, Tid(a[0])))

	case trap.SysCreate:
		a := args(2)
		name := m.userFileName(t, vmem.UserAddr(a[0]))
		f.EAX = boolWord(m.fsCreate(name, a[1]))

	case trap.SysRemove:
		a := args(1)
		name := m.userFileName(t, vmem.UserAddr(a[0]))
		f.EAX = boolWord(m.fsRemove(name))

	case trap.SysOpen:
		a := args(1)
		name := m.userFileName(t, vmem.UserAddr(a[0]))
		file := m.fsOpen(name)
		if file == nil {
			f.EAX = ^uint32(0)
		} else {
			f.EAX = uint32(t.registerFile(file))
		}

	case trap.SysFilesize:
		a := args(1)
		// The descriptor is a precondition here, unlike read and write.
		uf := t.lookupFDOrDie(int32(a[0]))
		f.EAX = uint32(m.fsLength(uf.file))

	case trap.SysRead:
		a := args(3)
		f.EAX = uint32(m.sysRead(t, int32(a[0]), vmem.UserAddr(a[1]), a[2]))

	case trap.SysWrite:
		a := args(3)
		f.EAX = uint32(m.sysWrite(t, int32(a[0]), vmem.UserAddr(a[1]), a[2]))

	case trap.SysSeek:
		a := args(2)
		if uf := t.lookupFD(int32(a[0])); uf != nil {
			m.fsSeek(uf.file, int32(a[1]))
		}

	case trap.SysTell:
		a := args(1)
		if uf := t.lookupFD(int32(a[0])); uf != nil {
			f.EAX = uint32(m.fsTell(uf.file))
		} else {
			f.EAX = 0
		}

	case trap.SysClose:
		a := args(1)
		if uf := t.lookupFD(int32(a[0])); uf != nil {
			m.fsClose(uf.file)
			t.removeFD(uf.fd)
		}

	default:
		m.exitThread(t, -1)
	}

	m.logger.Debug("-> syscall",
		"tid", int32(t.tid), "op", sysName(num), "eax", int32(f.EAX))
}

// userFileName validates and copies a file-name string out of user memory,
// terminating the caller on an invalid pointer. Names longer than the bound
// come back truncated and fail in the file system.
func (m *Machine) userFileName(t *Thread, ptr vmem.UserAddr) string {
	if !t.pd.CStringValid(ptr, maxFileNameLen) {
		m.exitThread(t, -1)
	}

	name, ok := t.pd.CopyInString(ptr, maxFileNameLen)
	if !ok {
		m.exitThread(t, -1)
	}

	return name
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}

	return 0
}

// sysRead implements the read system call: fd 0 pulls bytes from the
// keyboard queue one at a time; other descriptors go through the file
// system. An unknown descriptor, or fd 1, yields -1.
func (m *Machine) sysRead(t *Thread, fd int32, buf vmem.UserAddr, n uint32) int32 {
	if !t.pd.RangeValid(buf, n) {
		m.exitThread(t, -1)
	}

	if fd == 0 {
		for i := uint32(0); i < n; i++ {
			c := m.console.Getc()
			t.pd.CopyOut(buf+vmem.UserAddr(i), []byte{c})
		}
		return int32(n)
	}

	uf := t.lookupFD(fd)
	if uf == nil {
		return -1
	}

	data := make([]byte, n)
	cnt := m.fsRead(uf.file, data)
	t.pd.CopyOut(buf, data[:cnt])
	return cnt
}

// sysWrite implements the write system call: fd 1 reaches the console as a
// single burst; other descriptors go through the file system. An unknown
// descriptor, or fd 0, yields -1.
func (m *Machine) sysWrite(t *Thread, fd int32, buf vmem.UserAddr, n uint32) int32 {
	if !t.pd.RangeValid(buf, n) {
		m.exitThread(t, -1)
	}

	data := make([]byte, n)
	t.pd.CopyIn(data, buf)

	if fd == 1 {
		m.console.PutBuf(data)
		return int32(n)
	}

	uf := t.lookupFD(fd)
	if uf == nil {
		return -1
	}

	return m.fsWrite(uf.file, data)
}
