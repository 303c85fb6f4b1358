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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gokern/gokern/cfg"
	"github.com/gokern/gokern/console"
	"github.com/gokern/gokern/filesys"
	"github.com/gokern/gokern/internal/logger"
	"github.com/gokern/gokern/trap"
	"github.com/gokern/gokern/vmem"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// Program is the body of a user program: the code the simulated CPU "runs"
// after the loader has built the process image. It receives a context
// through which it can touch its own user memory and raise system calls,
// and returns the process's exit status, delivered through the exit system
// call exactly as a crt0 would.
type Program func(ctx *UserContext) int32

// An intGate is one interrupt descriptor: a handler plus the privilege
// level required to raise it.
type intGate struct {
	name    string
	dpl     int
	intrOn  bool
	handler func(t *Thread, f *trap.Frame)
}

// Machine is the simulated machine: memory, file system, console and the
// kernel state that ties them together. Its exported methods are safe for
// use from the boot thread and from user threads raising traps.
type Machine struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	logger *slog.Logger
	clock  timeutil.Clock

	/////////////////////////
	// Collaborators
	/////////////////////////

	mem     *vmem.Physmem
	fs      *filesys.FileSys
	console *console.Console

	// The single global file-system lock. Every entry into fs goes through
	// the fs* helpers below, which acquire it.
	fsLock syncutil.InvariantMutex

	/////////////////////////
	// Mutable state
	/////////////////////////

	// The interrupt descriptor table.
	idt [256]*intGate

	// Program bodies by executable name.
	//
	// GUARDED_BY(progMu)
	progMu   sync.Mutex
	programs map[string]Program

	// The kernel-only page directory, and the directory the simulated CPU
	// currently has installed. Exiting threads race to reinstall the base
	// directory, hence the atomic.
	basePD   *vmem.PageDir
	activePD atomic.Pointer[vmem.PageDir]

	// The boot thread, on whose behalf Exec and Wait run.
	boot *Thread

	nextTid atomic.Int32

	haltOnce sync.Once
	halted   chan struct{}
}

// NewMachine boots a machine: collaborators wired, system-call gate
// installed at vector 0x30, console attached to sink (nil means stdout).
func NewMachine(
	config cfg.MachineConfig,
	clock timeutil.Clock,
	sink io.Writer) *Machine {
	userPages := int(config.UserMemory / vmem.PGSize)
	if userPages < 1 {
		userPages = 1
	}

	m := &Machine{
		logger:   logger.Logger(),
		clock:    clock,
		mem:      vmem.NewPhysmem(userPages),
		console:  console.New(sink),
		programs: make(map[string]Program),
		basePD:   vmem.NewPageDir(),
		halted:   make(chan struct{}),
	}

	m.fs = filesys.New(clock)
	m.fsLock = syncutil.NewInvariantMutex(m.fs.CheckInvariants)
	m.activePD.Store(m.basePD)

	if config.ConsoleInput != "" {
		m.console.PushInput([]byte(config.ConsoleInput))
	}

	// The system-call gate must be callable from ring 3, with interrupts
	// enabled during handling.
	m.registerInt(trap.VecSyscall, trap.DPLUser, true, m.handleSyscall, "syscall")

	m.boot = &Thread{
		tid:    Tid(m.nextTid.Add(1)),
		name:   "main",
		m:      m,
		nextFD: 2,
	}

	return m
}

////////////////////////////////////////////////////////////////////////
// Interrupts
////////////////////////////////////////////////////////////////////////

// registerInt installs a gate at the given vector.
func (m *Machine) registerInt(
	vec uint8,
	dpl int,
	intrOn bool,
	handler func(t *Thread, f *trap.Frame),
	name string) {
	if m.idt[vec] != nil {
		panic(fmt.Sprintf("Vector already registered: %#x", vec))
	}

	m.idt[vec] = &intGate{
		name:    name,
		dpl:     dpl,
		intrOn:  intrOn,
		handler: handler,
	}
}

// raiseInt delivers an interrupt raised by t from user mode. Raising a
// vector with no user-callable gate is treated like any other fault: the
// thread is terminated with status -1.
func (m *Machine) raiseInt(t *Thread, vec uint8, f *trap.Frame) {
	gate := m.idt[vec]
	if gate == nil || gate.dpl < trap.DPLUser {
		m.logger.Debug("bad interrupt from user mode",
			"tid", int32(t.tid), "vector", vec)
		m.exitThread(t, -1)
	}

	gate.handler(t, f)
}

// pageFault is the fault path for a user-mode access that the hardware
// would reject: unmapped page, kernel address, or a write to a read-only
// page. The faulting process is terminated.
func (m *Machine) pageFault(t *Thread, addr vmem.UserAddr) {
	m.logger.Debug("page fault",
		"tid", int32(t.tid), "name", t.name, "addr", fmt.Sprintf("%#x", uint32(addr)))
	m.exitThread(t, -1)
}

////////////////////////////////////////////////////////////////////////
// The simulated CPU's page-directory register
////////////////////////////////////////////////////////////////////////

// activate installs pd on the simulated CPU. A nil pd installs the
// kernel-only base directory.
func (m *Machine) activate(pd *vmem.PageDir) {
	if pd == nil {
		pd = m.basePD
	}

	m.activePD.Store(pd)
}

////////////////////////////////////////////////////////////////////////
// File-system lock funnel
////////////////////////////////////////////////////////////////////////

// The teaching file system is not reentrant; these helpers are the only
// callers, and each takes the global lock for the duration of one call.

func (m *Machine) fsCreate(name string, size uint32) bool {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	return m.fs.Create(name, size)
}

func (m *Machine) fsRemove(name string) bool {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	return m.fs.Remove(name)
}

func (m *Machine) fsOpen(name string) *filesys.File {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	return m.fs.Open(name)
}

func (m *Machine) fsClose(f *filesys.File) {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	f.Close()
}

func (m *Machine) fsLength(f *filesys.File) int32 {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	return f.Length()
}

func (m *Machine) fsSeek(f *filesys.File, pos int32) {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	f.Seek(pos)
}

func (m *Machine) fsTell(f *filesys.File) int32 {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	return f.Tell()
}

func (m *Machine) fsRead(f *filesys.File, p []byte) int32 {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	return f.Read(p)
}

func (m *Machine) fsWrite(f *filesys.File, p []byte) int32 {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	return f.Write(p)
}

func (m *Machine) fsDenyWrite(f *filesys.File) {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	f.DenyWrite()
}

////////////////////////////////////////////////////////////////////////
// Program and file installation
////////////////////////////////////////////////////////////////////////

// RegisterProgram binds a program body to an executable name.
func (m *Machine) RegisterProgram(name string, p Program) {
	m.progMu.Lock()
	defer m.progMu.Unlock()

	m.programs[name] = p
}

// lookupProgram returns the body bound to name, or nil.
func (m *Machine) lookupProgram(name string) Program {
	m.progMu.Lock()
	defer m.progMu.Unlock()

	return m.programs[name]
}

// InstallFile writes a file into the file system, mkfs-style.
func (m *Machine) InstallFile(name string, contents []byte) bool {
	m.fsLock.Lock()
	defer m.fsLock.Unlock()

	return m.fs.Install(name, contents)
}

// InstallProgram installs an executable image and binds its program body in
// one step.
func (m *Machine) InstallProgram(name string, image []byte, p Program) bool {
	if !m.InstallFile(name, image) {
		return false
	}

	m.RegisterProgram(name, p)
	return true
}

////////////////////////////////////////////////////////////////////////
// Kernel API
////////////////////////////////////////////////////////////////////////

// Exec spawns a user process from cmdline on behalf of the boot thread,
// returning its tid or TidError.
func (m *Machine) Exec(cmdline string) Tid {
	return m.processExecute(m.boot, cmdline)
}

// Wait blocks until the boot thread's child tid exits and returns its exit
// status, or returns -1 immediately if tid is not an unreaped child.
func (m *Machine) Wait(tid Tid) int32 {
	return m.processWait(m.boot, tid)
}

// UserPagesInUse returns the number of user-pool frames currently
// allocated. After a process has fully exited it holds no pages, so this
// drops back to whatever other processes hold.
func (m *Machine) UserPagesInUse() int {
	return m.mem.UserInUse()
}

// Console returns the machine's console, for queueing keyboard input.
func (m *Machine) Console() *console.Console {
	return m.console
}

// Halt powers the machine down. Idempotent.
func (m *Machine) Halt() {
	m.haltOnce.Do(func() {
		m.logger.Info("machine halted")
		close(m.halted)
	})
}

// Done is closed when the machine has been halted.
func (m *Machine) Done() <-chan struct{} {
	return m.halted
}

// spawnThread creates a thread at the given priority and schedules fn on
// it. The error return mirrors a real kernel's allocation failure; the
// simulation itself cannot fail here.
func (m *Machine) spawnThread(
	name string,
	priority int,
	fn func(t *Thread)) (Tid, error) {
	t := &Thread{
		tid:      Tid(m.nextTid.Add(1)),
		name:     name,
		m:        m,
		priority: priority,
		nextFD:   2,
	}

	go func() {
		defer func() {
			r := recover()
			switch r.(type) {
			case nil, threadExited, machineHalted:
			default:
				panic(r)
			}
		}()

		fn(t)
	}()

	return t.tid, nil
}
