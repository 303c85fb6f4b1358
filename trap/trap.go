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

// Package trap defines the register-level ABI shared between the kernel and
// user programs: the interrupt frame pushed on trap entry, the segment
// selectors and flag bits a user-mode frame must carry, and the system-call
// numbers recognized at vector 0x30.
package trap

import "github.com/gokern/gokern/vmem"

// VecSyscall is the interrupt vector user programs raise to enter the
// kernel.
const VecSyscall = 0x30

// DPLUser marks a gate as callable from ring 3.
const DPLUser = 3

// Segment selectors for user-mode code and data.
const (
	SelUCSeg uint16 = 0x1B
	SelUDSeg uint16 = 0x23
)

// EFLAGS bits required in a synthetic user-mode frame.
const (
	// FlagIF enables interrupts, so the kernel can preempt the process.
	FlagIF uint32 = 0x200

	// FlagMBS must be set in any well-formed EFLAGS value.
	FlagMBS uint32 = 0x2
)

// System-call numbers, as found at the top of the user stack on entry to
// VecSyscall. The slots at esp+4, esp+8 and esp+12 hold up to three 32-bit
// arguments.
const (
	SysHalt uint32 = iota
	SysExit
	SysExec
	SysWait
	SysCreate
	SysRemove
	SysOpen
	SysFilesize
	SysRead
	SysWrite
	SysSeek
	SysTell
	SysClose
)

// Frame is the register snapshot pushed by the CPU on interrupt entry and
// consumed when returning to user mode. Only the fields this core reads or
// writes are modeled.
type Frame struct {
	// Data segment selectors.
	GS, FS, ES, DS uint16

	// EAX carries the system call's 32-bit result back to user mode.
	EAX uint32

	// EIP and CS name the interrupted (or initial) instruction.
	EIP vmem.UserAddr
	CS  uint16

	EFlags uint32

	// ESP and SS name the user stack. On entry to a system call ESP points
	// at the syscall number.
	ESP vmem.UserAddr
	SS  uint16
}

// NewUserFrame returns a zeroed frame initialized with user-mode segment
// selectors and the mandatory flag bits, ready for the loader to fill in EIP
// and ESP.
func NewUserFrame() Frame {
	return Frame{
		GS:     SelUDSeg,
		FS:     SelUDSeg,
		ES:     SelUDSeg,
		DS:     SelUDSeg,
		SS:     SelUDSeg,
		CS:     SelUCSeg,
		EFlags: FlagIF | FlagMBS,
	}
}
