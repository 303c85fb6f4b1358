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
	"bytes"
	"encoding/binary"

	"github.com/gokern/gokern/filesys"
	"github.com/gokern/gokern/trap"
	"github.com/gokern/gokern/vmem"
)

// We load ELF binaries. The definitions below follow the ELF32
// specification.

// elfEhdr is the executable header at the start of every ELF binary.
type elfEhdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// elfPhdr is a program header. There are Phnum of them at offset Phoff.
type elfPhdr struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

const (
	elfEhdrSize = 52
	elfPhdrSize = 32

	// Header fields an executable must carry to be ours: 32-bit
	// little-endian, current version, EXEC for i386.
	elfTypeExec   = 2
	elfMachine386 = 3
	elfVersion    = 1

	// The most program headers we'll read.
	elfMaxPhnum = 1024
)

// elfMagic covers e_ident[0..7): the four magic bytes, then 32-bit class,
// little-endian data and current identification version.
var elfMagic = []byte("\x7fELF\x01\x01\x01")

// Segment types.
const (
	ptNull    = 0
	ptLoad    = 1
	ptDynamic = 2
	ptInterp  = 3
	ptNote    = 4
	ptShlib   = 5
	ptPhdr    = 6
	ptStack   = 0x6474e551
)

// Segment flag bits. X and R are assumed; only W matters to the loader.
const pfW = 2

// load maps the executable named fileName into t's freshly created address
// space, leaving the entry point and initial stack pointer in f. On any
// rejection it returns false; pages already mapped are freed later by the
// ordinary process-exit path, since the thread's page directory is already
// installed.
func (m *Machine) load(t *Thread, fileName string, f *trap.Frame) bool {
	// Allocate and activate a page directory.
	t.pd = vmem.NewPageDir()
	m.activate(t.pd)

	// Open the executable and deny writes to it for as long as we run.
	file := m.fsOpen(fileName)
	if file == nil {
		m.logger.Info("load: open failed", "file", fileName)
		return false
	}

	t.execFile = file
	m.fsDenyWrite(file)

	// Read and verify the executable header.
	var hdrBytes [elfEhdrSize]byte
	if m.fsRead(file, hdrBytes[:]) != elfEhdrSize {
		m.logger.Info("load: error loading executable", "file", fileName)
		return false
	}

	var ehdr elfEhdr
	if err := binary.Read(
		bytes.NewReader(hdrBytes[:]),
		binary.LittleEndian,
		&ehdr); err != nil {
		panic(err)
	}

	if !bytes.Equal(ehdr.Ident[:len(elfMagic)], elfMagic) ||
		ehdr.Type != elfTypeExec ||
		ehdr.Machine != elfMachine386 ||
		ehdr.Version != elfVersion ||
		ehdr.Phentsize != elfPhdrSize ||
		ehdr.Phnum > elfMaxPhnum {
		m.logger.Info("load: error loading executable", "file", fileName)
		return false
	}

	fileLen := m.fsLength(file)

	// Read the program headers.
	ofs := uint64(ehdr.Phoff)
	for i := 0; i < int(ehdr.Phnum); i++ {
		if ofs > uint64(fileLen) {
			return false
		}
		m.fsSeek(file, int32(ofs))

		var phdrBytes [elfPhdrSize]byte
		if m.fsRead(file, phdrBytes[:]) != elfPhdrSize {
			return false
		}
		ofs += elfPhdrSize

		var phdr elfPhdr
		if err := binary.Read(
			bytes.NewReader(phdrBytes[:]),
			binary.LittleEndian,
			&phdr); err != nil {
			panic(err)
		}

		switch phdr.Type {
		case ptDynamic, ptInterp, ptShlib:
			// We run static executables only.
			return false

		case ptLoad:
			if !validSegment(&phdr, fileLen) {
				return false
			}

			writable := phdr.Flags&pfW != 0
			filePage := phdr.Offset &^ vmem.PGMask
			memPage := vmem.UserAddr(phdr.Vaddr).RoundDown()
			pageOfs := phdr.Vaddr & vmem.PGMask

			var readBytes, zeroBytes uint32
			if phdr.Filesz > 0 {
				// Normal segment: read the initial part from the file and
				// zero the rest.
				readBytes = pageOfs + phdr.Filesz
				zeroBytes = roundUp(pageOfs+phdr.Memsz, vmem.PGSize) - readBytes
			} else {
				// Entirely zero; don't read anything from the file.
				readBytes = 0
				zeroBytes = roundUp(pageOfs+phdr.Memsz, vmem.PGSize)
			}

			if !m.loadSegment(t, file, filePage, memPage, readBytes, zeroBytes, writable) {
				return false
			}

		default:
			// PT_NULL, PT_NOTE, PT_PHDR, PT_STACK and anything unknown are
			// ignored.
		}
	}

	// Set up the initial stack.
	if !m.setupStack(t, f) {
		return false
	}

	f.EIP = vmem.UserAddr(ehdr.Entry)
	return true
}

func roundUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// validSegment checks whether phdr describes a valid, loadable segment of a
// file of length fileLen.
func validSegment(phdr *elfPhdr, fileLen int32) bool {
	// The file offset and virtual address must share a page offset.
	if phdr.Offset&vmem.PGMask != phdr.Vaddr&vmem.PGMask {
		return false
	}

	// The offset must point within the file.
	if uint64(phdr.Offset) > uint64(fileLen) {
		return false
	}

	// The memory image must cover at least the file image, and must not be
	// empty.
	if phdr.Memsz < phdr.Filesz || phdr.Memsz == 0 {
		return false
	}

	// The region must start and end in user space, without wrapping.
	if !vmem.UserAddr(phdr.Vaddr).InUserSpace() {
		return false
	}
	if uint64(phdr.Vaddr)+uint64(phdr.Memsz) >= uint64(vmem.PhysBase) {
		return false
	}

	// Mapping page 0 is forbidden: user code that passed a null pointer to
	// a system call could then make the kernel dereference it.
	if phdr.Vaddr < vmem.PGSize {
		return false
	}

	return true
}

// loadSegment maps readBytes+zeroBytes bytes of virtual memory starting at
// upage: readBytes read from the file at offset ofs, the remainder zeroed.
// A page shared with an earlier segment is reused, and its writable bit is
// promoted if this segment wants write access; it is never demoted. A short
// file read is a hard failure.
func (m *Machine) loadSegment(
	t *Thread,
	file *filesys.File,
	ofs uint32,
	upage vmem.UserAddr,
	readBytes uint32,
	zeroBytes uint32,
	writable bool) bool {
	if (readBytes+zeroBytes)%vmem.PGSize != 0 {
		panic("Segment span not page-aligned")
	}
	if upage.Offset() != 0 || ofs%vmem.PGSize != 0 {
		panic("Segment start not page-aligned")
	}

	m.fsSeek(file, int32(ofs))
	for readBytes > 0 || zeroBytes > 0 {
		pageReadBytes := readBytes
		if pageReadBytes > vmem.PGSize {
			pageReadBytes = vmem.PGSize
		}
		pageZeroBytes := vmem.PGSize - pageReadBytes

		frame := t.pd.Lookup(upage)
		if frame == nil {
			// Get a page of memory and map it.
			frame = m.mem.Get(vmem.AllocUser)
			if frame == nil {
				return false
			}

			if !t.pd.Map(upage, frame, writable) {
				m.mem.Free(frame)
				return false
			}
		} else if writable && !t.pd.IsWritable(upage) {
			t.pd.SetWritable(upage, true)
		}

		// Fill the page.
		if pageReadBytes > 0 {
			if m.fsRead(file, frame.B[:pageReadBytes]) != int32(pageReadBytes) {
				return false
			}
		}
		clear(frame.B[pageReadBytes:])

		readBytes -= pageReadBytes
		zeroBytes -= pageZeroBytes
		upage += vmem.PGSize
	}

	return true
}

// setupStack maps a zeroed page at the top of user memory and points the
// frame's stack pointer at PhysBase.
func (m *Machine) setupStack(t *Thread, f *trap.Frame) bool {
	frame := m.mem.Get(vmem.AllocUser | vmem.AllocZero)
	if frame == nil {
		return false
	}

	if !t.pd.Map(vmem.PhysBase-vmem.PGSize, frame, true) {
		m.mem.Free(frame)
		return false
	}

	f.ESP = vmem.PhysBase
	return true
}
