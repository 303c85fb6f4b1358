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

// Package kerntesting provides tools for testing the kernel: a builder for
// small ELF32 executables and a fixture that boots a machine per test.
package kerntesting

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gokern/gokern/vmem"
)

// Segment describes one program header of a built executable.
type Segment struct {
	// Type is the p_type field. Zero means PT_LOAD.
	Type uint32

	// Vaddr is where the segment wants to live.
	Vaddr uint32

	// Data is the file image. It is placed in the file at an offset
	// congruent to Vaddr modulo the page size, as the loader requires.
	Data []byte

	// MemSize is the p_memsz field; zero means len(Data). The tail beyond
	// the file image is zero-filled by the loader.
	MemSize uint32

	// Writable sets the W bit in p_flags.
	Writable bool
}

// ExecSpec describes an executable for BuildExec.
type ExecSpec struct {
	Entry    uint32
	Segments []Segment

	// Overrides for header fields, for building images the loader must
	// reject. Zero means "the correct value".
	Machine  uint16
	Type     uint16
	Version  uint32
	BadMagic bool
}

const (
	ehdrSize = 52
	phdrSize = 32

	ptLoad = 1
)

// BuildExec serializes spec into ELF32 bytes the loader will accept (or,
// with the override knobs set, reject in a controlled way).
func BuildExec(spec ExecSpec) []byte {
	machine := spec.Machine
	if machine == 0 {
		machine = 3 // i386
	}
	etype := spec.Type
	if etype == 0 {
		etype = 2 // EXEC
	}
	version := spec.Version
	if version == 0 {
		version = 1
	}

	phnum := len(spec.Segments)
	headerEnd := uint32(ehdrSize + phdrSize*phnum)

	// Lay out each segment's file offset, respecting page-offset congruence
	// with its vaddr.
	offsets := make([]uint32, phnum)
	cur := headerEnd
	for i, seg := range spec.Segments {
		want := seg.Vaddr & vmem.PGMask

		// A segment with no file image needs no room, just a page-congruent
		// offset that lies within the file; zero always does.
		if len(seg.Data) == 0 {
			offsets[i] = want
			continue
		}

		ofs := cur&^uint32(vmem.PGMask) + want
		if ofs < cur {
			ofs += vmem.PGSize
		}
		offsets[i] = ofs
		cur = ofs + uint32(len(seg.Data))
	}

	var buf bytes.Buffer

	// Executable header.
	ident := [16]byte{0x7f, 'E', 'L', 'F', 1, 1, 1}
	if spec.BadMagic {
		ident[1] = 'W'
	}
	buf.Write(ident[:])
	writeLE(&buf, etype)
	writeLE(&buf, machine)
	writeLE(&buf, version)
	writeLE(&buf, spec.Entry)
	writeLE(&buf, uint32(ehdrSize)) // phoff
	writeLE(&buf, uint32(0))        // shoff
	writeLE(&buf, uint32(0))        // flags
	writeLE(&buf, uint16(ehdrSize))
	writeLE(&buf, uint16(phdrSize))
	writeLE(&buf, uint16(phnum))
	writeLE(&buf, uint16(0)) // shentsize
	writeLE(&buf, uint16(0)) // shnum
	writeLE(&buf, uint16(0)) // shstrndx

	// Program headers.
	for i, seg := range spec.Segments {
		ptype := seg.Type
		if ptype == 0 {
			ptype = ptLoad
		}
		memsz := seg.MemSize
		if memsz == 0 {
			memsz = uint32(len(seg.Data))
		}
		flags := uint32(5) // R+X
		if seg.Writable {
			flags |= 2
		}

		writeLE(&buf, ptype)
		writeLE(&buf, offsets[i])
		writeLE(&buf, seg.Vaddr)
		writeLE(&buf, seg.Vaddr) // paddr
		writeLE(&buf, uint32(len(seg.Data)))
		writeLE(&buf, memsz)
		writeLE(&buf, flags)
		writeLE(&buf, uint32(vmem.PGSize))
	}

	// Segment contents at their laid-out offsets.
	for i, seg := range spec.Segments {
		if len(seg.Data) == 0 {
			continue
		}
		if int(offsets[i]) < buf.Len() {
			panic(fmt.Sprintf(
				"Segment %d offset %d overlaps headers (%d)",
				i,
				offsets[i],
				buf.Len()))
		}
		buf.Write(make([]byte, int(offsets[i])-buf.Len()))
		buf.Write(seg.Data)
	}

	return buf.Bytes()
}

func writeLE(buf *bytes.Buffer, v interface{}) {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}

// Standard addresses for images built by StandardImage: a read-only text
// page and a writable, zero-filled data page.
const (
	TextBase = 0x08048000
	DataBase = 0x08049000
)

// StandardImage builds the executable shape shared by the sample programs:
// one read-only text segment of NOPs at TextBase (which is also the entry
// point) and one writable BSS-style page at DataBase for program scratch.
func StandardImage() []byte {
	text := bytes.Repeat([]byte{0x90}, 64)

	return BuildExec(ExecSpec{
		Entry: TextBase,
		Segments: []Segment{
			{Vaddr: TextBase, Data: text},
			{Vaddr: DataBase, MemSize: vmem.PGSize, Writable: true},
		},
	})
}
