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

package vmem

import "encoding/binary"

// This file implements the user-memory validator and the bulk-copy helpers.
// Handler code never dereferences a raw user pointer; it asks these functions
// instead, which probe the page table page by page and refuse before touching
// anything. A false result from a validator inside a system-call path means
// the caller must be terminated with status -1.

// RangeValid reports whether every byte of [addr, addr+size) is non-null,
// lies strictly below PhysBase, and is covered by a present mapping. Probing
// proceeds at page-aligned strides so that multi-page ranges are fully
// covered.
func (pd *PageDir) RangeValid(addr UserAddr, size uint32) bool {
	if addr == 0 {
		return false
	}

	end := uint64(addr) + uint64(size)
	if end > uint64(PhysBase) {
		return false
	}

	for page := addr.RoundDown(); uint64(page) < end; page += PGSize {
		if pd.Lookup(page) == nil {
			return false
		}
	}

	return true
}

// CStringValid reports whether reading bytes from addr up to the first NUL,
// or up to max bytes, whichever comes first, stays below PhysBase and within
// mapped pages.
func (pd *PageDir) CStringValid(addr UserAddr, max uint32) bool {
	if addr == 0 {
		return false
	}

	for i := uint32(0); i < max; i++ {
		a := addr + UserAddr(i)
		if a < addr || !a.InUserSpace() {
			return false
		}

		frame := pd.Lookup(a.RoundDown())
		if frame == nil {
			return false
		}

		if frame.B[a.Offset()] == 0 {
			return true
		}
	}

	return true
}

// walk visits the frame slice backing each piece of [addr, addr+n),
// page by page, stopping early if f returns false. It returns false if any
// touched page is unmapped or outside user space.
func (pd *PageDir) walk(addr UserAddr, n int, f func(piece []byte) bool) bool {
	for n > 0 {
		if !addr.InUserSpace() {
			return false
		}

		frame := pd.Lookup(addr.RoundDown())
		if frame == nil {
			return false
		}

		off := addr.Offset()
		c := PGSize - int(off)
		if c > n {
			c = n
		}

		if !f(frame.B[off : int(off)+c]) {
			return false
		}

		addr += UserAddr(c)
		n -= c

		// Wrapped past the top of the address space.
		if addr == 0 && n > 0 {
			return false
		}
	}

	return true
}

// CopyIn copies len(dst) bytes of user memory starting at src into dst. The
// copy is kernel-privileged: the writable bit is not consulted. It returns
// false if the range is not fully mapped user memory; dst may then have been
// partially filled.
func (pd *PageDir) CopyIn(dst []byte, src UserAddr) bool {
	if len(dst) != 0 && src == 0 {
		return false
	}

	return pd.walk(src, len(dst), func(piece []byte) bool {
		copy(dst, piece)
		dst = dst[len(piece):]
		return true
	})
}

// CopyOut copies src into user memory starting at dst. Like CopyIn it is
// kernel-privileged, so the loader may fill read-only text pages through it.
func (pd *PageDir) CopyOut(dst UserAddr, src []byte) bool {
	if len(src) != 0 && dst == 0 {
		return false
	}

	return pd.walk(dst, len(src), func(piece []byte) bool {
		copy(piece, src)
		src = src[len(piece):]
		return true
	})
}

// UserWrite is CopyOut with user privileges: it additionally refuses if any
// touched page is mapped read-only.
func (pd *PageDir) UserWrite(dst UserAddr, src []byte) bool {
	if len(src) != 0 && dst == 0 {
		return false
	}

	addr := dst
	for n := len(src); n > 0; {
		page := addr.RoundDown()
		if !addr.InUserSpace() || pd.Lookup(page) == nil || !pd.IsWritable(page) {
			return false
		}

		c := PGSize - int(addr.Offset())
		if c > n {
			c = n
		}
		addr += UserAddr(c)
		n -= c
		if addr == 0 && n > 0 {
			return false
		}
	}

	return pd.CopyOut(dst, src)
}

// ReadWord reads a 32-bit little-endian word of user memory.
func (pd *PageDir) ReadWord(addr UserAddr) (uint32, bool) {
	var buf [4]byte
	if !pd.CopyIn(buf[:], addr) {
		return 0, false
	}

	return binary.LittleEndian.Uint32(buf[:]), true
}

// WriteWord writes a 32-bit little-endian word of user memory with kernel
// privileges.
func (pd *PageDir) WriteWord(addr UserAddr, v uint32) bool {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return pd.CopyOut(addr, buf[:])
}

// CopyInString copies a NUL-terminated string of at most max bytes
// (including the terminator) out of user memory. If no NUL appears within
// max bytes the result is truncated at max bytes. It returns false if the
// bytes inspected are not valid user memory.
func (pd *PageDir) CopyInString(addr UserAddr, max uint32) (string, bool) {
	if addr == 0 {
		return "", false
	}

	buf := make([]byte, 0, 16)
	for i := uint32(0); i < max; i++ {
		a := addr + UserAddr(i)
		if a < addr || !a.InUserSpace() {
			return "", false
		}

		frame := pd.Lookup(a.RoundDown())
		if frame == nil {
			return "", false
		}

		b := frame.B[a.Offset()]
		if b == 0 {
			return string(buf), true
		}
		buf = append(buf, b)
	}

	return string(buf), true
}
