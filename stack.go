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

	"github.com/gokern/gokern/vmem"
)

// The initial user stack, from the top of user memory down:
//
//	argument strings, argv[0]'s first (highest addresses)
//	zeroed padding to a 4-byte boundary
//	argv[argc] = NULL
//	argv[argc-1] ... argv[0]
//	argv (the address of argv[0]'s slot)
//	argc
//	a fake return address of 0
//
// The whole image must fit in the one stack page. The marshaller projects
// the final footprint after each token and fails the load if the next
// argument would overflow it.

// pushBytes copies src onto the user stack, moving esp down. The stack page
// is kernel-filled, so read-only mappings wouldn't stop it; a false result
// means the stack ran off its page.
func pushBytes(pd *vmem.PageDir, esp *vmem.UserAddr, src []byte) bool {
	*esp -= vmem.UserAddr(len(src))
	return pd.CopyOut(*esp, src)
}

// pushWord pushes one 32-bit little-endian word.
func pushWord(pd *vmem.PageDir, esp *vmem.UserAddr, v uint32) bool {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return pushBytes(pd, esp, buf[:])
}

// pushCString pushes tok followed by a NUL terminator.
func pushCString(pd *vmem.PageDir, esp *vmem.UserAddr, tok []byte) bool {
	buf := make([]byte, len(tok)+1)
	copy(buf, tok)
	return pushBytes(pd, esp, buf)
}

// setUserStack tokenizes the rest of the command line in buf starting at
// cursor and builds the initial stack, leaving the final stack pointer in
// *esp. fileName, already tokenized by the caller, becomes argv[0].
func (m *Machine) setUserStack(
	t *Thread,
	fileName []byte,
	buf []byte,
	cursor int,
	esp *vmem.UserAddr) bool {
	base := *esp
	argc := 1

	// Push the executable name, then each argument, recording where each
	// string lands.
	var argAddrs []vmem.UserAddr
	if !pushCString(t.pd, esp, fileName) {
		return false
	}
	argAddrs = append(argAddrs, *esp)

	for {
		tok, next := nextToken(buf, cursor)
		if tok == nil {
			break
		}
		cursor = next
		argc++

		// Project the final footprint if we push this token: the string,
		// downward alignment, then argc+4 words for the pointer array's
		// NULL, argv, argc and the return address. Overflowing the stack
		// page fails the load rather than corrupting the page below.
		strLen := uint64(len(tok) + 1)
		sp := (uint64(*esp) - strLen) &^ 3
		sp -= uint64(argc+4) * 4
		if uint64(base)-sp >= vmem.PGSize {
			return false
		}

		if !pushCString(t.pd, esp, tok) {
			return false
		}
		argAddrs = append(argAddrs, *esp)
	}

	// Zero the padding down to a word boundary.
	aligned := *esp &^ 3
	if aligned != *esp {
		pad := make([]byte, *esp-aligned)
		if !t.pd.CopyOut(aligned, pad) {
			return false
		}
		*esp = aligned
	}

	// argv[argc] is NULL, then the recorded string addresses in reverse
	// push order so that argv[0] ends up at the lowest address.
	if !pushWord(t.pd, esp, 0) {
		return false
	}
	for i := argc - 1; i >= 0; i-- {
		if !pushWord(t.pd, esp, uint32(argAddrs[i])) {
			return false
		}
	}

	// argv itself, argc, and the fake return address.
	argv := *esp
	if !pushWord(t.pd, esp, uint32(argv)) {
		return false
	}
	if !pushWord(t.pd, esp, uint32(argc)) {
		return false
	}
	if !pushWord(t.pd, esp, 0) {
		return false
	}

	return true
}
