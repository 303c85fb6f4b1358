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

// Package vmem simulates the physical and virtual memory of a 32-bit x86
// machine with a flat user/kernel split: user virtual addresses run from 0 up
// to PhysBase, kernel addresses from PhysBase up. Physical frames are plain
// byte slices handed out by a pool allocator; page directories map
// page-aligned user addresses to frames at 4 KiB granularity.
package vmem

const (
	// PGSize is the page size in bytes.
	PGSize = 4096

	// PGBits is the number of offset bits within a page.
	PGBits = 12

	// PGMask masks the offset bits of an address.
	PGMask = PGSize - 1
)

// PhysBase marks the end of user virtual memory. Every user-supplied address
// must lie strictly below it.
const PhysBase UserAddr = 0xC0000000

// UserAddr is a 32-bit user virtual address. It is a distinct type so that
// raw user pointers cannot be dereferenced by accident: the only observers
// are the validators and the bulk-copy helpers in this package.
type UserAddr uint32

// InUserSpace reports whether the address lies strictly below PhysBase.
func (a UserAddr) InUserSpace() bool {
	return a < PhysBase
}

// RoundDown returns the start of the page containing a.
func (a UserAddr) RoundDown() UserAddr {
	return a &^ PGMask
}

// Offset returns the offset of a within its page.
func (a UserAddr) Offset() uint32 {
	return uint32(a) & PGMask
}
