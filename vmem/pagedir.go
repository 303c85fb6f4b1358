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

import "fmt"

// A pte records one 4 KiB mapping.
type pte struct {
	frame    *Frame
	writable bool
}

// PageDir is one process's page directory: a map from page-aligned user
// virtual addresses to physical frames. It is touched only by the thread
// that owns it, so it carries no lock.
type PageDir struct {
	entries map[UserAddr]*pte
}

// NewPageDir creates an empty page directory.
func NewPageDir() *PageDir {
	return &PageDir{
		entries: make(map[UserAddr]*pte),
	}
}

func checkPageAligned(upage UserAddr) {
	if upage.Offset() != 0 {
		panic(fmt.Sprintf("Address not page-aligned: %#x", uint32(upage)))
	}
}

// Map installs a mapping from upage to frame. It returns false if upage is
// already mapped or lies outside user space.
func (pd *PageDir) Map(upage UserAddr, frame *Frame, writable bool) bool {
	checkPageAligned(upage)

	if !upage.InUserSpace() {
		return false
	}

	if _, ok := pd.entries[upage]; ok {
		return false
	}

	pd.entries[upage] = &pte{frame: frame, writable: writable}
	return true
}

// Unmap removes the mapping for upage, if any. The frame is not freed; that
// is the caller's responsibility.
func (pd *PageDir) Unmap(upage UserAddr) {
	checkPageAligned(upage)
	delete(pd.entries, upage)
}

// Lookup returns the frame mapped at upage, or nil if none.
func (pd *PageDir) Lookup(upage UserAddr) *Frame {
	checkPageAligned(upage)

	e, ok := pd.entries[upage]
	if !ok {
		return nil
	}

	return e.frame
}

// IsWritable reports whether the page at upage is mapped writable. It panics
// if upage is not mapped.
func (pd *PageDir) IsWritable(upage UserAddr) bool {
	checkPageAligned(upage)

	e, ok := pd.entries[upage]
	if !ok {
		panic(fmt.Sprintf("IsWritable on unmapped page: %#x", uint32(upage)))
	}

	return e.writable
}

// SetWritable changes the writable bit of the page at upage. It panics if
// upage is not mapped.
func (pd *PageDir) SetWritable(upage UserAddr, writable bool) {
	checkPageAligned(upage)

	e, ok := pd.entries[upage]
	if !ok {
		panic(fmt.Sprintf("SetWritable on unmapped page: %#x", uint32(upage)))
	}

	e.writable = writable
}

// Pages returns the number of mapped pages.
func (pd *PageDir) Pages() int {
	return len(pd.entries)
}

// Destroy unmaps everything and returns every frame to the allocator. The
// directory must no longer be active on any simulated CPU.
func (pd *PageDir) Destroy(pm *Physmem) {
	for upage, e := range pd.entries {
		pm.Free(e.frame)
		delete(pd.entries, upage)
	}
}
