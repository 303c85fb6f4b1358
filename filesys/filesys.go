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

// Package filesys implements the teaching file system: a flat namespace of
// fixed-size files stored in memory.
//
// The package is NOT safe for concurrent access. The kernel serializes every
// entry with a single global lock; see the machine's file-system helpers.
//
// Semantics worth knowing:
//
//   - Files do not grow. A file's size is fixed at creation, and writes past
//     the end are silently truncated.
//
//   - Removing an open file unlinks its name immediately, but the contents
//     remain reachable through existing handles until the last close.
//
//   - A file may have writes denied while a process executes it. Denials
//     are counted on the inode, so independent handles compose.
package filesys

import (
	"fmt"
	"time"

	"github.com/jacobsa/timeutil"
)

// NameMax is the maximum file-name length in bytes, not counting any
// terminator.
const NameMax = 14

type inode struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	name string

	/////////////////////////
	// Mutable state
	/////////////////////////

	// The file's contents. len(data) never changes after creation.
	data []byte

	// The number of open handles, and the number of those that have denied
	// writes.
	//
	// INVARIANT: 0 <= denyWriteCnt <= openCnt
	openCnt      int
	denyWriteCnt int

	// Set when the name has been removed from the namespace. The inode
	// lives on until openCnt drops to zero.
	removed bool

	crtime time.Time
	mtime  time.Time
}

// FileSys is the file system itself.
type FileSys struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	/////////////////////////
	// Mutable state
	/////////////////////////

	// The namespace. Entries are live names only; a removed inode is
	// reachable solely through its open handles.
	//
	// INVARIANT: For all names n, len(n) > 0 && len(n) <= NameMax
	// INVARIANT: For all entries e, !e.removed
	entries map[string]*inode
}

// New creates an empty file system that stamps inode times with clock.
func New(clock timeutil.Clock) *FileSys {
	return &FileSys{
		clock:   clock,
		entries: make(map[string]*inode),
	}
}

// CheckInvariants panics if the file system's invariants do not hold. It is
// wired into the kernel's global file-system lock.
func (fs *FileSys) CheckInvariants() {
	for name, ino := range fs.entries {
		if len(name) == 0 || len(name) > NameMax {
			panic(fmt.Sprintf("Illegal name in namespace: %q", name))
		}

		if ino.removed {
			panic(fmt.Sprintf("Removed inode still linked: %q", name))
		}

		if ino.denyWriteCnt < 0 || ino.denyWriteCnt > ino.openCnt {
			panic(fmt.Sprintf(
				"Deny-write count out of range for %q: %v of %v",
				name,
				ino.denyWriteCnt,
				ino.openCnt))
		}
	}
}

func nameOK(name string) bool {
	return len(name) > 0 && len(name) <= NameMax
}

// Create makes a new zero-filled file of the given size. It returns false if
// the name is illegal or already taken.
func (fs *FileSys) Create(name string, size uint32) bool {
	if !nameOK(name) {
		return false
	}

	if _, ok := fs.entries[name]; ok {
		return false
	}

	now := fs.clock.Now()
	fs.entries[name] = &inode{
		name:   name,
		data:   make([]byte, size),
		crtime: now,
		mtime:  now,
	}

	return true
}

// Remove unlinks name. Open handles keep working; the inode is dropped when
// the last one closes.
func (fs *FileSys) Remove(name string) bool {
	ino, ok := fs.entries[name]
	if !ok {
		return false
	}

	ino.removed = true
	delete(fs.entries, name)
	return true
}

// Open returns a fresh handle on name, or nil if there is no such file.
func (fs *FileSys) Open(name string) *File {
	ino, ok := fs.entries[name]
	if !ok {
		return nil
	}

	ino.openCnt++
	return &File{fs: fs, ino: ino}
}

// Install creates name with the given contents, replacing any previous file
// with that name. It is the mkfs-style preloading hook used by the harness
// and the CLI, not part of the system-call surface.
func (fs *FileSys) Install(name string, contents []byte) bool {
	if !nameOK(name) {
		return false
	}

	fs.Remove(name)
	if !fs.Create(name, uint32(len(contents))) {
		return false
	}

	copy(fs.entries[name].data, contents)
	return true
}

// Attrs describes a file for Stat.
type Attrs struct {
	Size   int32
	Crtime time.Time
	Mtime  time.Time
}

// Stat returns the attributes of name.
func (fs *FileSys) Stat(name string) (Attrs, bool) {
	ino, ok := fs.entries[name]
	if !ok {
		return Attrs{}, false
	}

	return Attrs{
		Size:   int32(len(ino.data)),
		Crtime: ino.crtime,
		Mtime:  ino.mtime,
	}, true
}

// Names returns the live names in the namespace, in no particular order.
func (fs *FileSys) Names() []string {
	names := make([]string, 0, len(fs.entries))
	for name := range fs.entries {
		names = append(names, name)
	}

	return names
}
