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

package filesys

// File is an open handle: an inode reference plus a position. Handles are
// owned by exactly one thread and carry the same reentrancy caveat as the
// file system itself.
type File struct {
	fs  *FileSys
	ino *inode

	// The current position. Reads and writes advance it.
	pos int32

	// Whether this handle has denied writes to the inode.
	denied bool

	closed bool
}

// Name returns the name the file was opened under. The name may since have
// been removed from the namespace.
func (f *File) Name() string {
	return f.ino.name
}

// Length returns the file's size in bytes.
func (f *File) Length() int32 {
	return int32(len(f.ino.data))
}

// Seek sets the position for the next read or write. Positions past the end
// of the file are legal; reads there return zero bytes and writes are
// discarded.
func (f *File) Seek(pos int32) {
	if pos < 0 {
		pos = 0
	}

	f.pos = pos
}

// Tell returns the current position.
func (f *File) Tell() int32 {
	return f.pos
}

// Read copies up to len(p) bytes from the current position into p and
// advances the position. It returns the number of bytes copied, zero at or
// past end of file.
func (f *File) Read(p []byte) int32 {
	if f.pos >= int32(len(f.ino.data)) {
		return 0
	}

	n := copy(p, f.ino.data[f.pos:])
	f.pos += int32(n)
	return int32(n)
}

// Write copies up to len(p) bytes from p into the file at the current
// position and advances the position. Files do not grow: the copy stops at
// the end of the file. A file with writes denied accepts nothing and
// returns zero.
func (f *File) Write(p []byte) int32 {
	if f.ino.denyWriteCnt > 0 {
		return 0
	}

	if f.pos >= int32(len(f.ino.data)) {
		return 0
	}

	n := copy(f.ino.data[f.pos:], p)
	f.pos += int32(n)
	f.ino.mtime = f.fs.clock.Now()
	return int32(n)
}

// DenyWrite blocks writes to the underlying inode, through any handle,
// until a matching AllowWrite. Denying twice through the same handle has no
// further effect.
func (f *File) DenyWrite() {
	if f.denied {
		return
	}

	f.denied = true
	f.ino.denyWriteCnt++
}

// AllowWrite undoes this handle's DenyWrite, if any.
func (f *File) AllowWrite() {
	if !f.denied {
		return
	}

	f.denied = false
	f.ino.denyWriteCnt--
}

// Close releases the handle, re-enabling writes it had denied. Closing an
// already-closed handle panics.
func (f *File) Close() {
	if f.closed {
		panic("Close of closed file")
	}

	f.AllowWrite()
	f.ino.openCnt--
	f.closed = true
}
