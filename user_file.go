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

	"github.com/gokern/gokern/filesys"
)

// UserFile is one entry of a thread's open-file table: a file descriptor
// bound to an open handle. Descriptors 0 and 1 name the console and are
// never registered here; user files start at 2. Entries are owned by
// exactly one thread and are not inherited across exec.
type UserFile struct {
	fd   int32
	file *filesys.File
}

// registerFile assigns the thread's next descriptor to f and inserts the
// entry at the head of the table.
func (t *Thread) registerFile(f *filesys.File) int32 {
	uf := &UserFile{
		fd:   t.nextFD,
		file: f,
	}
	t.nextFD++

	t.files = append(t.files, nil)
	copy(t.files[1:], t.files)
	t.files[0] = uf

	return uf.fd
}

// lookupFD returns the entry with the given descriptor, or nil. The table
// is short, so a linear scan is fine.
func (t *Thread) lookupFD(fd int32) *UserFile {
	for _, uf := range t.files {
		if uf.fd == fd {
			return uf
		}
	}

	return nil
}

// lookupFDOrDie is lookupFD for callers whose descriptor is a precondition
// rather than an input to validate.
func (t *Thread) lookupFDOrDie(fd int32) *UserFile {
	uf := t.lookupFD(fd)
	if uf == nil {
		panic(fmt.Sprintf("Unknown fd: %v", fd))
	}

	return uf
}

// removeFD unlinks the entry with the given descriptor. Closing the handle
// is the caller's responsibility. Removing an unknown descriptor is a
// no-op.
func (t *Thread) removeFD(fd int32) {
	for i, uf := range t.files {
		if uf.fd == fd {
			t.files = append(t.files[:i], t.files[i+1:]...)
			return
		}
	}
}
