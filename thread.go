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
	"sync"

	"github.com/gokern/gokern/filesys"
	"github.com/gokern/gokern/ksync"
	"github.com/gokern/gokern/vmem"
)

// Thread is one kernel thread. A user process is a thread with a page
// directory; the boot thread has none. Except where noted, a thread's fields
// are private to the thread itself (or, before its first run, to its
// spawner), so they carry no locks.
type Thread struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	tid  Tid
	name string
	m    *Machine

	priority int

	/////////////////////////
	// Mutable state
	/////////////////////////

	// The process's page directory, or nil for kernel-only threads and for
	// processes that have begun to exit.
	pd *vmem.PageDir

	// The open-file table, most recently opened first, and the next file
	// descriptor to hand out.
	//
	// INVARIANT: nextFD >= 2
	// INVARIANT: For each entry e, 2 <= e.fd < nextFD
	// INVARIANT: No two entries share an fd
	files  []*UserFile
	nextFD int32

	// The running executable, held open with writes denied until exit.
	execFile *filesys.File

	// Records for children this thread has spawned and not yet reaped.
	// Touched only by this thread.
	children []*ChildRecord

	// The thread's own child record, held by its parent. Guarded by procMu
	// because the parent detaches it if it exits first.
	procMu  sync.Mutex
	process *ChildRecord // GUARDED_BY(procMu)
}

// Tid returns the thread's id.
func (t *Thread) Tid() Tid {
	return t.tid
}

// Name returns the thread's human-readable name.
func (t *Thread) Name() string {
	return t.name
}

// setProcess links the thread to its own child record.
func (t *Thread) setProcess(rec *ChildRecord) {
	t.procMu.Lock()
	defer t.procMu.Unlock()

	t.process = rec
}

// peekProcess returns the thread's child record without claiming it.
func (t *Thread) peekProcess() *ChildRecord {
	t.procMu.Lock()
	defer t.procMu.Unlock()

	return t.process
}

// takeProcess claims the thread's child record, nulling the link. At most
// one caller ever receives a non-nil result, which is what makes the
// record's semaphore fire at most once.
func (t *Thread) takeProcess() *ChildRecord {
	t.procMu.Lock()
	defer t.procMu.Unlock()

	rec := t.process
	t.process = nil
	return rec
}

// passStatus records an exit status in the thread's child record, if the
// parent is still holding one.
func (t *Thread) passStatus(status int32) {
	rec := t.peekProcess()
	if rec == nil {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.status = status
}

// ChildRecord is the parent-owned rendezvous slot for one spawned child. It
// is created by the parent at spawn time; the child reaches it only through
// its own back-pointer, and never deallocates it.
type ChildRecord struct {
	// The child's thread id, recorded by the parent at spawn.
	tid Tid

	// Signalled at most once: when the child terminates or fails to load,
	// unless the parent has already detached the child.
	sema ksync.Semaphore

	mu sync.Mutex

	// The child's exit status. Stays -1 unless the child delivers one, so a
	// kernel-killed child reports -1.
	//
	// GUARDED_BY(mu)
	status int32

	// The child thread while it is alive and linked; nil after either side
	// detaches. Whichever of parent and child dies first nulls the other
	// side's pointer before dropping its own reference.
	//
	// GUARDED_BY(mu)
	child *Thread
}

// detachChild severs the link from a record to its child, so that an
// orphaned child will not reach back into a record its parent has dropped.
// Called by the exiting parent.
func (rec *ChildRecord) detachChild() {
	rec.mu.Lock()
	c := rec.child
	rec.child = nil
	rec.mu.Unlock()

	if c != nil {
		c.procMu.Lock()
		c.process = nil
		c.procMu.Unlock()
	}
}
