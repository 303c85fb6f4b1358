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
	"github.com/gokern/gokern/filesys"
	"github.com/gokern/gokern/ksync"
	"github.com/gokern/gokern/trap"
	"github.com/gokern/gokern/vmem"
)

// loaderHandoff is the transient value a spawning parent passes to its
// child's bootstrap: the command-line scratch page, the child record the
// parent just allocated, and the rendezvous through which the child reports
// whether loading worked. The child frees the scratch page.
type loaderHandoff struct {
	cmdline *vmem.Frame
	rec     *ChildRecord
	sem     ksync.Semaphore

	// Written by the child before it signals sem.
	success bool
}

// nextToken scans buf from pos for the next space-separated token, treating
// the first NUL as end of input. It returns the token and the position just
// past it, or nil when the input is exhausted.
func nextToken(buf []byte, pos int) ([]byte, int) {
	for pos < len(buf) && buf[pos] == ' ' {
		pos++
	}

	if pos >= len(buf) || buf[pos] == 0 {
		return nil, pos
	}

	start := pos
	for pos < len(buf) && buf[pos] != ' ' && buf[pos] != 0 {
		pos++
	}

	return buf[start:pos], pos
}

// extractName returns the thread name for a command line: the first token
// of its first NameMax bytes, the way a bounded copy followed by
// tokenization produces it.
func extractName(cmdline string) string {
	if len(cmdline) > filesys.NameMax {
		cmdline = cmdline[:filesys.NameMax]
	}

	tok, _ := nextToken([]byte(cmdline), 0)
	if tok == nil {
		return cmdline
	}

	return string(tok)
}

// processExecute starts a new user process running the program named by the
// first token of cmdline, with the rest as its arguments. It returns the
// child's tid once loading has succeeded, or TidError if the spawn or the
// load failed. The new process may be scheduled, and may even exit, before
// processExecute returns.
func (m *Machine) processExecute(parent *Thread, cmdline string) Tid {
	// Copy the command line to a scratch page, so the child doesn't race
	// the caller's ownership of cmdline while tokenizing.
	scratch := m.mem.Get(vmem.AllocZero)
	if scratch == nil {
		return TidError
	}

	n := copy(scratch.B[:vmem.PGSize-1], cmdline)
	scratch.B[n] = 0

	// The child record outlives the child: it lives on storage owned by the
	// parent, and status defaults to -1 so a kernel-killed child reports -1.
	rec := &ChildRecord{status: -1}
	parent.children = append(parent.children, rec)

	h := &loaderHandoff{
		cmdline: scratch,
		rec:     rec,
	}

	tid, err := m.spawnThread(extractName(cmdline), PriDefault, func(t *Thread) {
		m.bootstrap(t, h)
	})
	rec.tid = tid

	if err != nil {
		m.mem.Free(scratch)
		parent.children = parent.children[:len(parent.children)-1]
		return TidError
	}

	// Wait for the child to finish loading, one way or the other.
	h.sem.Down()
	if !h.success {
		return TidError
	}

	return tid
}

// bootstrap runs as the first frame of a freshly spawned user-process
// thread: it loads the executable, builds the initial stack, reports the
// outcome to the parent, and on success drops to user mode.
func (m *Machine) bootstrap(t *Thread, h *loaderHandoff) {
	f := trap.NewUserFrame()

	// Separate the executable name from the arguments. A command line with
	// no token at all (empty or all spaces) is rejected here, before the
	// loader runs.
	success := false
	nameTok, cursor := nextToken(h.cmdline.B, 0)
	if nameTok != nil {
		success = m.load(t, string(nameTok), &f)
		if success {
			success = m.setUserStack(t, nameTok, h.cmdline.B, cursor, &f.ESP)
		}
	}

	// Cross-link the child record and this thread. The record holds the
	// thread, the thread holds the record; whichever side exits first nulls
	// the other's pointer.
	t.setProcess(h.rec)
	h.rec.mu.Lock()
	h.rec.child = t
	h.rec.mu.Unlock()

	// Tell the parent, then release the scratch page.
	h.success = success
	h.sem.Up()
	m.mem.Free(h.cmdline)

	// A failed load funnels through the ordinary exit path, which frees any
	// pages already mapped (the thread's page directory is installed) and
	// signals the child record.
	if !success {
		m.threadExit(t)
	}

	// Drop to user mode. No further kernel code runs in this thread until
	// the next trap.
	m.enterUser(t, &f)
}

// processWait waits for the parent's child tid to exit and returns its exit
// status. If tid is not an unreaped child of parent, it returns -1 without
// blocking. A child the kernel terminated reports -1.
func (m *Machine) processWait(parent *Thread, tid Tid) int32 {
	for i, rec := range parent.children {
		if rec.tid != tid {
			continue
		}

		rec.sema.Down()

		rec.mu.Lock()
		status := rec.status
		rec.mu.Unlock()

		parent.children = append(parent.children[:i], parent.children[i+1:]...)
		return status
	}

	return -1
}

// exitThread delivers status to the parent and terminates the thread. It is
// the single funnel for user exits, load failures and kernel-initiated
// termination, and does not return.
func (m *Machine) exitThread(t *Thread, status int32) {
	t.passStatus(status)
	m.threadExit(t)
}

// threadExit runs the process-exit path and unwinds the thread's goroutine.
// It does not return.
func (m *Machine) threadExit(t *Thread) {
	m.processExit(t)
	panic(threadExited{})
}

// processExit releases everything the process owns. After it returns the
// process holds no pages, no open files, and no write-deny on its
// executable.
func (m *Machine) processExit(t *Thread) {
	// Close the running executable, re-enabling writes to it.
	if t.execFile != nil {
		m.fsClose(t.execFile)
		t.execFile = nil
	}

	// Close every file still in the open-file table.
	for _, uf := range t.files {
		m.fsClose(uf.file)
	}
	t.files = nil

	// Orphan any remaining children: null their back-references so they
	// won't reach into records we are about to drop.
	for _, rec := range t.children {
		rec.detachChild()
	}
	t.children = nil

	// If this thread was itself a spawned process, report to the parent.
	// The termination message must hit the console before the semaphore
	// fires, so a waiting parent observes it.
	if rec := t.takeProcess(); rec != nil {
		rec.mu.Lock()
		rec.child = nil
		status := rec.status
		rec.mu.Unlock()

		m.console.Printf("%s: exit(%d)\n", t.name, status)
		rec.sema.Up()
	}

	// Destroy the process's page directory and switch back to the
	// kernel-only directory.
	if pd := t.pd; pd != nil {
		// Correct ordering here is crucial. We must clear t.pd first, so a
		// timer interrupt cannot switch back to the process directory, and
		// activate the base directory before destroying the process's, or
		// the active directory would be one that's been freed.
		t.pd = nil
		m.activate(nil)
		pd.Destroy(m.mem)
	}
}
