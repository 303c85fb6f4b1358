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

import (
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// AllocFlags select the pool and initialization of an allocated frame.
type AllocFlags uint32

const (
	// AllocUser draws the frame from the bounded user pool instead of the
	// kernel pool.
	AllocUser AllocFlags = 1 << iota

	// AllocZero zeroes the frame before returning it.
	AllocZero
)

// A Frame is a page-aligned 4096-byte region of simulated physical memory.
// The kernel addresses its contents directly through B; user code reaches it
// only through a page-directory mapping.
type Frame struct {
	// B is the frame's storage. Always exactly PGSize bytes.
	B []byte

	// user records which pool the frame was drawn from.
	user bool
}

// Physmem is the machine's physical page allocator. The user pool is bounded
// so that out-of-memory paths during process load are reachable; the kernel
// pool is not.
type Physmem struct {
	// userSem bounds the number of user-pool frames outstanding.
	userSem *semaphore.Weighted

	mu sync.Mutex

	// Recycled frames awaiting reuse, most recently freed first.
	//
	// GUARDED_BY(mu)
	free []*Frame

	// The number of frames currently handed out, by pool.
	//
	// INVARIANT: userInUse >= 0 && kernInUse >= 0
	//
	// GUARDED_BY(mu)
	userInUse int
	kernInUse int
}

// NewPhysmem creates an allocator whose user pool holds userPages frames.
func NewPhysmem(userPages int) *Physmem {
	if userPages <= 0 {
		panic(fmt.Sprintf("Non-positive user pool size: %v", userPages))
	}

	return &Physmem{
		userSem: semaphore.NewWeighted(int64(userPages)),
	}
}

// Get allocates a frame, returning nil if the selected pool is exhausted.
func (pm *Physmem) Get(flags AllocFlags) *Frame {
	user := flags&AllocUser != 0
	if user && !pm.userSem.TryAcquire(1) {
		return nil
	}

	pm.mu.Lock()
	var f *Frame
	if n := len(pm.free); n != 0 {
		f = pm.free[n-1]
		pm.free = pm.free[:n-1]
	} else {
		f = &Frame{B: make([]byte, PGSize)}
	}

	f.user = user
	if user {
		pm.userInUse++
	} else {
		pm.kernInUse++
	}
	pm.mu.Unlock()

	if flags&AllocZero != 0 {
		clear(f.B)
	}

	return f
}

// Free returns a frame to its pool. The caller must not touch the frame
// afterward.
func (pm *Physmem) Free(f *Frame) {
	if f == nil {
		panic("Free called with nil frame")
	}

	pm.mu.Lock()
	if f.user {
		pm.userInUse--
	} else {
		pm.kernInUse--
	}
	if pm.userInUse < 0 || pm.kernInUse < 0 {
		panic(fmt.Sprintf(
			"Frame freed twice: user %v, kernel %v",
			pm.userInUse,
			pm.kernInUse))
	}
	pm.free = append(pm.free, f)
	pm.mu.Unlock()

	if f.user {
		pm.userSem.Release(1)
	}
}

// UserInUse returns the number of user-pool frames currently allocated.
func (pm *Physmem) UserInUse() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	return pm.userInUse
}
