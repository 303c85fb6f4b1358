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

// Package ksync holds the small synchronization primitives the kernel
// exposes to its subsystems, modeled on classic counting semaphores rather
// than Go channels so that rendezvous code reads like the kernel code it
// simulates.
package ksync

import "sync"

// Semaphore is a counting semaphore. Its zero value is a semaphore with
// count zero, which is the common case: a rendezvous that Down blocks on
// until the counterpart calls Up.
type Semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value int
}

// NewSemaphore returns a semaphore with the given initial count.
func NewSemaphore(n int) *Semaphore {
	s := &Semaphore{}
	s.Init(n)
	return s
}

// Init sets the count. It must not be called after the semaphore is in use.
func (s *Semaphore) Init(n int) {
	if n < 0 {
		panic("negative semaphore count")
	}

	s.value = n
}

// Down decrements the count, blocking until it is positive.
func (s *Semaphore) Down() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}

	for s.value == 0 {
		s.cond.Wait()
	}
	s.value--
}

// TryDown decrements the count if it is positive, without blocking.
func (s *Semaphore) TryDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.value == 0 {
		return false
	}

	s.value--
	return true
}

// Up increments the count, waking one waiter if any.
func (s *Semaphore) Up() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}

	s.value++
	s.cond.Signal()
}
