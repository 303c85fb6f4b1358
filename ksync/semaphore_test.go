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

package ksync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueStartsAtZero(t *testing.T) {
	var s Semaphore

	assert.False(t, s.TryDown())
}

func TestInitialCount(t *testing.T) {
	s := NewSemaphore(2)

	assert.True(t, s.TryDown())
	assert.True(t, s.TryDown())
	assert.False(t, s.TryDown())
}

func TestUpThenDown(t *testing.T) {
	var s Semaphore

	s.Up()
	assert.True(t, s.TryDown())
	assert.False(t, s.TryDown())
}

func TestDownBlocksUntilUp(t *testing.T) {
	var s Semaphore

	released := make(chan struct{})
	go func() {
		s.Down()
		close(released)
	}()

	// The waiter must still be parked after a little while.
	select {
	case <-released:
		t.Fatal("Down returned before Up")
	case <-time.After(10 * time.Millisecond):
	}

	s.Up()

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("Down did not return after Up")
	}
}

func TestRendezvousDeliversHappensBefore(t *testing.T) {
	var s Semaphore
	var payload int

	go func() {
		payload = 42
		s.Up()
	}()

	s.Down()
	require.Equal(t, 42, payload)
}

func TestNegativeInitPanics(t *testing.T) {
	assert.Panics(t, func() { NewSemaphore(-1) })
}
