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

package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// burstWriter records each Write call separately, so tests can tell one
// burst from many.
type burstWriter struct {
	bursts []string
}

func (w *burstWriter) Write(p []byte) (int, error) {
	w.bursts = append(w.bursts, string(p))
	return len(p), nil
}

func TestPutBufIsOneBurst(t *testing.T) {
	w := &burstWriter{}
	c := New(w)

	c.PutBuf([]byte("hello, world\n"))

	require.Len(t, w.bursts, 1)
	assert.Equal(t, "hello, world\n", w.bursts[0])
}

func TestPrintfIsOneBurst(t *testing.T) {
	w := &burstWriter{}
	c := New(w)

	c.Printf("%s: exit(%d)\n", "echo", 0)

	require.Len(t, w.bursts, 1)
	assert.Equal(t, "echo: exit(0)\n", w.bursts[0])
}

func TestInputQueueOrder(t *testing.T) {
	c := New(&burstWriter{})

	c.PushInput([]byte("abc"))

	assert.Equal(t, byte('a'), c.Getc())
	assert.Equal(t, byte('b'), c.Getc())
	assert.Equal(t, byte('c'), c.Getc())
}

func TestGetcBlocksUntilInput(t *testing.T) {
	c := New(&burstWriter{})

	got := make(chan byte, 1)
	go func() {
		got <- c.Getc()
	}()

	select {
	case <-got:
		t.Fatal("Getc returned with no input")
	case <-time.After(10 * time.Millisecond):
	}

	c.PushInput([]byte{'z'})

	select {
	case b := <-got:
		assert.Equal(t, byte('z'), b)
	case <-time.After(5 * time.Second):
		t.Fatal("Getc did not return after input arrived")
	}
}
