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

package kerntesting

import (
	"bytes"
	"sync"
	"time"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/cfg"
	"github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"
)

// SafeBuffer is a bytes.Buffer safe for a console sink: user threads write
// while the test goroutine reads.
type SafeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// KernelTest implements common behavior needed by kernel tests. Embed it in
// your test fixture; it boots a fresh machine with a simulated clock and a
// captured console before each test.
type KernelTest struct {
	// The machine under test. Set by SetUp.
	Machine *gokern.Machine

	// Everything written to the console, including termination messages.
	Out *SafeBuffer

	// A clock with a fixed initial time, wired into the file system.
	Clock timeutil.SimulatedClock

	// The machine configuration. A SetUp override may adjust it before
	// calling this SetUp; the zero value means the defaults.
	Config cfg.MachineConfig
}

// SetUp boots the machine.
func (t *KernelTest) SetUp(ti *ogletest.TestInfo) {
	t.Clock.SetTime(time.Date(2012, 8, 15, 22, 56, 0, 0, time.Local))
	t.Out = &SafeBuffer{}

	if t.Config == (cfg.MachineConfig{}) {
		t.Config = cfg.Default().Machine
	}

	t.Machine = gokern.NewMachine(t.Config, &t.Clock, t.Out)
}

// installProgram builds the standard image for name, installs it, and binds
// body to it.
func (t *KernelTest) installProgram(name string, body gokern.Program) {
	if !t.Machine.InstallProgram(name, StandardImage(), body) {
		panic("InstallProgram: install failed: " + name)
	}
}
