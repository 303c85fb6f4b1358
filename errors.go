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

// Tid names a thread, and therefore a process: in this kernel every user
// process is exactly one thread.
type Tid int32

// TidError is the sentinel returned by Exec when spawning or loading fails.
// It is never a valid thread id.
const TidError Tid = -1

// PriDefault is the priority new user processes are spawned at.
const PriDefault = 31

// threadExited unwinds a thread's goroutine after process exit has run. It
// is recovered at the top of the thread's stack and must never escape.
type threadExited struct{}

// machineHalted unwinds the thread that issued the halt system call. Unlike
// threadExited it does not imply the exit path ran: halt powers the machine
// off without one.
type machineHalted struct{}
