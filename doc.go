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

// Package gokern simulates the user-process and system-call core of a small
// teaching operating system for 32-bit x86: a flat user/kernel address split
// at 0xC0000000, ELF32 executables loaded into per-process page directories,
// an argc/argv stack built at the top of user memory, per-process file
// descriptor tables behind a single global file-system lock, and a
// parent/child lifecycle with blocking wait.
//
// The hardware is simulated: physical frames are byte slices, threads are
// goroutines, and the return-to-user trampoline hands control to a program
// body registered per executable name. User programs still interact with the
// kernel only by raising interrupt 0x30 with arguments placed in their own
// simulated memory, so the kernel's pointer validation, ELF checks and
// lifecycle rules are exercised for real.
//
// Create a Machine, install executables and program bodies, then Exec a
// command line and Wait for the result:
//
//	m := gokern.NewMachine(cfg.Default().Machine, timeutil.RealClock(), os.Stdout)
//	m.InstallProgram("echo", image, echo.Program)
//	tid := m.Exec("echo hello world")
//	status := m.Wait(tid)
package gokern
