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

package gokern_test

import (
	"strings"
	"testing"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/trap"
	"github.com/gokern/gokern/vmem"
	"github.com/kylelemons/godebug/pretty"
	. "github.com/jacobsa/ogletest"
)

func TestStack(t *testing.T) { RunTests(t) }

// stackImage is what a program observes about its own initial stack,
// decoded through its registers and memory.
type stackImage struct {
	RetAddr     uint32
	Argc        uint32
	Args        []string
	ArgvEndNull bool
	EspAligned  bool
	InStackPage bool
}

// readStack decodes the initial stack the kernel built, the way a crt0
// would: the fake return address at the stack pointer, then argc, then
// argv.
func readStack(ctx *gokern.UserContext) stackImage {
	esp := uint32(ctx.StackPointer())

	img := stackImage{
		EspAligned:  esp%4 == 0,
		InStackPage: esp >= uint32(vmem.PhysBase)-vmem.PGSize && esp < uint32(vmem.PhysBase),
	}

	word := func(addr uint32) uint32 {
		b := ctx.Load(vmem.UserAddr(addr), 4)
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}

	img.RetAddr = word(esp)
	img.Argc = word(esp + 4)
	argv := word(esp + 8)

	for i := uint32(0); i < img.Argc; i++ {
		ptr := word(argv + 4*i)
		var s []byte
		for {
			b := ctx.Load(vmem.UserAddr(ptr), 1)[0]
			if b == 0 {
				break
			}
			s = append(s, b)
			ptr++
		}
		img.Args = append(img.Args, string(s))
	}

	img.ArgvEndNull = word(argv+4*img.Argc) == 0
	return img
}

type StackTest struct {
	kerntesting.KernelTest
}

func init() { RegisterTestSuite(&StackTest{}) }

// installStackCheck installs a program that diffs its decoded stack against
// the expectation and reports any difference on the console.
func (t *StackTest) installStackCheck(name string, want stackImage) {
	t.Machine.InstallProgram(name, kerntesting.StandardImage(),
		func(ctx *gokern.UserContext) int32 {
			got := readStack(ctx)

			if diff := pretty.Compare(got, want); diff != "" {
				out := "stack mismatch (-got +want):\n" + diff + "\n"
				ctx.Store(kerntesting.DataBase, []byte(out))
				ctx.Syscall(trap.SysWrite, 1, kerntesting.DataBase, uint32(len(out)))
				return 1
			}

			return 0
		})
}

func (t *StackTest) run(cmdline string) int32 {
	tid := t.Machine.Exec(cmdline)
	AssertNe(gokern.TidError, tid)
	return t.Machine.Wait(tid)
}

func (t *StackTest) CanonicalLayout() {
	t.installStackCheck("stackcheck", stackImage{
		RetAddr:     0,
		Argc:        4,
		Args:        []string{"stackcheck", "a1", "a2", "a3"},
		ArgvEndNull: true,
		EspAligned:  true,
		InStackPage: true,
	})

	ExpectEq(0, t.run("stackcheck a1 a2 a3"))
}

func (t *StackTest) ConsecutiveSpacesCollapse() {
	t.installStackCheck("stackcheck", stackImage{
		RetAddr:     0,
		Argc:        3,
		Args:        []string{"stackcheck", "x", "y"},
		ArgvEndNull: true,
		EspAligned:  true,
		InStackPage: true,
	})

	ExpectEq(0, t.run("stackcheck    x     y"))
}

func (t *StackTest) TrailingWhitespaceOnlyYieldsArgcOne() {
	t.installStackCheck("stackcheck", stackImage{
		RetAddr:     0,
		Argc:        1,
		Args:        []string{"stackcheck"},
		ArgvEndNull: true,
		EspAligned:  true,
		InStackPage: true,
	})

	ExpectEq(0, t.run("stackcheck      "))
}

func (t *StackTest) NoArguments() {
	t.installStackCheck("stackcheck", stackImage{
		RetAddr:     0,
		Argc:        1,
		Args:        []string{"stackcheck"},
		ArgvEndNull: true,
		EspAligned:  true,
		InStackPage: true,
	})

	ExpectEq(0, t.run("stackcheck"))
}

func (t *StackTest) OversizedArgumentsFailTheLoad() {
	t.installStackCheck("stackcheck", stackImage{})

	// Far more argument bytes than one stack page can hold.
	cmdline := "stackcheck " + strings.TrimSpace(strings.Repeat("aaaaaa ", 580))
	ExpectEq(gokern.TidError, t.Machine.Exec(cmdline))
}

func (t *StackTest) ManyArgumentsFitThePage() {
	// A healthy but large argument list that still fits.
	args := strings.TrimSpace(strings.Repeat("abc ", 100))
	t.installStackCheck("stackcheck", stackImage{
		RetAddr:     0,
		Argc:        101,
		Args:        append([]string{"stackcheck"}, strings.Fields(args)...),
		ArgvEndNull: true,
		EspAligned:  true,
		InStackPage: true,
	})

	ExpectEq(0, t.run("stackcheck "+args))
}
