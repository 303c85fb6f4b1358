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
	"encoding/binary"
	"testing"

	"github.com/gokern/gokern"
	"github.com/gokern/gokern/cfg"
	"github.com/gokern/gokern/kerntesting"
	"github.com/gokern/gokern/vmem"
	. "github.com/jacobsa/ogletest"
)

func TestLoader(t *testing.T) { RunTests(t) }

type LoaderTest struct {
	kerntesting.KernelTest
}

func init() { RegisterTestSuite(&LoaderTest{}) }

// okBody is a program body for images whose load outcome is the entire
// point of the test.
func okBody(ctx *gokern.UserContext) int32 { return 0 }

// install binds image to name with a trivial body.
func (t *LoaderTest) install(name string, image []byte) {
	AssertTrue(t.Machine.InstallProgram(name, image, okBody))
}

// expectReject asserts that exec'ing name fails to load.
func (t *LoaderTest) expectReject(name string) {
	ExpectEq(gokern.TidError, t.Machine.Exec(name))
}

func (t *LoaderTest) WellFormedImageLoads() {
	t.install("ok", kerntesting.StandardImage())

	tid := t.Machine.Exec("ok")
	AssertNe(gokern.TidError, tid)
	ExpectEq(0, t.Machine.Wait(tid))
}

func (t *LoaderTest) BadMagic() {
	t.install("badmagic", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry:    kerntesting.TextBase,
		BadMagic: true,
		Segments: []kerntesting.Segment{
			{Vaddr: kerntesting.TextBase, Data: []byte("code")},
		},
	}))

	t.expectReject("badmagic")
}

func (t *LoaderTest) WrongMachine() {
	t.install("wrongmach", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry:   kerntesting.TextBase,
		Machine: 8, // MIPS
		Segments: []kerntesting.Segment{
			{Vaddr: kerntesting.TextBase, Data: []byte("code")},
		},
	}))

	t.expectReject("wrongmach")
}

func (t *LoaderTest) WrongType() {
	t.install("wrongtype", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry: kerntesting.TextBase,
		Type:  3, // DYN
		Segments: []kerntesting.Segment{
			{Vaddr: kerntesting.TextBase, Data: []byte("code")},
		},
	}))

	t.expectReject("wrongtype")
}

func (t *LoaderTest) WrongVersion() {
	t.install("wrongver", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry:   kerntesting.TextBase,
		Version: 2,
		Segments: []kerntesting.Segment{
			{Vaddr: kerntesting.TextBase, Data: []byte("code")},
		},
	}))

	t.expectReject("wrongver")
}

func (t *LoaderTest) DynamicSegmentRejected() {
	t.install("dynamic", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry: kerntesting.TextBase,
		Segments: []kerntesting.Segment{
			{Vaddr: kerntesting.TextBase, Data: []byte("code")},
			{Type: 2, Vaddr: kerntesting.DataBase, Data: []byte("dyn")},
		},
	}))

	t.expectReject("dynamic")
}

func (t *LoaderTest) InterpSegmentRejected() {
	t.install("interp", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry: kerntesting.TextBase,
		Segments: []kerntesting.Segment{
			{Type: 3, Vaddr: kerntesting.TextBase, Data: []byte("/lib/ld")},
		},
	}))

	t.expectReject("interp")
}

func (t *LoaderTest) NoteSegmentIgnored() {
	t.install("withnote", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry: kerntesting.TextBase,
		Segments: []kerntesting.Segment{
			{Vaddr: kerntesting.TextBase, Data: []byte("code")},
			{Type: 4, Vaddr: 0, Data: nil},
		},
	}))

	tid := t.Machine.Exec("withnote")
	AssertNe(gokern.TidError, tid)
	ExpectEq(0, t.Machine.Wait(tid))
}

func (t *LoaderTest) PageZeroRejected() {
	t.install("pagezero", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry: 0x100,
		Segments: []kerntesting.Segment{
			{Vaddr: 0x100, Data: []byte("code")},
		},
	}))

	t.expectReject("pagezero")
}

func (t *LoaderTest) SegmentReachingIntoKernelRejected() {
	t.install("intokernel", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry: 0xBFFFF000,
		Segments: []kerntesting.Segment{
			{Vaddr: 0xBFFFF000, Data: []byte("code"), MemSize: 0x2000},
		},
	}))

	t.expectReject("intokernel")
}

func (t *LoaderTest) MemSizeSmallerThanFileSizeRejected() {
	t.install("shrunk", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry: kerntesting.TextBase,
		Segments: []kerntesting.Segment{
			{Vaddr: kerntesting.TextBase, Data: []byte("0123456789"), MemSize: 4},
		},
	}))

	t.expectReject("shrunk")
}

func (t *LoaderTest) EmptySegmentRejected() {
	t.install("empty", kerntesting.BuildExec(kerntesting.ExecSpec{
		Entry: kerntesting.TextBase,
		Segments: []kerntesting.Segment{
			{Vaddr: kerntesting.TextBase},
		},
	}))

	t.expectReject("empty")
}

func (t *LoaderTest) PhoffBeyondFileRejected() {
	img := kerntesting.StandardImage()
	binary.LittleEndian.PutUint32(img[28:], uint32(len(img))+1000)
	t.install("badphoff", img)

	t.expectReject("badphoff")
}

func (t *LoaderTest) TooManyProgramHeadersRejected() {
	img := kerntesting.StandardImage()
	binary.LittleEndian.PutUint16(img[44:], 2000)
	t.install("manyphdrs", img)

	t.expectReject("manyphdrs")
}

func (t *LoaderTest) TruncatedSegmentRejected() {
	// Chop the tail off the text segment so the claimed p_filesz can't be
	// read in full.
	img := kerntesting.StandardImage()
	t.install("truncated", img[:len(img)-10])

	t.expectReject("truncated")
}

func (t *LoaderTest) OverlappingSegmentsPromoteWritable() {
	// Two segments in the same page: read-only first, then writable. The
	// shared page must end up writable, never demoted back.
	t.Machine.InstallProgram(
		"overlap",
		kerntesting.BuildExec(kerntesting.ExecSpec{
			Entry: kerntesting.TextBase,
			Segments: []kerntesting.Segment{
				{Vaddr: kerntesting.TextBase, Data: []byte("read-only half")},
				{Vaddr: kerntesting.TextBase + 0x800, Data: []byte("writable half"), Writable: true},
			},
		}),
		func(ctx *gokern.UserContext) int32 {
			// The page was promoted, so both halves accept user stores.
			ctx.Store(kerntesting.TextBase+0x800, []byte("scribble"))
			ctx.Store(kerntesting.TextBase, []byte("scribble"))
			return 0
		})

	tid := t.Machine.Exec("overlap")
	AssertNe(gokern.TidError, tid)
	ExpectEq(0, t.Machine.Wait(tid))
}

func (t *LoaderTest) ReadOnlyTextFaultsOnStore() {
	t.Machine.InstallProgram("roscribble", kerntesting.StandardImage(),
		func(ctx *gokern.UserContext) int32 {
			ctx.Store(kerntesting.TextBase, []byte("scribble"))

			// Should not have survived the store.
			return 1
		})

	tid := t.Machine.Exec("roscribble")
	AssertNe(gokern.TidError, tid)
	ExpectEq(-1, t.Machine.Wait(tid))
}

////////////////////////////////////////////////////////////////////////
// Out of memory
////////////////////////////////////////////////////////////////////////

type LoaderOOMTest struct {
	kerntesting.KernelTest
}

func init() { RegisterTestSuite(&LoaderOOMTest{}) }

func (t *LoaderOOMTest) SetUp(ti *TestInfo) {
	// Two user pages: the standard image needs a text page, a data page and
	// a stack page.
	t.Config = cfg.MachineConfig{UserMemory: 2 * vmem.PGSize}
	t.KernelTest.SetUp(ti)
}

func (t *LoaderOOMTest) LoadFailsCleanly() {
	AssertTrue(t.Machine.InstallProgram("hog", kerntesting.StandardImage(), okBody))

	ExpectEq(gokern.TidError, t.Machine.Exec("hog"))

	// The partial load must have unwound its pages.
	ExpectTrue(eventually(func() bool {
		return t.Machine.UserPagesInUse() == 0
	}))
}
