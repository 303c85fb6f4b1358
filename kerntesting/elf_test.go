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
	"encoding/binary"
	"testing"

	"github.com/gokern/gokern/vmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExecHeader(t *testing.T) {
	img := BuildExec(ExecSpec{
		Entry: 0x08048000,
		Segments: []Segment{
			{Vaddr: 0x08048000, Data: []byte("code")},
		},
	})

	require.GreaterOrEqual(t, len(img), ehdrSize+phdrSize)

	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F', 1, 1, 1}, img[:7])
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(img[16:]))  // e_type
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(img[18:]))  // e_machine
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(img[20:]))  // e_version
	assert.Equal(t, uint32(0x08048000), binary.LittleEndian.Uint32(img[24:]))
	assert.Equal(t, uint32(ehdrSize), binary.LittleEndian.Uint32(img[28:])) // e_phoff
	assert.Equal(t, uint16(phdrSize), binary.LittleEndian.Uint16(img[42:]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(img[44:])) // e_phnum
}

func TestBuildExecOffsetCongruence(t *testing.T) {
	img := BuildExec(ExecSpec{
		Entry: 0x08048123,
		Segments: []Segment{
			{Vaddr: 0x08048123, Data: []byte("blob")},
		},
	})

	phdr := img[ehdrSize:]
	offset := binary.LittleEndian.Uint32(phdr[4:])
	vaddr := binary.LittleEndian.Uint32(phdr[8:])

	assert.Equal(t, vaddr&vmem.PGMask, offset&vmem.PGMask)
	require.Greater(t, len(img), int(offset)+3)
	assert.Equal(t, []byte("blob"), img[offset:offset+4])
}

func TestBuildExecBadMagic(t *testing.T) {
	img := BuildExec(ExecSpec{BadMagic: true})
	assert.NotEqual(t, byte('E'), img[1])
}

func TestBuildExecSegmentFlags(t *testing.T) {
	img := BuildExec(ExecSpec{
		Segments: []Segment{
			{Vaddr: 0x08048000, Data: []byte("ro")},
			{Vaddr: 0x08049000, MemSize: vmem.PGSize, Writable: true},
		},
	})

	first := img[ehdrSize:]
	second := img[ehdrSize+phdrSize:]

	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(first[24:]))  // R+X
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(second[24:])) // R+W+X
	assert.Equal(t, uint32(vmem.PGSize), binary.LittleEndian.Uint32(second[20:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(second[16:])) // filesz
}

func TestStandardImageShape(t *testing.T) {
	img := StandardImage()

	require.Greater(t, len(img), ehdrSize+2*phdrSize)
	assert.Equal(t, uint32(TextBase), binary.LittleEndian.Uint32(img[24:]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(img[44:])) // two segments
}
