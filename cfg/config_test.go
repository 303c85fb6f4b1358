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

package cfg

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ByteSize
		ok    bool
	}{
		{"plain_bytes", "4096", 4096, true},
		{"kilo", "64K", 64 << 10, true},
		{"kilo_lower", "64k", 64 << 10, true},
		{"mega", "4M", 4 << 20, true},
		{"giga", "1G", 1 << 30, true},
		{"whitespace", " 8K ", 8 << 10, true},
		{"zero", "0", 0, true},
		{"negative", "-1", 0, false},
		{"junk", "lots", 0, false},
		{"empty", "", 0, false},
		{"suffix_only", "M", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseByteSize(tc.input)

			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestByteSizeString(t *testing.T) {
	assert.Equal(t, "4M", ByteSize(4<<20).String())
	assert.Equal(t, "64K", ByteSize(64<<10).String())
	assert.Equal(t, "1G", ByteSize(1<<30).String())
	assert.Equal(t, "100", ByteSize(100).String())
}

func TestDecodeHook(t *testing.T) {
	hook := decodeHook()
	stringType := reflect.TypeOf("")

	got, err := hook(stringType, reflect.TypeOf(ByteSize(0)), "2M")
	require.NoError(t, err)
	assert.Equal(t, ByteSize(2<<20), got)

	got, err = hook(stringType, reflect.TypeOf(LogSeverity("")), "debug")
	require.NoError(t, err)
	assert.Equal(t, DebugSeverity, got)

	_, err = hook(stringType, reflect.TypeOf(LogSeverity("")), "shouting")
	assert.Error(t, err)

	// Unrelated targets pass through untouched.
	got, err = hook(stringType, stringType, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	c := Default()
	c.Logging.Severity = "LOUD"
	assert.Error(t, c.Validate())

	c = Default()
	c.Logging.Format = "xml"
	assert.Error(t, c.Validate())

	c = Default()
	c.Machine.UserMemory = 100
	assert.Error(t, c.Validate())
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, TraceSeverity.Rank(), DebugSeverity.Rank())
	assert.Less(t, DebugSeverity.Rank(), InfoSeverity.Rank())
	assert.Less(t, InfoSeverity.Rank(), WarningSeverity.Rank())
	assert.Less(t, WarningSeverity.Rank(), ErrorSeverity.Rank())
	assert.Less(t, ErrorSeverity.Rank(), OffSeverity.Rank())
}
