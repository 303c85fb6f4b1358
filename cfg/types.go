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
	"fmt"
	"strconv"
	"strings"
)

// LogSeverity is one of the recognized severity names, upper-cased.
type LogSeverity string

const (
	TraceSeverity   LogSeverity = "TRACE"
	DebugSeverity   LogSeverity = "DEBUG"
	InfoSeverity    LogSeverity = "INFO"
	WarningSeverity LogSeverity = "WARNING"
	ErrorSeverity   LogSeverity = "ERROR"
	OffSeverity     LogSeverity = "OFF"
)

var severityRanking = map[LogSeverity]int{
	TraceSeverity:   0,
	DebugSeverity:   1,
	InfoSeverity:    2,
	WarningSeverity: 3,
	ErrorSeverity:   4,
	OffSeverity:     5,
}

func (s LogSeverity) validate() error {
	if _, ok := severityRanking[s]; !ok {
		return fmt.Errorf("invalid log severity: %q", string(s))
	}

	return nil
}

// Rank orders severities for comparison; higher is more severe.
func (s LogSeverity) Rank() int {
	r, ok := severityRanking[s]
	if !ok {
		panic(fmt.Sprintf("Unvalidated severity: %q", string(s)))
	}

	return r
}

// ByteSize is a byte count that unmarshals from strings like "512K", "4M"
// or plain integers.
type ByteSize int64

// ParseByteSize parses the textual form of a ByteSize.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("negative byte size: %d", n)
	}

	return ByteSize(n * mult), nil
}

func (b ByteSize) String() string {
	switch {
	case b != 0 && b%(1<<30) == 0:
		return fmt.Sprintf("%dG", int64(b)>>30)
	case b != 0 && b%(1<<20) == 0:
		return fmt.Sprintf("%dM", int64(b)>>20)
	case b != 0 && b%(1<<10) == 0:
		return fmt.Sprintf("%dK", int64(b)>>10)
	default:
		return strconv.FormatInt(int64(b), 10)
	}
}
