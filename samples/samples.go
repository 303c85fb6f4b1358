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

// Package samples collects the user programs used by the tests and the CLI.
// Each subpackage holds one program body; all of them run on the standard
// executable image, whose writable data page they use for strings they pass
// to system calls.
package samples

import (
	"github.com/gokern/gokern"
	"github.com/gokern/gokern/samples/abandon"
	"github.com/gokern/gokern/samples/badbuf"
	"github.com/gokern/gokern/samples/badsyscall"
	"github.com/gokern/gokern/samples/echo"
	"github.com/gokern/gokern/samples/exitcode"
	"github.com/gokern/gokern/samples/filetest"
	"github.com/gokern/gokern/samples/launcher"
	"github.com/gokern/gokern/samples/nullderef"
	"github.com/gokern/gokern/samples/openclose"
	"github.com/gokern/gokern/samples/readback"
	"github.com/gokern/gokern/samples/writefile"
)

// InstallAll installs every sample program into m.
func InstallAll(m *gokern.Machine) {
	abandon.Install(m)
	badbuf.Install(m)
	badsyscall.Install(m)
	echo.Install(m)
	exitcode.Install(m)
	filetest.Install(m)
	launcher.Install(m)
	nullderef.Install(m)
	openclose.Install(m)
	readback.Install(m)
	writefile.Install(m)
}
