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
	"strings"

	"github.com/mitchellh/mapstructure"
)

// decodeHook converts the string forms that appear in flags and YAML into
// the richer config types.
func decodeHook() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)

		switch t {
		case reflect.TypeOf(ByteSize(0)):
			return ParseByteSize(s)

		case reflect.TypeOf(LogSeverity("")):
			sev := LogSeverity(strings.ToUpper(s))
			if err := sev.validate(); err != nil {
				return nil, err
			}
			return sev, nil
		}

		return data, nil
	}
}
