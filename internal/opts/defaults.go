/*
 * Copyright 2023 Kestrel Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package opts

import (
	"os"
	"strconv"
)

const (
	_DefaultMaxSyncIters = 64 // cutoff for the catch-entry fixed point
)

var (
	MaxSyncIters = parseOrDefault("KESTREL_MAX_SYNC_ITERS", _DefaultMaxSyncIters, 1)
	DumpDir      = os.Getenv("KESTREL_DUMP_CFG")
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("kestrel: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("kestrel: value too small for " + key)
	} else {
		return ret
	}
}
