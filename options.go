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

package kestrel

import (
    `fmt`

    `github.com/kestrel-lang/kestrel/internal/opts`
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithMaxSyncIters bounds the fixed-point iteration of catch-entry
// synchronization minimization. When the bound is hit before the iteration
// stabilizes, the pass keeps every parameter instead of guessing.
//
// This value can also be configured with the `KESTREL_MAX_SYNC_ITERS`
// environment variable. The default value of this option is "64".
func WithMaxSyncIters(n int) Option {
    if n <= 0 {
        panic(fmt.Sprintf("kestrel: invalid sync iteration bound: %d", n))
    } else {
        return func(o *opts.Options) { o.MaxSyncIters = n }
    }
}

// WithDumpDir makes every pass write a textual dump of the graph into the
// given directory, for debugging only.
//
// This value can also be configured with the `KESTREL_DUMP_CFG` environment
// variable. Dumping is disabled by default.
func WithDumpDir(dir string) Option {
    return func(o *opts.Options) { o.DumpDir = dir }
}
