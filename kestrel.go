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
    `github.com/kestrel-lang/kestrel/internal/jit/ssa`
    `github.com/kestrel-lang/kestrel/internal/opts`
)

// Optimize runs the mid-level optimization tier over a flow graph: alias
// classification, dominator-based redundancy elimination with load
// forwarding, dead definition cleanup and catch-entry synchronization
// minimization.
//
// The input graph is never mutated: the passes run on a clone, which is
// returned on success. On an internal consistency failure the clone is
// abandoned wholesale and an *OptimizeError is returned; the caller should
// fall back to the unoptimized graph and recompile without this tier.
func Optimize(cfg *ssa.CFG, options ...Option) (ret *ssa.CFG, err error) {
    opt := opts.GetDefaultOptions()
    for _, o := range options {
        o(&opt)
    }

    /* a failed pass abandons the whole unit, never half-commits */
    defer func() {
        if v := recover(); v != nil {
            ret, err = nil, newOptimizeError(v)
        }
    }()

    /* optimize a snapshot, commit only on success */
    out := cfg.Clone()
    out.Opts = opt
    ssa.Optimize(out)
    return out, nil
}
