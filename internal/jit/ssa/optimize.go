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

package ssa

import (
    `fmt`
    `os`
    `path/filepath`
)

type Pass interface {
    Apply(*CFG)
}

type PassDescriptor struct {
    Pass Pass
    Name string
}

var Passes = [...]PassDescriptor {
    { Name: "Alias Classification"         , Pass: new(AliasClass) },
    { Name: "Redundancy Elimination"       , Pass: new(CSE) },
    { Name: "Dead Definition Elimination"  , Pass: new(TDCE) },
    { Name: "Catch Entry Synchronization"  , Pass: new(CatchSync) },
}

// Optimize runs the mid-level optimization passes over a frozen graph, in
// place. Every pass runs exactly once; the graph invariants are re-verified
// after each one, and any violation panics with a ContractViolation that
// aborts the whole compilation of the unit.
func Optimize(cfg *CFG) {
    if !cfg.frozen {
        panic(ContractViolation { Reason: "optimize: graph is not frozen" })
    }

    /* run every pass exactly once */
    for i, p := range Passes {
        p.Pass.Apply(cfg)
        verifyGraph(cfg, p.Name)

        /* optional textual dump per pass */
        if cfg.Opts.DumpDir != "" {
            fn := filepath.Join(cfg.Opts.DumpDir, fmt.Sprintf("pass_%d.txt", i))
            _ = os.WriteFile(fn, []byte(cfg.String()), 0644)
        }
    }
}
