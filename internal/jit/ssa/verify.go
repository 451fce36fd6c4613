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
)

// ContractViolation is an internal consistency failure: a malformed
// precondition or a broken graph invariant. It is fatal to the optimization
// of the current compilation unit; the caller falls back to the unoptimized
// graph and must not retry this tier.
type ContractViolation struct {
    Pass   string
    Reason string
}

func (self ContractViolation) Error() string {
    if self.Pass == "" {
        return "contract violation: " + self.Reason
    } else {
        return fmt.Sprintf("contract violation after %q: %s", self.Pass, self.Reason)
    }
}

func brokenGraph(pass string, format string, args ...interface{}) {
    panic(ContractViolation {
        Pass   : pass,
        Reason : fmt.Sprintf(format, args...),
    })
}

// verifyGraph re-checks the structural invariants every pass must preserve:
// def-use integrity, detached instructions without consumers, and dominance
// of every definition over every one of its uses.
func verifyGraph(cfg *CFG, pass string) {
    if cfg.DominatedBy == nil {
        brokenGraph(pass, "missing dominator tree")
    }

    /* instruction position index for same-block dominance */
    at := make(map[Ref]int, len(cfg.Arena))
    for _, bb := range cfg.Blocks {
        for i, r := range bb.Ins {
            at[r] = i
        }
    }

    /* per-instruction checks */
    for r := Ref(0); int(r) < len(cfg.Arena); r++ {
        p := cfg.At(r)

        /* detached instructions must have no consumers */
        if p.Blk < 0 {
            if len(cfg.Uses[r]) != 0 {
                brokenGraph(pass, "detached %d still has %d uses", r, len(cfg.Uses[r]))
            }
            continue
        }

        /* block membership */
        bb := cfg.Blocks[p.Blk]
        pos, inbody := at[r]
        if !inbody && bb.Term != r && !refin(cfg.ConstIns, r) {
            brokenGraph(pass, "instruction %d is not linked anywhere in bb_%d", r, bb.Id)
        }

        /* every operand must be attached, and must dominate this use */
        for i, a := range p.Args {
            if a == Nil {
                if p.Op != OpPhi {
                    brokenGraph(pass, "nil operand %d of instruction %d", i, r)
                }
                continue
            }
            d := cfg.At(a)
            if d.Blk < 0 {
                brokenGraph(pass, "instruction %d uses detached definition %d", r, a)
            }
            if !useconsistent(cfg, a, r, int32(i)) {
                brokenGraph(pass, "missing def-use edge %d -> %d/%d", a, r, i)
            }
            checkDominance(cfg, pass, at, bb, r, pos, int(i), a)
        }

        /* environment operands only need integrity, not dominance: they are
         * reconstruction metadata resolved at the throw point itself */
        for i, d := range p.Env {
            if d == Nil {
                continue
            }
            if cfg.At(d).Blk < 0 {
                brokenGraph(pass, "environment of %d references detached definition %d", r, d)
            }
            if !useconsistent(cfg, d, r, envidx(i)) {
                brokenGraph(pass, "missing env-use edge %d -> %d/%d", d, r, i)
            }
        }
    }

    /* per-block checks */
    for _, bb := range cfg.Blocks {
        if bb.Term == Nil && len(bb.Ins) != 0 {
            brokenGraph(pass, "bb_%d has no terminator", bb.Id)
        }
        for i, r := range bb.Ins {
            if cfg.At(r).Op == OpPhi && i > 0 && cfg.At(bb.Ins[i - 1]).Op != OpPhi {
                brokenGraph(pass, "phi %d is not at the head of bb_%d", r, bb.Id)
            }
        }
    }
}

// checkDominance verifies that definition a dominates the use at operand i
// of instruction r located in block bb. Interned constants and parameters
// are position-free: they dominate every use inside their block by fiat.
func checkDominance(cfg *CFG, pass string, at map[Ref]int, bb *BasicBlock, r Ref, pos int, i int, a Ref) {
    d := cfg.At(a)
    db := cfg.Blocks[d.Blk]

    /* phi operands must dominate the corresponding predecessor block */
    if cfg.At(r).Op == OpPhi {
        if i >= len(bb.Pred) {
            brokenGraph(pass, "phi %d has more operands than bb_%d has predecessors", r, bb.Id)
        }
        if !cfg.Dominates(db, bb.Pred[i]) {
            brokenGraph(pass, "phi operand %d of %d does not dominate predecessor bb_%d", a, r, bb.Pred[i].Id)
        }
        return
    }

    /* cross-block: plain block dominance */
    if db.Id != bb.Id {
        if !cfg.Dominates(db, bb) {
            brokenGraph(pass, "definition %d does not dominate its use %d", a, r)
        }
        return
    }

    /* same block: the definition must come first, except position-free ones */
    if d.Op == OpConst || d.Op == OpParam {
        return
    }
    dpos, ok := at[a]
    if !ok || (bb.Term != r && dpos >= pos) {
        brokenGraph(pass, "definition %d does not precede its use %d in bb_%d", a, r, bb.Id)
    }
}

func useconsistent(cfg *CFG, def Ref, ins Ref, idx int32) bool {
    for _, u := range cfg.Uses[def] {
        if u.Ins == ins && u.Idx == idx {
            return true
        }
    }
    return false
}

func refin(refs []Ref, r Ref) bool {
    for _, x := range refs {
        if x == r {
            return true
        }
    }
    return false
}
