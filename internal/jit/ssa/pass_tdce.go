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

// TDCE removes trivially dead definitions: side-effect-free instructions
// whose use lists emptied, typically after loads were forwarded away.
// Removing one definition may orphan its operands, so it iterates until
// nothing changes.
type TDCE struct{}

func (TDCE) Apply(cfg *CFG) {
    for {
        done := true

        /* sweep bottom-up so consumers go before their operands */
        cfg.PostOrder().ForEach(func(bb *BasicBlock) {
            ins := append([]Ref(nil), bb.Ins...)

            /* drop the dead ones */
            for _, r := range ins {
                if deadins(cfg, r) {
                    cfg.Detach(r)
                    done = false
                }
            }
        })

        /* no more modifications */
        if done {
            break
        }
    }
}

// deadins reports whether the instruction can be discarded outright: it
// must define a value nobody consumes, and it must not be able to trap,
// throw or write memory.
func deadins(cfg *CFG, r Ref) bool {
    if len(cfg.UsesOf(r)) != 0 {
        return false
    }
    switch cfg.At(r).Op {
        case OpUnary     : fallthrough
        case OpBinary    : fallthrough
        case OpLoadField : fallthrough
        case OpRedef     : fallthrough
        case OpMoveArg   : fallthrough
        case OpPhi       : return true
        default          : return false
    }
}
