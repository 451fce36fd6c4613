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

// CSE performs dominator-based redundancy elimination: pure computations are
// value-numbered along the dominator tree, and field loads are forwarded or
// deduplicated subject to the aliasing verdicts (see pass_loadforward.go).
//
// The value table is scoped to the dominator walk: facts added while
// visiting a subtree are rolled back when leaving it, so nothing ever leaks
// across dominator-tree siblings.
type CSE struct{}

func (self CSE) Apply(cfg *CFG) {
    if cfg.Identity == nil {
        panic(ContractViolation { Pass: "CSE", Reason: "alias classification must run first" })
    }

    /* every store in the graph, keyed by canonical (receiver, slot) and
     * mapped to the owning blocks: a load from an unaliased allocation with
     * no store anywhere still yields the default field value, and merge
     * pruning needs to know where the stores live */
    stores := make(map[_LoadKey][]int)
    for r := Ref(0); int(r) < len(cfg.Arena); r++ {
        if p := cfg.At(r); p.Op == OpStoreField && p.Blk >= 0 {
            key := _LoadKey { recv: cfg.Canon(p.Args[0]), slot: p.Slot }
            stores[key] = append(stores[key], p.Blk)
        }
    }

    /* walk the dominator tree from the entry */
    self.visit(cfg, newValueTable(), stores, cfg.Root)
}

func (self CSE) visit(cfg *CFG, t *_ValueTable, stores map[_LoadKey][]int, bb *BasicBlock) {
    m := t.mark()

    /* the inherited facts describe the idom chain only: entering a block
     * that merges other paths, or a catch entry, re-validates the memory
     * facts first; the drops are undo-logged like any table mutation */
    if len(bb.Pred) != 1 || bb.Catch != nil {
        pruneMergeFacts(cfg, t, stores, bb)
    }
    self.block(cfg, t, stores, bb)

    /* children observe this block's facts, siblings do not */
    for _, d := range cfg.DominatorOf[bb.Id] {
        self.visit(cfg, t, stores, d)
    }
    t.rollback(m)
}

func (self CSE) block(cfg *CFG, t *_ValueTable, stores map[_LoadKey][]int, bb *BasicBlock) {
    ins := append([]Ref(nil), bb.Ins...)

    /* process every instruction in order; elimination detaches from bb.Ins,
     * the snapshot keeps the iteration stable */
    for _, r := range ins {
        p := cfg.At(r)
        switch p.Op {
            default: {
                break
            }

            /* field accesses and barriers */
            case OpLoadField  : forwardLoad(cfg, t, stores, r)
            case OpStoreField : applyStore(cfg, t, r)
            case OpCall       : clobberCall(cfg, t)

            /* pure computations */
            case OpUnary: fallthrough
            case OpBinary: {
                vid := vidof(p)
                if d, ok := t.exprs[vid]; ok {
                    cfg.ReplaceAllUses(r, d)
                    cfg.Detach(r)
                } else {
                    t.addExpr(vid, r)
                }
            }
        }
    }
}

// vidof builds the canonical value signature of a pure computation.
// Commutative operands are sorted, so both operand orders value-number to
// the same dominating definition.
func vidof(p *Ir) string {
    switch p.Op {
        case OpUnary: {
            return fmt.Sprintf("(%s %d)", p.Un, p.Args[0])
        }
        case OpBinary: {
            x, y := p.Args[0], p.Args[1]
            if p.Bin.IsCommutative() && x > y {
                x, y = y, x
            }
            return fmt.Sprintf("(%s %d %d)", p.Bin, x, y)
        }
        default: {
            panic(ContractViolation { Pass: "CSE", Reason: "vidof: not a pure computation" })
        }
    }
}

/** Scoped Value Table **/

type _LoadKey struct {
    recv Ref
    slot Slot
}

const (
    _U_exprAdd uint8 = iota
    _U_loadSet
)

type _Undo struct {
    kind uint8
    vid  string
    key  _LoadKey
    old  Ref    // previous mapping of the key, Nil when absent
}

type _ValueTable struct {
    exprs map[string]Ref
    loads map[_LoadKey]Ref
    undo  []_Undo
}

func newValueTable() *_ValueTable {
    return &_ValueTable {
        exprs: make(map[string]Ref),
        loads: make(map[_LoadKey]Ref),
    }
}

func (self *_ValueTable) mark() int {
    return len(self.undo)
}

func (self *_ValueTable) addExpr(vid string, r Ref) {
    self.exprs[vid] = r
    self.undo = append(self.undo, _Undo { kind: _U_exprAdd, vid: vid })
}

func (self *_ValueTable) setLoad(key _LoadKey, r Ref) {
    old := Nil
    if v, ok := self.loads[key]; ok {
        old = v
    }
    self.loads[key] = r
    self.undo = append(self.undo, _Undo { kind: _U_loadSet, key: key, old: old })
}

func (self *_ValueTable) delLoad(key _LoadKey) {
    if v, ok := self.loads[key]; ok {
        delete(self.loads, key)
        self.undo = append(self.undo, _Undo { kind: _U_loadSet, key: key, old: v })
    }
}

// rollback undoes every table mutation made after the mark, restoring the
// facts that were visible when the subtree was entered.
func (self *_ValueTable) rollback(m int) {
    for i := len(self.undo) - 1; i >= m; i-- {
        switch u := self.undo[i]; u.kind {
            case _U_exprAdd: {
                delete(self.exprs, u.vid)
            }
            case _U_loadSet: {
                if u.old == Nil {
                    delete(self.loads, u.key)
                } else {
                    self.loads[u.key] = u.old
                }
            }
        }
    }
    self.undo = self.undo[:m]
}
