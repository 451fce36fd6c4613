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
    `github.com/kestrel-lang/kestrel/internal/opts`
)

// Use is one def-use edge. Idx >= 0 addresses Args[Idx] of the consuming
// instruction; a negative Idx addresses the environment snapshot at slot
// ^Idx, which lets analyses tell real uses from reconstruction metadata.
type Use struct {
    Ins Ref
    Idx int32
}

// IsEnv reports whether this edge is an environment use.
func (self Use) IsEnv() bool {
    return self.Idx < 0
}

// EnvSlot returns the environment slot index of an environment use.
func (self Use) EnvSlot() int {
    return int(^self.Idx)
}

func envidx(slot int) int32 {
    return ^int32(slot)
}

// CFG is a flow graph in SSA form. All instructions live in a single arena
// owned by the graph; blocks and def-use edges address them by Ref. Nothing
// is freed mid-pass: removal unlinks the instruction and marks it detached,
// and the whole arena is dropped with the graph.
type CFG struct {
    Opts     opts.Options
    Root     *BasicBlock
    Blocks   []*BasicBlock
    Arena    []Ir
    Uses     [][]Use
    Tries    []*TryRegion
    Scope    *Scope
    ConstIns []Ref

    // Identity is the per-allocation aliasing verdict, indexed by Ref.
    // It is populated by the alias classification pass and persisted for
    // later escape-sensitive consumers.
    Identity []Identity

    DominatedBy map[int]*BasicBlock
    DominatorOf map[int][]*BasicBlock
    Depth       map[int]int

    consts map[int64]Ref
    null   Ref
    frozen bool
}

func NewCFG() *CFG {
    cfg := &CFG {
        null   : Nil,
        consts : make(map[int64]Ref),
        Opts   : opts.GetDefaultOptions(),
    }
    cfg.Root = cfg.NewBlock()
    return cfg
}

func (self *CFG) NewBlock() *BasicBlock {
    bb := &BasicBlock {
        Id   : len(self.Blocks),
        Try  : -1,
        Term : Nil,
    }
    self.Blocks = append(self.Blocks, bb)
    return bb
}

// NewTry creates a protected region with a fresh catch-entry block carrying
// one parameter placeholder for each of the nslots environment slots.
func (self *CFG) NewTry(nslots int) (int, *BasicBlock) {
    bb := self.NewBlock()
    ri := len(self.Tries)

    /* catch-entry parameters, one per slot */
    ce := &CatchEntry {
        Region : ri,
        Params : make([]Ref, nslots),
    }

    /* emit the parameter placeholders */
    for i := 0; i < nslots; i++ {
        ce.Params[i] = self.emit(bb, Ir { Op: OpParam, Iv: int64(i) })
    }

    /* register the region */
    bb.Catch = ce
    self.Tries = append(self.Tries, &TryRegion { Catch: bb })
    return ri, bb
}

func (self *CFG) At(r Ref) *Ir {
    return &self.Arena[r]
}

func (self *CFG) UsesOf(r Ref) []Use {
    return self.Uses[r]
}

// IsDetached reports whether the instruction has been unlinked from the graph.
func (self *CFG) IsDetached(r Ref) bool {
    return self.Arena[r].Blk < 0
}

func (self *CFG) alloc(p Ir) Ref {
    r := Ref(len(self.Arena))
    self.Arena = append(self.Arena, p)
    self.Uses = append(self.Uses, nil)
    return r
}

func (self *CFG) emit(bb *BasicBlock, p Ir) Ref {
    p.Blk = bb.Id
    r := self.alloc(p)

    /* record the def-use edges */
    for i, a := range self.Arena[r].Args {
        if a != Nil {
            self.adduse(a, r, int32(i))
        }
    }

    /* append to the block body */
    bb.Ins = append(bb.Ins, r)
    return r
}

func (self *CFG) adduse(def Ref, ins Ref, idx int32) {
    self.Uses[def] = append(self.Uses[def], Use { Ins: ins, Idx: idx })
}

func (self *CFG) deluse(def Ref, ins Ref, idx int32) {
    for i, u := range self.Uses[def] {
        if u.Ins == ins && u.Idx == idx {
            self.Uses[def] = append(self.Uses[def][:i], self.Uses[def][i + 1:]...)
            return
        }
    }
    panic(ContractViolation { Reason: "deluse: dangling def-use edge" })
}

// SetArg redirects operand i of ins to def, maintaining the use lists.
func (self *CFG) SetArg(ins Ref, i int, def Ref) {
    p := self.At(ins)

    /* unlink the old edge if any */
    if old := p.Args[i]; old != Nil {
        self.deluse(old, ins, int32(i))
    }

    /* link the new one */
    p.Args[i] = def
    if def != Nil {
        self.adduse(def, ins, int32(i))
    }
}

// SetEnv attaches an environment snapshot to a throwing instruction. The
// slice is slot-indexed; Nil slots mean the variable is not observable at
// this point and needs no synchronization.
func (self *CFG) SetEnv(ins Ref, env []Ref) {
    p := self.At(ins)

    /* drop the previous snapshot */
    for i, d := range p.Env {
        if d != Nil {
            self.deluse(d, ins, envidx(i))
        }
    }

    /* record the new one */
    p.Env = env
    for i, d := range env {
        if d != Nil {
            self.adduse(d, ins, envidx(i))
        }
    }
}

// SetEnvAt rewrites a single environment slot of ins.
func (self *CFG) SetEnvAt(ins Ref, slot int, def Ref) {
    p := self.At(ins)

    /* unlink the old edge if any */
    if old := p.Env[slot]; old != Nil {
        self.deluse(old, ins, envidx(slot))
    }

    /* link the new one */
    p.Env[slot] = def
    if def != Nil {
        self.adduse(def, ins, envidx(slot))
    }
}

// ReplaceAllUses rewires every consumer of old, environments included, to
// refer to rep instead.
func (self *CFG) ReplaceAllUses(old Ref, rep Ref) {
    if old == rep {
        return
    }

    /* move every edge over to the replacement */
    for _, u := range self.Uses[old] {
        if p := self.At(u.Ins); u.IsEnv() {
            p.Env[u.EnvSlot()] = rep
        } else {
            p.Args[u.Idx] = rep
        }
        self.Uses[rep] = append(self.Uses[rep], u)
    }

    /* the old definition no longer has any consumers */
    self.Uses[old] = nil
}

// Detach logically removes an instruction: it is unlinked from its block and
// from the use lists of its operands, but stays in the arena, so its Ref
// remains valid (and observably detached) for diagnostics.
func (self *CFG) Detach(r Ref) {
    p := self.At(r)

    /* contract: never detach a definition that still has consumers */
    if len(self.Uses[r]) != 0 {
        panic(ContractViolation { Reason: "detach: definition still has uses" })
    }

    /* drop the operand edges */
    for i, a := range p.Args {
        if a != Nil {
            self.deluse(a, r, int32(i))
        }
    }

    /* drop the environment edges */
    for i, d := range p.Env {
        if d != Nil {
            self.deluse(d, r, envidx(i))
        }
    }

    /* unlink from the owning block */
    bb := self.Blocks[p.Blk]
    for i, x := range bb.Ins {
        if x == r {
            bb.Ins = append(bb.Ins[:i], bb.Ins[i + 1:]...)
            break
        }
    }

    /* clear the catch-entry parameter slot if it is one */
    if bb.Catch != nil && p.Op == OpParam {
        if i := int(p.Iv); i < len(bb.Catch.Params) && bb.Catch.Params[i] == r {
            bb.Catch.Params[i] = Nil
        }
    }

    /* mark as detached */
    p.Args = nil
    p.Env = nil
    p.Blk = -1
}

// Canon follows alias-preserving wrapper chains down to the definition that
// actually owns the runtime identity.
func (self *CFG) Canon(r Ref) Ref {
    for self.At(r).IsAliasPreserving() {
        r = self.At(r).Args[0]
    }
    return r
}

/** Interned Constants **/

func (self *CFG) ConstInt(v int64) Ref {
    if r, ok := self.consts[v]; ok {
        return r
    }
    r := self.alloc(Ir { Op: OpConst, Iv: v, Blk: self.Root.Id })
    self.ConstIns = append(self.ConstIns, r)
    self.consts[v] = r
    return r
}

// ConstNull is the interned null reference, used as the placeholder for
// values that are provably unobservable.
func (self *CFG) ConstNull() Ref {
    if self.null == Nil {
        self.null = self.alloc(Ir { Op: OpConst, Ptr: true, Blk: self.Root.Id })
        self.ConstIns = append(self.ConstIns, self.null)
    }
    return self.null
}

/** Instruction Builders **/

func (self *CFG) AddParam(bb *BasicBlock, slot int) Ref {
    return self.emit(bb, Ir { Op: OpParam, Iv: int64(slot) })
}

func (self *CFG) AddAlloc(bb *BasicBlock, cls ClassID) Ref {
    return self.emit(bb, Ir { Op: OpAlloc, Cls: cls })
}

func (self *CFG) AddLoad(bb *BasicBlock, recv Ref, slot Slot) Ref {
    return self.emit(bb, Ir { Op: OpLoadField, Slot: slot, Args: []Ref { recv } })
}

func (self *CFG) AddStore(bb *BasicBlock, recv Ref, slot Slot, val Ref) Ref {
    return self.emit(bb, Ir { Op: OpStoreField, Slot: slot, Args: []Ref { recv, val } })
}

func (self *CFG) AddUnary(bb *BasicBlock, op UnOp, v Ref) Ref {
    return self.emit(bb, Ir { Op: OpUnary, Un: op, Args: []Ref { v } })
}

func (self *CFG) AddBinary(bb *BasicBlock, op BinOp, x Ref, y Ref) Ref {
    return self.emit(bb, Ir { Op: OpBinary, Bin: op, Args: []Ref { x, y } })
}

func (self *CFG) AddCheckNull(bb *BasicBlock, v Ref) Ref {
    return self.emit(bb, Ir { Op: OpCheckNull, Args: []Ref { v } })
}

func (self *CFG) AddRedef(bb *BasicBlock, v Ref) Ref {
    return self.emit(bb, Ir { Op: OpRedef, Args: []Ref { v } })
}

func (self *CFG) AddAssertType(bb *BasicBlock, v Ref) Ref {
    return self.emit(bb, Ir { Op: OpAssertType, Args: []Ref { v } })
}

func (self *CFG) AddMoveArg(bb *BasicBlock, v Ref) Ref {
    return self.emit(bb, Ir { Op: OpMoveArg, Args: []Ref { v } })
}

func (self *CFG) AddCall(bb *BasicBlock, eff CallEffects, args ...Ref) Ref {
    return self.emit(bb, Ir { Op: OpCall, Eff: eff, Args: args })
}

// AddPhi adds a value merge; args must parallel the predecessor list of bb,
// and may contain Nil placeholders to be patched with SetArg once back-edge
// definitions exist.
func (self *CFG) AddPhi(bb *BasicBlock, args ...Ref) Ref {
    return self.emit(bb, Ir { Op: OpPhi, Args: args })
}

/** Terminators **/

func (self *CFG) setterm(bb *BasicBlock, p Ir) Ref {
    if bb.Term != Nil {
        panic(ContractViolation { Reason: "setterm: block is already terminated" })
    }

    /* emit and unlink from the body: terminators live in bb.Term */
    r := self.emit(bb, p)
    bb.Ins = bb.Ins[:len(bb.Ins) - 1]
    bb.Term = r

    /* link the normal control flow edges */
    for _, id := range self.At(r).To {
        self.Blocks[id].Pred = append(self.Blocks[id].Pred, bb)
    }
    return r
}

func (self *CFG) Goto(bb *BasicBlock, to *BasicBlock) Ref {
    return self.setterm(bb, Ir { Op: OpGoto, To: []int { to.Id } })
}

func (self *CFG) Branch(bb *BasicBlock, cond Ref, then *BasicBlock, els *BasicBlock) Ref {
    return self.setterm(bb, Ir { Op: OpBranch, Args: []Ref { cond }, To: []int { then.Id, els.Id } })
}

func (self *CFG) Return(bb *BasicBlock, v Ref) Ref {
    return self.setterm(bb, Ir { Op: OpReturn, Args: []Ref { v } })
}

func (self *CFG) Throw(bb *BasicBlock, v Ref) Ref {
    return self.setterm(bb, Ir { Op: OpThrow, Args: []Ref { v } })
}

// successors enumerates the control flow successors of bb, the exceptional
// edge to the catch entry of its protected region included.
func (self *CFG) successors(bb *BasicBlock) []*BasicBlock {
    var ret []*BasicBlock

    /* normal edges */
    if bb.Term != Nil {
        for _, id := range self.At(bb.Term).To {
            ret = append(ret, self.Blocks[id])
        }
    }

    /* factored exceptional edge */
    if bb.Try >= 0 {
        ret = append(ret, self.Tries[bb.Try].Catch)
    }
    return ret
}

// Freeze completes graph construction: exceptional predecessor edges are
// materialized and the dominator tree is computed. The graph must be frozen
// before any pass runs.
func (self *CFG) Freeze() {
    if self.frozen {
        return
    }

    /* exceptional predecessors, deduplicated per catch entry */
    for _, bb := range self.Blocks {
        if bb.Try >= 0 {
            ce := self.Tries[bb.Try].Catch
            if !blockin(ce.Pred, bb) {
                ce.Pred = append(ce.Pred, bb)
            }
        }
    }

    /* dominator tree over the factored graph */
    self.buildDominatorTree()
    self.frozen = true
}

// Dominates reports whether block a dominates block b.
func (self *CFG) Dominates(a *BasicBlock, b *BasicBlock) bool {
    for b != nil {
        if a.Id == b.Id {
            return true
        }
        b = self.DominatedBy[b.Id]
    }
    return false
}

// Clone deep-copies the graph. The arena representation makes this a flat
// slice copy plus block relinking, which is what lets the optimizer work on
// a snapshot and commit only on success.
func (self *CFG) Clone() *CFG {
    cfg := &CFG {
        Opts     : self.Opts,
        Arena    : make([]Ir, len(self.Arena)),
        Uses     : make([][]Use, len(self.Uses)),
        Blocks   : make([]*BasicBlock, len(self.Blocks)),
        Tries    : make([]*TryRegion, len(self.Tries)),
        Scope    : self.Scope,
        null     : self.null,
        frozen   : self.frozen,
        consts   : make(map[int64]Ref, len(self.consts)),
        ConstIns : append([]Ref(nil), self.ConstIns...),
    }

    /* instructions and use lists */
    for i, p := range self.Arena {
        p.Args = append([]Ref(nil), p.Args...)
        p.Env = append([]Ref(nil), p.Env...)
        p.To = append([]int(nil), p.To...)
        cfg.Arena[i] = p
    }
    for i, u := range self.Uses {
        cfg.Uses[i] = append([]Use(nil), u...)
    }

    /* blocks */
    for i, bb := range self.Blocks {
        nb := *bb
        nb.Ins = append([]Ref(nil), bb.Ins...)
        nb.Pred = nil
        if bb.Catch != nil {
            ce := *bb.Catch
            ce.Params = append([]Ref(nil), bb.Catch.Params...)
            nb.Catch = &ce
        }
        cfg.Blocks[i] = &nb
    }
    for i, bb := range self.Blocks {
        for _, p := range bb.Pred {
            cfg.Blocks[i].Pred = append(cfg.Blocks[i].Pred, cfg.Blocks[p.Id])
        }
    }
    cfg.Root = cfg.Blocks[self.Root.Id]

    /* protected regions */
    for i, tr := range self.Tries {
        cfg.Tries[i] = &TryRegion { Catch: cfg.Blocks[tr.Catch.Id] }
    }

    /* interned constants */
    for v, r := range self.consts {
        cfg.consts[v] = r
    }

    /* identity side table */
    if self.Identity != nil {
        cfg.Identity = append([]Identity(nil), self.Identity...)
    }

    /* dominator tree */
    if self.frozen {
        cfg.buildDominatorTree()
    }
    return cfg
}
