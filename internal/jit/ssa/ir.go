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

// Ref is a stable handle of an instruction within the CFG arena.
//
// Instructions never move once emitted, so a Ref stays valid for the whole
// lifetime of the graph, detached instructions included.
type Ref int32

// Nil denotes "no instruction", e.g. a pruned catch-entry parameter slot.
const Nil Ref = -1

type Op uint8

const (
    OpParam Op = iota    // function or catch-entry parameter, Iv is the environment slot index
    OpConst              // interned integer constant, Iv is the value, Ptr marks the null reference
    OpAlloc              // heap allocation of class Cls
    OpLoadField          // Args[0].Slot
    OpStoreField         // Args[0].Slot = Args[1]
    OpUnary              // pure unary computation
    OpBinary             // pure binary computation
    OpCheckNull          // alias-preserving null check of Args[0]
    OpRedef              // alias-preserving explicit redefinition of Args[0]
    OpAssertType         // alias-preserving type assertion of Args[0]
    OpMoveArg            // argument-passing wrapper around Args[0]
    OpCall               // call with unknown side effects, Args are the arguments
    OpPhi                // value merge, Args parallel to the block predecessor list
    OpGoto               // unconditional transfer to To[0]
    OpBranch             // transfer to To[0] if Args[0] is non-zero, To[1] otherwise
    OpReturn             // return Args[0] to the caller
    OpThrow              // raise Args[0] as an exception
)

func (self Op) String() string {
    switch self {
        case OpParam      : return "param"
        case OpConst      : return "const"
        case OpAlloc      : return "alloc"
        case OpLoadField  : return "load"
        case OpStoreField : return "store"
        case OpUnary      : return "unary"
        case OpBinary     : return "binary"
        case OpCheckNull  : return "chknull"
        case OpRedef      : return "redef"
        case OpAssertType : return "asserttype"
        case OpMoveArg    : return "movearg"
        case OpCall       : return "call"
        case OpPhi        : return "phi"
        case OpGoto       : return "goto"
        case OpBranch     : return "branch"
        case OpReturn     : return "ret"
        case OpThrow      : return "throw"
        default           : return fmt.Sprintf("op_%d", uint8(self))
    }
}

type BinOp uint8

const (
    BinAdd BinOp = iota
    BinSub
    BinMul
    BinAnd
    BinOr
    BinXor
    BinCmpEq
    BinCmpNe
    BinCmpLt
)

func (self BinOp) String() string {
    switch self {
        case BinAdd   : return "add"
        case BinSub   : return "sub"
        case BinMul   : return "mul"
        case BinAnd   : return "and"
        case BinOr    : return "or"
        case BinXor   : return "xor"
        case BinCmpEq : return "eq"
        case BinCmpNe : return "ne"
        case BinCmpLt : return "lt"
        default       : return fmt.Sprintf("bin_%d", uint8(self))
    }
}

// IsCommutative indicates whether the operand order of the operation is
// irrelevant, which allows value numbering to canonicalize it.
func (self BinOp) IsCommutative() bool {
    switch self {
        case BinAdd   : fallthrough
        case BinMul   : fallthrough
        case BinAnd   : fallthrough
        case BinOr    : fallthrough
        case BinXor   : fallthrough
        case BinCmpEq : fallthrough
        case BinCmpNe : return true
        default       : return false
    }
}

type UnOp uint8

const (
    UnNeg UnOp = iota
    UnNot
)

func (self UnOp) String() string {
    switch self {
        case UnNeg : return "neg"
        case UnNot : return "not"
        default    : return fmt.Sprintf("un_%d", uint8(self))
    }
}

// ClassID identifies the static class / object shape of an allocation.
type ClassID int32

// Slot is the abstract (object shape, field index) key that identifies a
// field for aliasing purposes. Two slots alias iff they are exactly equal.
type Slot struct {
    Class ClassID
    Field int32
}

func (self Slot) String() string {
    return fmt.Sprintf("c%d.f%d", self.Class, self.Field)
}

// CallEffects is a bit set describing what a callee is proven NOT to do.
// Anything not proven stays at the conservative default.
type CallEffects uint8

const (
    // CallNoCapture marks a callee that is proven not to retain or
    // publish any of its arguments.
    CallNoCapture CallEffects = 1 << iota
)

// Ir is a single instruction. The whole instruction set is a closed variant
// keyed on Op; analyses are expected to switch exhaustively over it rather
// than dispatch virtually.
type Ir struct {
    Op   Op
    Bin  BinOp          // OpBinary only
    Un   UnOp           // OpUnary only
    Cls  ClassID        // OpAlloc only
    Slot Slot           // OpLoadField / OpStoreField only
    Eff  CallEffects    // OpCall only
    Ptr  bool           // OpConst only, constant is the null reference
    Iv   int64          // OpConst value / OpParam slot index
    Args []Ref          // value operands
    Env  []Ref          // environment snapshot, indexed by slot, Nil = unobservable
    To   []int          // successor block ids, terminators only
    Blk  int            // owning block id, -1 once detached
}

// IsPure indicates a side-effect-free computation that is a candidate for
// common sub-expression elimination.
func (self *Ir) IsPure() bool {
    switch self.Op {
        case OpConst  : fallthrough
        case OpUnary  : fallthrough
        case OpBinary : return true
        default       : return false
    }
}

// IsAliasPreserving indicates a definition whose runtime identity is exactly
// that of its single operand: it wraps an object without creating a new one.
func (self *Ir) IsAliasPreserving() bool {
    switch self.Op {
        case OpCheckNull  : fallthrough
        case OpRedef      : fallthrough
        case OpAssertType : return true
        default           : return false
    }
}

func (self *Ir) IsAllocation() bool {
    return self.Op == OpAlloc
}

func (self *Ir) IsTerminator() bool {
    switch self.Op {
        case OpGoto   : fallthrough
        case OpBranch : fallthrough
        case OpReturn : fallthrough
        case OpThrow  : return true
        default       : return false
    }
}

// SlotKey returns the slot accessed by a load or store, if any.
func (self *Ir) SlotKey() (Slot, bool) {
    switch self.Op {
        case OpLoadField  : fallthrough
        case OpStoreField : return self.Slot, true
        default           : return Slot{}, false
    }
}

// CanThrow indicates an instruction that may transfer control to the catch
// entry of its enclosing protected region.
func (self *Ir) CanThrow() bool {
    switch self.Op {
        case OpCall       : fallthrough
        case OpThrow      : fallthrough
        case OpCheckNull  : fallthrough
        case OpAssertType : return true
        default           : return false
    }
}

// IsDefinition indicates whether the instruction produces an SSA value.
func (self *Ir) IsDefinition() bool {
    switch self.Op {
        case OpStoreField : fallthrough
        case OpGoto       : fallthrough
        case OpBranch     : fallthrough
        case OpReturn     : fallthrough
        case OpThrow      : return false
        default           : return true
    }
}

// Identity is the aliasing verdict of a heap allocation. It is computed once
// per analysis run and may only move Unaliased -> Aliased, never back.
type Identity uint8

const (
    IdUnknown Identity = iota
    IdUnaliased
    IdAliased
)

func (self Identity) String() string {
    switch self {
        case IdUnaliased : return "unaliased"
        case IdAliased   : return "aliased"
        default          : return "unknown"
    }
}
