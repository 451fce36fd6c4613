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
    `testing`

    `github.com/stretchr/testify/require`
)

func TestLoadForward_DuplicateLoads(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    o := cfg.AddParam(b0, 0)
    l1 := cfg.AddLoad(b0, o, fslot(0))
    l2 := cfg.AddLoad(b0, o, fslot(0))
    m1 := cfg.AddMoveArg(b0, l1)
    m2 := cfg.AddMoveArg(b0, l2)
    cfg.AddCall(b0, 0, m1, m2)
    l3 := cfg.AddLoad(b0, o, fslot(0))
    cfg.Return(b0, l3)
    cfg.Freeze()
    Optimize(cfg)

    /* the second load of the same slot is the first one */
    require.False(t, cfg.IsDetached(l1))
    require.True(t, cfg.IsDetached(l2))
    require.Equal(t, l1, cfg.At(m2).Args[0])

    /* the receiver is of unknown provenance, so the call kills the fact */
    require.False(t, cfg.IsDetached(l3))
    require.Equal(t, l3, cfg.At(b0.Term).Args[0])
}

func TestLoadForward_StoreAcrossCall(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    x := cfg.AddParam(b0, 0)
    a := cfg.AddAlloc(b0, 1)
    cfg.AddStore(b0, a, fslot(0), x)
    cfg.AddCall(b0, 0)
    l := cfg.AddLoad(b0, a, fslot(0))
    cfg.Return(b0, l)
    cfg.Freeze()
    Optimize(cfg)

    /* the callee cannot reach an unaliased allocation, so the stored value
     * forwards straight through the call */
    require.Equal(t, IdUnaliased, cfg.Identity[a])
    require.True(t, cfg.IsDetached(l))
    require.Equal(t, x, cfg.At(b0.Term).Args[0])
}

func TestLoadForward_EscapedReceiver(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    x := cfg.AddParam(b0, 0)
    a := cfg.AddAlloc(b0, 1)
    cfg.AddStore(b0, a, fslot(0), x)
    cfg.AddCall(b0, 0, cfg.AddMoveArg(b0, a))
    l := cfg.AddLoad(b0, a, fslot(0))
    cfg.Return(b0, l)
    cfg.Freeze()
    Optimize(cfg)

    /* once the object is given away the callee may overwrite the slot:
     * the load after the call must stay */
    require.Equal(t, IdAliased, cfg.Identity[a])
    require.False(t, cfg.IsDetached(l))
    require.Equal(t, l, cfg.At(b0.Term).Args[0])
}

func TestLoadForward_DefaultNull(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    a := cfg.AddAlloc(b0, 1)
    l := cfg.AddLoad(b0, a, fslot(0))
    cfg.Return(b0, l)
    cfg.Freeze()
    Optimize(cfg)

    /* a never-written slot of a fresh unaliased allocation is still at its
     * default value */
    require.True(t, cfg.IsDetached(l))
    require.Equal(t, cfg.ConstNull(), cfg.At(b0.Term).Args[0])
    require.False(t, cfg.IsDetached(a))
}

func TestLoadForward_SiblingStoreBlocksNull(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    b1 := cfg.NewBlock()
    b2 := cfg.NewBlock()
    b3 := cfg.NewBlock()
    cond := cfg.AddParam(b0, 0)
    x := cfg.AddParam(b0, 1)
    a := cfg.AddAlloc(b0, 1)
    cfg.Branch(b0, cond, b1, b2)
    cfg.AddStore(b1, a, fslot(0), x)
    cfg.Goto(b1, b3)
    cfg.Goto(b2, b3)
    l := cfg.AddLoad(b3, a, fslot(0))
    cfg.Return(b3, l)
    cfg.Freeze()
    Optimize(cfg)

    /* the store is in a non-dominating arm: at the join the slot may or may
     * not have been written, so neither null nor the stored value forwards */
    require.Equal(t, IdUnaliased, cfg.Identity[a])
    require.False(t, cfg.IsDetached(l))
    require.Equal(t, l, cfg.At(b3.Term).Args[0])
}

func TestLoadForward_JoinDropsSiblingStoredFact(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    b1 := cfg.NewBlock()
    b2 := cfg.NewBlock()
    b3 := cfg.NewBlock()
    cond := cfg.AddParam(b0, 0)
    x := cfg.AddParam(b0, 1)
    y := cfg.AddParam(b0, 2)
    a := cfg.AddAlloc(b0, 1)
    cfg.AddStore(b0, a, fslot(0), x)
    cfg.Branch(b0, cond, b1, b2)
    cfg.AddStore(b1, a, fslot(0), y)
    cfg.Goto(b1, b3)
    cfg.Goto(b2, b3)
    l := cfg.AddLoad(b3, a, fslot(0))
    cfg.Return(b3, l)
    cfg.Freeze()
    Optimize(cfg)

    /* the dominating store put x in the slot, but one arm overwrote it with
     * y: at the join the slot holds either value, so the load must stay */
    require.Equal(t, IdUnaliased, cfg.Identity[a])
    require.False(t, cfg.IsDetached(l))
    require.Equal(t, l, cfg.At(b3.Term).Args[0])
}

func TestLoadForward_JoinDropsCallClobberedFact(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    b1 := cfg.NewBlock()
    b2 := cfg.NewBlock()
    b3 := cfg.NewBlock()
    o := cfg.AddParam(b0, 0)
    cond := cfg.AddParam(b0, 1)
    l1 := cfg.AddLoad(b0, o, fslot(0))
    cfg.Branch(b0, cond, b1, b2)
    cfg.AddCall(b1, 0)
    cfg.Goto(b1, b3)
    cfg.Goto(b2, b3)
    l2 := cfg.AddLoad(b3, o, fslot(0))
    r := cfg.AddBinary(b3, BinXor, l1, l2)
    cfg.Return(b3, r)
    cfg.Freeze()
    Optimize(cfg)

    /* the receiver is of unknown provenance and one arm calls out: the call
     * may overwrite the slot, so the dominating load does not reach the
     * join and the second load must stay */
    require.False(t, cfg.IsDetached(l1))
    require.False(t, cfg.IsDetached(l2))
    require.Equal(t, l2, cfg.At(r).Args[1])
}

func TestLoadForward_CatchEntryDropsFacts(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    ri, cb := cfg.NewTry(0)
    b1 := cfg.NewBlock()
    b2 := cfg.NewBlock()
    b1.Try = ri
    x := cfg.AddParam(b0, 0)
    y := cfg.AddParam(b0, 1)
    a := cfg.AddAlloc(b0, 1)
    cfg.AddStore(b0, a, fslot(0), x)
    cfg.Goto(b0, b1)
    cfg.AddCall(b1, 0)
    cfg.AddStore(b1, a, fslot(0), y)
    cfg.Goto(b1, b2)
    cfg.Return(b2, cfg.ConstInt(0))
    lc := cfg.AddLoad(cb, a, fslot(0))
    cfg.Return(cb, lc)
    cfg.Freeze()
    Optimize(cfg)

    /* the handler runs when the call threw, which is before the second
     * store executed: the slot still holds x there, not y, so no fact from
     * the protected block may forward into the handler */
    require.Equal(t, IdUnaliased, cfg.Identity[a])
    require.False(t, cfg.IsDetached(lc))
    require.Equal(t, lc, cfg.At(cb.Term).Args[0])
}

func TestLoadForward_DistinctSlots(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    x := cfg.AddParam(b0, 0)
    o := cfg.AddParam(b0, 1)
    cfg.AddStore(b0, o, fslot(0), x)
    l0 := cfg.AddLoad(b0, o, fslot(0))
    l1 := cfg.AddLoad(b0, o, fslot(1))
    r := cfg.AddBinary(b0, BinXor, l0, l1)
    cfg.Return(b0, r)
    cfg.Freeze()
    Optimize(cfg)

    /* slots alias only on exact equality: f0 forwards, f1 does not */
    require.True(t, cfg.IsDetached(l0))
    require.False(t, cfg.IsDetached(l1))
    require.Equal(t, x, cfg.At(r).Args[0])
}

func TestLoadForward_StoreInvalidatesUnknown(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    p := cfg.AddParam(b0, 0)
    q := cfg.AddParam(b0, 1)
    x := cfg.AddParam(b0, 2)
    l1 := cfg.AddLoad(b0, p, fslot(0))
    cfg.AddStore(b0, q, fslot(0), x)
    l2 := cfg.AddLoad(b0, p, fslot(0))
    r := cfg.AddBinary(b0, BinXor, l1, l2)
    cfg.Return(b0, r)
    cfg.Freeze()
    Optimize(cfg)

    /* p and q may be the same object: the same-slot store through q kills
     * the fact about p */
    require.False(t, cfg.IsDetached(l1))
    require.False(t, cfg.IsDetached(l2))
}
