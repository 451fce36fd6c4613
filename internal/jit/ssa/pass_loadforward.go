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

// Load forwarding is the field-access half of the CSE walk. Receivers are
// canonicalized through alias-preserving wrappers before keying, so a store
// through the allocation and a load through a redefinition of it meet in
// the same table slot.
//
// Unaliased receivers are the strong case: no external code can observe or
// mutate them, so a dominating same-slot store forwards across anything,
// calls included, and a slot that is never stored anywhere still holds the
// default null. Unknown receivers only get the weak facts: dominating loads
// and stores of the exact same slot, killed by any call and by any same-slot
// store through a possibly aliased receiver.
//
// Memory facts only describe the idom chain the dominator walk came down,
// so a block reached through other paths as well must not trust them as-is:
// pruneMergeFacts runs at every such merge point and at every catch entry.

func unaliased(cfg *CFG, recv Ref) bool {
    return cfg.At(recv).Op == OpAlloc && int(recv) < len(cfg.Identity) && cfg.Identity[recv] == IdUnaliased
}

// forwardLoad eliminates the load if its value is provably available,
// otherwise records the load itself as an available fact.
func forwardLoad(cfg *CFG, t *_ValueTable, stores map[_LoadKey][]int, r Ref) {
    p := cfg.At(r)
    key := _LoadKey { recv: cfg.Canon(p.Args[0]), slot: p.Slot }

    /* a dominating store or load of the same slot */
    if d, ok := t.loads[key]; ok {
        cfg.ReplaceAllUses(r, d)
        cfg.Detach(r)
        return
    }

    /* a never-written slot of a provably unaliased allocation reads the
     * default field value; consumers are repointed at the null constant */
    if len(stores[key]) == 0 && unaliased(cfg, key.recv) {
        cfg.ReplaceAllUses(r, cfg.ConstNull())
        cfg.Detach(r)
        return
    }

    /* the load result is now available for dominated duplicates */
    t.setLoad(key, r)
}

// applyStore updates the slot facts for a store instruction.
func applyStore(cfg *CFG, t *_ValueTable, r Ref) {
    p := cfg.At(r)
    recv := cfg.Canon(p.Args[0])
    key := _LoadKey { recv: recv, slot: p.Slot }

    /* strong update: an unaliased receiver cannot overlap any other fact */
    if unaliased(cfg, recv) {
        t.setLoad(key, p.Args[1])
        return
    }

    /* unknown receiver: every same-slot fact on a possibly aliased receiver
     * may refer to the same object, drop them all; slot equality is exact,
     * there is no partial overlap reasoning */
    for k := range t.loads {
        if k.slot == p.Slot && !unaliased(cfg, k.recv) {
            t.delLoad(k)
        }
    }

    /* this exact slot now provably holds the stored value, until the next
     * call or overlapping store kills it again */
    t.setLoad(key, p.Args[1])
}

// clobberCall invalidates every slot fact an unknown call could mutate.
// Facts on unaliased receivers survive: the callee has no way to reach them.
func clobberCall(cfg *CFG, t *_ValueTable) {
    for key := range t.loads {
        if !unaliased(cfg, key.recv) {
            t.delLoad(key)
        }
    }
}

// pruneMergeFacts drops every memory fact that a control flow merge can
// invalidate. The dominator walk models memory along the idom chain only;
// when bb is also reachable through blocks off that chain, a fact survives
// only if its receiver is unaliased and every store of its slot lies in a
// block dominating bb, otherwise a sibling path may have overwritten the
// slot. A catch entry merges every throwing point of its region, and any
// fact there may describe a partially executed block, so all of them go.
// Pure value facts are SSA names and are never affected.
func pruneMergeFacts(cfg *CFG, t *_ValueTable, stores map[_LoadKey][]int, bb *BasicBlock) {
    if bb.Catch != nil {
        for key := range t.loads {
            t.delLoad(key)
        }
        return
    }
    for key := range t.loads {
        if !unaliased(cfg, key.recv) {
            t.delLoad(key)
            continue
        }
        for _, blk := range stores[key] {
            if !cfg.Dominates(cfg.Blocks[blk], bb) {
                t.delLoad(key)
                break
            }
        }
    }
}
