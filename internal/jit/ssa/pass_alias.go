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
    `github.com/oleiade/lane`
)

// AliasClass decides, for every heap allocation, whether it is provably
// unaliased: reachable only through its own direct SSA uses within the
// current compilation unit. Everything not provable stays aliased.
//
// The pass is pure classification; it never mutates the graph. The verdicts
// are persisted on the CFG for the redundancy elimination passes and for
// later escape-sensitive consumers.
type AliasClass struct{}

type _AliasFacts struct {
    cfg   *CFG
    ids   []Identity
    loads []bool     // allocation has a field load, wrapper-transitive
    into  [][]Ref    // host allocation -> values stored into it
    queue *lane.Queue
}

func (AliasClass) Apply(cfg *CFG) {
    f := &_AliasFacts {
        cfg   : cfg,
        ids   : make([]Identity, len(cfg.Arena)),
        loads : make([]bool, len(cfg.Arena)),
        into  : make([][]Ref, len(cfg.Arena)),
        queue : lane.NewQueue(),
    }

    /* optimistic seed: every live allocation starts unaliased */
    for r := Ref(0); int(r) < len(cfg.Arena); r++ {
        if p := cfg.At(r); p.Op == OpAlloc && p.Blk >= 0 {
            f.ids[r] = IdUnaliased
        }
    }

    /* structural facts first: field loads are order-independent */
    for r := Ref(0); int(r) < len(cfg.Arena); r++ {
        if f.ids[r] != IdUnknown {
            f.markLoads(r)
        }
    }

    /* direct escape scan in block layout order (reverse post-order of
     * construction): hosts are classified before the stores into them on
     * every path that matters, the queue picks up the rest */
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, r := range bb.Ins {
            if f.ids[r] == IdUnaliased {
                f.classify(r)
            }
        }
    })

    /* propagate host aliasing onto stored values until stable */
    for !f.queue.Empty() {
        host := f.queue.Dequeue().(Ref)
        for _, v := range f.into[host] {
            f.taint(v)
        }
    }

    /* persist the verdicts */
    cfg.Identity = f.ids
}

// taint moves an allocation to aliased; the lattice only ever moves in this
// direction, so re-taints are free.
func (self *_AliasFacts) taint(r Ref) {
    if self.ids[r] == IdUnaliased {
        self.ids[r] = IdAliased
        self.queue.Enqueue(r)
    }
}

// markLoads records whether any field of the allocation is loaded, looking
// through alias-preserving wrappers.
func (self *_AliasFacts) markLoads(r Ref) {
    for s := stacknew(r); !s.Empty(); {
        d := s.Pop().(Ref)

        /* check every consumer of this name for the object */
        for _, u := range self.cfg.UsesOf(d) {
            if u.IsEnv() {
                continue
            }
            p := self.cfg.At(u.Ins)
            if p.IsAliasPreserving() {
                s.Push(u.Ins)
            } else if p.Op == OpLoadField && u.Idx == 0 {
                self.loads[r] = true
                return
            }
        }
    }
}

// classify walks every use of the allocation, transparently following
// alias-preserving wrappers: a wrapper's own uses are uses of the object.
func (self *_AliasFacts) classify(r Ref) {
    seen := map[Ref]struct{} { r: {} }

    /* worklist of all the names the object travels under */
    for s := stacknew(r); !s.Empty(); {
        d := s.Pop().(Ref)

        /* examine every consumer */
        for _, u := range self.cfg.UsesOf(d) {
            if u.IsEnv() {
                continue    // reconstruction metadata is not a runtime escape
            }

            /* dispatch on the consumer kind */
            switch p := self.cfg.At(u.Ins); p.Op {
                default: {
                    break
                }

                /* wrappers keep the identity: traverse through them */
                case OpCheckNull: fallthrough
                case OpRedef: fallthrough
                case OpAssertType: fallthrough
                case OpMoveArg: {
                    if _, ok := seen[u.Ins]; !ok {
                        seen[u.Ins] = struct{}{}
                        s.Push(u.Ins)
                    }
                }

                /* value merges lose the identity entirely */
                case OpPhi: {
                    self.taint(r)
                    return
                }

                /* the object exits the visibility of this unit */
                case OpReturn: fallthrough
                case OpThrow: {
                    self.taint(r)
                    return
                }

                /* calls capture their arguments unless proven otherwise */
                case OpCall: {
                    if p.Eff & CallNoCapture == 0 {
                        self.taint(r)
                        return
                    }
                }

                /* loads from the object do not alias it, and neither does
                 * being the target of a store; being the *value* of a store
                 * makes the object reachable through the host */
                case OpLoadField: {
                    break
                }
                case OpStoreField: {
                    if u.Idx == 1 {
                        self.storeInto(self.cfg.Canon(p.Args[0]), r)
                    }
                }
            }

            /* stop early once tainted */
            if self.ids[r] == IdAliased {
                return
            }
        }
    }
}

// storeInto handles "r is stored as a value into host". The stored value is
// reachable through the host, so it inherits the host's aliasedness; a host
// with field loads can forward the value to consumers this single pass does
// not see, which counts the same as unknown.
func (self *_AliasFacts) storeInto(host Ref, r Ref) {
    h := self.cfg.At(host)

    /* storing into anything that is not a local allocation escapes */
    if h.Op != OpAlloc {
        self.taint(r)
        return
    }

    /* hosts that are aliased, or may forward the value out via a load */
    if self.ids[host] == IdAliased || self.loads[host] {
        self.taint(r)
        return
    }

    /* host is currently unaliased: remember the edge so a later taint of
     * the host still reaches the value */
    self.into[host] = append(self.into[host], r)
}
