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

// CatchSync minimizes the synchronization state of every catch entry: a
// parameter placeholder survives only if the value it reconstructs can
// actually be observed from the handler, directly or on a later loop
// iteration that re-enters the protected region.
//
// A parameter is observed when it reaches, transitively through phis, either
// a real (non-environment) use, or an environment slot of a throwing
// instruction whose own catch entry synchronizes that slot: the latter is
// what keeps loop-carried variables alive, and is why the marking iterates
// to a fixed point over a monotone growing set.
type CatchSync struct{}

func (self CatchSync) Apply(cfg *CFG) {
    if len(cfg.Tries) == 0 {
        return
    }

    /* environment slot to variable mapping from the lexical scope tree */
    env := cfg.Scope.Flatten()
    sync := make([]map[int]bool, len(cfg.Tries))
    for i := range sync {
        sync[i] = make(map[int]bool)
    }

    /* grow the synchronized set until stable, defensively bounded */
    done := false
    for i := 0; !done && i < cfg.Opts.MaxSyncIters; i++ {
        done = true
        for ri, tr := range cfg.Tries {
            ce := tr.Catch.Catch
            for slot, p := range ce.Params {
                if p == Nil || sync[ri][slot] || slotcaptured(env, slot) {
                    continue
                }
                if self.observed(cfg, sync, p) {
                    sync[ri][slot] = true
                    done = false
                }
            }
        }
    }

    /* ran into the iteration cap: keep everything rather than guess */
    if !done {
        return
    }

    /* prune the parameters nobody can observe; environments referencing
     * them are repointed at the null placeholder */
    for ri, tr := range cfg.Tries {
        ce := tr.Catch.Catch
        for slot, p := range ce.Params {
            if p == Nil {
                continue
            }
            if sync[ri][slot] && !slotcaptured(env, slot) {
                continue
            }
            cfg.ReplaceAllUses(p, cfg.ConstNull())
            cfg.Detach(p)
        }
    }
}

// observed reports whether the catch parameter can reach a real observation.
// Phis extend the reach of the parameter into later iterations; environment
// uses only count once the slot they feed is itself synchronized.
func (self CatchSync) observed(cfg *CFG, sync []map[int]bool, p Ref) bool {
    seen := map[Ref]struct{} { p: {} }

    /* walk everything the parameter value flows into */
    for s := stacknew(p); !s.Empty(); {
        d := s.Pop().(Ref)

        /* check every consumer */
        for _, u := range cfg.UsesOf(d) {
            q := cfg.At(u.Ins)

            /* environment uses count only for synchronized slots */
            if u.IsEnv() {
                if bb := cfg.Blocks[q.Blk]; bb.Try < 0 || sync[bb.Try][u.EnvSlot()] {
                    return true
                }
                continue
            }

            /* the value keeps flowing through merges */
            if q.Op == OpPhi {
                if _, ok := seen[u.Ins]; !ok {
                    seen[u.Ins] = struct{}{}
                    s.Push(u.Ins)
                }
                continue
            }

            /* anything else is a real observation */
            return true
        }
    }
    return false
}

func slotcaptured(env []*LocalVar, slot int) bool {
    return slot < len(env) && env[slot] != nil && env[slot].Captured
}
