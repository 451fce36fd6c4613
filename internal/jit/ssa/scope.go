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

// LocalVar is a source-level variable occupying one environment slot.
// Captured variables are heap-resident: they never need to be reconstructed
// at a catch entry, so synchronization minimization skips them.
type LocalVar struct {
    Name     string
    Index    int
    Captured bool
}

// Scope is one node of the lexical variable scope tree, resolved by the
// front end before optimization starts.
type Scope struct {
    Vars    []*LocalVar
    Child   *Scope
    Sibling *Scope
}

// Flatten maps every variable of the scope tree, nested and sibling scopes
// included, to its environment slot index. The traversal uses an explicit
// stack so deeply nested scopes cannot exhaust the call stack.
func (self *Scope) Flatten() []*LocalVar {
    var env []*LocalVar

    /* nothing to flatten */
    if self == nil {
        return nil
    }

    /* walk the whole tree */
    for s := stacknew(self); !s.Empty(); {
        p := s.Pop().(*Scope)

        /* place each variable at its slot */
        for _, v := range p.Vars {
            for len(env) <= v.Index {
                env = append(env, nil)
            }
            env[v.Index] = v
        }

        /* push the sibling first so children are visited in declaration order */
        if p.Sibling != nil {
            s.Push(p.Sibling)
        }
        if p.Child != nil {
            s.Push(p.Child)
        }
    }
    return env
}
