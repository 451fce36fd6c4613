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

// BasicBlock is a straight-line run of instructions ended by a terminator.
// The body is a list of arena handles; instruction removal detaches the
// handle from the body without ever invalidating it.
type BasicBlock struct {
    Id    int
    Ins   []Ref
    Term  Ref
    Pred  []*BasicBlock
    Try   int            // enclosing protected region, -1 when outside of any
    Catch *CatchEntry    // non-nil iff this block is a catch entry
}

// CatchEntry is the state attached to a block that is entered only through
// exceptional control transfer. Params holds one initial parameter definition
// per environment slot that may need to be reconstructed on entry; slots
// pruned by synchronization minimization are Nil.
type CatchEntry struct {
    Region int
    Params []Ref
}

// TryRegion is a protected region of the graph. Every block tagged with the
// region index has the catch entry as an implicit exceptional successor.
type TryRegion struct {
    Catch *BasicBlock
}
