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

    `github.com/bytedance/gopkg/lang/dirtmake`
)

// _TextBuffer is a write-only text sink for graph dumps. The backing slice
// is allocated without zeroing: everything up to len is always written.
type _TextBuffer struct {
    buf []byte
}

func newTextBuffer(cap int) *_TextBuffer {
    return &_TextBuffer { buf: dirtmake.Bytes(0, cap) }
}

func (self *_TextBuffer) Printf(format string, args ...interface{}) {
    self.buf = append(self.buf, fmt.Sprintf(format, args...)...)
}

func (self *_TextBuffer) String() string {
    return string(self.buf)
}

// FormatIns renders one instruction for diagnostics.
func (self *CFG) FormatIns(r Ref) string {
    p := self.At(r)
    switch p.Op {
        case OpParam      : return fmt.Sprintf("%%%d = param #%d", r, p.Iv)
        case OpConst      : if p.Ptr { return fmt.Sprintf("%%%d = null", r) } else { return fmt.Sprintf("%%%d = $%d", r, p.Iv) }
        case OpAlloc      : return fmt.Sprintf("%%%d = alloc c%d", r, p.Cls)
        case OpLoadField  : return fmt.Sprintf("%%%d = load %%%d %s", r, p.Args[0], p.Slot)
        case OpStoreField : return fmt.Sprintf("store %%%d %s, %%%d", p.Args[0], p.Slot, p.Args[1])
        case OpUnary      : return fmt.Sprintf("%%%d = (%s %%%d)", r, p.Un, p.Args[0])
        case OpBinary     : return fmt.Sprintf("%%%d = (%s %%%d %%%d)", r, p.Bin, p.Args[0], p.Args[1])
        case OpCheckNull  : return fmt.Sprintf("%%%d = chknull %%%d", r, p.Args[0])
        case OpRedef      : return fmt.Sprintf("%%%d = redef %%%d", r, p.Args[0])
        case OpAssertType : return fmt.Sprintf("%%%d = asserttype %%%d", r, p.Args[0])
        case OpMoveArg    : return fmt.Sprintf("%%%d = movearg %%%d", r, p.Args[0])
        case OpCall       : return fmt.Sprintf("%%%d = call%s", r, refstr(p.Args))
        case OpPhi        : return fmt.Sprintf("%%%d = phi%s", r, refstr(p.Args))
        case OpGoto       : return fmt.Sprintf("goto bb_%d", p.To[0])
        case OpBranch     : return fmt.Sprintf("branch %%%d, bb_%d, bb_%d", p.Args[0], p.To[0], p.To[1])
        case OpReturn     : return fmt.Sprintf("ret %%%d", p.Args[0])
        case OpThrow      : return fmt.Sprintf("throw %%%d", p.Args[0])
        default           : return fmt.Sprintf("%%%d = %s ?", r, p.Op)
    }
}

// String dumps the whole graph: blocks in dominator order, the aliasing
// verdicts, and the surviving catch-entry parameters.
func (self *CFG) String() string {
    w := newTextBuffer(4096)
    w.Printf("CFG {\n")

    /* interned constants */
    for _, r := range self.ConstIns {
        w.Printf("    %s\n", self.FormatIns(r))
    }

    /* every reachable block, dominators before dominated */
    self.ReversePostOrder(func(bb *BasicBlock) {
        w.Printf("bb_%d:", bb.Id)

        /* block annotations */
        if d := self.DominatedBy[bb.Id]; d != nil {
            w.Printf("    # idom = bb_%d", d.Id)
        }
        if bb.Try >= 0 {
            w.Printf(", try = %d", bb.Try)
        }
        if bb.Catch != nil {
            w.Printf("    # catch of region %d", bb.Catch.Region)
        }
        w.Printf("\n")

        /* body and terminator */
        for _, r := range bb.Ins {
            w.Printf("    %s\n", self.FormatIns(r))
        }
        if bb.Term != Nil {
            w.Printf("    %s\n", self.FormatIns(bb.Term))
        }
    })

    /* identity facts, if classification ran */
    if self.Identity != nil {
        for r := Ref(0); int(r) < len(self.Arena); r++ {
            if self.At(r).Op == OpAlloc && self.At(r).Blk >= 0 {
                w.Printf("    # identity(%%%d) = %s\n", r, self.Identity[r])
            }
        }
    }

    /* minimized catch-entry state */
    for i, tr := range self.Tries {
        w.Printf("    # region %d catch bb_%d params = [", i, tr.Catch.Id)
        for slot, p := range tr.Catch.Catch.Params {
            if slot != 0 {
                w.Printf(", ")
            }
            if p == Nil {
                w.Printf("_")
            } else {
                w.Printf("%%%d", p)
            }
        }
        w.Printf("]\n")
    }

    w.Printf("}")
    return w.String()
}

func refstr(refs []Ref) string {
    s := "("
    for i, r := range refs {
        if i != 0 {
            s += ", "
        }
        if r == Nil {
            s += "_"
        } else {
            s += fmt.Sprintf("%%%d", r)
        }
    }
    return s + ")"
}
