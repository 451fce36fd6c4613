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
    `html`
    `os`
    `path/filepath`
    `strings`
    `testing`

    `github.com/oleiade/lane`
    `github.com/stretchr/testify/require`
)

func fslot(f int32) Slot {
    return Slot { Class: 1, Field: f }
}

func dumpbb(cfg *CFG, bb *BasicBlock) string {
    var w int
    var ins []string
    var term []string
    body := append([]Ref(nil), bb.Ins...)
    for _, r := range body {
        for _, ss := range strings.Split(cfg.FormatIns(r), "\n") {
            vv := strings.ReplaceAll(html.EscapeString(ss), " ", "&nbsp;")
            ins = append(ins, fmt.Sprintf("<tr><td align=\"left\">%s</td></tr>\n", vv))
            if len(ss) > w {
                w = len(ss)
            }
        }
    }
    if bb.Term != Nil {
        for _, ss := range strings.Split(cfg.FormatIns(bb.Term), "\n") {
            vv := strings.ReplaceAll(html.EscapeString(ss), " ", "&nbsp;")
            term = append(term, fmt.Sprintf("<tr><td align=\"left\">%s</td></tr>\n", vv))
            if len(ss) > w {
                w = len(ss)
            }
        }
    }
    var pred []string
    for _, d := range bb.Pred {
        pred = append(pred, fmt.Sprintf("bb_%d", d.Id))
    }
    idomby := "∅"
    if d := cfg.DominatedBy[bb.Id]; d != nil {
        idomby = fmt.Sprintf("bb_%d", d.Id)
    }
    var idomof []string
    for _, d := range cfg.DominatorOf[bb.Id] {
        idomof = append(idomof, fmt.Sprintf("bb_%d", d.Id))
    }
    meta := []string {
        fmt.Sprintf("# pred = {%s}", strings.Join(pred, ", ")),
        fmt.Sprintf("# idom_by = %s", idomby),
        fmt.Sprintf("# idom_of = {%s}", strings.Join(idomof, ", ")),
    }
    if bb.Try >= 0 {
        meta = append(meta, fmt.Sprintf("# try = %d", bb.Try))
    }
    if bb.Catch != nil {
        meta = append(meta, fmt.Sprintf("# catch of region %d", bb.Catch.Region))
    }
    for i, ss := range meta {
        meta[i] = fmt.Sprintf("<tr><td align=\"left\">%s</td></tr>\n", ss)
        if len(ss) > w {
            w = len(ss)
        }
    }
    buf := []string {
        "<table border=\"1\" cellborder=\"0\" cellspacing=\"0\">\n",
        fmt.Sprintf("<tr><td width=\"%d\">bb_%d</td></tr>\n", w * 10 + 5, bb.Id),
    }
    buf = append(buf, "<hr/>\n")
    buf = append(buf, meta...)
    if len(ins) != 0 {
        buf = append(buf, "<hr/>\n")
        buf = append(buf, ins...)
    }
    if len(term) != 0 {
        buf = append(buf, "<hr/>\n")
        buf = append(buf, term...)
    }
    buf = append(buf, "</table>")
    return strings.Join(buf, "")
}

func cfgdot(cfg *CFG, fn string) {
    q := lane.NewQueue()
    n := make(map[int]bool)
    e := make(map[struct{A, B int}]bool)
    buf := []string {
        "digraph CFG {",
        `    xdotversion = "15"`,
        `    graph [ fontname = "Fira Code" ]`,
        `    node [ fontname = "Fira Code" fontsize="16" shape = "plaintext" ]`,
        `    edge [ fontname = "Fira Code" ]`,
        `    START [ shape = "circle" ]`,
        fmt.Sprintf(`    START -> bb_%d`, cfg.Root.Id),
    }
    for q.Enqueue(cfg.Root); !q.Empty(); {
        p := q.Dequeue().(*BasicBlock)
        if n[p.Id] {
            continue
        }
        n[p.Id] = true
        buf = append(buf, fmt.Sprintf(`    bb_%d [ label = < %s > ]`, p.Id, dumpbb(cfg, p)))
        for _, ln := range cfg.successors(p) {
            if !n[ln.Id] {
                q.Enqueue(ln)
            }
            edge := struct{A, B int}{p.Id, ln.Id}
            if !e[edge] {
                e[edge] = true
                if ln.Catch != nil {
                    buf = append(buf, fmt.Sprintf(`    bb_%d -> bb_%d [ label = "throw" style = "dashed" ]`, p.Id, ln.Id))
                } else {
                    buf = append(buf, fmt.Sprintf(`    bb_%d -> bb_%d`, p.Id, ln.Id))
                }
            }
        }
    }
    buf = append(buf, "}")
    if err := os.WriteFile(fn, []byte(strings.Join(buf, "\n")), 0644); err != nil {
        panic(err)
    }
}

func TestCFG_Build(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    b1 := cfg.NewBlock()
    b2 := cfg.NewBlock()
    b3 := cfg.NewBlock()
    cond := cfg.AddParam(b0, 0)
    x := cfg.AddParam(b0, 1)
    o := cfg.AddAlloc(b0, 1)
    cfg.Branch(b0, cond, b1, b2)
    cfg.AddStore(b1, o, fslot(0), x)
    cfg.Goto(b1, b3)
    cfg.Goto(b2, b3)
    v := cfg.AddLoad(b3, o, fslot(0))
    cfg.Return(b3, v)
    cfg.Freeze()

    /* structural sanity */
    require.Equal(t, []*BasicBlock { b0 }, b1.Pred)
    require.Equal(t, []*BasicBlock { b0 }, b2.Pred)
    require.Equal(t, []*BasicBlock { b1, b2 }, b3.Pred)
    require.Equal(t, []Use { { Ins: v, Idx: 0 } }, cfg.UsesOf(o)[1:])
    verifyGraph(cfg, "Build")

    /* render for manual inspection */
    fn := filepath.Join(t.TempDir(), "cfg.gv")
    cfgdot(cfg, fn)
    dot, err := os.ReadFile(fn)
    require.NoError(t, err)
    require.Contains(t, string(dot), "bb_3")
    t.Logf("CFG:\n%s", cfg)
}

func TestCFG_Freeze(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    ri, cb := cfg.NewTry(1)
    b1 := cfg.NewBlock()
    b2 := cfg.NewBlock()
    b1.Try = ri
    x := cfg.AddParam(b0, 0)
    cfg.Goto(b0, b1)
    c := cfg.AddCall(b1, 0)
    cfg.SetEnv(c, []Ref { x })
    cfg.Goto(b1, b2)
    cfg.Goto(cb, b2)
    cfg.Return(b2, cfg.ConstInt(0))
    cfg.Freeze()

    /* the exceptional edge is materialized exactly once */
    require.Equal(t, []*BasicBlock { b1 }, cb.Pred)
    cfg.Freeze()
    require.Equal(t, []*BasicBlock { b1 }, cb.Pred)
    verifyGraph(cfg, "Freeze")
}

func TestCFG_ReplaceAllUses(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    x := cfg.AddParam(b0, 0)
    u := cfg.AddUnary(b0, UnNeg, x)
    m := cfg.AddMoveArg(b0, u)
    c := cfg.AddCall(b0, 0, m)
    cfg.SetEnv(c, []Ref { u })
    cfg.Return(b0, u)

    /* args and envs both move over */
    k := cfg.ConstInt(42)
    cfg.ReplaceAllUses(u, k)
    require.Empty(t, cfg.UsesOf(u))
    require.Equal(t, k, cfg.At(m).Args[0])
    require.Equal(t, k, cfg.At(c).Env[0])
    require.Equal(t, k, cfg.At(b0.Term).Args[0])
    require.Len(t, cfg.UsesOf(k), 3)

    /* now it is legal to detach the definition */
    cfg.Detach(u)
    require.True(t, cfg.IsDetached(u))
    require.Empty(t, cfg.UsesOf(x))
    require.NotContains(t, b0.Ins, u)
}

func TestCFG_DetachContract(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    x := cfg.AddParam(b0, 0)
    u := cfg.AddUnary(b0, UnNeg, x)
    _ = cfg.AddMoveArg(b0, u)
    require.Panics(t, func() { cfg.Detach(u) })
}

func TestCFG_CanonFollowsWrappers(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    o := cfg.AddAlloc(b0, 1)
    w1 := cfg.AddCheckNull(b0, o)
    w2 := cfg.AddRedef(b0, w1)
    w3 := cfg.AddAssertType(b0, w2)
    m := cfg.AddMoveArg(b0, w3)
    require.Equal(t, o, cfg.Canon(w3))
    require.Equal(t, o, cfg.Canon(w1))
    require.Equal(t, m, cfg.Canon(m))    // argument passing is not identity-preserving
}

func TestCFG_InternedConstants(t *testing.T) {
    cfg := NewCFG()
    require.Equal(t, cfg.ConstInt(7), cfg.ConstInt(7))
    require.NotEqual(t, cfg.ConstInt(7), cfg.ConstInt(8))
    require.Equal(t, cfg.ConstNull(), cfg.ConstNull())
    require.True(t, cfg.At(cfg.ConstNull()).Ptr)
}

func TestCFG_Clone(t *testing.T) {
    cfg := NewCFG()
    b0 := cfg.Root
    b1 := cfg.NewBlock()
    x := cfg.AddParam(b0, 0)
    u := cfg.AddUnary(b0, UnNeg, x)
    cfg.Goto(b0, b1)
    cfg.Return(b1, u)
    cfg.Freeze()

    /* mutating the clone must leave the original intact */
    dup := cfg.Clone()
    dup.ReplaceAllUses(u, dup.ConstInt(0))
    dup.Detach(u)
    require.True(t, dup.IsDetached(u))
    require.False(t, cfg.IsDetached(u))
    require.Equal(t, u, cfg.At(b1.Term).Args[0])
    require.Len(t, cfg.UsesOf(u), 1)

    /* the dominator tree is rebuilt on the cloned blocks */
    require.Equal(t, b0.Id, dup.DominatedBy[b1.Id].Id)
    require.NotSame(t, cfg.Blocks[0], dup.Blocks[0])
    verifyGraph(dup, "Clone")
    verifyGraph(cfg, "Clone")
}
