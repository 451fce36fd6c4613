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

func minint(a int, b int) int {
    if a < b {
        return a
    } else {
        return b
    }
}

func stacknew(v interface{}) (s *lane.Stack) {
    s = lane.NewStack()
    s.Push(v)
    return
}

func blockin(bbs []*BasicBlock, bb *BasicBlock) bool {
    for _, p := range bbs {
        if p.Id == bb.Id {
            return true
        }
    }
    return false
}

func blockreverse(bbs []*BasicBlock) {
    for i, j := 0, len(bbs) - 1; i < j; i, j = i + 1, j - 1 {
        bbs[i], bbs[j] = bbs[j], bbs[i]
    }
}
