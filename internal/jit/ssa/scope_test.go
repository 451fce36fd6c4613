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

func TestScope_Flatten(t *testing.T) {
    root := &Scope {
        Vars: []*LocalVar { { Name: "a", Index: 0 } },
        Child: &Scope {
            Vars: []*LocalVar { { Name: "b", Index: 1, Captured: true } },
            Sibling: &Scope {
                Vars: []*LocalVar { { Name: "d", Index: 3 } },
            },
            Child: &Scope {
                Vars: []*LocalVar { { Name: "c", Index: 2 } },
            },
        },
    }

    /* every variable lands at its slot, gaps stay nil */
    env := root.Flatten()
    require.Len(t, env, 4)
    require.Equal(t, "a", env[0].Name)
    require.Equal(t, "b", env[1].Name)
    require.Equal(t, "c", env[2].Name)
    require.Equal(t, "d", env[3].Name)
    require.True(t, env[1].Captured)
    require.False(t, env[2].Captured)

    /* captured lookup is positional and bounds-safe */
    require.True(t, slotcaptured(env, 1))
    require.False(t, slotcaptured(env, 0))
    require.False(t, slotcaptured(env, 9))
    require.Nil(t, (*Scope)(nil).Flatten())
}
