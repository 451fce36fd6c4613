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

package kestrel

import (
    `fmt`

    `github.com/kestrel-lang/kestrel/internal/jit/ssa`
)

// OptimizeError occurs when the optimization tier detects an internal
// inconsistency and abandons the compilation unit. The unoptimized graph
// stays valid; the only recovery is recompiling without this tier.
type OptimizeError struct {
    Cause interface{}
}

func newOptimizeError(v interface{}) *OptimizeError {
    return &OptimizeError { Cause: v }
}

func (self *OptimizeError) Error() string {
    if cv, ok := self.Cause.(ssa.ContractViolation); ok {
        return "kestrel: optimization abandoned: " + cv.Error()
    } else {
        return fmt.Sprintf("kestrel: optimization abandoned: %v", self.Cause)
    }
}

// Unwrap exposes the underlying contract violation, if that is what
// aborted the pass pipeline.
func (self *OptimizeError) Unwrap() error {
    if cv, ok := self.Cause.(ssa.ContractViolation); ok {
        return cv
    } else {
        return nil
    }
}
