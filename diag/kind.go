// Copyright 2024 The TabuLua-sub005 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package diag is the accumulating diagnostic channel every schema and value
// parser operation reports through. Failures are recorded on a Sink, not
// returned as Go errors; no function here returns an error, and the Sink
// methods do not accept a nil *Sink.
package diag

// Kind classifies a diagnostic by the condition that raised it.
type Kind int

const (
	Parse Kind = iota
	UnknownType
	DuplicateName
	IncompatibleRedefinition
	OutOfRange
	PatternMismatch
	EnumLabel
	UnionMember
	SelfRef
	ExpressionCompile
	ExpressionRuntime
	Quota
	PrecisionLoss
	Internal
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse"
	case UnknownType:
		return "unknown-type"
	case DuplicateName:
		return "duplicate-name"
	case IncompatibleRedefinition:
		return "incompatible-redefinition"
	case OutOfRange:
		return "out-of-range"
	case PatternMismatch:
		return "pattern-mismatch"
	case EnumLabel:
		return "enum-label"
	case UnionMember:
		return "union-member"
	case SelfRef:
		return "self-ref"
	case ExpressionCompile:
		return "expression-compile"
	case ExpressionRuntime:
		return "expression-runtime"
	case Quota:
		return "quota"
	case PrecisionLoss:
		return "precision-loss"
	case Internal:
		return "internal"
	}
	return "unknown"
}
