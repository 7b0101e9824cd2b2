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

package diag

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/skunkiferous/TabuLua-sub005/logging"
)

// A Diagnostic is one reported failure or warning, carrying the context the
// sink held at the time it was logged.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Warning  bool
	Source   string
	RowKey   string
	ColIndex int
	ColName  string
	TypeChain []string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%s: col %d (%s) [%s]: %s", d.Source, d.RowKey, d.ColIndex, d.ColName, d.Kind, d.Message)
}

// Sink is the mutable, caller-owned diagnostic channel threaded through every
// parse/validate/build call. Builders must not retain a Sink past
// the call that received it.
type Sink struct {
	Errors   int
	Warnings int

	source   string
	rowKey   string
	colIndex int
	colName  string
	typeChain []string

	logger *zap.Logger
	null   bool
}

// NewSink creates a sink attributed to the given source name, logging through
// logger. A nil logger falls back to logging.Global().
func NewSink(source string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = logging.Global()
	}
	return &Sink{source: source, logger: logger}
}

// Null returns a sink that counts but never logs. Used to run union-member
// trial parses without polluting the caller's sink.
func Null() *Sink {
	return &Sink{null: true, logger: zap.NewNop()}
}

// WithRow returns the sink positioned at the given row key. Mutates in place
// and returns the same sink for chaining.
func (s *Sink) WithRow(rowKey string) *Sink {
	s.rowKey = rowKey
	return s
}

// WithColumn positions the sink at the given column.
func (s *Sink) WithColumn(index int, name string) *Sink {
	s.colIndex = index
	s.colName = name
	return s
}

// WithColType pushes typ onto the column-type chain for the duration of fn,
// then pops it.
func WithColType(s *Sink, typ string, fn func()) {
	s.typeChain = append(s.typeChain, typ)
	defer func() { s.typeChain = s.typeChain[:len(s.typeChain)-1] }()
	fn()
}

// SourceName returns the source name this sink is attributed to.
func (s *Sink) SourceName() string { return s.source }

// TypeChain returns the current column-type chain, outermost first.
func (s *Sink) TypeChain() []string {
	return append([]string(nil), s.typeChain...)
}

// Errorf records a diagnostic of the given kind and increments Errors.
func (s *Sink) Errorf(kind Kind, format string, args ...interface{}) {
	s.Errors++
	s.emit(Diagnostic{
		Kind: kind, Message: fmt.Sprintf(format, args...),
		Source: s.source, RowKey: s.rowKey, ColIndex: s.colIndex, ColName: s.colName,
		TypeChain: s.TypeChain(),
	})
}

// Warnf records a non-fatal diagnostic and increments Warnings.
func (s *Sink) Warnf(kind Kind, format string, args ...interface{}) {
	s.Warnings++
	s.emit(Diagnostic{
		Kind: kind, Message: fmt.Sprintf(format, args...), Warning: true,
		Source: s.source, RowKey: s.rowKey, ColIndex: s.colIndex, ColName: s.colName,
		TypeChain: s.TypeChain(),
	})
}

func (s *Sink) emit(d Diagnostic) {
	if s.null || s.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("kind", d.Kind.String()),
		zap.String("source", d.Source),
		zap.String("row", d.RowKey),
		zap.Int("col_index", d.ColIndex),
		zap.String("col_name", d.ColName),
		zap.Strings("type_chain", d.TypeChain),
	}
	if d.Warning {
		s.logger.Warn(d.Message, fields...)
	} else {
		s.logger.Error(d.Message, fields...)
	}
}

// Snapshot returns the current error counter, for the union-trial save/restore
// dance: a caller snapshots before trying a member parse and restores if it
// rejects the value, so a failed member doesn't pollute the real diagnostics.
func (s *Sink) Snapshot() int { return s.Errors }

// Restore resets the error counter to a previously captured Snapshot, used
// when a trial parse is discarded.
func (s *Sink) Restore(n int) { s.Errors = n }
