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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSinkCountsErrorsAndWarnings(t *testing.T) {
	s := NewSink("test-source", nil)
	s.Errorf(Parse, "bad value %d", 1)
	s.Warnf(Internal, "heads up")
	require.Equal(t, 1, s.Errors)
	require.Equal(t, 1, s.Warnings)
}

func TestNullSinkCountsButNeverPanics(t *testing.T) {
	s := Null()
	s.Errorf(Parse, "discarded")
	require.Equal(t, 1, s.Errors)
}

func TestSnapshotRestoreRollsBackErrorCount(t *testing.T) {
	s := NewSink("union-trial", nil)
	s.Errorf(Parse, "first failure")
	snap := s.Snapshot()
	s.Errorf(Parse, "second failure, to be discarded")
	s.Restore(snap)
	require.Equal(t, 1, s.Errors)
}

func TestWithRowAndColumnAttributeDiagnostics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewSink("rows", zap.New(core))
	s.WithRow("row-7").WithColumn(2, "amount")
	s.Errorf(Parse, "bad cell")
	require.Equal(t, "rows", s.SourceName())
	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "row-7", fields["row"])
	require.Equal(t, int64(2), fields["col_index"])
	require.Equal(t, "amount", fields["col_name"])
}

func TestWithColTypePushesAndPopsChain(t *testing.T) {
	s := NewSink("types", nil)
	var duringCall []string
	WithColType(s, "record", func() {
		WithColType(s, "field", func() {
			duringCall = s.TypeChain()
		})
	})
	require.Equal(t, []string{"record", "field"}, duringCall)
	require.Empty(t, s.TypeChain())
}

func TestDiagnosticErrorFormatsPositionalContext(t *testing.T) {
	d := Diagnostic{
		Kind: Parse, Message: "bad", Source: "src", RowKey: "r1",
		ColIndex: 3, ColName: "col",
	}
	require.Contains(t, d.Error(), "src:r1")
	require.Contains(t, d.Error(), "bad")
}
