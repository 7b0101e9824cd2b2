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

package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skunkiferous/TabuLua-sub005/typespec/ast"
)

func TestParseFullCanonRoundTrip(t *testing.T) {
	cases := []string{
		"integer",
		"foo.Bar",
		"{}",
		"{integer}",
		"{integer,string}",
		"{name:integer}",
		"{id:integer,label:string}",
		"integer|string|nil",
		"self._0",
		"self.label",
	}
	for _, src := range cases {
		node, err := ParseFull(src)
		require.NoError(t, err, src)
		// The empty table "{}" is an alias whose canonical form is "table".
		want := src
		if src == "{}" {
			want = "table"
		}
		require.Equal(t, want, node.Canon(), "canon round-trip for %q", src)
	}
}

func TestParseFullRejectsTrailingInput(t *testing.T) {
	_, err := ParseFull("integer extra")
	require.Error(t, err)
}

func TestParseFullRejectsEmptyInput(t *testing.T) {
	_, err := ParseFull("")
	require.Error(t, err)
}

func TestParsePartialReturnsRemainder(t *testing.T) {
	node, rest, err := ParsePartial("integer,string")
	require.NoError(t, err)
	require.Equal(t, "integer", node.Canon())
	require.Equal(t, ",string", rest)
}

func TestParsePartialConsumesBracedSpec(t *testing.T) {
	node, rest, err := ParsePartial("{a:integer,b:string} trailing")
	require.NoError(t, err)
	require.Equal(t, "{a:integer,b:string}", node.Canon())
	require.Equal(t, "trailing", rest)
}

func TestParseListVsRecordAmbiguity(t *testing.T) {
	// A single KV pair is a Map.
	single, err := ParseFull("{a:integer}")
	require.NoError(t, err)
	require.Equal(t, "{a:integer}", single.Canon())

	// Two or more KV pairs make a Record (key order is sorted by Canon).
	multi, err := ParseFull("{b:integer,a:string}")
	require.NoError(t, err)
	require.Equal(t, "{a:string,b:integer}", multi.Canon())
}

func TestParseUnionSingleMemberCollapses(t *testing.T) {
	node, err := ParseFull("integer")
	require.NoError(t, err)
	_, isUnion := node.(*ast.Union)
	require.False(t, isUnion)
}

// The parser accepts a self-ref at the top level; rejecting it outside a
// tuple or record is left to the schema builder.
func TestParseAcceptsTopLevelSelfRef(t *testing.T) {
	node, err := ParseFull("self._0")
	require.NoError(t, err)
	require.Equal(t, "self._0", node.Canon())
}

func TestParseRejectsBadIdentifier(t *testing.T) {
	_, err := ParseFull("1bad")
	require.Error(t, err)
}

func TestParseRejectsUnbalancedBraces(t *testing.T) {
	_, err := ParseFull("{integer")
	require.Error(t, err)
}

func TestParseSkipsCommentTrivia(t *testing.T) {
	node, err := ParseFull("integer # a trailing comment\n")
	require.NoError(t, err)
	require.Equal(t, "integer", node.Canon())
}
