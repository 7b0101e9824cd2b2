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

package schema

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v2"
)

// Numbers are represented as apd.Decimal so that the precision-loss
// condition on `long` is a real, checkable fact about the parsed
// coefficient rather than an artefact of float64 rounding.

var safeIntBound = apd.New(SafeIntegerBound, 0)
var negSafeIntBound = apd.New(-SafeIntegerBound, 0)

func parseDecimal(raw string) (*apd.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	d, _, err := apd.NewFromString(raw)
	if err != nil {
		return nil, false
	}
	return d, true
}

// isIntegral reports whether d's mathematical value has no fractional part.
func isIntegral(d *apd.Decimal) bool {
	var r apd.Decimal
	r.Reduce(d)
	return r.Form == apd.Finite && r.Exponent >= 0
}

func withinRange(d *apd.Decimal, lo, hi *apd.Decimal) bool {
	if lo != nil && d.Cmp(lo) < 0 {
		return false
	}
	if hi != nil && d.Cmp(hi) > 0 {
		return false
	}
	return true
}

// floatCanon renders d the way the `float` built-in canonicalises: always
// carrying a decimal point, integral values as "N.0".
func floatCanon(d *apd.Decimal) string {
	if isIntegral(d) {
		var z apd.Decimal
		BaseCtx.Quantize(&z, d, 0)
		return z.String() + ".0"
	}
	return d.String()
}

// BaseCtx is the shared rounding context for numeric-limit comparisons and
// canonicalisation, a package-level apd.BaseContext at fixed precision.
var BaseCtx = apd.BaseContext.WithPrecision(40)

func decimalToInt64(d *apd.Decimal) (int64, bool) {
	var r apd.Decimal
	r.Reduce(d)
	if r.Form != apd.Finite || r.Exponent < 0 {
		return 0, false
	}
	n, err := d.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatBoolInput(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}

func parseIntStrict(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}
