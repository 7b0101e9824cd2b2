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

import "fmt"

// comparatorFor returns p's installed comparator, falling back to a generic
// one keyed off its canonical string form.
func (s *Schema) comparatorFor(p Parser) Comparator {
	if c, ok := s.comparators[p.Spec()]; ok && c != nil {
		return c
	}
	return genericComparator
}

// genericComparator orders by each value's string representation — the
// fallback used when no structural comparator was composed.
func genericComparator(a, b interface{}) int {
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// sequenceComparator composes an array/tuple element comparator into a
// lexicographic order over []interface{} values.
func sequenceComparator(elem Comparator) Comparator {
	return func(a, b interface{}) int {
		as, aok := a.([]interface{})
		bs, bok := b.([]interface{})
		if !aok || !bok {
			return genericComparator(a, b)
		}
		n := len(as)
		if len(bs) < n {
			n = len(bs)
		}
		for i := 0; i < n; i++ {
			if c := elem(as[i], bs[i]); c != 0 {
				return c
			}
		}
		return len(as) - len(bs)
	}
}

// tableComparator orders map[string]interface{} values by size, then by their
// fmt.Sprint form (which lists entries in sorted-key order). Neither the key
// nor the value comparator is consulted.
func tableComparator(key, value Comparator) Comparator {
	_ = key // map keys are always canonical strings; kept for signature symmetry.
	return func(a, b interface{}) int {
		am, aok := a.(map[string]interface{})
		bm, bok := b.(map[string]interface{})
		if !aok || !bok {
			return genericComparator(a, b)
		}
		if len(am) != len(bm) {
			return len(am) - len(bm)
		}
		return genericComparator(fmt.Sprint(am), fmt.Sprint(bm))
	}
}

// nilAwareComparator orders a 2-member `T|nil` union, treating nil as
// smallest.
func nilAwareComparator(other Comparator) Comparator {
	return func(a, b interface{}) int {
		if a == nil && b == nil {
			return 0
		}
		if a == nil {
			return -1
		}
		if b == nil {
			return 1
		}
		return other(a, b)
	}
}
