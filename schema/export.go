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
	"sort"
	"strconv"
)

// SchemaRow is one row of the exported schema model.
type SchemaRow struct {
	Name       string
	Definition string
	Kind       string
	Parent     string
	IsBuiltin  bool
	Min        string
	Max        string
	Regex      string
	EnumLabels []string
}

// GetSchemaModel snapshots every registered type as a flat, read-only row
// set for downstream consumers.
func (s *Schema) GetSchemaModel() []SchemaRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.parsers))
	for n := range s.parsers {
		names = append(names, n)
	}
	sort.Strings(names)

	rows := make([]SchemaRow, 0, len(names))
	for _, n := range names {
		p := s.parsers[n]
		row := SchemaRow{
			Name:       n,
			Definition: p.Spec(),
			Kind:       kindOfLocked(p),
			Parent:     s.extends[n],
			IsBuiltin:  s.builtIn[n],
		}
		if lim, ok := s.numberLimits[n]; ok {
			row.Min, row.Max = lim.min.String(), lim.max.String()
		}
		if sr, ok := s.strRestrictions[n]; ok {
			if sr.hasMinLen {
				row.Min = strconv.Itoa(sr.minLen)
			}
			if sr.hasMaxLen {
				row.Max = strconv.Itoa(sr.maxLen)
			}
			if sr.regex != nil {
				row.Regex = sr.regex.String()
			}
		}
		if ep, ok := p.(*enumParser); ok {
			labels := make([]string, 0, len(ep.orig))
			for _, v := range ep.orig {
				labels = append(labels, v)
			}
			sort.Strings(labels)
			row.EnumLabels = labels
		}
		rows = append(rows, row)
	}
	return rows
}

func kindOfLocked(p Parser) string {
	switch p.(type) {
	case *arrayParser:
		return "array"
	case *tupleParser:
		return "tuple"
	case *mapParser:
		return "map"
	case *recordParser:
		return "record"
	case *unionParser:
		return "union"
	case *enumParser:
		return "enum"
	}
	if p.Spec() == "table" {
		return "table"
	}
	return "name"
}
