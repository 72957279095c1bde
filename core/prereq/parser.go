// Package prereq parses lesson prerequisite expressions and evaluates them for a student.
package prereq

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind tells which format a prerequisite expression was stored in.
type Kind int

const (
	KindEmpty Kind = iota
	KindJSON
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindLegacy:
		return "legacy"
	default:
		return "empty"
	}
}

var legacySeparators = regexp.MustCompile(`[,;\n\r]+`)

// Expression is a parsed prerequisite field.
// Refs are lesson ids or lesson codes, deduplicated in order of first appearance.
type Expression struct {
	Kind Kind
	Refs []string
}

func (e Expression) IsEmpty() bool { return len(e.Refs) == 0 }

// Parse reads a stored prerequisite field.
// A JSON array keeps its non-blank string elements; anything else is split on , ; CR and LF.
func Parse(raw string) Expression {
	if strings.TrimSpace(raw) == "" {
		return Expression{Kind: KindEmpty}
	}

	var elems []interface{}
	if err := json.Unmarshal([]byte(raw), &elems); err == nil && elems != nil {
		refs := make([]string, 0, len(elems))
		for _, elem := range elems {
			if s, ok := elem.(string); ok {
				refs = append(refs, s)
			}
		}
		return Expression{Kind: KindJSON, Refs: clean(refs)}
	}

	return Expression{Kind: KindLegacy, Refs: clean(legacySeparators.Split(raw, -1))}
}

func clean(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	cleaned := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		cleaned = append(cleaned, ref)
	}
	return cleaned
}

// Format renders refs as the JSON array Parse reads back. No refs gives an empty string.
func Format(refs []string) string {
	refs = clean(refs)
	if len(refs) == 0 {
		return ""
	}
	b, _ := json.Marshal(refs)
	return string(b)
}
