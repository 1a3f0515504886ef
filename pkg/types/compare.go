package types

import (
	"cmp"
	"strings"
)

// Compare orders two scalar values the way spreadsheet comparison
// operators do. An empty operand takes the zero value of the other side's
// kind. Across kinds, numbers sort before strings and strings before
// booleans. Strings compare case-insensitively. Callers handle errors
// before comparing.
func Compare(a, b Value) int {
	a, b = scalar(a), scalar(b)
	if a.typ == TypeHyperlink {
		a = NewString(a.displayText())
	}
	if b.typ == TypeHyperlink {
		b = NewString(b.displayText())
	}

	switch {
	case a.typ == TypeEmpty && b.typ == TypeEmpty:
		return 0
	case a.typ == TypeEmpty:
		a = zeroOf(b.typ)
	case b.typ == TypeEmpty:
		b = zeroOf(a.typ)
	}

	if ra, rb := rank(a.typ), rank(b.typ); ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch a.typ {
	case TypeNumber:
		return cmp.Compare(a.numVal, b.numVal)
	case TypeString:
		return strings.Compare(strings.ToLower(a.strVal), strings.ToLower(b.strVal))
	case TypeBool:
		return cmp.Compare(boolRank(a.boolVal), boolRank(b.boolVal))
	}
	return 0
}

// SameKind reports whether a and b are comparable without crossing kinds,
// treating empty as matching anything. Lookups use it to skip cells of a
// different kind than the key.
func SameKind(a, b Value) bool {
	a, b = scalar(a), scalar(b)
	if a.typ == TypeEmpty || b.typ == TypeEmpty {
		return true
	}
	return rank(a.typ) == rank(b.typ)
}

func scalar(v Value) Value {
	if v.typ == TypeArray {
		if len(v.arrVal) > 0 && len(v.arrVal[0]) > 0 {
			return v.arrVal[0][0]
		}
		return Empty
	}
	return v
}

func (v Value) displayText() string {
	if v.hyperlink.Title != "" {
		return v.hyperlink.Title
	}
	return v.hyperlink.URL
}

func zeroOf(t ValueType) Value {
	switch t {
	case TypeString:
		return NewString("")
	case TypeBool:
		return NewBool(false)
	}
	return NewNumber(0)
}

func rank(t ValueType) int {
	switch t {
	case TypeNumber:
		return 1
	case TypeString, TypeHyperlink:
		return 2
	case TypeBool:
		return 3
	}
	return 4
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
