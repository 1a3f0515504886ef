package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"numbers", NewNumber(1), NewNumber(2), -1},
		{"equal numbers", NewNumber(3), NewNumber(3), 0},
		{"strings fold case", NewString("abc"), NewString("ABC"), 0},
		{"strings order", NewString("b"), NewString("a"), 1},
		{"number before string", NewNumber(999), NewString("1"), -1},
		{"string before bool", NewString("zzz"), NewBool(false), -1},
		{"false before true", NewBool(false), NewBool(true), -1},
		{"empty as zero", Empty, NewNumber(0), 0},
		{"empty as empty string", NewString(""), Empty, 0},
		{"empty as false", Empty, NewBool(true), -1},
		{"both empty", Empty, Empty, 0},
		{"hyperlink by title", NewHyperlink("https://b.example", "a"), NewString("A"), 0},
		{"single cell array", NewArray([][]Value{{NewNumber(5)}}), NewNumber(4), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCoercion(t *testing.T) {
	t.Run("ToNumber", func(t *testing.T) {
		tests := []struct {
			in      Value
			want    float64
			wantErr ErrorCode
		}{
			{Empty, 0, ""},
			{NewBool(true), 1, ""},
			{NewString(" 2.5 "), 2.5, ""},
			{NewString("50%"), 0.5, ""},
			{NewString("abc"), 0, CodeValue},
			{NewDivByZeroError().ToValue(), 0, CodeDivByZero},
			{NewArray([][]Value{{NewNumber(1), NewNumber(2)}}), 0, CodeValue},
		}
		for _, tt := range tests {
			got, err := tt.in.ToNumber()
			if tt.wantErr != "" {
				if err == nil || err.Code != tt.wantErr {
					t.Errorf("ToNumber(%v): got error %v, want %s", tt.in, err, tt.wantErr)
				}
				continue
			}
			if err != nil || got != tt.want {
				t.Errorf("ToNumber(%v) = %v, %v, want %v", tt.in, got, err, tt.want)
			}
		}
	})

	t.Run("ToText", func(t *testing.T) {
		tests := []struct {
			in   Value
			want string
		}{
			{Empty, ""},
			{NewNumber(42), "42"},
			{NewNumber(0.1 + 0.2), "0.3"},
			{NewNumber(1e20), "1e+20"},
			{NewBool(false), "FALSE"},
			{NewHyperlink("https://example.com", ""), "https://example.com"},
		}
		for _, tt := range tests {
			got, err := tt.in.ToText()
			if err != nil || got != tt.want {
				t.Errorf("ToText(%v) = %q, %v, want %q", tt.in, got, err, tt.want)
			}
		}
	})

	t.Run("ToBool", func(t *testing.T) {
		if b, err := NewString("true").ToBool(); err != nil || !b {
			t.Errorf("\"true\": got %v, %v", b, err)
		}
		if b, err := NewNumber(-1).ToBool(); err != nil || !b {
			t.Errorf("-1: got %v, %v", b, err)
		}
		if _, err := NewString("yes").ToBool(); err == nil || err.Code != CodeValue {
			t.Errorf("\"yes\": got %v, want ValueError", err)
		}
	})
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		want   Value
		wantOK bool
	}{
		{"nil", nil, Empty, true},
		{"float", 1.5, NewNumber(1.5), true},
		{"int", 7, NewNumber(7), true},
		{"json number", json.Number("12"), NewNumber(12), true},
		{"string", "x", NewString("x"), true},
		{"hyperlink map", map[string]any{"datatype": "hyperlink", "hyperlink": "https://a.example", "title": "A"}, NewHyperlink("https://a.example", "A"), true},
		{"plain map", map[string]any{"a": 1.0}, Empty, false},
		{"flat slice", []any{1.0, "b"}, NewArray([][]Value{{NewNumber(1), NewString("b")}}), true},
		{"nested slice", []any{[]any{1.0}, []any{2.0}}, NewArray([][]Value{{NewNumber(1)}, {NewNumber(2)}}), true},
		{"ragged", []any{[]any{1.0}, []any{2.0, 3.0}}, Empty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromGo(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToGoValue(t *testing.T) {
	arr := NewArray([][]Value{{NewNumber(1), Empty}, {NewString("a"), NewBool(true)}})
	out, err := json.Marshal(arr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `[[1,null],["a",true]]` {
		t.Errorf("got %s", out)
	}

	if got := NewRefError("gone").ToValue().ToGoValue(); got != "#REF!" {
		t.Errorf("error display: got %v", got)
	}
}

func TestFormulaError(t *testing.T) {
	tests := []struct {
		err     *FormulaError
		display string
		text    string
	}{
		{NewDivByZeroError(), "#DIV/0!", "DivByZero: division by zero"},
		{NewSyntaxError("unexpected ')'", 4), "#ERROR!", "SyntaxError: unexpected ')' (at offset 4)"},
		{NewNameError("unknown function FOO"), "#NAME?", "NameError: unknown function FOO"},
		{NewCircularRefError("loop"), "#CIRCULAR!", "CircularRef: loop"},
		{NewFormulaError("Custom", "odd"), "#ERROR!", "Custom: odd"},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if got := tt.err.Display(); got != tt.display {
				t.Errorf("Display() = %q, want %q", got, tt.display)
			}
			if got := tt.err.Error(); got != tt.text {
				t.Errorf("Error() = %q, want %q", got, tt.text)
			}
		})
	}

	if !errors.Is(NewValueError("a"), NewValueError("b")) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(NewValueError("a"), NewNumError("a")) {
		t.Error("errors.Is should not match different codes")
	}
}

func TestCodeFromDisplay(t *testing.T) {
	if code, ok := CodeFromDisplay("#N/A"); !ok || code != CodeNotAvailable {
		t.Errorf("#N/A: got %q, %v", code, ok)
	}
	if _, ok := CodeFromDisplay("#n/a"); ok {
		t.Error("lookup should be exact")
	}
	// #ERROR! is shared by several codes and must map to the generic one.
	if code, ok := CodeFromDisplay("#ERROR!"); !ok || code != CodeGeneric {
		t.Errorf("#ERROR!: got %q, %v", code, ok)
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]int{"b": 1, "a": 2, "c": 3})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("got %v", got)
	}
}
