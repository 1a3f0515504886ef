package calc

import (
	"encoding/json"
	"strings"

	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// DefaultHyperlinkColor is the text color reported for hyperlink results.
const DefaultHyperlinkColor = "#1155CC"

// Result types reported in ParseResults.ResultType.
const (
	ResultNumber    = "number"
	ResultString    = "string"
	ResultBoolean   = "boolean"
	ResultHyperlink = "hyperlink"
	ResultArray     = "array"
	ResultError     = "error"
)

// ParseResults is the outcome of evaluating one formula. Absent fields are
// omitted when encoded so hosts can shallow-merge it into cell state.
type ParseResults struct {
	Result       any    `json:"result,omitempty"`
	ResultType   string `json:"resultType,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Hyperlink    string `json:"hyperlink,omitempty"`
	Color        string `json:"color,omitempty"`
	Underline    bool   `json:"underline,omitempty"`
}

// IsZero reports whether r carries nothing, as for an empty formula.
func (r ParseResults) IsZero() bool {
	return r == ParseResults{}
}

// Value converts r back into the value a referencing formula sees.
func (r ParseResults) Value() types.Value {
	return r.Snapshot("").Value()
}

// Snapshot packs r as the cached result of a formula cell.
func (r ParseResults) Snapshot(text string) sheet.CellSnapshot {
	snap := sheet.CellSnapshot{
		Text:       text,
		DataType:   sheet.DataFormula,
		Result:     r.Result,
		ResultType: r.ResultType,
	}
	switch r.ResultType {
	case ResultError:
		snap.Result = r.Error
	case ResultHyperlink:
		snap.Result = map[string]any{
			"datatype":  "hyperlink",
			"hyperlink": r.Hyperlink,
			"title":     r.Result,
		}
	}
	return snap
}

// Classify describes an evaluated value. Hyperlinks carry their target,
// color and underline; errors their code and message; arrays are kept
// whole. A string holding a JSON object or array is decoded and classified
// again when it converts to a value, and kept as-is otherwise.
func Classify(v types.Value) ParseResults {
	switch v.Type() {
	case types.TypeHyperlink:
		h := v.AsHyperlink()
		display := h.Title
		if display == "" {
			display = h.URL
		}
		return ParseResults{
			Result:     display,
			ResultType: ResultHyperlink,
			Hyperlink:  h.URL,
			Color:      DefaultHyperlinkColor,
			Underline:  true,
		}
	case types.TypeError:
		fe := v.AsError()
		return ParseResults{
			ResultType:   ResultError,
			Error:        string(fe.Code),
			ErrorMessage: fe.Message,
		}
	case types.TypeArray:
		return ParseResults{Result: v.ToGoValue(), ResultType: ResultArray}
	case types.TypeNumber:
		return ParseResults{Result: v.AsNumber(), ResultType: ResultNumber}
	case types.TypeBool:
		return ParseResults{Result: v.AsBool(), ResultType: ResultBoolean}
	case types.TypeString:
		if decoded, ok := decodeEmbedded(v.AsString()); ok {
			return Classify(decoded)
		}
		return ParseResults{Result: v.AsString(), ResultType: ResultString}
	}
	// An empty result displays as zero.
	return ParseResults{Result: 0.0, ResultType: ResultNumber}
}

// ClassifyRaw classifies a plain Go value, such as a decoded JSON payload
// or the return of a host callback. Values with no formula equivalent are
// passed through untyped.
func ClassifyRaw(raw any) ParseResults {
	v, ok := types.FromGo(raw)
	if !ok {
		return ParseResults{Result: raw}
	}
	return Classify(v)
}

func decodeEmbedded(s string) (types.Value, bool) {
	trimmed := strings.TrimSpace(s)
	// Only JSON objects and arrays are decoded; scalar JSON such as "123" or "true" stays text.
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return types.Empty, false
	}
	var raw any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return types.Empty, false
	}
	return types.FromGo(raw)
}
