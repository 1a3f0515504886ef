package functions

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/onlyadaydreamer/grid/pkg/types"
)

// registerText registers string functions.
func (r *Registry) registerText() {
	r.Register("CONCATENATE", textConcat("CONCATENATE"))
	r.Register("CONCAT", textConcat("CONCAT"))
	r.Register("TEXTJOIN", textJoin)
	r.Register("LEN", textLen)
	r.Register("UPPER", textMap("UPPER", strings.ToUpper))
	r.Register("LOWER", textMap("LOWER", strings.ToLower))
	r.Register("PROPER", textMap("PROPER", proper))
	r.Register("TRIM", textMap("TRIM", func(s string) string { return strings.Join(strings.Fields(s), " ") }))
	r.Register("LEFT", textLeft)
	r.Register("RIGHT", textRight)
	r.Register("MID", textMid)
	r.Register("SUBSTITUTE", textSubstitute)
	r.Register("FIND", textFind("FIND", false))
	r.Register("SEARCH", textFind("SEARCH", true))
	r.Register("REPT", textRept)
	r.Register("EXACT", textExact)
	r.Register("VALUE", textValue)
	r.Register("REGEXMATCH", textRegexMatch)
	r.Register("REGEXEXTRACT", textRegexExtract)
	r.Register("REGEXREPLACE", textRegexReplace)
	r.Register("ENCODEURL", textMap("ENCODEURL", func(s string) string {
		return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	}))
}

func textConcat(name string) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, unbounded); err != nil {
			return types.Empty, err
		}
		var sb strings.Builder
		err := visit(args, func(v types.Value, _ bool) error {
			s, ferr := v.ToText()
			if ferr != nil {
				return ferr
			}
			sb.WriteString(s)
			return nil
		})
		if err != nil {
			return types.Empty, err
		}
		return types.NewString(sb.String()), nil
	}
}

func textJoin(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("TEXTJOIN", args, 3, unbounded); err != nil {
		return types.Empty, err
	}
	delim, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	skipEmpty, err := boolArg(args, 1)
	if err != nil {
		return types.Empty, err
	}
	var parts []string
	err = visit(args[2:], func(v types.Value, _ bool) error {
		s, ferr := v.ToText()
		if ferr != nil {
			return ferr
		}
		if s != "" || !skipEmpty {
			parts = append(parts, s)
		}
		return nil
	})
	if err != nil {
		return types.Empty, err
	}
	return types.NewString(strings.Join(parts, delim)), nil
}

func textLen(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("LEN", args, 1, 1); err != nil {
		return types.Empty, err
	}
	s, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	return types.NewNumber(float64(utf8.RuneCountInString(s))), nil
}

func textMap(name string, fn func(string) string) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, 1); err != nil {
			return types.Empty, err
		}
		s, err := textArg(args, 0)
		if err != nil {
			return types.Empty, err
		}
		return types.NewString(fn(s)), nil
	}
}

// proper capitalizes the first letter of every run of letters.
func proper(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		sb.WriteRune(r)
		prevLetter = false
	}
	return sb.String()
}

// countArg reads a non-negative character count.
func countArg(name string, args []types.Value, i int, def float64) (int, error) {
	n, err := optNumber(name, args, i, def)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, types.NewValueError(fmt.Sprintf("%s: count must not be negative", name))
	}
	return toIndex(n), nil
}

func textLeft(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("LEFT", args, 1, 2); err != nil {
		return types.Empty, err
	}
	s, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	n, err := countArg("LEFT", args, 1, 1)
	if err != nil {
		return types.Empty, err
	}
	runes := []rune(s)
	return types.NewString(string(runes[:min(n, len(runes))])), nil
}

func textRight(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("RIGHT", args, 1, 2); err != nil {
		return types.Empty, err
	}
	s, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	n, err := countArg("RIGHT", args, 1, 1)
	if err != nil {
		return types.Empty, err
	}
	runes := []rune(s)
	return types.NewString(string(runes[len(runes)-min(n, len(runes)):])), nil
}

func textMid(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("MID", args, 3, 3); err != nil {
		return types.Empty, err
	}
	s, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	start, err := numberArg("MID", args, 1)
	if err != nil {
		return types.Empty, err
	}
	if start < 1 {
		return types.Empty, types.NewValueError("MID: start must be at least 1")
	}
	n, err := countArg("MID", args, 2, 0)
	if err != nil {
		return types.Empty, err
	}
	runes := []rune(s)
	from := min(toIndex(start)-1, len(runes))
	to := min(from+n, len(runes))
	return types.NewString(string(runes[from:to])), nil
}

func textSubstitute(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("SUBSTITUTE", args, 3, 4); err != nil {
		return types.Empty, err
	}
	strs := make([]string, 3)
	for i := range strs {
		s, err := textArg(args, i)
		if err != nil {
			return types.Empty, err
		}
		strs[i] = s
	}
	text, old, repl := strs[0], strs[1], strs[2]
	if old == "" {
		return types.NewString(text), nil
	}
	if len(args) < 4 || args[3].IsEmpty() {
		return types.NewString(strings.ReplaceAll(text, old, repl)), nil
	}

	nth, err := numberArg("SUBSTITUTE", args, 3)
	if err != nil {
		return types.Empty, err
	}
	if nth < 1 {
		return types.Empty, types.NewValueError("SUBSTITUTE: occurrence must be at least 1")
	}
	idx := 0
	for i := 1; ; i++ {
		pos := strings.Index(text[idx:], old)
		if pos < 0 {
			return types.NewString(text), nil
		}
		if i == toIndex(nth) {
			at := idx + pos
			return types.NewString(text[:at] + repl + text[at+len(old):]), nil
		}
		idx += pos + len(old)
	}
}

// textFind builds FIND (case-sensitive) and SEARCH (case-insensitive,
// wildcards). Positions are 1-based characters.
func textFind(name string, fold bool) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 2, 3); err != nil {
			return types.Empty, err
		}
		needle, err := textArg(args, 0)
		if err != nil {
			return types.Empty, err
		}
		hay, err := textArg(args, 1)
		if err != nil {
			return types.Empty, err
		}
		start, err := optNumber(name, args, 2, 1)
		if err != nil {
			return types.Empty, err
		}
		runes := []rune(hay)
		from := toIndex(start)
		if from < 1 || from > len(runes)+1 {
			return types.Empty, types.NewValueError(fmt.Sprintf("%s: start is out of range", name))
		}
		rest := string(runes[from-1:])

		var at int
		switch {
		case fold && strings.ContainsAny(needle, "*?"):
			m := regexp.MustCompile("(?is)" + wildcardExpr(needle)).FindStringIndex(rest)
			if m == nil {
				at = -1
			} else {
				at = m[0]
			}
		case fold:
			at = strings.Index(strings.ToLower(rest), strings.ToLower(needle))
		default:
			at = strings.Index(rest, needle)
		}
		if at < 0 {
			return types.Empty, types.NewValueError(fmt.Sprintf("%s: %q not found", name, needle))
		}
		return types.NewNumber(float64(from + utf8.RuneCountInString(rest[:at]))), nil
	}
}

func textRept(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("REPT", args, 2, 2); err != nil {
		return types.Empty, err
	}
	s, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	n, err := countArg("REPT", args, 1, 0)
	if err != nil {
		return types.Empty, err
	}
	if float64(len(s))*float64(n) > 32767 {
		return types.Empty, types.NewValueError("REPT: result is too long")
	}
	return types.NewString(strings.Repeat(s, n)), nil
}

func textExact(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("EXACT", args, 2, 2); err != nil {
		return types.Empty, err
	}
	a, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	b, err := textArg(args, 1)
	if err != nil {
		return types.Empty, err
	}
	return types.NewBool(a == b), nil
}

func textValue(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("VALUE", args, 1, 1); err != nil {
		return types.Empty, err
	}
	v := first(args[0])
	if v.Type() == types.TypeString {
		if serial, ok := parseDate(v.AsString()); ok {
			return types.NewNumber(serial), nil
		}
	}
	f, ferr := v.ToNumber()
	if ferr != nil {
		return types.Empty, ferr
	}
	return types.NewNumber(f), nil
}

func regexArgs(name string, args []types.Value) (string, *regexp.Regexp, error) {
	s, err := textArg(args, 0)
	if err != nil {
		return "", nil, err
	}
	pattern, err := textArg(args, 1)
	if err != nil {
		return "", nil, err
	}
	re, rerr := regexp.Compile(pattern)
	if rerr != nil {
		return "", nil, types.NewValueError(fmt.Sprintf("%s: invalid regular expression %q", name, pattern))
	}
	return s, re, nil
}

func textRegexMatch(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("REGEXMATCH", args, 2, 2); err != nil {
		return types.Empty, err
	}
	s, re, err := regexArgs("REGEXMATCH", args)
	if err != nil {
		return types.Empty, err
	}
	return types.NewBool(re.MatchString(s)), nil
}

// textRegexExtract returns the first match, or its first capture group
// when the pattern has one.
func textRegexExtract(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("REGEXEXTRACT", args, 2, 2); err != nil {
		return types.Empty, err
	}
	s, re, err := regexArgs("REGEXEXTRACT", args)
	if err != nil {
		return types.Empty, err
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		return types.Empty, types.NewNotAvailableError("REGEXEXTRACT: no match")
	}
	if len(m) > 1 {
		return types.NewString(m[1]), nil
	}
	return types.NewString(m[0]), nil
}

func textRegexReplace(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("REGEXREPLACE", args, 3, 3); err != nil {
		return types.Empty, err
	}
	s, re, err := regexArgs("REGEXREPLACE", args)
	if err != nil {
		return types.Empty, err
	}
	repl, err := textArg(args, 2)
	if err != nil {
		return types.Empty, err
	}
	return types.NewString(re.ReplaceAllString(s, repl)), nil
}
