package functions

import (
	"math"
	"strings"
	"time"

	"github.com/onlyadaydreamer/grid/pkg/types"
)

// epoch is serial day zero. Day 1 is 1899-12-31 and 1900-03-01 is 61, as in
// spreadsheet applications that skip the 1900 leap-year bug.
var epoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31, the last representable date.
const maxSerial = 2958465

// dateLayouts are the formats DATEVALUE and date coercion accept.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// registerDate registers date functions. Dates are serial day numbers
// with the time of day as the fractional part.
func (r *Registry) registerDate() {
	r.Register("DATE", dateDate)
	r.Register("DATEVALUE", dateValue)
	r.Register("TODAY", dateToday)
	r.Register("NOW", dateNow)
	r.Register("YEAR", datePart("YEAR", func(t time.Time) int { return t.Year() }))
	r.Register("MONTH", datePart("MONTH", func(t time.Time) int { return int(t.Month()) }))
	r.Register("DAY", datePart("DAY", func(t time.Time) int { return t.Day() }))
	r.Register("WEEKDAY", dateWeekday)
	r.Register("DAYS", dateDays)
}

// Serial converts t to a serial day number, ignoring its location.
func Serial(t time.Time) float64 {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	days := float64((midnight.Unix() - epoch.Unix()) / 86400)
	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return days + float64(secs)/86400
}

// FromSerial converts a serial day number to a UTC time.
func FromSerial(serial float64) time.Time {
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	return epoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
}

func parseDate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Serial(t), true
		}
	}
	return 0, false
}

// dateArg reads a serial date, parsing date text.
func dateArg(name string, args []types.Value, i int) (float64, error) {
	v := first(args[i])
	if v.Type() == types.TypeString {
		if serial, ok := parseDate(v.AsString()); ok {
			return serial, nil
		}
	}
	serial, err := numberArg(name, args, i)
	if err != nil {
		return 0, err
	}
	if serial < 0 {
		return 0, types.NewNumError(name + ": date must not be negative")
	}
	if serial >= maxSerial+1 {
		return 0, types.NewNumError(name + ": date is past 9999-12-31")
	}
	return serial, nil
}

func dateDate(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("DATE", args, 3, 3); err != nil {
		return types.Empty, err
	}
	parts := make([]int, 3)
	for i := range parts {
		f, err := numberArg("DATE", args, i)
		if err != nil {
			return types.Empty, err
		}
		parts[i] = toIndex(f)
	}
	year := parts[0]
	if year >= 0 && year < 1900 {
		year += 1900
	}
	t := time.Date(year, time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
	serial := Serial(t)
	if serial < 0 {
		return types.Empty, types.NewNumError("DATE: date is before the epoch")
	}
	if serial >= maxSerial+1 {
		return types.Empty, types.NewNumError("DATE: date is past 9999-12-31")
	}
	return types.NewNumber(serial), nil
}

func dateValue(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("DATEVALUE", args, 1, 1); err != nil {
		return types.Empty, err
	}
	s, err := textArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	serial, ok := parseDate(s)
	if !ok {
		return types.Empty, types.NewValueError("DATEVALUE: " + s + " is not a recognized date")
	}
	return types.NewNumber(math.Floor(serial)), nil
}

func dateToday(ctx *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("TODAY", args, 0, 0); err != nil {
		return types.Empty, err
	}
	return types.NewNumber(math.Floor(Serial(ctx.Now()))), nil
}

func dateNow(ctx *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("NOW", args, 0, 0); err != nil {
		return types.Empty, err
	}
	return types.NewNumber(Serial(ctx.Now())), nil
}

func datePart(name string, pick func(time.Time) int) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, 1); err != nil {
			return types.Empty, err
		}
		serial, err := dateArg(name, args, 0)
		if err != nil {
			return types.Empty, err
		}
		return types.NewNumber(float64(pick(FromSerial(serial)))), nil
	}
}

// dateWeekday numbers days per the return type: 1 is Sunday=1, 2 is
// Monday=1 and 3 is Monday=0.
func dateWeekday(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("WEEKDAY", args, 1, 2); err != nil {
		return types.Empty, err
	}
	serial, err := dateArg("WEEKDAY", args, 0)
	if err != nil {
		return types.Empty, err
	}
	kind, err := optNumber("WEEKDAY", args, 1, 1)
	if err != nil {
		return types.Empty, err
	}
	wd := int(FromSerial(serial).Weekday()) // Sunday = 0
	switch toIndex(kind) {
	case 1:
		return types.NewNumber(float64(wd + 1)), nil
	case 2:
		return types.NewNumber(float64((wd+6)%7 + 1)), nil
	case 3:
		return types.NewNumber(float64((wd + 6) % 7)), nil
	}
	return types.Empty, types.NewNumError("WEEKDAY: unsupported return type")
}

func dateDays(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("DAYS", args, 2, 2); err != nil {
		return types.Empty, err
	}
	end, err := dateArg("DAYS", args, 0)
	if err != nil {
		return types.Empty, err
	}
	start, err := dateArg("DAYS", args, 1)
	if err != nil {
		return types.Empty, err
	}
	return types.NewNumber(math.Floor(end) - math.Floor(start)), nil
}
