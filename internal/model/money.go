package model

import (
	"math"
	"strconv"
	"strings"
)

// Amount is a money value in minor currency units (kopecks).
// The catalog API and the host order payload carry prices as decimal numbers in
// major units ("12990", "12.5"), so Amount marshals to and from that form while
// all arithmetic stays in integers.
type Amount int64

// Mul returns the amount multiplied by a quantity.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

// String renders the amount in major units without trailing zeros: 9900 → "99", 1250 → "12.5".
func (a Amount) String() string {
	sign, v := "", int64(a)
	if v < 0 {
		sign, v = "-", -v
	}
	whole := strconv.FormatInt(v/100, 10)
	if v%100 == 0 {
		return sign + whole
	}
	frac := strings.TrimSuffix(strconv.FormatInt(100+v%100, 10)[1:], "0")
	return sign + whole + "." + frac
}

// Rounded renders the amount rounded half away from zero to whole major units: 12950 → "130".
func (a Amount) Rounded() string {
	if a < 0 {
		return strconv.FormatInt(-int64((-a+50)/100), 10)
	}
	return strconv.FormatInt(int64((a+50)/100), 10)
}

// MarshalJSON encodes the amount as a JSON number in major units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number (or a numeric string) in major units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, ok := parseMajor(strings.TrimSpace(s))
	if !ok {
		return NewValidationError("amount", "not a number: "+s)
	}
	*a = v
	return nil
}

// parseMajor reads a decimal in major units. Plain decimals are parsed with
// integer arithmetic and rounded half away from zero at the kopeck; exponent
// forms fall back to float parsing.
func parseMajor(s string) (Amount, bool) {
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return Amount(math.Round(f * 100)), true
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, false
	}
	if whole == "" {
		whole = "0"
	}
	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return 0, false
		}
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/100-1 {
		return 0, false
	}
	frac += "000"
	kopecks := int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if frac[2] >= '5' {
		kopecks++
	}

	v := Amount(units*100 + kopecks)
	if neg {
		v = -v
	}
	return v, true
}
