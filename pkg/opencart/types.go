package opencart

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Money is a decimal amount that tolerates the store's inconsistent price
// encodings: bare numbers, numeric strings, and display strings such as
// "R 15,990.00".
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal as Money.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		m.Decimal = decimal.Zero
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "opencart: money string")
		}
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	if cleaned == "" || cleaned == "-" {
		m.Decimal = decimal.Zero
		return nil
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return eris.Wrapf(err, "opencart: parse money %q", s)
	}
	m.Decimal = d
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}

// Count is an integer the store encodes as either a number or a string.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return eris.Wrapf(err, "opencart: parse count %q", s)
	}
	*c = Count(n)
	return nil
}

func (c Count) String() string {
	return strconv.Itoa(int(c))
}

// APIError is the error field of an API envelope, which may arrive as a
// string, an array of strings, or an object of messages.
type APIError []string

func (e *APIError) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null" || s == `""` || s == "[]" || s == "{}":
		*e = nil
	case strings.HasPrefix(s, `"`):
		var msg string
		if err := json.Unmarshal(data, &msg); err != nil {
			return eris.Wrap(err, "opencart: error string")
		}
		*e = APIError{msg}
	case strings.HasPrefix(s, "["):
		var msgs []string
		if err := json.Unmarshal(data, &msgs); err != nil {
			return eris.Wrap(err, "opencart: error list")
		}
		*e = APIError(msgs)
	case strings.HasPrefix(s, "{"):
		var keyed map[string]string
		if err := json.Unmarshal(data, &keyed); err != nil {
			return eris.Wrap(err, "opencart: error object")
		}
		var msgs []string
		for k, v := range keyed {
			msgs = append(msgs, k+": "+v)
		}
		sort.Strings(msgs)
		*e = APIError(msgs)
	default:
		*e = APIError{s}
	}
	return nil
}

// NotEmpty reports whether the envelope carried any error message.
func (e APIError) NotEmpty() bool {
	return len(e) > 0
}

func (e APIError) String() string {
	return strings.Join(e, "; ")
}
