package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Limit is a quota ceiling that is either a concrete non-negative number or
// unlimited. The zero value is Limited(0).
type Limit struct {
	n         int64
	unlimited bool
}

// Limited returns a concrete limit. Negative values are treated as zero.
func Limited(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n}
}

// Unlimited returns a limit with no ceiling.
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// IsUnlimited reports whether the limit has no ceiling.
func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Value returns the numeric ceiling and false when the limit is unlimited.
func (l Limit) Value() (int64, bool) {
	if l.unlimited {
		return 0, false
	}
	return l.n, true
}

// Allows reports whether a total of used units stays within the limit.
// A negative total is never allowed.
func (l Limit) Allows(used int64) bool {
	if used < 0 {
		return false
	}
	return l.unlimited || used <= l.n
}

// Exceeded reports whether used has reached the ceiling, i.e. no further
// unit may be consumed.
func (l Limit) Exceeded(used int64) bool {
	return !l.unlimited && used >= l.n
}

// Remaining returns max(0, limit-used), or Unlimited.
func (l Limit) Remaining(used int64) Limit {
	switch {
	case l.unlimited:
		return l
	case used <= 0:
		return l
	case used >= l.n:
		return Limited(0)
	}
	return Limited(l.n - used)
}

// Positive reports whether at least one unit is available.
func (l Limit) Positive() bool {
	return l.unlimited || l.n > 0
}

// Ptr returns the limit as a nullable integer: nil means unlimited.
func (l Limit) Ptr() *int64 {
	if l.unlimited {
		return nil
	}
	n := l.n
	return &n
}

// LimitFromPtr is the inverse of Ptr.
func LimitFromPtr(n *int64) Limit {
	if n == nil {
		return Unlimited()
	}
	return Limited(*n)
}

func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(l.n, 10)
}

// MarshalJSON encodes the limit as a number or the string "unlimited".
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.FormatInt(l.n, 10)), nil
}

// UnmarshalJSON accepts a number, "unlimited", or null (unlimited).
func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unlimited" {
			return fmt.Errorf("invalid limit %q", s)
		}
		*l = Unlimited()
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid limit: %w", err)
	}
	*l = Limited(n)
	return nil
}
