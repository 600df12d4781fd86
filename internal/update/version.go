package update

import (
	"strconv"
	"strings"
)

// Normalize trims v and drops a leading 'v' or 'V' so "v1.4.2" and "1.4.2"
// compare equal.
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') {
		v = v[1:]
	}
	return v
}

// Components splits the normalized v on literal dots. Components that are not
// non-negative integers count as 0.
func Components(v string) []int {
	parts := strings.Split(Normalize(v), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			n = 0
		}
		out[i] = n
	}
	return out
}

// Newer reports whether remote should replace current. It reports true at the
// first shared position where the remote component is larger; a smaller
// remote component does not end the walk. When no position decides, the
// version with more components is newer.
//
//	Newer("1.2.3", "1.2.3.1")   == true
//	Newer("1.2.3.0", "1.2.3")   == false
//	Newer("2.0", "1.9.9")       == true
//
// Use Compare for a total order.
func Newer(current, remote string) bool {
	cur, rem := Components(current), Components(remote)
	for i := 0; i < len(cur) && i < len(rem); i++ {
		if cur[i] < rem[i] {
			return true
		}
	}
	return len(cur) < len(rem)
}

// Compare orders a and b component-wise; the first differing component
// decides, and a matching shorter version sorts first. It returns -1, 0 or 1.
func Compare(a, b string) int {
	x, y := Components(a), Components(b)
	for i := 0; i < len(x) && i < len(y); i++ {
		switch {
		case x[i] < y[i]:
			return -1
		case x[i] > y[i]:
			return 1
		}
	}
	switch {
	case len(x) < len(y):
		return -1
	case len(x) > len(y):
		return 1
	}
	return 0
}
