package types

import (
	"strconv"
	"strings"
)

// CompareEVR orders two epoch:version-release triples the way rpm does.
// It returns -1, 0 or 1.
func CompareEVR(e1, v1, r1, e2, v2, r2 string) int {
	n1, _ := strconv.ParseInt(orZero(e1), 10, 64)
	n2, _ := strconv.ParseInt(orZero(e2), 10, 64)
	switch {
	case n1 < n2:
		return -1
	case n1 > n2:
		return 1
	}
	if c := CompareVersion(v1, v2); c != 0 {
		return c
	}
	return CompareVersion(r1, r2)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// CompareVersion compares two version or release strings segment by
// segment. A tilde sorts before anything, a caret after the base version.
func CompareVersion(a, b string) int {
	if a == b {
		return 0
	}
	for {
		a = strings.TrimLeftFunc(a, isSeparator)
		b = strings.TrimLeftFunc(b, isSeparator)

		if strings.HasPrefix(a, "~") || strings.HasPrefix(b, "~") {
			if !strings.HasPrefix(a, "~") {
				return 1
			}
			if !strings.HasPrefix(b, "~") {
				return -1
			}
			a, b = a[1:], b[1:]
			continue
		}
		if strings.HasPrefix(a, "^") || strings.HasPrefix(b, "^") {
			switch {
			case a == "":
				return -1
			case b == "":
				return 1
			case !strings.HasPrefix(a, "^"):
				return 1
			case !strings.HasPrefix(b, "^"):
				return -1
			}
			a, b = a[1:], b[1:]
			continue
		}
		if a == "" || b == "" {
			break
		}

		numeric := isDigit(rune(a[0]))
		class := isAlpha
		if numeric {
			class = isDigit
		}
		segA, restA := span(a, class)
		segB, restB := span(b, class)
		a, b = restA, restB
		if segB == "" {
			if numeric {
				return 1
			}
			return -1
		}
		if numeric {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) != len(segB) {
				if len(segA) < len(segB) {
					return -1
				}
				return 1
			}
		}
		if c := strings.Compare(segA, segB); c != 0 {
			return c
		}
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

func span(s string, class func(rune) bool) (string, string) {
	i := 0
	for i < len(s) && class(rune(s[i])) {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isAlpha(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }

func isSeparator(r rune) bool {
	return !isDigit(r) && !isAlpha(r) && r != '~' && r != '^'
}
