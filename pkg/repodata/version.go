package repodata

import (
	"strconv"
	"strings"
)

// compareVersions orders dotted numeric-ish version strings the way the
// "newest record" selection in §4.7.3 needs: components are compared
// numerically when both sides parse as integers, else lexically. A missing
// trailing component compares as "0", so "1.0" equals "1.0.0".
func compareVersions(a, b string) int {
	as := strings.FieldsFunc(a, isVersionSep)
	bs := strings.FieldsFunc(b, isVersionSep)
	for i := 0; i < len(as) || i < len(bs); i++ {
		ac, bc := "0", "0"
		if i < len(as) {
			ac = as[i]
		}
		if i < len(bs) {
			bc = bs[i]
		}
		if c := compareComponent(ac, bc); c != 0 {
			return c
		}
	}
	return 0
}

func isVersionSep(r rune) bool {
	return r == '.' || r == '-' || r == '_'
}

func compareComponent(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// versionSelector is the abstracted pin predicate of §4.7.3: a string
// either naming an exact version or a "name op version" comparison this
// implementation understands ("==", ">=", "<=", ">", "<").
type versionSelector struct {
	op      string
	version string
}

func parseVersionSelector(s string) versionSelector {
	for _, op := range []string{">=", "<=", "==", ">", "<"} {
		if rest, ok := strings.CutPrefix(s, op); ok {
			return versionSelector{op: op, version: strings.TrimSpace(rest)}
		}
	}
	return versionSelector{op: "==", version: strings.TrimSpace(s)}
}

func (sel versionSelector) matches(version string) bool {
	c := compareVersions(version, sel.version)
	switch sel.op {
	case "==":
		return c == 0
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case "<":
		return c < 0
	default:
		return false
	}
}
