package reactive

import (
	"strconv"
	"strings"
	"unicode"
)

// ParsePath compiles a dot-delimited property path such as "user.address.city"
// into a Getter. It reports false when the path contains anything but
// letters, digits, '.', '$' and '_'.
//
// The returned Getter resolves segments against *Object, *Array,
// map[string]any and []any values (numeric segments index sequences) and
// yields nil as soon as an intermediate value is missing.
func ParsePath(path string) (Getter, bool) {
	for _, r := range path {
		if !validPathRune(r) {
			return nil, false
		}
	}

	segments := strings.Split(path, ".")
	return func(host any) any {
		v := host
		for _, seg := range segments {
			if v == nil {
				return nil
			}
			v = lookup(v, seg)
		}
		return v
	}, true
}

func validPathRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '$' || r == '_'
}

func lookup(v any, key string) any {
	switch x := v.(type) {
	case *Object:
		if x == nil {
			return nil
		}
		return x.Get(key)
	case *Array:
		if x == nil {
			return nil
		}
		if i, err := strconv.Atoi(key); err == nil {
			return x.At(i)
		}
	case map[string]any:
		return x[key]
	case []any:
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(x) {
			return x[i]
		}
	}
	return nil
}
