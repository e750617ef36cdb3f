// compiled path patterns, not accessible from upper packages so use an abstraction: HTTPRouter
package router

import "strings"

// one path segment of a pattern
type segment struct {
	lit     string
	isparam bool // {name} segment, lit holds the name
}

// pattern matches the whole path, never a prefix
type pattern struct {
	raw  string
	segs []segment
}

// split our url to segments /api/{id} -> {"", api, {id}}
func compile(p string) pattern {
	parts := strings.Split(p, "/")
	segs := make([]segment, len(parts))

	for i, s := range parts {
		if len(s) > 2 && s[0] == '{' && s[len(s)-1] == '}' {
			segs[i] = segment{lit: s[1 : len(s)-1], isparam: true}
			continue
		}
		segs[i] = segment{lit: s}
	}
	return pattern{raw: p, segs: segs}
}

// check if path matches and collect params into dst,
// dst is only written on a full match
func (p *pattern) match(path string, dst map[string]string) bool {
	if strings.Count(path, "/")+1 != len(p.segs) {
		return false
	}

	// walk path segments without allocating a slice for them
	rest := path
	var buf [8][2]string
	binds := buf[:0]

	for i := range p.segs {
		s := &p.segs[i]

		var cur string
		if j := strings.IndexByte(rest, '/'); j != -1 {
			cur, rest = rest[:j], rest[j+1:]
		} else {
			cur, rest = rest, ""
		}

		if !s.isparam {
			if cur != s.lit {
				return false
			}
			continue
		}

		// placeholder needs a non-empty segment
		if cur == "" {
			return false
		}
		binds = append(binds, [2]string{s.lit, cur})
	}

	for _, b := range binds {
		dst[b[0]] = b[1]
	}
	return true
}
