package fs

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher matches absolute paths against a pattern. Two syntaxes are
// supported: "glob:" patterns with *, **, ?, character classes and
// {alternation}, and raw "regex:" patterns. A pattern without a syntax
// prefix is treated as a glob.
type Matcher struct {
	re *regexp.Regexp
}

func NewMatcher(pattern string) (*Matcher, error) {
	var expr string
	switch {
	case strings.HasPrefix(pattern, "regex:"):
		expr = strings.TrimPrefix(pattern, "regex:")
	case strings.HasPrefix(pattern, "glob:"):
		translated, err := globToRegex(strings.TrimPrefix(pattern, "glob:"))
		if err != nil {
			return nil, err
		}
		expr = translated
	default:
		translated, err := globToRegex(pattern)
		if err != nil {
			return nil, err
		}
		expr = translated
	}
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &Matcher{re: re}, nil
}

// Matches reports whether the canonical form of path matches the
// pattern. Matching is done against the path relative to the root,
// without the leading separator.
func (m *Matcher) Matches(path string) bool {
	rel := strings.Join(SplitPath(path), Separator)
	return m.re.MatchString(rel)
}

const regexMeta = `.^$+{[]|()`

func isGlobMeta(c byte) bool {
	return strings.IndexByte(`\*?[{`, c) != -1
}

// globToRegex translates a glob into a regular expression. * and ?
// never cross a separator, ** crosses any number of them.
func globToRegex(glob string) (string, error) {
	var b strings.Builder
	inGroup := false

	i := 0
	next := func() (byte, bool) {
		if i < len(glob) {
			c := glob[i]
			i++
			return c, true
		}
		return 0, false
	}
	peek := func() (byte, bool) {
		if i < len(glob) {
			return glob[i], true
		}
		return 0, false
	}

	for {
		c, ok := next()
		if !ok {
			break
		}
		switch c {
		case '\\':
			esc, ok := next()
			if !ok {
				return "", fmt.Errorf("%w: no character to escape at end of glob", ErrInvalid)
			}
			if isGlobMeta(esc) || strings.IndexByte(regexMeta, esc) != -1 {
				b.WriteByte('\\')
			}
			b.WriteByte(esc)
		case '/':
			b.WriteByte('/')
		case '[':
			if err := translateClass(glob, &i, &b); err != nil {
				return "", err
			}
		case '{':
			if inGroup {
				return "", fmt.Errorf("%w: cannot nest glob groups", ErrInvalid)
			}
			inGroup = true
			b.WriteString("(?:")
		case '}':
			if inGroup {
				inGroup = false
				b.WriteByte(')')
			} else {
				b.WriteByte('}')
			}
		case ',':
			if inGroup {
				b.WriteByte('|')
			} else {
				b.WriteByte(',')
			}
		case '*':
			if p, ok := peek(); ok && p == '*' {
				next()
				b.WriteString(".*")
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			if strings.IndexByte(regexMeta, c) != -1 {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
	}
	if inGroup {
		return "", fmt.Errorf("%w: missing '}' in glob", ErrInvalid)
	}
	return b.String(), nil
}

// translateClass translates a glob character class starting right
// after the '['. Classes never match the separator, so ranges that
// cross it are split around it.
func translateClass(glob string, i *int, b *strings.Builder) error {
	if *i >= len(glob) {
		return fmt.Errorf("%w: missing ']' in glob", ErrInvalid)
	}

	negated := glob[*i] == '!'
	if negated {
		*i++
	}
	b.WriteByte('[')
	if negated {
		b.WriteString("^/")
	}

	type span struct{ lo, hi byte }
	var spans []span
	first := true
	for {
		if *i >= len(glob) {
			return fmt.Errorf("%w: missing ']' in glob", ErrInvalid)
		}
		c := glob[*i]
		*i++
		if c == ']' && !first {
			break
		}
		first = false
		if c == '/' {
			return fmt.Errorf("%w: explicit separator in glob class", ErrInvalid)
		}
		if c == '\\' {
			if *i >= len(glob) {
				return fmt.Errorf("%w: no character to escape at end of glob", ErrInvalid)
			}
			c = glob[*i]
			*i++
		}
		lo, hi := c, c
		if *i+1 < len(glob) && glob[*i] == '-' && glob[*i+1] != ']' {
			*i++
			hi = glob[*i]
			*i++
			if hi == '\\' {
				if *i >= len(glob) {
					return fmt.Errorf("%w: no character to escape at end of glob", ErrInvalid)
				}
				hi = glob[*i]
				*i++
			}
			if hi < lo {
				return fmt.Errorf("%w: invalid range in glob class", ErrInvalid)
			}
		}
		spans = append(spans, span{lo, hi})
	}
	if len(spans) == 0 {
		return fmt.Errorf("%w: empty glob class", ErrInvalid)
	}

	writeByteInClass := func(c byte) {
		if strings.IndexByte(`\]^-[`, c) != -1 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	writeSpan := func(lo, hi byte) {
		writeByteInClass(lo)
		if hi > lo {
			b.WriteByte('-')
			writeByteInClass(hi)
		}
	}
	for _, s := range spans {
		if !negated && s.lo <= '/' && '/' <= s.hi {
			if s.lo < '/' {
				writeSpan(s.lo, '/'-1)
			}
			if s.hi > '/' {
				writeSpan('/'+1, s.hi)
			}
			continue
		}
		writeSpan(s.lo, s.hi)
	}
	b.WriteByte(']')
	return nil
}
