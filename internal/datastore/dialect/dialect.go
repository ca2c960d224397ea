// Package dialect rewrites portable query text into the placeholder syntax of
// the configured SQL driver.
package dialect

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jbweber/homelab/roster/internal/persistence"
)

// Name is a normalized dialect name
type Name string

const (
	NameSQLite   Name = "sqlite"
	NamePostgres Name = "postgres"
	NameUnknown  Name = ""
)

// Dialect captures the driver differences the datastore cares about.
type Dialect struct {
	name Name
}

// New maps a database/sql driver name to its dialect (case insensitive).
func New(driver string) Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return Dialect{name: NameSQLite}
	case "pgx", "postgres", "postgresql":
		return Dialect{name: NamePostgres}
	default:
		return Dialect{name: NameUnknown}
	}
}

// Name returns the normalized dialect name.
func (d Dialect) Name() Name {
	return d.name
}

// Placeholder returns the driver placeholder for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d.name == NamePostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders returns count comma separated placeholders starting at from.
func (d Dialect) Placeholders(from, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.Placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

// QuoteIdentifier double quotes each dot separated part of name.
func (d Dialect) QuoteIdentifier(name string) string {
	if name == "" || d.name == NameUnknown {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// Bind rewrites ?N positional and :name named placeholders in query into the
// dialect's placeholders and returns the matching argument list. A bare ?
// takes the next position after the last one used. Text inside single quoted
// literals, double quoted identifiers, -- and /* */ comments and :: casts is
// left untouched.
//
// Every placeholder must have a bound value and every bound value must be
// used, otherwise the error wraps persistence.ErrInvalidParameter.
func (d Dialect) Bind(query string, positional map[int]any, named map[string]any) (string, []any, error) {
	var (
		sb        strings.Builder
		args      []any
		usedPos   = make(map[int]bool, len(positional))
		usedNamed = make(map[string]bool, len(named))
		nextBare  = 1
	)
	sb.Grow(len(query) + 8)

	emit := func(v any) {
		args = append(args, v)
		sb.WriteString(d.Placeholder(len(args)))
	}

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'' || ch == '"':
			end := closingQuote(query, i)
			sb.WriteString(query[i:end])
			i = end - 1

		case ch == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query)
			} else {
				end += i
			}
			sb.WriteString(query[i:end])
			i = end - 1

		case ch == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query)
			} else {
				end += i + 4
			}
			sb.WriteString(query[i:end])
			i = end - 1

		case ch == '?':
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			pos := nextBare
			if j > i+1 {
				n, err := strconv.Atoi(query[i+1 : j])
				if err != nil {
					return "", nil, fmt.Errorf("bad placeholder %q: %w", query[i:j], persistence.ErrInvalidParameter)
				}
				pos = n
			}
			v, ok := positional[pos]
			if !ok {
				return "", nil, fmt.Errorf("no value bound for ?%d: %w", pos, persistence.ErrInvalidParameter)
			}
			usedPos[pos] = true
			nextBare = pos + 1
			emit(v)
			i = j - 1

		case ch == ':' && i+1 < len(query) && query[i+1] == ':':
			sb.WriteString("::")
			i++

		case ch == ':' && i+1 < len(query) && isNameStart(query[i+1]):
			j := i + 1
			for j < len(query) && isNamePart(query[j]) {
				j++
			}
			name := query[i+1 : j]
			v, ok := named[name]
			if !ok {
				return "", nil, fmt.Errorf("no value bound for :%s: %w", name, persistence.ErrInvalidParameter)
			}
			usedNamed[name] = true
			emit(v)
			i = j - 1

		default:
			sb.WriteByte(ch)
		}
	}

	if unused := unusedPositions(positional, usedPos); len(unused) > 0 {
		return "", nil, fmt.Errorf("positions %v are not used by the query: %w", unused, persistence.ErrInvalidParameter)
	}
	if unused := unusedNames(named, usedNamed); len(unused) > 0 {
		return "", nil, fmt.Errorf("names %v are not used by the query: %w", unused, persistence.ErrInvalidParameter)
	}

	return sb.String(), args, nil
}

// closingQuote returns the index just past the literal opened at start. A
// doubled quote character is an escape. Unterminated literals run to the end.
func closingQuote(query string, start int) int {
	q := query[start]
	for i := start + 1; i < len(query); i++ {
		if query[i] != q {
			continue
		}
		if i+1 < len(query) && query[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(query)
}

func unusedPositions(bound map[int]any, used map[int]bool) []int {
	var out []int
	for p := range bound {
		if !used[p] {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

func unusedNames(bound map[string]any, used map[string]bool) []string {
	var out []string
	for n := range bound {
		if !used[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool { return isNameStart(c) || isDigit(c) }
