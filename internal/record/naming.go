package record

import (
	"reflect"
	"strings"
	"unicode"
)

// irregularPlurals covers nouns whose plural is not formed by suffixing.
var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"mouse":  "mice",
	"goose":  "geese",
	"tooth":  "teeth",
	"foot":   "feet",
	"ox":     "oxen",
}

// uncountable nouns keep their singular form.
var uncountable = map[string]bool{
	"equipment":   true,
	"fish":        true,
	"information": true,
	"news":        true,
	"series":      true,
	"sheep":       true,
	"species":     true,
}

// Tableize converts a Go type name into a table name: snake case, with
// the final word pluralised. "LineItem" becomes "line_items".
func Tableize(typeName string) string {
	return Pluralize(Underscore(typeName))
}

// Underscore converts a CamelCase identifier to snake_case. Runs of
// capitals are treated as one word, so "HTTPRequest" becomes
// "http_request".
func Underscore(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Pluralize returns the English plural of the last underscore-separated
// word of s.
func Pluralize(s string) string {
	if s == "" {
		return s
	}
	prefix, word := "", s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		prefix, word = s[:i+1], s[i+1:]
	}
	return prefix + pluralWord(word)
}

func pluralWord(w string) string {
	if w == "" || uncountable[w] {
		return w
	}
	if p, ok := irregularPlurals[w]; ok {
		return p
	}
	switch {
	case strings.HasSuffix(w, "s"), strings.HasSuffix(w, "x"), strings.HasSuffix(w, "z"),
		strings.HasSuffix(w, "ch"), strings.HasSuffix(w, "sh"):
		return w + "es"
	case strings.HasSuffix(w, "y") && len(w) > 1 && !strings.ContainsRune("aeiou", rune(w[len(w)-2])):
		return w[:len(w)-1] + "ies"
	default:
		return w + "s"
	}
}

// tableNameFor derives the table name for the entity kind produced by e.
func tableNameFor(e Entity) string {
	if n, ok := e.(TableNamer); ok {
		if name := n.TableName(); name != "" {
			return name
		}
	}
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return Tableize(t.Name())
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
