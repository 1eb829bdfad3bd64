package database

import (
	"reflect"
	"testing"
)

func TestParameterNames(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{name: "none", sql: "SELECT 1", want: nil},
		{name: "anonymous", sql: "SELECT ?, ?", want: []string{"", ""}},
		{name: "numbered", sql: "SELECT ?2, ?1", want: []string{"", ""}},
		{name: "numbered gap", sql: "SELECT ?, ?5", want: []string{"", "", "", "", ""}},
		{name: "anonymous after numbered", sql: "SELECT ?3, ?", want: []string{"", "", "", ""}},
		{name: "named reused", sql: "SELECT :a, @b, :a", want: []string{"a", "b"}},
		{name: "mixed", sql: "SELECT ?, $val", want: []string{"", "val"}},
		{name: "string literal", sql: "SELECT '?', ?", want: []string{""}},
		{name: "escaped quote", sql: "SELECT 'it''s ?', ?", want: []string{""}},
		{name: "quoted identifier", sql: `SELECT "col?" FROM t WHERE x = ?`, want: []string{""}},
		{name: "bracket identifier", sql: "SELECT [a?b] FROM t", want: nil},
		{name: "line comment", sql: "SELECT ? -- ?\n, ?", want: []string{"", ""}},
		{name: "block comment", sql: "SELECT /* ? :x */ ?", want: []string{""}},
		{name: "unterminated comment", sql: "SELECT ? /* ?", want: []string{""}},
		{name: "bare colon", sql: "SELECT ':' || ?", want: []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parameterNames(tt.sql)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parameterNames(%q) = %q, want %q", tt.sql, got, tt.want)
			}
		})
	}
}

func TestHasTrailingStatement(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"single", "SELECT 1", false},
		{"trailing semicolon", "SELECT 1;", false},
		{"trailing semicolons and space", "SELECT 1 ; ;\n\t", false},
		{"trailing line comment", "SELECT 1; -- done", false},
		{"trailing block comment", "SELECT 1; /* done */", false},
		{"two statements", "SELECT 1; SELECT 2", true},
		{"commit smuggled", "SELECT 1; COMMIT; DELETE FROM widgets", true},
		{"no space", "SELECT 1;DELETE FROM t", true},
		{"semicolon in literal", "SELECT 'a;b'", false},
		{"semicolon in identifier", `SELECT "a;b" FROM t`, false},
		{"semicolon in brackets", "SELECT [a;b] FROM t", false},
		{"semicolon in comment", "SELECT 1 /* ; DROP TABLE t */", false},
		{"literal after semicolon", "SELECT 1; 'x'", true},
		{"unterminated comment", "SELECT 1; /* DROP TABLE t", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasTrailingStatement(tt.sql); got != tt.want {
				t.Errorf("hasTrailingStatement(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}
