package sqlutil

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", "`users`"},
		{"select", "`select`"},        // reserved word
		{"first name", "`first name`"}, // space in name
		{"user`data", "`user``data`"},  // backtick in name
		{"", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "'hello'"},
		{"it's", "'it''s'"},
		{"", "''"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteString(tt.input))
		})
	}
}

func TestDialectQuoting(t *testing.T) {
	assert.Equal(t, `"events"."part_of"`, DialectPostgres.Qualified("events", "part_of"))
	assert.Equal(t, "`events`.`part_of`", DialectMySQL.Qualified("events", "part_of"))
	assert.Equal(t, `"a""b"`, DialectPostgres.QuoteIdentifier(`a"b`))
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input   string
		want    Dialect
		wantErr bool
	}{
		{"postgres", DialectPostgres, false},
		{"PostgreSQL", DialectPostgres, false},
		{" mysql ", DialectMySQL, false},
		{"tidb", DialectMySQL, false},
		{"sqlite", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDialect(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialectPlaceholder(t *testing.T) {
	sqlText, _, err := sq.Select("id").From("t").Where(sq.Eq{"id": 1}).
		PlaceholderFormat(DialectPostgres.Placeholder()).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM t WHERE id = $1", sqlText)

	sqlText, _, err = sq.Select("id").From("t").Where(sq.Eq{"id": 1}).
		PlaceholderFormat(DialectMySQL.Placeholder()).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM t WHERE id = ?", sqlText)
	assert.Equal(t, "mysql", DialectMySQL.DriverName())
	assert.Equal(t, "postgres", DialectPostgres.DriverName())
}
