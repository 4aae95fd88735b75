package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/katadb/katadb/internal/lexer"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []lexer.Token
	}{
		{
			name:  "select_all_from_table",
			input: "SELECT * FROM tablex;",
			expected: []lexer.Token{
				{Type: lexer.KEYWORD, Literal: "SELECT"},
				{Type: lexer.ASTERISK, Literal: "*"},
				{Type: lexer.KEYWORD, Literal: "FROM"},
				{Type: lexer.IDENTIFIER, Literal: "tablex"},
				{Type: lexer.SEMICOLON, Literal: ";"},
			},
		},
		{
			name:  "create_table_with_constraints",
			input: "CREATE TABLE u (id u64 PRIMARY KEY AUTOINCREMENT, name string NOT NULL)",
			expected: []lexer.Token{
				{Type: lexer.KEYWORD, Literal: "CREATE"},
				{Type: lexer.KEYWORD, Literal: "TABLE"},
				{Type: lexer.IDENTIFIER, Literal: "u"},
				{Type: lexer.LPAREN, Literal: "("},
				{Type: lexer.IDENTIFIER, Literal: "id"},
				{Type: lexer.KEYWORD, Literal: "U64"},
				{Type: lexer.KEYWORD, Literal: "PRIMARY"},
				{Type: lexer.KEYWORD, Literal: "KEY"},
				{Type: lexer.KEYWORD, Literal: "AUTOINCREMENT"},
				{Type: lexer.COMMA, Literal: ","},
				{Type: lexer.IDENTIFIER, Literal: "name"},
				{Type: lexer.KEYWORD, Literal: "STRING"},
				{Type: lexer.KEYWORD, Literal: "NOT"},
				{Type: lexer.KEYWORD, Literal: "NULL"},
				{Type: lexer.RPAREN, Literal: ")"},
			},
		},
		{
			name:  "string_literal_with_doubled_quote_escape",
			input: "'it''s here'",
			expected: []lexer.Token{
				{Type: lexer.STRING, Literal: "it's here"},
			},
		},
		{
			name:  "comparison_operators",
			input: "a <> b <= c >= d < e > f = g",
			expected: []lexer.Token{
				{Type: lexer.IDENTIFIER, Literal: "a"},
				{Type: lexer.NEQ, Literal: "<>"},
				{Type: lexer.IDENTIFIER, Literal: "b"},
				{Type: lexer.LE, Literal: "<="},
				{Type: lexer.IDENTIFIER, Literal: "c"},
				{Type: lexer.GE, Literal: ">="},
				{Type: lexer.IDENTIFIER, Literal: "d"},
				{Type: lexer.LT, Literal: "<"},
				{Type: lexer.IDENTIFIER, Literal: "e"},
				{Type: lexer.GT, Literal: ">"},
				{Type: lexer.IDENTIFIER, Literal: "f"},
				{Type: lexer.EQ, Literal: "="},
				{Type: lexer.IDENTIFIER, Literal: "g"},
			},
		},
		{
			name:  "between_and_like",
			input: "age BETWEEN 1 AND 9 OR name LIKE 'x'",
			expected: []lexer.Token{
				{Type: lexer.IDENTIFIER, Literal: "age"},
				{Type: lexer.KEYWORD, Literal: "BETWEEN"},
				{Type: lexer.NUMBER, Literal: "1"},
				{Type: lexer.KEYWORD, Literal: "AND"},
				{Type: lexer.NUMBER, Literal: "9"},
				{Type: lexer.KEYWORD, Literal: "OR"},
				{Type: lexer.IDENTIFIER, Literal: "name"},
				{Type: lexer.KEYWORD, Literal: "LIKE"},
				{Type: lexer.STRING, Literal: "x"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := lexer.New(tt.input)
			for _, want := range tt.expected {
				got := l.NextToken()
				assert.Equal(t, want, got)
			}
			assert.Equal(t, lexer.EOF, l.NextToken().Type)
		})
	}
}
