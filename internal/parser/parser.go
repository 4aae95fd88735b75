package parser

import (
	"fmt"
	"strings"

	"github.com/katadb/katadb/internal/lexer"
	"github.com/katadb/katadb/internal/storage"
)

// Parser is a recursive-descent parser over a Lexer's token stream.
type Parser struct {
	l            *lexer.Lexer
	currentToken lexer.Token
	peekToken    lexer.Token
}

// New creates a Parser with currentToken/peekToken both primed.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Parse tokenizes and parses one SQL statement.
func Parse(sql string) (Statement, error) {
	p := New(lexer.New(sql))
	return p.parseStatement()
}

func (p *Parser) parseStatement() (Statement, error) {
	if p.currentToken.Type != lexer.KEYWORD {
		return nil, fmt.Errorf("expected statement keyword, got %s", p.currentToken.Literal)
	}
	switch p.currentToken.Literal {
	case "CREATE":
		return p.parseCreateTable()
	case "INSERT":
		return p.parseInsert()
	case "SELECT":
		return p.parseSelect()
	case "UPDATE":
		return p.parseUpdate()
	case "DELETE":
		return p.parseDelete()
	case "DROP":
		return p.parseDropTable()
	default:
		return nil, fmt.Errorf("unsupported statement keyword: %s", p.currentToken.Literal)
	}
}

func (p *Parser) expectKeyword(word string) error {
	if p.currentToken.Type != lexer.KEYWORD || p.currentToken.Literal != word {
		return fmt.Errorf("expected %s, got %s", word, p.currentToken.Literal)
	}
	return nil
}

func (p *Parser) expectIdentifier() (string, error) {
	if p.currentToken.Type != lexer.IDENTIFIER {
		return "", fmt.Errorf("expected identifier, got %s", p.currentToken.Literal)
	}
	name := p.currentToken.Literal
	p.nextToken()
	return name, nil
}

// --- CREATE TABLE ---

func (p *Parser) parseCreateTable() (Statement, error) {
	p.nextToken() // past CREATE
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	p.nextToken()

	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	if p.currentToken.Type != lexer.LPAREN {
		return nil, fmt.Errorf("expected (, got %s", p.currentToken.Literal)
	}
	p.nextToken()

	stmt := &CreateTableStatement{Table: table}
	for {
		col, err := p.parseColumnSpec()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, col)

		if p.currentToken.Type == lexer.RPAREN {
			p.nextToken()
			break
		}
		if p.currentToken.Type != lexer.COMMA {
			return nil, fmt.Errorf("expected , or ) in column list, got %s", p.currentToken.Literal)
		}
		p.nextToken()
	}

	if p.currentToken.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return stmt, nil
}

func (p *Parser) parseColumnSpec() (ColumnSpec, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return ColumnSpec{}, err
	}

	typeName, err := p.parseTypeName()
	if err != nil {
		return ColumnSpec{}, err
	}
	col := ColumnSpec{Name: name, Type: typeName}

	for p.currentToken.Type == lexer.KEYWORD {
		switch p.currentToken.Literal {
		case "PRIMARY":
			p.nextToken()
			if err := p.expectKeyword("KEY"); err != nil {
				return ColumnSpec{}, err
			}
			p.nextToken()
			col.PrimaryKey = true
			col.Order = storage.OrderAsc
			if p.currentToken.Type == lexer.KEYWORD && p.currentToken.Literal == "ASC" {
				p.nextToken()
			} else if p.currentToken.Type == lexer.KEYWORD && p.currentToken.Literal == "DESC" {
				col.Order = storage.OrderDesc
				p.nextToken()
			}
			if p.currentToken.Type == lexer.KEYWORD && p.currentToken.Literal == "AUTOINCREMENT" {
				col.AutoIncrement = true
				p.nextToken()
			}
		case "NOT":
			p.nextToken()
			if err := p.expectKeyword("NULL"); err != nil {
				return ColumnSpec{}, err
			}
			p.nextToken()
			col.NotNull = true
		case "UNIQUE":
			col.Unique = true
			p.nextToken()
		case "DEFAULT":
			p.nextToken()
			lit, err := p.parseRawLiteralText()
			if err != nil {
				return ColumnSpec{}, err
			}
			col.HasDefault = true
			col.Default = lit
		default:
			return col, nil
		}
	}
	return col, nil
}

func (p *Parser) parseTypeName() (string, error) {
	if p.currentToken.Type != lexer.KEYWORD && p.currentToken.Type != lexer.IDENTIFIER {
		return "", fmt.Errorf("expected column type, got %s", p.currentToken.Literal)
	}
	name := strings.ToLower(p.currentToken.Literal)
	switch name {
	case "string", "uint", "u64":
		p.nextToken()
		return name, nil
	default:
		return "", fmt.Errorf("unknown column type %q", p.currentToken.Literal)
	}
}

// parseRawLiteralText reads one literal token (number, string, or NULL) and
// returns its raw source text (the empty string for NULL), without
// committing to a storage.Literal yet
// (DEFAULT text is stored verbatim and parsed later against the column's
// declared type).
func (p *Parser) parseRawLiteralText() (string, error) {
	tok := p.currentToken
	switch tok.Type {
	case lexer.NUMBER, lexer.STRING:
		p.nextToken()
		return tok.Literal, nil
	case lexer.KEYWORD:
		if tok.Literal == "NULL" {
			p.nextToken()
			return "", nil
		}
	}
	return "", fmt.Errorf("expected literal, got %s", tok.Literal)
}

// parseLiteral reads one literal token as a storage.Literal.
func (p *Parser) parseLiteral() (storage.Literal, error) {
	tok := p.currentToken
	switch tok.Type {
	case lexer.NUMBER, lexer.STRING:
		p.nextToken()
		return storage.TextLiteral(tok.Literal), nil
	case lexer.KEYWORD:
		if tok.Literal == "NULL" {
			p.nextToken()
			return storage.NullLiteral(), nil
		}
	}
	return storage.Literal{}, fmt.Errorf("expected literal, got %s", tok.Literal)
}

// --- INSERT ---

func (p *Parser) parseInsert() (Statement, error) {
	p.nextToken() // past INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	p.nextToken()

	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	stmt := &InsertStatement{Table: table}

	if p.currentToken.Type == lexer.LPAREN {
		p.nextToken()
		for {
			col, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if p.currentToken.Type == lexer.RPAREN {
				p.nextToken()
				break
			}
			if p.currentToken.Type != lexer.COMMA {
				return nil, fmt.Errorf("expected , or ) in column list, got %s", p.currentToken.Literal)
			}
			p.nextToken()
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	p.nextToken()

	if p.currentToken.Type != lexer.LPAREN {
		return nil, fmt.Errorf("expected ( after VALUES, got %s", p.currentToken.Literal)
	}
	p.nextToken()

	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Values = append(stmt.Values, lit)
		if p.currentToken.Type == lexer.RPAREN {
			p.nextToken()
			break
		}
		if p.currentToken.Type != lexer.COMMA {
			return nil, fmt.Errorf("expected , or ) in VALUES list, got %s", p.currentToken.Literal)
		}
		p.nextToken()
	}

	if p.currentToken.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return stmt, nil
}

// --- SELECT ---

func (p *Parser) parseSelect() (Statement, error) {
	p.nextToken() // past SELECT
	stmt := &SelectStatement{}

	if p.currentToken.Type == lexer.ASTERISK {
		p.nextToken()
	} else {
		for {
			col, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if p.currentToken.Type == lexer.COMMA {
				p.nextToken()
				continue
			}
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	p.nextToken()

	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt.Table = table

	if p.currentToken.Type == lexer.KEYWORD && p.currentToken.Literal == "WHERE" {
		p.nextToken()
		where, err := p.parseConditions()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.currentToken.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return stmt, nil
}

// --- UPDATE ---

func (p *Parser) parseUpdate() (Statement, error) {
	p.nextToken() // past UPDATE
	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt := &UpdateStatement{Table: table}

	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	p.nextToken()

	for {
		col, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if p.currentToken.Type != lexer.EQ {
			return nil, fmt.Errorf("expected = in SET clause, got %s", p.currentToken.Literal)
		}
		p.nextToken()
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Set = append(stmt.Set, storage.Assignment{Column: col, Value: lit})

		if p.currentToken.Type == lexer.COMMA {
			p.nextToken()
			continue
		}
		break
	}

	if p.currentToken.Type == lexer.KEYWORD && p.currentToken.Literal == "WHERE" {
		p.nextToken()
		where, err := p.parseConditions()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.currentToken.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return stmt, nil
}

// --- DELETE ---

func (p *Parser) parseDelete() (Statement, error) {
	p.nextToken() // past DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	p.nextToken()

	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt := &DeleteStatement{Table: table}

	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	p.nextToken()
	where, err := p.parseConditions()
	if err != nil {
		return nil, err
	}
	stmt.Where = where

	if p.currentToken.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return stmt, nil
}

// --- DROP TABLE ---

func (p *Parser) parseDropTable() (Statement, error) {
	p.nextToken() // past DROP
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	p.nextToken()

	table, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if p.currentToken.Type == lexer.SEMICOLON {
		p.nextToken()
	}
	return &DropTableStatement{Table: table}, nil
}

// --- WHERE expr ---

// parseConditions parses `[NOT] <col> <op> <lit> { (AND|OR) [NOT] <col> <op> <lit> }`.
func (p *Parser) parseConditions() ([]storage.ConditionTerm, error) {
	var terms []storage.ConditionTerm
	for {
		term, err := p.parseConditionTerm()
		if err != nil {
			return nil, err
		}
		if p.currentToken.Type == lexer.KEYWORD && (p.currentToken.Literal == "AND" || p.currentToken.Literal == "OR") {
			if p.currentToken.Literal == "AND" {
				term.Connective = storage.ConnAnd
			} else {
				term.Connective = storage.ConnOr
			}
			terms = append(terms, term)
			p.nextToken()
			continue
		}
		terms = append(terms, term)
		break
	}
	return terms, nil
}

func (p *Parser) parseConditionTerm() (storage.ConditionTerm, error) {
	var term storage.ConditionTerm
	if p.currentToken.Type == lexer.KEYWORD && p.currentToken.Literal == "NOT" {
		term.Not = true
		p.nextToken()
	}

	col, err := p.expectIdentifier()
	if err != nil {
		return term, err
	}
	term.Column = col

	if p.currentToken.Type == lexer.KEYWORD && p.currentToken.Literal == "BETWEEN" {
		p.nextToken()
		lo, err := p.parseLiteral()
		if err != nil {
			return term, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return term, err
		}
		p.nextToken()
		hi, err := p.parseLiteral()
		if err != nil {
			return term, err
		}
		term.Op = storage.OpBetween
		term.Value = lo
		term.ValueB = hi
		return term, nil
	}

	if p.currentToken.Type == lexer.KEYWORD && p.currentToken.Literal == "LIKE" {
		p.nextToken()
		lit, err := p.parseLiteral()
		if err != nil {
			return term, err
		}
		term.Op = storage.OpLike
		term.Value = lit
		return term, nil
	}

	op, err := p.parseOp()
	if err != nil {
		return term, err
	}
	term.Op = op
	p.nextToken()

	lit, err := p.parseLiteral()
	if err != nil {
		return term, err
	}
	term.Value = lit
	return term, nil
}

func (p *Parser) parseOp() (storage.Op, error) {
	switch p.currentToken.Type {
	case lexer.EQ:
		return storage.OpEQ, nil
	case lexer.NEQ:
		return storage.OpNE, nil
	case lexer.LT:
		return storage.OpLT, nil
	case lexer.LE:
		return storage.OpLE, nil
	case lexer.GT:
		return storage.OpGT, nil
	case lexer.GE:
		return storage.OpGE, nil
	default:
		return 0, fmt.Errorf("expected comparison operator, got %s", p.currentToken.Literal)
	}
}
