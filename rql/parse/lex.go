package parse

import (
	"strings"
	"unicode"

	"github.com/rangeql/rangeql/rql"
)

var keywords = []string{
	"range", "of", "is", "via", "retrieve", "unique", "where",
	"sort", "by", "asc", "desc", "window", "using", "window_size",
	"and", "or", "not", "in", "like", "exists", "json",
	"sum", "avg", "count", "min", "max", "any", "if",
}

func isKeyword(word string) bool {
	word = strings.ToLower(word)
	for _, k := range keywords {
		if k == word {
			return true
		}
	}
	return false
}

var twoCharOps = []string{"==", "!=", ">=", "<=", "<<", ">>", "->"}

var oneCharOps = "<>+-*/%="

// Escape tables per quoting style. Single-quoted strings only escape the
// backslash and the quote itself, double-quoted strings support the
// standard control escapes.
var singleQuoteEscapes = map[rune]rune{
	'\\': '\\',
	'\'': '\'',
}

var doubleQuoteEscapes = map[rune]rune{
	'\\': '\\',
	'"':  '"',
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'b':  '\b',
	'f':  '\f',
	'0':  0,
}

const eof rune = -1

// Lexer turns query text into a token stream. It always keeps one token of
// lookahead beyond the current one so the parser can make decisions on a
// two-token window. The cursor can be snapshotted and restored to support
// speculative parsing.
type Lexer struct {
	input   []rune
	pos     int
	line    uint
	current *Token
	peek    *Token
}

// LexerState is a cursor snapshot taken by SaveState.
type LexerState struct {
	pos     int
	line    uint
	current *Token
	peek    *Token
}

// NewLexer builds a lexer over the input and primes the token window.
func NewLexer(input string) (*Lexer, error) {
	l := &Lexer{input: []rune(input), line: 1}
	if err := l.ResetWindow(); err != nil {
		return nil, err
	}
	return l, nil
}

// Current returns the token under the cursor.
func (l *Lexer) Current() *Token { return l.current }

// Peek returns the token after the current one.
func (l *Lexer) Peek() *Token { return l.peek }

// Next advances the window by one token and returns the new current.
func (l *Lexer) Next() (*Token, error) {
	tk, err := l.scan()
	if err != nil {
		return nil, err
	}
	l.current = l.peek
	l.peek = tk
	return l.current, nil
}

// SaveState snapshots the cursor for later restoration.
func (l *Lexer) SaveState() LexerState {
	return LexerState{pos: l.pos, line: l.line, current: l.current, peek: l.peek}
}

// RestoreState rewinds the lexer to a previous snapshot.
func (l *Lexer) RestoreState(s LexerState) {
	l.pos = s.pos
	l.line = s.line
	l.current = s.current
	l.peek = s.peek
}

// ResetWindow refills the two-token window from the current position. It
// must be called after repositioning the lexer by hand.
func (l *Lexer) ResetWindow() error {
	cur, err := l.scan()
	if err != nil {
		return err
	}
	peek, err := l.scan()
	if err != nil {
		return err
	}
	l.current, l.peek = cur, peek
	return nil
}

func (l *Lexer) next() rune {
	if l.pos >= len(l.input) {
		l.pos++
		return eof
	}
	r := l.input[l.pos]
	l.pos++
	return r
}

func (l *Lexer) backup() {
	l.pos--
}

func (l *Lexer) emit(typ TokenType, value string) *Token {
	return NewToken(typ, value, l.line)
}

// scan produces the next token past any whitespace, tracking line numbers.
func (l *Lexer) scan() (*Token, error) {
	r := l.next()
	for isSpace(r) || isEOL(r) {
		if isEOL(r) {
			l.line++
		}
		r = l.next()
	}

	switch {
	case r == eof:
		return l.emit(EOFToken, ""), nil
	case unicode.IsDigit(r):
		l.backup()
		return l.scanNumber()
	case r == '\'' || r == '"':
		return l.scanString(r)
	case r == '@':
		return l.scanWord(DirectiveToken)
	case r == ':':
		return l.scanWord(ParamToken)
	case isLetter(r):
		l.backup()
		return l.scanIdentifier()
	case r == '(':
		return l.emit(LeftParenToken, "("), nil
	case r == ')':
		return l.emit(RightParenToken, ")"), nil
	case r == ',':
		return l.emit(CommaToken, ","), nil
	case r == ';':
		return l.emit(SemiColonToken, ";"), nil
	}

	// Two-character operators are tried before single-character ones.
	if next := l.next(); next != eof {
		op := string([]rune{r, next})
		for _, candidate := range twoCharOps {
			if op == candidate {
				return l.emit(OpToken, op), nil
			}
		}
		l.backup()
	} else {
		l.backup()
	}
	if r == '.' {
		return l.emit(DotToken, "."), nil
	}
	if strings.IndexRune(oneCharOps, r) >= 0 {
		return l.emit(OpToken, string(r)), nil
	}

	return l.emit(ErrorToken, string(r)), nil
}

func (l *Lexer) scanNumber() (*Token, error) {
	start := l.pos
	dots := 0
	for {
		r := l.next()
		if unicode.IsDigit(r) {
			continue
		}
		if r == '.' && unicode.IsDigit(l.peekRune()) {
			dots++
			continue
		}
		l.backup()
		break
	}

	word := string(l.input[start:l.pos])
	if dots > 1 {
		return nil, rql.ErrMalformedNumber.New(word, l.line)
	}
	if dots == 1 {
		return l.emit(FloatToken, word), nil
	}
	return l.emit(IntToken, word), nil
}

func (l *Lexer) peekRune() rune {
	if l.pos >= len(l.input) {
		return eof
	}
	return l.input[l.pos]
}

func (l *Lexer) scanString(quote rune) (*Token, error) {
	escapes := singleQuoteEscapes
	if quote == '"' {
		escapes = doubleQuoteEscapes
	}

	var sb strings.Builder
	for {
		r := l.next()
		switch {
		case r == eof || isEOL(r):
			return nil, rql.ErrUnterminatedString.New(l.line)
		case r == quote:
			return l.emit(StringToken, sb.String()), nil
		case r == '\\':
			esc := l.next()
			resolved, ok := escapes[esc]
			if !ok {
				return nil, rql.ErrInvalidEscape.New("\\"+string(esc), l.line)
			}
			sb.WriteRune(resolved)
		default:
			sb.WriteRune(r)
		}
	}
}

func (l *Lexer) scanWord(typ TokenType) (*Token, error) {
	start := l.pos
	for {
		r := l.next()
		if !isAllowedInIdentifier(r) {
			l.backup()
			break
		}
	}
	return l.emit(typ, string(l.input[start:l.pos])), nil
}

func (l *Lexer) scanIdentifier() (*Token, error) {
	start := l.pos
	for {
		r := l.next()
		if !isAllowedInIdentifier(r) {
			l.backup()
			break
		}
	}

	word := string(l.input[start:l.pos])
	switch strings.ToLower(word) {
	case "true", "false":
		return l.emit(BoolToken, strings.ToLower(word)), nil
	case "null":
		return l.emit(NullToken, "null"), nil
	}
	if isKeyword(word) {
		return l.emit(KeywordToken, strings.ToLower(word)), nil
	}
	return l.emit(IdentifierToken, word), nil
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' }

func isEOL(r rune) bool { return r == '\n' || r == '\r' }

func isLetter(r rune) bool { return unicode.IsLetter(r) || r == '_' }

func isAllowedInIdentifier(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
