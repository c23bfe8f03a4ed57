package parse

// TokenType classifies a lexed token.
type TokenType uint

const (
	ErrorToken TokenType = iota
	EOFToken
	KeywordToken
	IdentifierToken
	IntToken
	FloatToken
	StringToken
	BoolToken
	NullToken
	OpToken
	DirectiveToken
	ParamToken
	LeftParenToken
	RightParenToken
	CommaToken
	DotToken
	SemiColonToken
)

func (t TokenType) String() string {
	switch t {
	case EOFToken:
		return "eof"
	case KeywordToken:
		return "keyword"
	case IdentifierToken:
		return "identifier"
	case IntToken:
		return "int"
	case FloatToken:
		return "float"
	case StringToken:
		return "string"
	case BoolToken:
		return "bool"
	case NullToken:
		return "null"
	case OpToken:
		return "operator"
	case DirectiveToken:
		return "directive"
	case ParamToken:
		return "parameter"
	case LeftParenToken:
		return "("
	case RightParenToken:
		return ")"
	case CommaToken:
		return ","
	case DotToken:
		return "."
	case SemiColonToken:
		return ";"
	default:
		return "error"
	}
}

// Token is one lexed token. Value holds the literal text with string
// quotes stripped and escapes resolved.
type Token struct {
	Type  TokenType
	Value string
	Line  uint
}

// NewToken builds a token.
func NewToken(typ TokenType, value string, line uint) *Token {
	return &Token{Type: typ, Value: value, Line: line}
}

// Is reports whether the token is a keyword with the given (lowercase)
// text.
func (t *Token) Is(keyword string) bool {
	return t.Type == KeywordToken && t.Value == keyword
}
