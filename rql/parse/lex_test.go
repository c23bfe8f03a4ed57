package parse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rangeql/rangeql/rql"
)

func lexAll(input string) ([]*Token, error) {
	l, err := NewLexer(input)
	if err != nil {
		return nil, err
	}
	var tokens []*Token
	for {
		tk := l.Current()
		tokens = append(tokens, tk)
		if tk.Type == EOFToken {
			return tokens, nil
		}
		if _, err := l.Next(); err != nil {
			return nil, err
		}
	}
}

func TestLexerTokenStream(t *testing.T) {
	require := require.New(t)

	tokens, err := lexAll("retrieve(u.name, :min) where u.age >= 10.5")
	require.NoError(err)

	expected := []struct {
		typ   TokenType
		value string
	}{
		{KeywordToken, "retrieve"},
		{LeftParenToken, "("},
		{IdentifierToken, "u"},
		{DotToken, "."},
		{IdentifierToken, "name"},
		{CommaToken, ","},
		{ParamToken, "min"},
		{RightParenToken, ")"},
		{KeywordToken, "where"},
		{IdentifierToken, "u"},
		{DotToken, "."},
		{IdentifierToken, "age"},
		{OpToken, ">="},
		{FloatToken, "10.5"},
		{EOFToken, ""},
	}

	require.Len(tokens, len(expected))
	for i, e := range expected {
		require.Equal(e.typ, tokens[i].Type, "token %d", i)
		require.Equal(e.value, tokens[i].Value, "token %d", i)
	}
}

func TestLexerTwoCharOperators(t *testing.T) {
	require := require.New(t)

	for _, op := range []string{"==", "!=", ">=", "<=", "<<", ">>", "->"} {
		tokens, err := lexAll("a " + op + " b")
		require.NoError(err)
		require.Len(tokens, 4)
		require.Equal(OpToken, tokens[1].Type)
		require.Equal(op, tokens[1].Value)
	}
}

func TestLexerLiteralsAndWords(t *testing.T) {
	require := require.New(t)

	tokens, err := lexAll("TRUE false null 42 @page SORT by")
	require.NoError(err)

	require.Equal(BoolToken, tokens[0].Type)
	require.Equal("true", tokens[0].Value)
	require.Equal(BoolToken, tokens[1].Type)
	require.Equal("false", tokens[1].Value)
	require.Equal(NullToken, tokens[2].Type)
	require.Equal(IntToken, tokens[3].Type)
	require.Equal("42", tokens[3].Value)
	require.Equal(DirectiveToken, tokens[4].Type)
	require.Equal("page", tokens[4].Value)
	require.Equal(KeywordToken, tokens[5].Type)
	require.Equal("sort", tokens[5].Value)
	require.Equal(KeywordToken, tokens[6].Type)
	require.Equal("by", tokens[6].Value)
}

func TestLexerStringEscapes(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{`'it\'s'`, "it's"},
		{`'a\\b'`, `a\b`},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"quote \" inside"`, `quote " inside`},
	}

	for _, tt := range testCases {
		t.Run(tt.input, func(t *testing.T) {
			require := require.New(t)
			tokens, err := lexAll(tt.input)
			require.NoError(err)
			require.Equal(StringToken, tokens[0].Type)
			require.Equal(tt.expected, tokens[0].Value)
		})
	}
}

func TestLexerStringErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		kind  func(error) bool
	}{
		{"unterminated", "'abc", rql.ErrUnterminatedString.Is},
		{"newline inside", "'ab\ncd'", rql.ErrUnterminatedString.Is},
		{"control escape in single quotes", `'a\n'`, rql.ErrInvalidEscape.Is},
		{"unknown escape", `"a\x"`, rql.ErrInvalidEscape.Is},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, err := lexAll(tt.input)
			require.Error(err)
			require.True(tt.kind(err))
		})
	}
}

func TestLexerMalformedNumber(t *testing.T) {
	require := require.New(t)

	_, err := lexAll("1.2.3")
	require.Error(err)
	require.True(rql.ErrMalformedNumber.Is(err))
}

func TestLexerSaveRestore(t *testing.T) {
	require := require.New(t)

	l, err := NewLexer("a b c d")
	require.NoError(err)
	require.Equal("a", l.Current().Value)

	state := l.SaveState()
	_, err = l.Next()
	require.NoError(err)
	_, err = l.Next()
	require.NoError(err)
	require.Equal("c", l.Current().Value)

	l.RestoreState(state)
	require.Equal("a", l.Current().Value)
	require.Equal("b", l.Peek().Value)

	tk, err := l.Next()
	require.NoError(err)
	require.Equal("b", tk.Value)
}

func TestLexerUnrecognizedRune(t *testing.T) {
	require := require.New(t)

	tokens, err := lexAll("a # b")
	require.NoError(err)
	require.Equal(ErrorToken, tokens[1].Type)
	require.Equal("#", tokens[1].Value)
}
