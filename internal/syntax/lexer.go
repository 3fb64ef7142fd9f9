package syntax

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes one source file.
type Lexer struct {
	file string
	src  string

	off       int
	line, col int
	newLine   bool
}

// NewLexer creates a lexer over src. file is used only in positions.
func NewLexer(file, src string) *Lexer {
	return &Lexer{file: file, src: src, line: 1, col: 1}
}

// Tokenize lexes the whole input, ending with an EOF token.
func Tokenize(file, src string) ([]Token, error) {
	l := NewLexer(file, src)
	var toks []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks, nil
		}
	}
}

// NextToken returns the next token, or an EOF token once input is exhausted.
func (l *Lexer) NextToken() (Token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}

	start := l.pos()
	nl := l.newLine
	l.newLine = false

	if l.off >= len(l.src) {
		return Token{Kind: EOF, Pos: start, NewLine: nl}, nil
	}

	c := l.src[l.off]
	var tok Token
	var err error
	switch {
	case c == '"':
		tok, err = l.lexString()
	case isDigit(c):
		tok = l.lexNumber()
	case c == '_' || c < utf8.RuneSelf && unicode.IsLetter(rune(c)):
		tok = l.lexIdentOrKeyword()
	default:
		tok, err = l.lexPunct()
	}
	if err != nil {
		return Token{}, err
	}
	tok.Pos = start
	tok.NewLine = nl
	return tok, nil
}

func (l *Lexer) pos() Pos {
	return Pos{File: l.file, Line: l.line, Col: l.col}
}

func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.off < len(l.src); i++ {
		if l.src[l.off] == '\n' {
			l.line++
			l.col = 1
			l.newLine = true
		} else if l.src[l.off] < utf8.RuneSelf || utf8.RuneStart(l.src[l.off]) {
			l.col++
		}
		l.off++
	}
}

func (l *Lexer) skipSpaceAndComments() error {
	for l.off < len(l.src) {
		rest := l.src[l.off:]
		switch {
		case rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\r' || rest[0] == '\n':
			l.advance(1)
		case strings.HasPrefix(rest, "//"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				end = len(rest)
			}
			l.advance(end)
		case strings.HasPrefix(rest, "/*"):
			start := l.pos()
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return &Error{Pos: start, Message: "unterminated block comment"}
			}
			l.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) lexNumber() Token {
	start := l.off
	for l.off < len(l.src) && isDigit(l.src[l.off]) {
		l.advance(1)
	}
	// A fraction needs digits on both sides of the point so that "x.y"
	// member access and "..." stay unambiguous.
	if l.off+1 < len(l.src) && l.src[l.off] == '.' && isDigit(l.src[l.off+1]) {
		l.advance(1)
		for l.off < len(l.src) && isDigit(l.src[l.off]) {
			l.advance(1)
		}
	}
	return Token{Kind: Number, Text: l.src[start:l.off]}
}

func (l *Lexer) lexIdentOrKeyword() Token {
	start := l.off
	for l.off < len(l.src) {
		c := l.src[l.off]
		if c != '_' && !isDigit(c) && (c >= utf8.RuneSelf || !unicode.IsLetter(rune(c))) {
			break
		}
		l.advance(1)
	}
	text := l.src[start:l.off]
	if keywords[text] {
		return Token{Kind: Keyword, Text: text}
	}
	return Token{Kind: Ident, Text: text}
}

func (l *Lexer) lexString() (Token, error) {
	start := l.pos()
	l.advance(1)

	var sb strings.Builder
	for {
		if l.off >= len(l.src) || l.src[l.off] == '\n' {
			return Token{}, &Error{Pos: start, Message: "unterminated string literal"}
		}
		c := l.src[l.off]
		switch c {
		case '"':
			l.advance(1)
			return Token{Kind: String, Text: sb.String()}, nil
		case '\\':
			if l.off+1 >= len(l.src) {
				return Token{}, &Error{Pos: start, Message: "unterminated string literal"}
			}
			esc := l.src[l.off+1]
			switch esc {
			case '"', '\\':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return Token{}, &Error{Pos: l.pos(), Message: "unknown escape sequence \\" + string(esc)}
			}
			l.advance(2)
		default:
			sb.WriteByte(c)
			l.advance(1)
		}
	}
}

func (l *Lexer) lexPunct() (Token, error) {
	rest := l.src[l.off:]
	for _, p := range symbolPatterns {
		if strings.HasPrefix(rest, p) {
			l.advance(len(p))
			if p == "←" {
				p = "<-"
			}
			return Token{Kind: Punct, Text: p}, nil
		}
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return Token{}, &Error{Pos: l.pos(), Message: "unexpected character " + strconv.QuoteRune(r)}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
