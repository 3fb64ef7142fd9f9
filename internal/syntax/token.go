// Package syntax turns nao source text into a concrete syntax tree.
//
// The tree is a generic structure of rule-tagged nodes; it records what was
// matched and where, and nothing else. Giving it meaning is the job of the
// compiler's builder.
package syntax

import "fmt"

// Pos is a source location. Lines and columns start at 1.
type Pos struct {
	File string
	Line int
	Col  int
}

// IsValid reports whether the position refers to real source.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Keyword
	Number
	String
	Punct
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "end of input"
	case Ident:
		return "identifier"
	case Keyword:
		return "keyword"
	case Number:
		return "number"
	case String:
		return "string"
	default:
		return "punctuation"
	}
}

// Token is one lexeme. For strings, Text holds the unescaped content.
// NewLine is set when a line break separates the token from the previous one.
type Token struct {
	Kind    Kind
	Text    string
	Pos     Pos
	NewLine bool
}

// Is reports whether the token is the given punctuation or keyword.
func (t Token) Is(text string) bool {
	return (t.Kind == Punct || t.Kind == Keyword) && t.Text == text
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case String:
		return fmt.Sprintf("string %q", t.Text)
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// keywords are reserved words. Aliases from older sources are accepted:
// "tref" for "let", "rec" for "for" and "emit" for "<-".
var keywords = map[string]bool{
	"import": true,
	"func":   true,
	"graph":  true,
	"let":    true,
	"tref":   true,
	"var":    true,
	"if":     true,
	"else":   true,
	"for":    true,
	"rec":    true,
	"after":  true,
	"true":   true,
	"false":  true,
	"here":   true,
	"emit":   true,
	"scalar": true,
}

// symbolPatterns lists punctuation, longest first within each leading byte
// so that the lexer can take the first match.
var symbolPatterns = []string{
	"...", "<=", "<-", "<", ">=", ">", "==", "=", "!=", ":=", ":",
	"--", "-", "+", "*", "/", "%", "(", ")", "[", "]", "{", "}",
	",", ";", ".", "^", "?", "@@", "←",
}
