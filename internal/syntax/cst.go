package syntax

import (
	"fmt"
	"strings"
)

// Rule names the grammar production a Node matched.
type Rule string

// Grammar rules. The comment on each rule lists the layout of Kids; a nil
// kid is an optional part that was absent.
const (
	RuleProgram       Rule = "Program"       // ImportDecl... then top-level decls
	RuleImportDecl    Rule = "ImportDecl"    // ImportSpec...
	RuleImportSpec    Rule = "ImportSpec"    // Tok: path string; [Namespace|nil]
	RuleFunctionDecl  Rule = "FunctionDecl"  // Tok: name; [Signature, Block]
	RuleGraphDecl     Rule = "GraphDecl"     // Tok: name; [Block]
	RuleSignature     Rule = "Signature"     // [AttrParams|nil, InputParams|nil]
	RuleAttrParams    Rule = "AttrParams"    // Param...
	RuleInputParams   Rule = "InputParams"   // Param...
	RuleParam         Rule = "Param"         // Tok: name; [Kind|nil]
	RuleKind          Rule = "Kind"          // [Type|nil, Shape|nil]
	RuleType          Rule = "Type"          // Tok: element type name
	RuleShape         Rule = "Shape"         // Dim...
	RuleDim           Rule = "Dim"           // Tok: digits or "?"
	RuleBlock         Rule = "Block"         // statements
	RuleOutputDecl    Rule = "OutputDecl"    // Tok: name; [Kind|nil, value|nil]
	RuleLetDecl       Rule = "LetDecl"       // Tok: name; [Kind|nil, value]
	RuleVarDecl       Rule = "VarDecl"       // Tok: name; [Kind|nil, value]
	RuleVarUpdate     Rule = "VarUpdate"     // Tok: name; [value]
	RuleAttrDecl      Rule = "AttrDecl"      // Tok: name
	RuleAssignment    Rule = "Assignment"    // Tok: name; [Kind|nil, value]
	RuleNamed         Rule = "Named"         // Tok: name; [value]
	RulePipeline      Rule = "Pipeline"      // stage...
	RuleBinary        Rule = "Binary"        // Tok: operator; [left, right]
	RuleIndex         Rule = "Index"         // Tok: identifier or digits; [target]
	RuleReference     Rule = "Reference"     // Tok: name; [namespace Ident|nil, AttrBlock|nil]
	RuleApply         Rule = "Apply"         // Tok: name; [namespace|nil, AttrBlock|nil, Args]
	RuleApplyKeywords Rule = "ApplyKeywords" // Tok: name; [namespace|nil, AttrBlock|nil, KwArgs]
	RuleArgs          Rule = "Args"          // expression...
	RuleKwArgs        Rule = "KwArgs"        // KwArg...
	RuleKwArg         Rule = "KwArg"         // Tok: name; [value]
	RuleAttrBlock     Rule = "AttrBlock"     // AttrEntry | Ellipsis ...
	RuleAttrEntry     Rule = "AttrEntry"     // Tok: name; [value]
	RuleEllipsis      Rule = "Ellipsis"      // Tok: "..."
	RuleAttrList      Rule = "AttrList"      // attribute value...
	RuleAttrReference Rule = "AttrReference" // Tok: name; [namespace|nil, AttrBlock|nil]
	RuleAbove         Rule = "Above"         // Tok: "^"
	RuleHere          Rule = "Here"          // Tok: "here"
	RuleNumber        Rule = "Number"        // Tok: digits, sign included
	RuleString        Rule = "String"        // Tok: content
	RuleBool          Rule = "Bool"          // Tok: "true" or "false"
	RuleListLiteral   Rule = "ListLiteral"   // expression...
	RuleTensorLiteral Rule = "TensorLiteral" // [Number | TensorArray]
	RuleTensorArray   Rule = "TensorArray"   // Number | TensorArray ...
	RuleFuncLiteral   Rule = "FuncLiteral"   // [Signature, Block]
	RuleIf            Rule = "If"            // [pred, then, else]
	RuleFor           Rule = "For"           // [Initializers, cond, Block]
	RuleInitializers  Rule = "Initializers"  // Assignment...
	RuleAfter         Rule = "After"         // [Block]
	RuleNamespace     Rule = "Namespace"     // Tok: package qualifier or import alias
)

// Node is one matched rule. Tok is the token that names or introduces it.
type Node struct {
	Rule Rule
	Tok  Token
	Kids []*Node
}

// Kid returns the i-th child, or nil when absent.
func (n *Node) Kid(i int) *Node {
	if n == nil || i >= len(n.Kids) {
		return nil
	}
	return n.Kids[i]
}

// Pos is the position of the node's token.
func (n *Node) Pos() Pos {
	return n.Tok.Pos
}

// String renders the tree as an S-expression, for debugging and tests.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("_")
		return
	}
	sb.WriteString("(")
	sb.WriteString(string(n.Rule))
	if n.Tok.Text != "" {
		fmt.Fprintf(sb, " %q", n.Tok.Text)
	}
	for _, k := range n.Kids {
		sb.WriteString(" ")
		k.write(sb)
	}
	sb.WriteString(")")
}
