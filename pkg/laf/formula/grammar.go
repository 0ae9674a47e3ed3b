package formula

import "github.com/alecthomas/participle/v2"

// Precedence, loosest first: + -, then * / %, then unary sign, then ^ (right
// associative). -X^2 therefore reads as -(X^2).

type expression struct {
	Head *term     `@@`
	Tail []*opTerm `@@*`
}

type opTerm struct {
	Op   string `@("+" | "-")`
	Term *term  `@@`
}

type term struct {
	Head *unary     `@@`
	Tail []*opUnary `@@*`
}

type opUnary struct {
	Op    string `@("*" | "/" | "%")`
	Unary *unary `@@`
}

type unary struct {
	Op    string `( @("-" | "+")`
	Unary *unary `  @@ )`
	Power *power `| @@`
}

type power struct {
	Base     *primary `@@`
	Exponent *unary   `( "^" @@ )?`
}

type primary struct {
	Call     *call       `  @@`
	Number   *float64    `| @(Float | Int)`
	Variable *string     `| @Ident`
	Sub      *expression `| "(" @@ ")"`
}

type call struct {
	Name string        `@Ident "("`
	Args []*expression `( @@ ( "," @@ )* )? ")"`
}

var parser = participle.MustBuild(&expression{}, participle.UseLookahead(2))
