package parse

// Parser, type resolver and constant folder for expanded macro bodies.
//
// Glossary:
//
// Macro body
// ----------
//
// The tokens a macro expands to. A body is either one expression or a
// sequence of statements.
//
// e.g.
// #define MAX(a, b) ((a) > (b) ? (a) : (b))   expression
// #define SWAP(a, b) do { int t = a; a = b; b = t; } while (0)   statements
//
// Argument type
// -------------
//
// What Finish learned about a macro parameter from how the body uses it.
// Unknown until used; Ident when it can only be a name (a field, a declared
// variable); Expr when it is used as a value; Known when it is passed to a
// function whose parameter type is declared.
//
// Cast ambiguity
// --------------
//
// (a) - b is a cast of -b to the type a, or a subtraction. The parser reads
// it as a cast and Finish turns it into a binary expression when a is a value
// rather than a type.
//
// Oracle
// ------
//
// The caller supplied answer to "what is this name": C types, functions,
// variables and other macros living outside the body being translated.
