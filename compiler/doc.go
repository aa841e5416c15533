/*

Process of compilation

Program Text ->
	parse ->
Abstract Syntax Tree (ast) ->
	analyze ->
Typed Tree ->
	generate ->
Float SSA (ir) ->
	fixed-point transform ->
Integer SSA (ir) ->
	lower ->
RV32 Machine Code ->
	finalize / write object ->
Linked Image or ELF32 Object

The float stage exists so pattern semantics are defined over reals,
the transform then commits to Q16.16 with saturation. Everything after
the frontend is scalar: vectors and matrices are flattened before SSA.

*/
package compiler
