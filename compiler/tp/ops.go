package tp

import (
	"tlog.app/go/errors"
)

// Binary operator inference. The rules are fixed:
// vector op vector requires identical types, vector op scalar broadcasts
// the scalar, matrix shapes follow linear algebra, == and != require
// identical operands and yield bool, % is integer-family only with
// mixed int/uint promoting to uint.

func BinaryResult(op string, l, r Type) (Type, error) {
	switch op {
	case "+", "-", "*", "/":
		return arithResult(op, l, r)
	case "%":
		return modResult(l, r)
	case "==", "!=":
		if !l.Equal(r) {
			return VoidT, errors.New("comparison requires identical types, got %v and %v", l, r)
		}

		return BoolT, nil
	case "<", ">", "<=", ">=":
		if !l.Equal(r) || !l.IsScalar() || l.Kind == Bool {
			return VoidT, errors.New("ordering requires identical scalar operands, got %v and %v", l, r)
		}

		return BoolT, nil
	case "&&", "||":
		if l.Kind != Bool || r.Kind != Bool {
			return VoidT, errors.New("logical op requires bool operands, got %v and %v", l, r)
		}

		return BoolT, nil
	case "&", "|", "^", "<<", ">>":
		if !l.IsIntegerFamily() || !r.IsIntegerFamily() {
			return VoidT, errors.New("bitwise op requires integer operands, got %v and %v", l, r)
		}

		return promoteInt(l, r)
	default:
		return VoidT, errors.New("unsupported operator: %q", op)
	}
}

func arithResult(op string, l, r Type) (Type, error) {
	switch {
	case l.IsMatrix() || r.IsMatrix():
		return matResult(op, l, r)
	case l.IsVector() && r.IsVector():
		if !l.Equal(r) {
			return VoidT, errors.New("%v and %v mismatch", l, r)
		}

		return l, nil
	case l.IsVector() && r.IsScalar():
		if !l.Scalar().Equal(r) {
			return VoidT, errors.New("cannot broadcast %v over %v", r, l)
		}

		return l, nil
	case l.IsScalar() && r.IsVector():
		if !r.Scalar().Equal(l) {
			return VoidT, errors.New("cannot broadcast %v over %v", l, r)
		}

		return r, nil
	case l.IsScalar() && r.IsScalar():
		if l.Kind == Bool || r.Kind == Bool {
			return VoidT, errors.New("arithmetic on bool")
		}

		if l.Kind == Float || r.Kind == Float {
			if !l.Equal(r) {
				return VoidT, errors.New("%v and %v mismatch", l, r)
			}

			return l, nil
		}

		return promoteInt(l, r)
	default:
		return VoidT, errors.New("%v %v %v is not defined", l, op, r)
	}
}

func matResult(op string, l, r Type) (Type, error) {
	if op != "*" {
		// componentwise
		switch {
		case l.Equal(r):
			return l, nil
		case l.IsMatrix() && r.Kind == Float:
			return l, nil
		case l.Kind == Float && r.IsMatrix():
			return r, nil
		}

		return VoidT, errors.New("%v %v %v is not defined", l, op, r)
	}

	switch {
	case l.IsMatrix() && r.IsMatrix():
		if l.N != r.N {
			return VoidT, errors.New("matrix dimensions mismatch: %v * %v", l, r)
		}

		return l, nil
	case l.IsMatrix() && r.Kind == Vec:
		if l.N != r.N {
			return VoidT, errors.New("matrix columns (%d) do not match vector size (%d)", l.N, r.N)
		}

		return r, nil
	case l.Kind == Vec && r.IsMatrix():
		if l.N != r.N {
			return VoidT, errors.New("vector size (%d) does not match matrix rows (%d)", l.N, r.N)
		}

		return l, nil
	case l.IsMatrix() && r.Kind == Float:
		return l, nil
	case l.Kind == Float && r.IsMatrix():
		return r, nil
	}

	return VoidT, errors.New("%v * %v is not defined", l, r)
}

func modResult(l, r Type) (Type, error) {
	if !l.IsIntegerFamily() || !r.IsIntegerFamily() {
		return VoidT, errors.New("%% requires integer operands, got %v and %v", l, r)
	}

	return promoteInt(l, r)
}

// promoteInt merges integer operands, promoting mixed int/uint to uint.
func promoteInt(l, r Type) (Type, error) {
	lc, rc := l.Components(), r.Components()

	if l.IsVector() && r.IsVector() && lc != rc {
		return VoidT, errors.New("%v and %v mismatch", l, r)
	}

	n := lc
	if rc > n {
		n = rc
	}

	sc := IntT
	if l.Scalar().Kind == UInt || r.Scalar().Kind == UInt {
		sc = UIntT
	}

	return VectorOf(sc, n), nil
}

// UnaryResult types a prefix operator application.
func UnaryResult(op string, x Type) (Type, error) {
	switch op {
	case "-", "+":
		if x.Kind == Bool || x.Kind == BVec || x.Kind == Void {
			return VoidT, errors.New("unary %v on %v", op, x)
		}

		return x, nil
	case "!":
		if x.Kind != Bool {
			return VoidT, errors.New("! requires bool, got %v", x)
		}

		return x, nil
	case "~":
		if !x.IsIntegerFamily() {
			return VoidT, errors.New("~ requires integer, got %v", x)
		}

		return x, nil
	default:
		return VoidT, errors.New("unsupported unary operator: %q", op)
	}
}

// convertibleScalar reports whether a scalar argument may be passed
// where target is expected, with an implicit numeric conversion.
func convertibleScalar(a, target Type) bool {
	switch target.Kind {
	case Float:
		return a.Kind == Float || a.Kind == Int || a.Kind == UInt
	case UInt:
		return a.Kind == UInt || a.Kind == Int
	default:
		return a.Kind == target.Kind
	}
}

type ConstructorShape uint8

const (
	ShapeInvalid ConstructorShape = iota
	ShapeBroadcast                 // vecN(s)
	ShapeVectorResize              // vecN(vecM), M >= N or widen from smaller plus nothing
	ShapeConcat                    // vecN(a, b, ...), components sum to N
	ShapeMatIdentity               // matN(s), s on the diagonal
	ShapeMatColumns                // matN(col0, ..., colN-1)
	ShapeMatResize                 // matN(matM)
	ShapeMatScalars                // matN(s0, ..., sNN-1), column-major
	ShapeScalarCast                // float(x), int(x), uint(x), bool(x)
)

// Constructor classifies vecN(...) / matN(...) / scalar(...) calls.
func Constructor(target Type, args []Type) (ConstructorShape, error) {
	if len(args) == 0 {
		return ShapeInvalid, errors.New("%v constructor requires arguments", target)
	}

	switch {
	case target.IsScalar():
		if len(args) != 1 || !args[0].IsScalar() {
			return ShapeInvalid, errors.New("%v cast requires a single scalar argument", target)
		}

		return ShapeScalarCast, nil
	case target.IsVector():
		return vectorConstructor(target, args)
	case target.IsMatrix():
		return matrixConstructor(target, args)
	default:
		return ShapeInvalid, errors.New("%v is not constructible", target)
	}
}

func vectorConstructor(target Type, args []Type) (ConstructorShape, error) {
	if len(args) == 1 {
		a := args[0]

		switch {
		case a.IsScalar():
			if !convertibleScalar(a, target.Scalar()) {
				return ShapeInvalid, errors.New("%v constructor from %v scalar", target, a)
			}

			return ShapeBroadcast, nil
		case a.IsVector():
			if !a.Scalar().Equal(target.Scalar()) || a.N < target.N {
				return ShapeInvalid, errors.New("%v constructor from %v", target, a)
			}

			return ShapeVectorResize, nil
		default:
			return ShapeInvalid, errors.New("%v constructor from %v", target, a)
		}
	}

	sum := 0

	for _, a := range args {
		if !a.IsScalar() && !a.IsVector() {
			return ShapeInvalid, errors.New("%v constructor argument of type %v", target, a)
		}

		if !convertibleScalar(a.Scalar(), target.Scalar()) {
			return ShapeInvalid, errors.New("%v constructor argument of type %v", target, a)
		}

		sum += a.Components()
	}

	if sum != int(target.N) {
		return ShapeInvalid, errors.New("%v constructor components sum to %d, want %d", target, sum, target.N)
	}

	return ShapeConcat, nil
}

func matrixConstructor(target Type, args []Type) (ConstructorShape, error) {
	n := int(target.N)

	if len(args) == 1 {
		switch a := args[0]; {
		case a.IsScalar() && convertibleScalar(a, FloatT):
			return ShapeMatIdentity, nil
		case a.IsMatrix():
			return ShapeMatResize, nil
		default:
			return ShapeInvalid, errors.New("%v constructor from %v", target, a)
		}
	}

	if len(args) == n {
		ok := true

		for _, a := range args {
			if a.Kind != Vec || int(a.N) != n {
				ok = false
				break
			}
		}

		if ok {
			return ShapeMatColumns, nil
		}
	}

	if len(args) == n*n {
		for _, a := range args {
			if !a.IsScalar() || !convertibleScalar(a, FloatT) {
				return ShapeInvalid, errors.New("%v constructor argument of type %v", target, a)
			}
		}

		return ShapeMatScalars, nil
	}

	return ShapeInvalid, errors.New("%v constructor takes 1, %d or %d arguments, got %d", target, n, n*n, len(args))
}
