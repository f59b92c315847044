package celltypes

import (
	"math/big"

	"gosynth/internal/rtlil"
)

// constOps maps the evaluatable internal cell types to their folding
// functions.
var constOps = map[rtlil.Id]func(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int) rtlil.Const{
	"$not":         constNot,
	"$and":         constAnd,
	"$or":          constOr,
	"$xor":         constXor,
	"$xnor":        constXnor,
	"$reduce_and":  constReduceAnd,
	"$reduce_or":   constReduceOr,
	"$reduce_xor":  constReduceXor,
	"$reduce_xnor": constReduceXnor,
	"$reduce_bool": constReduceBool,
	"$logic_not":   constLogicNot,
	"$logic_and":   constLogicAnd,
	"$logic_or":    constLogicOr,
	"$shl":         constShl,
	"$shr":         constShr,
	"$sshl":        constSshl,
	"$sshr":        constSshr,
	"$lt":          constLt,
	"$le":          constLe,
	"$eq":          constEq,
	"$ne":          constNe,
	"$ge":          constGe,
	"$gt":          constGt,
	"$add":         constAdd,
	"$sub":         constSub,
	"$mul":         constMul,
	"$div":         constDiv,
	"$mod":         constMod,
	"$pow":         constPow,
	"$pos":         constPos,
	"$neg":         constNeg,
}

// extendTo pads or truncates a constant to exactly width bits. Padding
// repeats the sign bit when signed (undefined sign bits pad as themselves).
func extendTo(c rtlil.Const, width int, signed bool) rtlil.Const {
	bits := append([]rtlil.State(nil), c.Bits...)
	if len(bits) > width {
		bits = bits[:width]
	}
	pad := rtlil.S0
	if signed && len(bits) > 0 {
		pad = bits[len(bits)-1]
	}
	for len(bits) < width {
		bits = append(bits, pad)
	}
	return rtlil.NewConstBits(bits)
}

func defWidth(resultLen, fallback int) int {
	if resultLen < 0 {
		return fallback
	}
	return resultLen
}

// bit3 collapses a state to S0, S1 or Sx.
func bit3(b rtlil.State) rtlil.State {
	if b == rtlil.S0 || b == rtlil.S1 {
		return b
	}
	return rtlil.Sx
}

func not3(b rtlil.State) rtlil.State {
	switch bit3(b) {
	case rtlil.S0:
		return rtlil.S1
	case rtlil.S1:
		return rtlil.S0
	}
	return rtlil.Sx
}

func and3(a, b rtlil.State) rtlil.State {
	a, b = bit3(a), bit3(b)
	if a == rtlil.S0 || b == rtlil.S0 {
		return rtlil.S0
	}
	if a == rtlil.S1 && b == rtlil.S1 {
		return rtlil.S1
	}
	return rtlil.Sx
}

func or3(a, b rtlil.State) rtlil.State {
	a, b = bit3(a), bit3(b)
	if a == rtlil.S1 || b == rtlil.S1 {
		return rtlil.S1
	}
	if a == rtlil.S0 && b == rtlil.S0 {
		return rtlil.S0
	}
	return rtlil.Sx
}

func xor3(a, b rtlil.State) rtlil.State {
	a, b = bit3(a), bit3(b)
	if a == rtlil.Sx || b == rtlil.Sx {
		return rtlil.Sx
	}
	if a != b {
		return rtlil.S1
	}
	return rtlil.S0
}

func bitwise(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int,
	op func(a, b rtlil.State) rtlil.State) rtlil.Const {
	width := defWidth(resultLen, maxInt(len(arg1.Bits), len(arg2.Bits)))
	a := extendTo(arg1, width, signed1)
	b := extendTo(arg2, width, signed2)
	bits := make([]rtlil.State, width)
	for i := 0; i < width; i++ {
		bits[i] = op(a.Bits[i], b.Bits[i])
	}
	return rtlil.NewConstBits(bits)
}

func constNot(arg1, _ rtlil.Const, signed1, _ bool, resultLen int) rtlil.Const {
	width := defWidth(resultLen, len(arg1.Bits))
	a := extendTo(arg1, width, signed1)
	bits := make([]rtlil.State, width)
	for i := range bits {
		bits[i] = not3(a.Bits[i])
	}
	return rtlil.NewConstBits(bits)
}

func constAnd(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int) rtlil.Const {
	return bitwise(arg1, arg2, signed1, signed2, resultLen, and3)
}

func constOr(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int) rtlil.Const {
	return bitwise(arg1, arg2, signed1, signed2, resultLen, or3)
}

func constXor(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int) rtlil.Const {
	return bitwise(arg1, arg2, signed1, signed2, resultLen, xor3)
}

func constXnor(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int) rtlil.Const {
	return bitwise(arg1, arg2, signed1, signed2, resultLen, func(a, b rtlil.State) rtlil.State {
		return not3(xor3(a, b))
	})
}

func boolResult(b rtlil.State, resultLen int) rtlil.Const {
	width := defWidth(resultLen, 1)
	bits := make([]rtlil.State, width)
	for i := range bits {
		bits[i] = rtlil.S0
	}
	if width > 0 {
		bits[0] = b
	}
	return rtlil.NewConstBits(bits)
}

// bool3 collapses a constant to a single trit: S1 if any bit is one, S0 if
// all bits are zero, Sx otherwise.
func bool3(c rtlil.Const) rtlil.State {
	sawUndef := false
	for _, b := range c.Bits {
		switch bit3(b) {
		case rtlil.S1:
			return rtlil.S1
		case rtlil.Sx:
			sawUndef = true
		}
	}
	if sawUndef {
		return rtlil.Sx
	}
	return rtlil.S0
}

func constReduceAnd(arg1, _ rtlil.Const, _, _ bool, resultLen int) rtlil.Const {
	res := rtlil.S1
	for _, b := range arg1.Bits {
		res = and3(res, b)
	}
	return boolResult(res, resultLen)
}

func constReduceOr(arg1, _ rtlil.Const, _, _ bool, resultLen int) rtlil.Const {
	res := rtlil.S0
	for _, b := range arg1.Bits {
		res = or3(res, b)
	}
	return boolResult(res, resultLen)
}

func constReduceXor(arg1, _ rtlil.Const, _, _ bool, resultLen int) rtlil.Const {
	res := rtlil.S0
	for _, b := range arg1.Bits {
		res = xor3(res, b)
	}
	return boolResult(res, resultLen)
}

func constReduceXnor(arg1, arg2 rtlil.Const, s1, s2 bool, resultLen int) rtlil.Const {
	res := constReduceXor(arg1, arg2, s1, s2, resultLen)
	if len(res.Bits) > 0 {
		res.Bits[0] = not3(res.Bits[0])
	}
	return res
}

func constReduceBool(arg1, _ rtlil.Const, _, _ bool, resultLen int) rtlil.Const {
	return boolResult(bool3(arg1), resultLen)
}

func constLogicNot(arg1, _ rtlil.Const, _, _ bool, resultLen int) rtlil.Const {
	return boolResult(not3(bool3(arg1)), resultLen)
}

func constLogicAnd(arg1, arg2 rtlil.Const, _, _ bool, resultLen int) rtlil.Const {
	return boolResult(and3(bool3(arg1), bool3(arg2)), resultLen)
}

func constLogicOr(arg1, arg2 rtlil.Const, _, _ bool, resultLen int) rtlil.Const {
	return boolResult(or3(bool3(arg1), bool3(arg2)), resultLen)
}

func shiftAmount(arg2 rtlil.Const) (int, bool) {
	for _, b := range arg2.Bits {
		if b != rtlil.S0 && b != rtlil.S1 {
			return 0, false
		}
	}
	return arg2.AsInt(), true
}

func shift(arg1 rtlil.Const, signed1 bool, resultLen, amount int, fill rtlil.State) rtlil.Const {
	width := defWidth(resultLen, len(arg1.Bits))
	a := extendTo(arg1, maxInt(width, len(arg1.Bits)), signed1)
	bits := make([]rtlil.State, width)
	for i := range bits {
		src := i - amount
		if src >= 0 && src < len(a.Bits) {
			bits[i] = a.Bits[src]
		} else {
			bits[i] = fill
		}
	}
	return rtlil.NewConstBits(bits)
}

func constShl(arg1, arg2 rtlil.Const, signed1, _ bool, resultLen int) rtlil.Const {
	amount, ok := shiftAmount(arg2)
	if !ok {
		return rtlil.NewConstState(rtlil.Sx, defWidth(resultLen, len(arg1.Bits)))
	}
	return shift(arg1, signed1, resultLen, amount, rtlil.S0)
}

func constShr(arg1, arg2 rtlil.Const, signed1, _ bool, resultLen int) rtlil.Const {
	amount, ok := shiftAmount(arg2)
	if !ok {
		return rtlil.NewConstState(rtlil.Sx, defWidth(resultLen, len(arg1.Bits)))
	}
	return shift(arg1, signed1, resultLen, -amount, rtlil.S0)
}

func constSshl(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int) rtlil.Const {
	return constShl(arg1, arg2, signed1, signed2, resultLen)
}

func constSshr(arg1, arg2 rtlil.Const, signed1, _ bool, resultLen int) rtlil.Const {
	amount, ok := shiftAmount(arg2)
	if !ok {
		return rtlil.NewConstState(rtlil.Sx, defWidth(resultLen, len(arg1.Bits)))
	}
	fill := rtlil.S0
	if len(arg1.Bits) > 0 {
		fill = bit3(arg1.Bits[len(arg1.Bits)-1])
	}
	return shift(arg1, signed1, resultLen, -amount, fill)
}

// toBig converts a fully-defined constant to an integer, honoring two's
// complement when signed. The second result is false if any bit is undefined.
func toBig(c rtlil.Const, signed bool) (*big.Int, bool) {
	v := new(big.Int)
	for i := len(c.Bits) - 1; i >= 0; i-- {
		switch c.Bits[i] {
		case rtlil.S0:
			v.Lsh(v, 1)
		case rtlil.S1:
			v.Lsh(v, 1)
			v.Or(v, big.NewInt(1))
		default:
			return nil, false
		}
	}
	if signed && len(c.Bits) > 0 && c.Bits[len(c.Bits)-1] == rtlil.S1 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(c.Bits)))
		v.Sub(v, mod)
	}
	return v, true
}

// bigToConst truncates an integer to a width-bit two's complement constant.
func bigToConst(v *big.Int, width int) rtlil.Const {
	if v.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
		v = new(big.Int).Add(v, mod)
	}
	bits := make([]rtlil.State, width)
	for i := 0; i < width; i++ {
		if v.Bit(i) == 1 {
			bits[i] = rtlil.S1
		} else {
			bits[i] = rtlil.S0
		}
	}
	return rtlil.NewConstBits(bits)
}

func compareOp(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int,
	decide func(cmp int) bool) rtlil.Const {
	a, okA := toBig(arg1, signed1)
	b, okB := toBig(arg2, signed2)
	if !okA || !okB {
		return boolResult(rtlil.Sx, resultLen)
	}
	if decide(a.Cmp(b)) {
		return boolResult(rtlil.S1, resultLen)
	}
	return boolResult(rtlil.S0, resultLen)
}

func constLt(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return compareOp(a1, a2, s1, s2, rl, func(c int) bool { return c < 0 })
}

func constLe(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return compareOp(a1, a2, s1, s2, rl, func(c int) bool { return c <= 0 })
}

func constEq(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return compareOp(a1, a2, s1, s2, rl, func(c int) bool { return c == 0 })
}

func constNe(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return compareOp(a1, a2, s1, s2, rl, func(c int) bool { return c != 0 })
}

func constGe(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return compareOp(a1, a2, s1, s2, rl, func(c int) bool { return c >= 0 })
}

func constGt(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return compareOp(a1, a2, s1, s2, rl, func(c int) bool { return c > 0 })
}

func arithOp(arg1, arg2 rtlil.Const, signed1, signed2 bool, resultLen int,
	op func(a, b *big.Int) (*big.Int, bool)) rtlil.Const {
	width := defWidth(resultLen, maxInt(len(arg1.Bits), len(arg2.Bits)))
	a, okA := toBig(arg1, signed1)
	b, okB := toBig(arg2, signed2)
	if !okA || !okB {
		return rtlil.NewConstState(rtlil.Sx, width)
	}
	v, ok := op(a, b)
	if !ok {
		return rtlil.NewConstState(rtlil.Sx, width)
	}
	return bigToConst(v, width)
}

func constAdd(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return arithOp(a1, a2, s1, s2, rl, func(a, b *big.Int) (*big.Int, bool) {
		return new(big.Int).Add(a, b), true
	})
}

func constSub(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return arithOp(a1, a2, s1, s2, rl, func(a, b *big.Int) (*big.Int, bool) {
		return new(big.Int).Sub(a, b), true
	})
}

func constMul(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return arithOp(a1, a2, s1, s2, rl, func(a, b *big.Int) (*big.Int, bool) {
		return new(big.Int).Mul(a, b), true
	})
}

func constDiv(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return arithOp(a1, a2, s1, s2, rl, func(a, b *big.Int) (*big.Int, bool) {
		if b.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Quo(a, b), true
	})
}

func constMod(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return arithOp(a1, a2, s1, s2, rl, func(a, b *big.Int) (*big.Int, bool) {
		if b.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Rem(a, b), true
	})
}

func constPow(a1, a2 rtlil.Const, s1, s2 bool, rl int) rtlil.Const {
	return arithOp(a1, a2, s1, s2, rl, func(a, b *big.Int) (*big.Int, bool) {
		if b.Sign() < 0 {
			return nil, false
		}
		return new(big.Int).Exp(a, b, nil), true
	})
}

func constPos(arg1, _ rtlil.Const, signed1, _ bool, resultLen int) rtlil.Const {
	width := defWidth(resultLen, len(arg1.Bits))
	return extendTo(arg1, width, signed1)
}

func constNeg(arg1, _ rtlil.Const, signed1, _ bool, resultLen int) rtlil.Const {
	width := defWidth(resultLen, len(arg1.Bits))
	a, ok := toBig(arg1, signed1)
	if !ok {
		return rtlil.NewConstState(rtlil.Sx, width)
	}
	return bigToConst(new(big.Int).Neg(a), width)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
