package ir

import (
	"tlog.app/go/errors"

	"lpfx.dev/go/lpfx/compiler/set"
)

// Verify checks SSA well-formedness: every value is defined exactly
// once, every use is dominated by its definition, branch argument
// counts and classes match destination block parameters, and every
// block is terminated. A failure here is a compiler bug, not a user
// error.
func Verify(f *Func) error {
	defBlock := make([]BlockID, len(f.Vals))
	defIndex := make([]int, len(f.Vals))

	for i := range defBlock {
		defBlock[i] = -1
	}

	for bi := range f.Blocks {
		b := &f.Blocks[bi]

		for pi, v := range b.Params {
			if defBlock[v] != -1 {
				return errors.New("v%d defined twice (block b%d param)", v, bi)
			}

			defBlock[v] = BlockID(bi)
			defIndex[v] = -1
			_ = pi
		}

		for ii := range b.Code {
			x := &b.Code[ii]
			if x.Out == NoValue {
				continue
			}

			if defBlock[x.Out] != -1 {
				return errors.New("v%d defined twice (block b%d instr %d)", x.Out, bi, ii)
			}

			defBlock[x.Out] = BlockID(bi)
			defIndex[x.Out] = ii
		}
	}

	dom := dominators(f)

	dominates := func(a, b BlockID) bool {
		for {
			if a == b {
				return true
			}

			if b == 0 {
				return false
			}

			b = dom[b]
		}
	}

	checkUse := func(bi BlockID, ii int, v Value) error {
		if v < 0 || int(v) >= len(f.Vals) {
			return errors.New("v%d is not a value", v)
		}

		db := defBlock[v]
		if db == -1 {
			return errors.New("v%d used but never defined", v)
		}

		if db == bi {
			if ii >= 0 && defIndex[v] >= ii {
				return errors.New("v%d used before definition in b%d", v, bi)
			}

			return nil
		}

		if !dominates(db, bi) {
			return errors.New("v%d defined in b%d does not dominate use in b%d", v, db, bi)
		}

		return nil
	}

	checkEdge := func(bi BlockID, to BlockID, args []Value) error {
		if int(to) >= len(f.Blocks) {
			return errors.New("branch from b%d to missing block b%d", bi, to)
		}

		params := f.Blocks[to].Params
		if len(args) != len(params) {
			return errors.New("branch b%d -> b%d passes %d args, block takes %d", bi, to, len(args), len(params))
		}

		for i, a := range args {
			if err := checkUse(bi, len(f.Blocks[bi].Code), a); err != nil {
				return err
			}

			if f.Vals[a] != f.Vals[params[i]] {
				return errors.New("branch b%d -> b%d arg %d class mismatch", bi, to, i)
			}
		}

		return nil
	}

	for bi := range f.Blocks {
		b := &f.Blocks[bi]

		for ii := range b.Code {
			for _, a := range b.Code[ii].Args {
				if err := checkUse(BlockID(bi), ii, a); err != nil {
					return errors.Wrap(err, "b%d instr %d", bi, ii)
				}
			}
		}

		switch t := &b.Term; t.Op {
		case Jump:
			if err := checkEdge(BlockID(bi), t.To, t.ToArgs); err != nil {
				return err
			}
		case Br:
			if err := checkUse(BlockID(bi), len(b.Code), t.Cond); err != nil {
				return errors.Wrap(err, "b%d cond", bi)
			}

			if err := checkEdge(BlockID(bi), t.To, t.ToArgs); err != nil {
				return err
			}

			if err := checkEdge(BlockID(bi), t.Else, t.ElseArgs); err != nil {
				return err
			}
		case Ret:
			for _, v := range t.Rets {
				if err := checkUse(BlockID(bi), len(b.Code), v); err != nil {
					return errors.Wrap(err, "b%d ret", bi)
				}
			}
		default:
			return errors.New("b%d is not terminated", bi)
		}
	}

	return nil
}

// dominators computes the immediate dominator of every block with the
// usual iterative bitset dataflow. Block 0 is the entry.
func dominators(f *Func) []BlockID {
	n := len(f.Blocks)

	preds := make([][]BlockID, n)

	addEdge := func(from, to BlockID) {
		preds[to] = append(preds[to], from)
	}

	for bi := range f.Blocks {
		switch t := &f.Blocks[bi].Term; t.Op {
		case Jump:
			addEdge(BlockID(bi), t.To)
		case Br:
			addEdge(BlockID(bi), t.To)
			addEdge(BlockID(bi), t.Else)
		}
	}

	doms := make([]set.Bits[int], n)

	full := set.MakeBits(0)
	for i := 0; i < n; i++ {
		full.Set(i)
	}

	for i := range doms {
		if i == 0 {
			doms[0] = set.MakeBits(0)
			doms[0].Set(0)
			continue
		}

		doms[i] = full.Copy()
	}

	for changed := true; changed; {
		changed = false

		for i := 1; i < n; i++ {
			next := full.Copy()

			if len(preds[i]) == 0 {
				// unreachable block dominates nothing but itself
				next = set.MakeBits(0)
			}

			for _, p := range preds[i] {
				next.Intersect(doms[int(p)])
			}

			next.Set(i)

			if !next.Equal(doms[i]) {
				doms[i] = next
				changed = true
			}
		}
	}

	idom := make([]BlockID, n)

	for i := 1; i < n; i++ {
		// the closest strict dominator is the one with the most dominators itself
		best, bestN := 0, 0

		doms[i].Range(func(d int) bool {
			if d == i {
				return true
			}

			if c := doms[d].Size(); c > bestN {
				best, bestN = d, c
			}

			return true
		})

		idom[i] = BlockID(best)
	}

	return idom
}
