package ir

import (
	"fmt"
	"sort"

	"github.com/willf/bitset"
)

// Walk traverses the tree rooted at n in depth-first order. It calls visit for each node; if visit
// returns false, the node's children are skipped.
func Walk(n Node, visit func(n Node) bool) {
	if n == nil || !visit(n) {
		return
	}

	switch n := n.(type) {
	case *Const, *LocalRef, *GlobalRef, *MemorySize, *Phi, *InvalidExpr:
		// leaves
	case *Unop:
		Walk(n.X, visit)
	case *Binop:
		Walk(n.X, visit)
		Walk(n.Y, visit)
	case *Ternary:
		Walk(n.Cond, visit)
		Walk(n.X, visit)
		Walk(n.Y, visit)
	case *Call:
		walkExprs(n.Args, visit)
	case *CallIndirect:
		walkExprs(n.Args, visit)
		Walk(n.Callee, visit)
	case *MemoryRead:
		Walk(n.Addr, visit)
	case *MemoryGrow:
		Walk(n.Delta, visit)

	case *Sequence:
		for _, s := range n.Stms {
			Walk(s, visit)
		}
	case *Block:
		Walk(n.Body, visit)
	case *Loop:
		Walk(n.Body, visit)
	case *If:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
	case *IfElse:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
		Walk(n.Else, visit)
	case *SetLocal:
		Walk(n.Value, visit)
	case *SetGlobal:
		Walk(n.Value, visit)
	case *Return:
		Walk(n.Value, visit)
	case *ExpressionStatement:
		Walk(n.X, visit)
	case *MemoryWrite:
		Walk(n.Addr, visit)
		Walk(n.Value, visit)
	case *BranchIf:
		Walk(n.Cond, visit)
	case *BranchTable:
		Walk(n.Index, visit)
	case *SetPhi:
		Walk(n.Value, visit)
	case *ReturnVoid, *Branch, *Unreachable, *Nop:
		// leaves
	default:
		panic(fmt.Errorf("unexpected node of type %T", n))
	}
}

func walkExprs(xs []Expr, visit func(n Node) bool) {
	for _, x := range xs {
		Walk(x, visit)
	}
}

// Refs records the variables a tree reads or writes.
type Refs struct {
	// Locals is the set of declared locals (including parameters) that are referenced.
	Locals bitset.BitSet
	// LocalStores is the subset of Locals that are assigned.
	LocalStores bitset.BitSet
	// Globals is the set of referenced globals.
	Globals bitset.BitSet
	// Temps lists the referenced temporaries, ordered by position and then type.
	Temps []Local
}

// CollectRefs returns the variables referenced by the tree rooted at n.
func CollectRefs(n Node) *Refs {
	refs := &Refs{}
	temps := map[Local]bool{}

	local := func(l Local, store bool) {
		if l.Temp {
			if !temps[l] {
				temps[l] = true
				refs.Temps = append(refs.Temps, l)
			}
			return
		}
		refs.Locals.Set(uint(l.Index))
		if store {
			refs.LocalStores.Set(uint(l.Index))
		}
	}

	Walk(n, func(n Node) bool {
		switch n := n.(type) {
		case *LocalRef:
			local(n.Local, false)
		case *SetLocal:
			local(n.Local, true)
		case *GlobalRef:
			refs.Globals.Set(uint(n.Index))
		case *SetGlobal:
			refs.Globals.Set(uint(n.Index))
		}
		return true
	})

	sort.Slice(refs.Temps, func(i, j int) bool {
		a, b := refs.Temps[i], refs.Temps[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Type < b.Type
	})
	return refs
}

// CollectLocals returns the set of declared locals referenced by the tree rooted at n.
func CollectLocals(n Node) *bitset.BitSet {
	return &CollectRefs(n).Locals
}

// Temps returns the temporaries referenced by the tree rooted at n. These are the variables a code
// generator must declare in addition to the function's own locals.
func Temps(n Node) []Local {
	return CollectRefs(n).Temps
}
