package tp

import (
	"tlog.app/go/errors"
)

type (
	// FuncID indexes the owner's function list.
	FuncID int

	FuncDecl struct {
		Name string
		Sig  Signature
		ID   FuncID
	}

	// Registry is the function/overload table built during analysis
	// and consulted by codegen to resolve calls.
	Registry struct {
		byName map[string][]*FuncDecl
		order  []*FuncDecl
	}
)

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string][]*FuncDecl),
	}
}

func (r *Registry) Register(name string, sig Signature) (*FuncDecl, error) {
	for _, d := range r.byName[name] {
		if sameParams(d.Sig, sig) {
			return nil, errors.New("function redefined: %v%v", name, sig)
		}
	}

	d := &FuncDecl{
		Name: name,
		Sig:  sig,
		ID:   FuncID(len(r.order)),
	}

	r.byName[name] = append(r.byName[name], d)
	r.order = append(r.order, d)

	return d, nil
}

// Resolve picks the overload with exactly matching parameter types.
func (r *Registry) Resolve(name string, args []Type) (*FuncDecl, error) {
	ds := r.byName[name]
	if len(ds) == 0 {
		return nil, errors.New("undefined function: %v", name)
	}

	for _, d := range ds {
		if matchArgs(d.Sig, args) {
			return d, nil
		}
	}

	return nil, errors.New("no overload of %v matches %v", name, args)
}

func (r *Registry) Lookup(name string) []*FuncDecl { return r.byName[name] }

func (r *Registry) Funcs() []*FuncDecl { return r.order }

func (r *Registry) ByID(id FuncID) *FuncDecl { return r.order[id] }

func matchArgs(sig Signature, args []Type) bool {
	if len(sig.Params) != len(args) {
		return false
	}

	for i, p := range sig.Params {
		if !p.Type.Equal(args[i]) {
			return false
		}
	}

	return true
}

func sameParams(a, b Signature) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}

	for i := range a.Params {
		if !a.Params[i].Type.Equal(b.Params[i].Type) {
			return false
		}
	}

	return true
}
