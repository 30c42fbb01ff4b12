package sema

import "github.com/korlang-lang/korlang/internal/types"

// Symbol is one scope entry: a variable, parameter, or constant binding.
type Symbol struct {
	Name    string
	Type    types.Type
	Mutable bool
}

// scope is a single block's bindings; scopes is a stack of these,
// forming a proper lexical stack rather than a single flat frame.
type scope map[string]*Symbol

// scopes is the analyzer's lexical stack: index 0 is the root/global
// scope, the last entry is the innermost block.
type scopes struct {
	frames []scope
}

func newScopes() *scopes {
	return &scopes{frames: []scope{{}}}
}

func (s *scopes) push() {
	s.frames = append(s.frames, scope{})
}

func (s *scopes) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// define inserts name into the innermost scope, reporting ok=false if
// it already exists in that same scope (spec's redefinition rule).
func (s *scopes) define(sym *Symbol) bool {
	top := s.frames[len(s.frames)-1]
	if _, exists := top[sym.Name]; exists {
		return false
	}
	top[sym.Name] = sym
	return true
}

// defineRoot is like define but always targets the outermost scope,
// used for predeclared top-level consts (functions live in the
// analyzer's own maps, not in the scope chain).
func (s *scopes) defineRoot(sym *Symbol) {
	s.frames[0][sym.Name] = sym
}

// lookup searches innermost-to-outermost.
func (s *scopes) lookup(name string) (*Symbol, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if sym, ok := s.frames[i][name]; ok {
			return sym, true
		}
	}
	return nil, false
}
