package hfsm

const none = -1

// State is a node of the state graph. Parent, children and the initial child
// are indices into the owning Definition, so the graph carries no pointer
// cycles.
type State[S, E comparable] struct {
	def         *Definition[S, E]
	id          S
	index       int
	parent      int
	children    []int
	initial     int
	history     HistoryMode
	depth       int
	entry       []ActionFunc[S, E]
	exit        []ActionFunc[S, E]
	transitions map[E][]*Transition[S, E]
	events      []E
}

func newState[S, E comparable](def *Definition[S, E], id S, index int) *State[S, E] {
	return &State[S, E]{
		def:         def,
		id:          id,
		index:       index,
		parent:      none,
		initial:     none,
		depth:       1,
		transitions: make(map[E][]*Transition[S, E]),
	}
}

// ID returns the state identifier
func (s *State[S, E]) ID() S {
	return s.id
}

// Parent returns the identifier of the parent state, if any
func (s *State[S, E]) Parent() (S, bool) {
	if s.parent == none {
		var zero S
		return zero, false
	}
	return s.def.states[s.parent].id, true
}

// Children returns the sub-states in the order they were defined
func (s *State[S, E]) Children() []S {
	ids := make([]S, len(s.children))
	for i, c := range s.children {
		ids[i] = s.def.states[c].id
	}
	return ids
}

// Initial returns the initial sub-state, if any
func (s *State[S, E]) Initial() (S, bool) {
	if s.initial == none {
		var zero S
		return zero, false
	}
	return s.def.states[s.initial].id, true
}

// HistoryMode returns the history mode used when re-entering this state
func (s *State[S, E]) HistoryMode() HistoryMode {
	return s.history
}

// Depth is 1 for root states and grows by one per level
func (s *State[S, E]) Depth() int {
	return s.depth
}

// IsComposite returns true when the state has sub-states
func (s *State[S, E]) IsComposite() bool {
	return len(s.children) > 0
}

// OnEntry appends entry actions
func (s *State[S, E]) OnEntry(actions ...ActionFunc[S, E]) *State[S, E] {
	s.entry = append(s.entry, actions...)
	return s
}

// OnExit appends exit actions
func (s *State[S, E]) OnExit(actions ...ActionFunc[S, E]) *State[S, E] {
	s.exit = append(s.exit, actions...)
	return s
}

// Events returns the events this state has transitions for, in the order
// they were first registered
func (s *State[S, E]) Events() []E {
	return append([]E(nil), s.events...)
}

// Transitions returns every outgoing transition grouped by event
func (s *State[S, E]) Transitions() []*Transition[S, E] {
	var all []*Transition[S, E]
	for _, e := range s.events {
		all = append(all, s.transitions[e]...)
	}
	return all
}

func (s *State[S, E]) addTransition(t *Transition[S, E]) {
	if _, ok := s.transitions[t.event]; !ok {
		s.events = append(s.events, t.event)
	}
	s.transitions[t.event] = append(s.transitions[t.event], t)
}

// setParent re-parents the state and refreshes the depth of its sub-tree.
func (s *State[S, E]) setParent(parent int) {
	s.parent = parent
	s.updateDepth()
}

func (s *State[S, E]) updateDepth() {
	if s.parent == none {
		s.depth = 1
	} else {
		s.depth = s.def.states[s.parent].depth + 1
	}
	for _, c := range s.children {
		s.def.states[c].updateDepth()
	}
}

func (s *State[S, E]) removeChild(child int) {
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			break
		}
	}
	if s.initial == child {
		s.initial = none
	}
}
