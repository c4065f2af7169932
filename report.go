package hfsm

import (
	"fmt"
	"strings"
)

// Report returns a plain-text description of the definition and the status
// of this machine instance
func (m *Machine[S, E]) Report() string {
	return report(m, "", nil)
}

func report[S, E comparable](m *Machine[S, E], running string, queued []queuedEvent[E]) string {
	var b strings.Builder
	def := m.def

	fmt.Fprintf(&b, "State machine: %s (%s)\n", m.name, m.id)
	if running != "" {
		fmt.Fprintf(&b, "Running state: %s\n", running)
	}

	m.mutex.RLock()
	initialized, terminated, current := m.initialized, m.terminated, m.current
	history := make(map[int]int, len(m.history))
	for super, last := range m.history {
		history[super] = last
	}
	m.mutex.RUnlock()

	switch {
	case !initialized:
		b.WriteString("Current state: <not initialized>\n")
	case terminated:
		fmt.Fprintf(&b, "Current state: %v (terminated)\n", def.states[current].id)
	default:
		fmt.Fprintf(&b, "Current state: %v\n", def.states[current].id)
	}
	if queued != nil || running != "" {
		fmt.Fprintf(&b, "Queued events: %d\n", len(queued))
		for _, qe := range queued {
			fmt.Fprintf(&b, "  %v%s\n", qe.event, formatArgs(qe.args))
		}
	}

	b.WriteString("States:\n")
	for _, root := range def.states {
		if root.parent == none {
			writeState(&b, def, root, history, 1)
		}
	}
	return b.String()
}

func writeState[S, E comparable](b *strings.Builder, def *Definition[S, E], st *State[S, E], history map[int]int, level int) {
	indent := strings.Repeat("  ", level)
	fmt.Fprintf(b, "%s%v", indent, st.id)
	if st.parent != none && def.states[st.parent].initial == st.index {
		b.WriteString(" [initial]")
	}
	if st.IsComposite() {
		fmt.Fprintf(b, " history=%s", st.history)
		if last, ok := history[st.index]; ok {
			fmt.Fprintf(b, " last=%v", def.states[last].id)
		}
	}
	if n := len(st.entry); n > 0 {
		fmt.Fprintf(b, " entry=%d", n)
	}
	if n := len(st.exit); n > 0 {
		fmt.Fprintf(b, " exit=%d", n)
	}
	b.WriteString("\n")

	for _, t := range st.Transitions() {
		fmt.Fprintf(b, "%s  on %v", indent, t.event)
		if t.target == none {
			b.WriteString(" internal")
		} else {
			fmt.Fprintf(b, " -> %v", def.states[t.target].id)
		}
		if t.guard != nil {
			b.WriteString(" [guarded]")
		}
		if n := len(t.actions); n > 0 {
			fmt.Fprintf(b, " actions=%d", n)
		}
		b.WriteString("\n")
	}
	for _, child := range st.children {
		writeState(b, def, def.states[child], history, level+1)
	}
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
