package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anggasct/hfsm"
)

// DOTGenerator generates Graphviz DOT format representations of state machine
// definitions. Composite states are drawn as clusters around their sub-states.
type DOTGenerator[S, E comparable] struct {
	definition *hfsm.Definition[S, E]
	options    DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowGuardConditions bool
	ShowActions         bool
	ShowHistory         bool
	CompactMode         bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
	TransitionStyle     string
	InternalStyle       string
	CompositeStateStyle string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowActions:         true,
		ShowHistory:         true,
		CompactMode:         false,
		RankDirection:       "TB",
		NodeShape:           "box",
		TransitionStyle:     "solid",
		InternalStyle:       "dashed",
		CompositeStateStyle: "rounded,filled",
	}
}

// NewDOTGenerator creates a new DOT generator for the given definition
func NewDOTGenerator[S, E comparable](definition *hfsm.Definition[S, E], options ...DOTOptions) *DOTGenerator[S, E] {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator[S, E]{
		definition: definition,
		options:    opts,
	}
}

// Generate creates a DOT representation of the definition
func (g *DOTGenerator[S, E]) Generate() (string, error) {
	if g.definition == nil {
		return "", fmt.Errorf("no definition to render")
	}

	var dot strings.Builder

	dot.WriteString("digraph StateMachine {\n")
	dot.WriteString(fmt.Sprintf("  rankdir=%s;\n", g.options.RankDirection))
	dot.WriteString("  compound=true;\n")
	dot.WriteString(fmt.Sprintf("  node [shape=%s];\n", g.options.NodeShape))
	dot.WriteString("  edge [fontsize=10];\n\n")

	dot.WriteString("  // States\n")
	for _, root := range g.definition.Roots() {
		g.generateState(&dot, root, 1)
	}

	dot.WriteString("\n  // Transitions\n")
	for _, state := range g.definition.States() {
		g.generateTransitions(&dot, state)
	}

	dot.WriteString("}\n")
	return dot.String(), nil
}

func (g *DOTGenerator[S, E]) generateState(dot *strings.Builder, state *hfsm.State[S, E], level int) {
	indent := strings.Repeat("  ", level)
	id := fmt.Sprint(state.ID())

	if !state.IsComposite() {
		dot.WriteString(fmt.Sprintf("%s%s [style=\"filled\" fillcolor=%s label=%s];\n",
			indent, quote(id), g.fillColor(state), quote(g.label(state))))
		return
	}

	label := id
	if g.options.ShowHistory && state.HistoryMode() != hfsm.HistoryNone {
		label += " " + historyMarker(state.HistoryMode())
	}
	dot.WriteString(fmt.Sprintf("%ssubgraph %s {\n", indent, quote("cluster_"+id)))
	dot.WriteString(fmt.Sprintf("%s  label=%s;\n", indent, quote(label)))
	dot.WriteString(fmt.Sprintf("%s  style=\"%s\";\n", indent, g.options.CompositeStateStyle))
	dot.WriteString(fmt.Sprintf("%s  fillcolor=lightcyan;\n", indent))
	// The composite itself is drawn as a small node so that edges can reach it.
	dot.WriteString(fmt.Sprintf("%s  %s [shape=point width=0.15 label=\"\"];\n", indent, quote(id)))
	for _, child := range state.Children() {
		if sub, ok := g.definition.Lookup(child); ok {
			g.generateState(dot, sub, level+1)
		}
	}
	dot.WriteString(fmt.Sprintf("%s}\n", indent))
}

func (g *DOTGenerator[S, E]) generateTransitions(dot *strings.Builder, state *hfsm.State[S, E]) {
	from := fmt.Sprint(state.ID())
	for _, t := range state.Transitions() {
		label := g.transitionLabel(t)
		to, ok := t.Target()
		style := g.options.TransitionStyle
		target := from
		if ok {
			target = fmt.Sprint(to)
		} else {
			style = g.options.InternalStyle
		}

		attrs := []string{fmt.Sprintf("style=%s", style)}
		if label != "" {
			attrs = append(attrs, "label="+quote(label))
		}
		if s, found := g.definition.Lookup(state.ID()); found && s.IsComposite() {
			attrs = append(attrs, "ltail="+quote("cluster_"+from))
		}
		if ok {
			if s, found := g.definition.Lookup(to); found && s.IsComposite() && to != state.ID() {
				attrs = append(attrs, "lhead="+quote("cluster_"+target))
			}
		}
		dot.WriteString(fmt.Sprintf("  %s -> %s [%s];\n", quote(from), quote(target), strings.Join(attrs, " ")))
	}
}

func (g *DOTGenerator[S, E]) transitionLabel(t *hfsm.Transition[S, E]) string {
	if g.options.CompactMode {
		return fmt.Sprint(t.Event())
	}
	label := fmt.Sprint(t.Event())
	if g.options.ShowGuardConditions && t.HasGuard() {
		label += " [guard]"
	}
	if g.options.ShowActions && t.ActionCount() > 0 {
		label += fmt.Sprintf(" / %d action(s)", t.ActionCount())
	}
	return label
}

func (g *DOTGenerator[S, E]) label(state *hfsm.State[S, E]) string {
	label := fmt.Sprint(state.ID())
	if g.isInitial(state) {
		label += "\\n(initial)"
	}
	return label
}

func (g *DOTGenerator[S, E]) fillColor(state *hfsm.State[S, E]) string {
	if g.isInitial(state) {
		return "lightgreen"
	}
	return "lightblue"
}

func (g *DOTGenerator[S, E]) isInitial(state *hfsm.State[S, E]) bool {
	parentID, ok := state.Parent()
	if !ok {
		return false
	}
	parent, ok := g.definition.Lookup(parentID)
	if !ok {
		return false
	}
	initial, ok := parent.Initial()
	return ok && initial == state.ID()
}

func historyMarker(mode hfsm.HistoryMode) string {
	switch mode {
	case hfsm.HistoryShallow:
		return "[H]"
	case hfsm.HistoryDeep:
		return "[H*]"
	default:
		return ""
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator[S, E]) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// SVGGenerator generates SVG representations by calling Graphviz
type SVGGenerator[S, E comparable] struct {
	dotGenerator *DOTGenerator[S, E]
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator[S, E comparable](definition *hfsm.Definition[S, E], options ...DOTOptions) *SVGGenerator[S, E] {
	return &SVGGenerator[S, E]{
		dotGenerator: NewDOTGenerator(definition, options...),
	}
}

// Generate creates an SVG representation of the definition
func (g *SVGGenerator[S, E]) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

// GenerateSVG creates an SVG representation of the definition
func (g *DOTGenerator[S, E]) GenerateSVG() (string, error) {
	svgGen := &SVGGenerator[S, E]{dotGenerator: g}
	return svgGen.Generate()
}
