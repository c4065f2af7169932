package visualization_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/hfsm"
	"github.com/anggasct/hfsm/visualization"
)

func flatDefinition(t *testing.T) *hfsm.Definition[string, string] {
	t.Helper()
	def, err := hfsm.NewBuilder[string, string]("flat").
		Composite("machine").Children("idle", "running", "stopped").
		State("idle").To("running").On("start").
		State("running").To("stopped").On("stop").
		State("stopped").To("idle").On("reset").
		Build()
	require.NoError(t, err)
	return def
}

func TestDOTGeneration(t *testing.T) {
	generator := visualization.NewDOTGenerator(flatDefinition(t))

	dotContent, err := generator.Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	if !strings.Contains(dotContent, "digraph StateMachine") {
		t.Error("DOT content should contain graph declaration")
	}

	if !strings.Contains(dotContent, "\"idle\"") {
		t.Error("DOT content should contain idle state")
	}

	if !strings.Contains(dotContent, "\"running\"") {
		t.Error("DOT content should contain running state")
	}

	if !strings.Contains(dotContent, "\"idle\" -> \"running\"") {
		t.Error("DOT content should contain transition from idle to running")
	}

	if !strings.Contains(dotContent, "lightgreen") {
		t.Error("DOT content should highlight initial state")
	}

	t.Logf("Generated DOT content:\n%s", dotContent)
}

func TestDOTGenerationWithComposites(t *testing.T) {
	def, err := hfsm.NewBuilder[string, string]("nested").
		Composite("on").History(hfsm.HistoryDeep).Children("heating", "cooling").
		Composite("heating").History(hfsm.HistoryShallow).Children("low", "high").
		State("low").To("high").On("boost").When(func(*hfsm.Context[string, string]) bool { return true }).
		State("high").Internal().On("tick").Do(func(*hfsm.Context[string, string]) error { return nil }).
		State("on").To("off").On("power").
		Build()
	require.NoError(t, err)

	dotContent, err := visualization.NewDOTGenerator(def).Generate()
	require.NoError(t, err)

	assert.Contains(t, dotContent, `subgraph "cluster_on"`)
	assert.Contains(t, dotContent, `subgraph "cluster_heating"`)
	assert.Contains(t, dotContent, `label="on [H*]"`)
	assert.Contains(t, dotContent, `label="heating [H]"`)
	assert.Contains(t, dotContent, `"low" -> "high" [style=solid label="boost [guard]"]`)
	assert.Contains(t, dotContent, `"high" -> "high" [style=dashed label="tick / 1 action(s)"]`)
	assert.Contains(t, dotContent, `ltail="cluster_on"`)
	assert.NotContains(t, dotContent, `subgraph "cluster_off"`)
}

func TestDOTGenerationCompactMode(t *testing.T) {
	def, err := hfsm.NewBuilder[string, string]("compact").
		State("a").To("b").On("go").When(func(*hfsm.Context[string, string]) bool { return false }).
		Build()
	require.NoError(t, err)

	options := visualization.DefaultDOTOptions()
	options.CompactMode = true
	options.RankDirection = "LR"

	dotContent, err := visualization.NewDOTGenerator(def, options).Generate()
	require.NoError(t, err)

	assert.Contains(t, dotContent, "rankdir=LR;")
	assert.Contains(t, dotContent, `"a" -> "b" [style=solid label="go"]`)
	assert.NotContains(t, dotContent, "[guard]")
}

func TestDOTGenerator_GenerateToFile(t *testing.T) {
	generator := visualization.NewDOTGenerator(flatDefinition(t))

	filename := filepath.Join(t.TempDir(), "machine.dot")
	err := generator.GenerateToFile(filename)
	if err != nil {
		t.Fatalf("Failed to generate DOT file: %v", err)
	}

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(content), "digraph StateMachine")
}

func TestSVGGenerator(t *testing.T) {
	if _, err := exec.LookPath("dot"); err != nil {
		t.Skip("Graphviz is not installed")
	}

	generator := visualization.NewSVGGenerator(flatDefinition(t))

	svgContent, err := generator.Generate()
	if err != nil {
		t.Fatalf("Failed to generate SVG: %v", err)
	}

	if !strings.Contains(svgContent, "<svg") {
		t.Error("Content should be valid SVG")
	}
}
