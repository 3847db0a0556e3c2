package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render("fix {{path}} because {{reason}}", Vars{"path": "a.py", "reason": "it broke"})
	require.NoError(t, err)
	assert.Equal(t, "fix a.py because it broke", out)
}

func TestRender_MissingVariable(t *testing.T) {
	_, err := Render("fix {{path}} on {{branch}}", Vars{"path": "a.py"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch")
}

func TestRender_RepeatedVariable(t *testing.T) {
	out, err := Render("{{x}} and {{x}}", Vars{"x": "twice"})
	require.NoError(t, err)
	assert.Equal(t, "twice and twice", out)
}

func TestRender_NoVariables(t *testing.T) {
	out, err := Render("static text", nil)
	require.NoError(t, err)
	assert.Equal(t, "static text", out)
}

func TestTemplates_RenderWithExpectedVariables(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars Vars
	}{
		{"suspect apps", suspectAppsTemplate, Vars{"applications": "a", "diff": "d", "build_log": "l"}},
		{"suspect files", suspectFilesTemplate, Vars{"diff": "d", "trees": "t", "build_log": "l"}},
		{"fix instruction", fixInstructionTemplate, Vars{"path": "p", "original": "o"}},
		{"patch", patchTemplate, Vars{"path": "p", "original": "o", "instruction": "i"}},
		{"report", reportTemplate, Vars{"fixes": "f", "resolution": "r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.tmpl, tt.vars)
			require.NoError(t, err)
			assert.NotContains(t, out, "{{")
		})
	}
}
