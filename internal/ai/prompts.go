package ai

import (
	"fmt"
	"regexp"
	"strings"
)

var varRe = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// Vars is a map of variable names to values for template rendering.
type Vars map[string]string

// Render expands a template string with the given variables. {{variable}} is
// replaced with its value; missing variables cause an error so a malformed
// request is caught before it reaches the inference service.
func Render(tmpl string, vars Vars) (string, error) {
	var missing []string
	expanded := varRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := varRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

const suspectAppsTemplate = `A CI build for a multi-application project has failed.

Deployed applications:
{{applications}}

Most recent source diff:
{{diff}}

Build console log:
{{build_log}}

Identify which of the deployed applications most likely caused the failure.
Respond with JSON only: {"applications": ["<name>", ...]}
Only list applications from the deployed set. List at least one.`

const suspectFilesTemplate = `A CI build has failed. Localize the failure to specific source files.

Most recent source diff:
{{diff}}

Source trees of the suspect applications:
{{trees}}

Build console log:
{{build_log}}

Respond with JSON only:
{"error_summary": "...", "cause": "...", "resolution_hint": "...", "files": ["<path>", ...]}
All fields are required and files must contain at least one path from the trees above.`

const fixInstructionTemplate = `A file is suspected to cause a CI build failure.

File path: {{path}}

Current content:
{{original}}

Describe the minimal change that fixes the failure.
Respond with JSON only: {"instruction": "...", "explanation": "..."}`

const patchTemplate = `Apply a fix to a source file and return the complete patched file.

File path: {{path}}

Current content:
{{original}}

Fix instruction:
{{instruction}}

Respond with JSON only: {"content": "<entire patched file>", "encoding": "text"}
The content must be the full file, not a fragment or a diff.`

const reportTemplate = `Summarize an automated CI repair attempt as a short report.

Fixes that were applied:
{{fixes}}

Resolution outcome:
{{resolution}}

Respond with JSON only:
{"title": "...", "summary": "...", "applied_files": ["<name>", ...], "additional_notes": "..."}
All fields are required.`
