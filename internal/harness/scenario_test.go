package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenarioPath := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
module: orders
types:
  - name: com.shop.Cart
    methods: [add]
steps:
  - watch: { as: w, prefix: com.shop., kinds: [BEFORE] }
  - invoke: { type: com.shop.Cart, method: add }
  - delete: { ref: w }
assertions:
  - type: records
    count: 0
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "orders", scenario.Module)
	assert.Len(t, scenario.Types, 1)
	assert.Len(t, scenario.Steps, 3)
	assert.Equal(t, "com.shop.", scenario.Steps[0].Watch.Prefix)
	assert.Equal(t, []string{"BEFORE"}, scenario.Steps[0].Watch.Kinds)
	assert.Equal(t, "w", scenario.Steps[2].Delete.Ref)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Fixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}

func TestParseScenario_UnknownField(t *testing.T) {
	content := `
name: typo
description: "Unknown field"
module: orders
steps:
  - watch: { prefix: com.shop., progres: true }
assertions:
  - type: records
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_ScopedInline(t *testing.T) {
	content := `
name: scoped
description: "Scoped watch with nested steps"
module: orders
steps:
  - scoped:
      as: tmp
      name: com.shop.Cart
      progress: true
      fail: true
      steps:
        - invoke: { type: com.shop.Cart, method: add }
assertions:
  - type: records
`
	scenario, err := ParseScenario([]byte(content))
	require.NoError(t, err)

	scoped := scenario.Steps[0].Scoped
	require.NotNil(t, scoped)
	assert.Equal(t, "tmp", scoped.As)
	assert.Equal(t, "com.shop.Cart", scoped.Name)
	assert.True(t, scoped.Progress)
	assert.True(t, scoped.Fail)
	assert.Len(t, scoped.Steps, 1)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
module: m
steps: [{ unload: true }]
assertions: [{ type: records }]
`,
			wantErr: "name is required",
		},
		{
			name: "missing module",
			content: `
name: n
description: d
steps: [{ unload: true }]
assertions: [{ type: records }]
`,
			wantErr: "module is required",
		},
		{
			name: "empty steps",
			content: `
name: n
description: d
module: m
assertions: [{ type: records }]
`,
			wantErr: "steps list is required",
		},
		{
			name: "two actions in one step",
			content: `
name: n
description: d
module: m
steps:
  - unload: true
    activate: true
assertions: [{ type: records }]
`,
			wantErr: "exactly one action is required, got 2",
		},
		{
			name: "watch without selector",
			content: `
name: n
description: d
module: m
steps: [{ watch: { as: w } }]
assertions: [{ type: records }]
`,
			wantErr: "steps[0].watch: exactly one of pattern, prefix or name is required",
		},
		{
			name: "watch with two selectors",
			content: `
name: n
description: d
module: m
steps: [{ watch: { prefix: a., name: a.B } }]
assertions: [{ type: records }]
`,
			wantErr: "exactly one of pattern, prefix or name is required",
		},
		{
			name: "unknown event kind",
			content: `
name: n
description: d
module: m
steps: [{ watch: { prefix: a., kinds: [LINE] } }]
assertions: [{ type: records }]
`,
			wantErr: "LINE",
		},
		{
			name: "delete without target",
			content: `
name: n
description: d
module: m
steps: [{ delete: { progress: true } }]
assertions: [{ type: records }]
`,
			wantErr: "ref or id is required",
		},
		{
			name: "lifecycle step in parallel",
			content: `
name: n
description: d
module: m
steps:
  - parallel:
      - watch: { prefix: a. }
      - unload: true
assertions: [{ type: records }]
`,
			wantErr: "steps[0].parallel[1]: unload is not allowed in parallel",
		},
		{
			name: "nested scoped step error",
			content: `
name: n
description: d
module: m
steps:
  - scoped:
      prefix: a.
      steps:
        - invoke: { type: a.B }
assertions: [{ type: records }]
`,
			wantErr: "steps[0].scoped.steps[0].invoke: type and method are required",
		},
		{
			name: "unknown assertion",
			content: `
name: n
description: d
module: m
steps: [{ unload: true }]
assertions: [{ type: hooks }]
`,
			wantErr: `unknown assertion type "hooks"`,
		},
		{
			name: "rewritten without types",
			content: `
name: n
description: d
module: m
steps: [{ unload: true }]
assertions: [{ type: rewritten }]
`,
			wantErr: "types list is required for rewritten",
		},
		{
			name: "negative count",
			content: `
name: n
description: d
module: m
steps: [{ unload: true }]
assertions: [{ type: events, count: -1 }]
`,
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
