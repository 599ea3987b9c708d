package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshwara/gatekit/pkg/store"
)

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	return New(store.NewMemoryStore().Namespace("registry"), opts)
}

func noopHandler(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return "ok", nil
}

func testDef(qualified, integration string) ToolDefinition {
	return ToolDefinition{
		QualifiedName: qualified,
		IntegrationID: integration,
		Description:   "A test tool",
		Handler:       noopHandler,
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	ctx := context.Background()

	err := reg.Register(ctx, testDef("github_create_issue", "github"), RegisterOptions{Version: "1.0"})
	require.NoError(t, err)

	rec, ok := reg.Get("github_create_issue")
	require.True(t, ok)
	assert.Equal(t, "create_issue", rec.Name, "integration prefix is stripped for display")
	assert.Equal(t, "github", rec.IntegrationID)
	assert.False(t, rec.Hot, "new tools start cold")
	assert.EqualValues(t, 0, rec.UsageCount)
}

func TestRegistry_Register_Invalid(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{"empty name", ToolDefinition{IntegrationID: "x", Handler: noopHandler}},
		{"empty integration", ToolDefinition{QualifiedName: "x_y", Handler: noopHandler}},
		{"nil handler", ToolDefinition{QualifiedName: "x_y", IntegrationID: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, reg.Register(ctx, tt.def, RegisterOptions{}))
		})
	}
}

func TestRegistry_RecordUsage_Promotion(t *testing.T) {
	reg := newTestRegistry(t, Options{HotThreshold: 3})
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, testDef("slack_send", "slack"), RegisterOptions{}))

	for i := 0; i < 2; i++ {
		require.NoError(t, reg.RecordUsage(ctx, "slack_send"))
	}
	rec, _ := reg.Get("slack_send")
	assert.False(t, rec.Hot, "below threshold stays cold")

	require.NoError(t, reg.RecordUsage(ctx, "slack_send"))
	rec, _ = reg.Get("slack_send")
	assert.True(t, rec.Hot, "promoted at threshold")
}

func TestRegistry_HotSet_SwapNotEvict(t *testing.T) {
	// Tiny hot set: threshold 1, max 2, min 1.
	reg := newTestRegistry(t, Options{HotThreshold: 1, MaxHotTools: 2, MinHotTools: 1})
	ctx := context.Background()

	for _, name := range []string{"a_t1", "a_t2", "a_t3"} {
		require.NoError(t, reg.Register(ctx, testDef(name, "a"), RegisterOptions{}))
	}

	// t1 used twice, t2 once: both promoted, hot set full.
	require.NoError(t, reg.RecordUsage(ctx, "a_t1"))
	require.NoError(t, reg.RecordUsage(ctx, "a_t1"))
	require.NoError(t, reg.RecordUsage(ctx, "a_t2"))
	assert.Equal(t, 2, reg.Stats().HotTools)

	// t3 with one use ties the coldest hot tool: no swap on a tie.
	require.NoError(t, reg.RecordUsage(ctx, "a_t3"))
	rec, _ := reg.Get("a_t3")
	assert.False(t, rec.Hot)

	// A strictly greater count swaps with the coldest hot tool.
	require.NoError(t, reg.RecordUsage(ctx, "a_t3"))
	rec, _ = reg.Get("a_t3")
	assert.True(t, rec.Hot)
	demoted, _ := reg.Get("a_t2")
	assert.False(t, demoted.Hot)
	assert.Equal(t, 2, reg.Stats().HotTools, "swap keeps the hot set size constant")
}

func TestRegistry_HotSet_NeverBelowMin(t *testing.T) {
	// min == max: demotion would shrink below minimum, so swaps are refused.
	reg := newTestRegistry(t, Options{HotThreshold: 1, MaxHotTools: 2, MinHotTools: 2})
	ctx := context.Background()

	for _, name := range []string{"a_t1", "a_t2", "a_t3"} {
		require.NoError(t, reg.Register(ctx, testDef(name, "a"), RegisterOptions{}))
	}
	require.NoError(t, reg.RecordUsage(ctx, "a_t1"))
	require.NoError(t, reg.RecordUsage(ctx, "a_t2"))

	for i := 0; i < 5; i++ {
		require.NoError(t, reg.RecordUsage(ctx, "a_t3"))
	}
	rec, _ := reg.Get("a_t3")
	assert.False(t, rec.Hot, "no swap when the hot set cannot dip below its minimum")
	assert.Equal(t, 2, reg.Stats().HotTools)
}

func TestRegistry_RestartRestoresHotSet(t *testing.T) {
	st := store.NewMemoryStore().Namespace("registry")
	ctx := context.Background()

	reg := New(st, Options{HotThreshold: 3})
	require.NoError(t, reg.Register(ctx, testDef("jira_update", "jira"), RegisterOptions{}))
	for i := 0; i < 3; i++ {
		require.NoError(t, reg.RecordUsage(ctx, "jira_update"))
	}
	rec, _ := reg.Get("jira_update")
	require.True(t, rec.Hot)

	// Simulated restart: a fresh registry over the same store.
	reg2 := New(st, Options{HotThreshold: 3})
	require.NoError(t, reg2.Register(ctx, testDef("jira_update", "jira"), RegisterOptions{}))

	rec, ok := reg2.Get("jira_update")
	require.True(t, ok)
	assert.EqualValues(t, 3, rec.UsageCount, "usage survives restart")
	assert.True(t, rec.Hot, "restored straight into the hot set")
}

func TestRegistry_HotTools(t *testing.T) {
	reg := newTestRegistry(t, Options{HotThreshold: 1})
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, testDef("a_hot", "a"), RegisterOptions{}))
	require.NoError(t, reg.Register(ctx, testDef("a_cold", "a"), RegisterOptions{}))
	require.NoError(t, reg.RecordUsage(ctx, "a_hot"))

	defs := reg.HotTools()
	require.Len(t, defs, 1)
	assert.Equal(t, "a_hot", defs[0].QualifiedName)
	assert.NotNil(t, defs[0].Handler)
}

func TestRegistry_ValidateInput(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	ctx := context.Background()

	def := testDef("gh_comment", "gh")
	def.Parameters = []ToolParameter{
		{Name: "body", Type: "string", Description: "Comment body", Required: true},
	}
	require.NoError(t, reg.Register(ctx, def, RegisterOptions{}))

	assert.NoError(t, reg.ValidateInput("gh_comment", map[string]interface{}{"body": "hi"}))
	assert.Error(t, reg.ValidateInput("gh_comment", map[string]interface{}{}))
	assert.Error(t, reg.ValidateInput("gh_comment", map[string]interface{}{"body": 42}))
}

func TestRegistry_Unregister(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, testDef("x_tool", "x"), RegisterOptions{}))
	assert.Equal(t, 1, reg.Count())

	reg.Unregister("x_tool")
	assert.Equal(t, 0, reg.Count())
	_, ok := reg.Get("x_tool")
	assert.False(t, ok)
}

func TestRegistry_StatsAndList(t *testing.T) {
	reg := newTestRegistry(t, Options{HotThreshold: 1})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, reg.Register(ctx, testDef(fmt.Sprintf("a_t%d", i), "a"), RegisterOptions{}))
	}
	require.NoError(t, reg.RecordUsage(ctx, "a_t0"))

	stats := reg.Stats()
	assert.Equal(t, 4, stats.TotalTools)
	assert.Equal(t, 1, stats.HotTools)
	assert.Equal(t, 3, stats.ColdTools)

	list := reg.List()
	require.Len(t, list, 4)
	assert.Equal(t, "a_t0", list[0].QualifiedName, "list keeps insertion order")
}
