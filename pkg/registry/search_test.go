package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshwara/gatekit/pkg/store"
)

func searchFixture(t *testing.T) *Registry {
	t.Helper()
	reg := New(store.NewMemoryStore().Namespace("registry"), Options{})
	ctx := context.Background()

	defs := []ToolDefinition{
		{
			QualifiedName: "github_create_issue",
			IntegrationID: "github",
			Description:   "Create a new issue in a GitHub repository",
			Handler:       noopHandler,
		},
		{
			QualifiedName: "github_list_issues",
			IntegrationID: "github",
			Description:   "List issues in a repository with filters",
			Handler:       noopHandler,
		},
		{
			QualifiedName: "slack_send_message",
			IntegrationID: "slack",
			Description:   "Send a message to a Slack channel",
			Handler:       noopHandler,
		},
		{
			QualifiedName: "shopify_update_product",
			IntegrationID: "shopify",
			Description:   "Update a product listing",
			Handler:       noopHandler,
		},
	}
	for _, def := range defs {
		require.NoError(t, reg.Register(ctx, def, RegisterOptions{}))
	}
	return reg
}

func TestSearch_ExactMatchRanksFirst(t *testing.T) {
	reg := searchFixture(t)

	results := reg.Search("create_issue", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "github_create_issue", results[0].Tool.QualifiedName)
	assert.GreaterOrEqual(t, results[0].Score, scoreExactName)
}

func TestSearch_SubstringAndIntegration(t *testing.T) {
	reg := searchFixture(t)

	results := reg.Search("issue", 10)
	require.GreaterOrEqual(t, len(results), 2)
	for _, r := range results[:2] {
		assert.Equal(t, "github", r.Tool.IntegrationID)
	}

	results = reg.Search("slack", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "slack_send_message", results[0].Tool.QualifiedName)
}

func TestSearch_PopularityBreaksNearTies(t *testing.T) {
	reg := searchFixture(t)
	ctx := context.Background()

	// Same lexical score for both "issue" tools; usage should lift one.
	for i := 0; i < 20; i++ {
		require.NoError(t, reg.RecordUsage(ctx, "github_list_issues"))
	}

	results := reg.Search("issues", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "github_list_issues", results[0].Tool.QualifiedName)
}

func TestSearch_LimitAndEmptyQuery(t *testing.T) {
	reg := searchFixture(t)

	assert.Nil(t, reg.Search("", 10))
	assert.Nil(t, reg.Search("issue", 0))

	results := reg.Search("a", 1)
	assert.LessOrEqual(t, len(results), 1)
}

func TestSearchByRegex(t *testing.T) {
	reg := searchFixture(t)

	matches := reg.SearchByRegex(`^github_.*`, 10)
	assert.Len(t, matches, 2)

	matches = reg.SearchByRegex(`product`, 10)
	require.Len(t, matches, 1)
	assert.Equal(t, "shopify_update_product", matches[0].QualifiedName)
}

func TestSearchByRegex_InvalidPattern(t *testing.T) {
	reg := searchFixture(t)

	// Invalid patterns yield an empty result rather than an error.
	assert.Nil(t, reg.SearchByRegex(`(unclosed`, 10))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"create", "an", "issue"}, tokenize("Create an issue!"))
	assert.Empty(t, tokenize("--- ___"))
}
