package categorizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCategories() []CategoryConfig {
	return []CategoryConfig{
		{Name: "Streaming", Keywords: []string{"netflix", "spotify", " Disney "}},
		{Name: "Groceries", Keywords: []string{"migros", "coop"}},
	}
}

func TestKeywordStrategy(t *testing.T) {
	s := NewKeywordStrategy(testCategories())

	tests := []struct {
		description string
		want        string
		found       bool
	}{
		{"NETFLIX.COM AMSTERDAM", "Streaming", true},
		{"Spotify AB Stockholm", "Streaming", true},
		{"MIGROS M BUDGET", "Groceries", true},
		{"DISNEY PLUS", "Streaming", true}, // keyword trimmed and lowercased
		{"SHELL STATION", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, found, err := s.Categorize(context.Background(), sampleTx(tt.description))
		require.NoError(t, err)
		assert.Equal(t, tt.found, found, "description %q", tt.description)
		assert.Equal(t, tt.want, got, "description %q", tt.description)
	}
}

func TestCategoryStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "categories.yaml")
	store := NewCategoryStore(path)

	// Missing file yields no rules, not an error.
	cats, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cats)

	require.NoError(t, store.Save(testCategories()))
	cats, err = store.Load()
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Streaming", cats[0].Name)
	assert.Contains(t, cats[0].Keywords, "netflix")
}

func TestCategoryStoreRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: {not: [valid"), 0600))

	_, err := NewCategoryStore(path).Load()
	assert.Error(t, err)
}

func TestExtractCategory(t *testing.T) {
	categories := []string{"Streaming", "Groceries"}

	assert.Equal(t, "Streaming",
		extractCategory("Category: streaming\nDescription: subscription service", categories))
	assert.Equal(t, "Groceries", extractCategory("Groceries", categories))
	assert.Equal(t, "", extractCategory("Category: Gambling", categories))
	assert.Equal(t, "", extractCategory("", categories))
}
