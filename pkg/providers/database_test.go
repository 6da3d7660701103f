package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseProvider_SeedFiltersByKeyword(t *testing.T) {
	p := NewDatabaseProvider(nil)

	items, err := p.Search(context.Background(), Request{Query: "compliance conference", Country: "DE"})
	require.NoError(t, err)
	require.NotEmpty(t, items)
	for _, it := range items {
		assert.Contains(t, it.URL+it.Title+it.Description, "ompliance")
	}
}

func TestDatabaseProvider_SeedRespectsLimit(t *testing.T) {
	p := NewDatabaseProvider(nil)

	items, err := p.Search(context.Background(), Request{Query: "kongress", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDatabaseProvider_EmptyKeywordReturnsAll(t *testing.T) {
	p := NewDatabaseProvider(nil)

	items, err := p.Search(context.Background(), Request{Query: "ai"})
	require.NoError(t, err)
	assert.Len(t, items, len(staticSeed), "short keywords are not selective")
}
