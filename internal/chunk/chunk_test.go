package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		size  int
		want  int
	}{
		{"empty collection", 0, 250, 0},
		{"single document", 1, 250, 1},
		{"exact page", 250, 250, 1},
		{"one over", 251, 250, 2},
		{"exact multiple", 500, 250, 2},
		{"large", 10001, 250, 41},
		{"zero size", 10, 0, 0},
		{"negative total", -5, 250, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PageCount(tt.total, tt.size))
		})
	}
}

func TestPages_OffsetsAdvanceByLimit(t *testing.T) {
	pages := Pages(251, 250)

	require.Len(t, pages, 2)
	assert.Equal(t, Page{Index: 0, Offset: 0, Limit: 250}, pages[0])
	assert.Equal(t, Page{Index: 1, Offset: 250, Limit: 250}, pages[1])
	assert.Equal(t, "page 1 (skip=250, limit=250)", pages[1].String())
}

func TestPages_Empty(t *testing.T) {
	assert.Empty(t, Pages(0, DefaultPageSize))
}

func TestPages_CoverTotal(t *testing.T) {
	for _, total := range []int64{1, 49, 250, 251, 499, 500, 501, 1234} {
		pages := Pages(total, 250)
		covered := 0
		for i, p := range pages {
			assert.Equal(t, i*250, p.Offset)
			assert.Less(t, int64(p.Offset), total)
			covered += p.Limit
		}
		assert.GreaterOrEqual(t, int64(covered), total)
		assert.Less(t, int64(covered-250), total)
	}
}

func TestSplit(t *testing.T) {
	docs := make([]int, 123)
	for i := range docs {
		docs[i] = i
	}

	batches := Split(docs, 50)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 50)
	assert.Len(t, batches[1], 50)
	assert.Len(t, batches[2], 23)

	var rebuilt []int
	for _, b := range batches {
		rebuilt = append(rebuilt, b...)
	}
	assert.Equal(t, docs, rebuilt)
}

func TestSplit_Edges(t *testing.T) {
	assert.Nil(t, Split([]int{}, 50))
	assert.Nil(t, Split[int](nil, 50))

	one := Split([]int{1, 2, 3}, 0)
	require.Len(t, one, 1)
	assert.Equal(t, []int{1, 2, 3}, one[0])

	exact := Split([]int{1, 2, 3, 4}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}}, exact)
}
