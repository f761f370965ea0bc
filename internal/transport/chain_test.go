package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagStage records its tag when a request passes through it.
type tagStage struct {
	tag   string
	order *[]string
}

func (s *tagStage) Wrap(inner http.RoundTripper) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		*s.order = append(*s.order, s.tag)
		return inner.RoundTrip(req)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// baseRecorder is a terminal RoundTripper that records it was reached.
func baseRecorder(order *[]string) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		*order = append(*order, "transport")
		rec := httptest.NewRecorder()
		rec.WriteHeader(http.StatusOK)
		return rec.Result(), nil
	})
}

func issueRequest(t *testing.T, rt http.RoundTripper) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "https://cluster.example.com/api/v1/pods", nil)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
}

func TestChainStageOrder(t *testing.T) {
	var order []string
	chain := NewChain(baseRecorder(&order))

	require.NoError(t, chain.Use(&tagStage{tag: "outer", order: &order}))
	require.NoError(t, chain.Use(&tagStage{tag: "middle", order: &order}))
	require.NoError(t, chain.InsertInner(&tagStage{tag: "watch", order: &order}))

	issueRequest(t, chain.Build())

	assert.Equal(t, []string{"outer", "middle", "watch", "transport"}, order)
}

func TestChainInsertInnerPositions(t *testing.T) {
	tests := []struct {
		name     string
		existing int
	}{
		{name: "empty chain", existing: 0},
		{name: "one stage", existing: 1},
		{name: "many stages", existing: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			chain := NewChain(baseRecorder(&order))

			for i := 0; i < tt.existing; i++ {
				require.NoError(t, chain.Use(&tagStage{tag: "stage", order: &order}))
			}
			require.NoError(t, chain.InsertInner(&tagStage{tag: "watch", order: &order}))

			issueRequest(t, chain.Build())

			// The watch stage is always the last stop before the transport.
			require.GreaterOrEqual(t, len(order), 2)
			assert.Equal(t, "watch", order[len(order)-2])
			assert.Equal(t, "transport", order[len(order)-1])
		})
	}
}

func TestChainUseAfterInsertInnerStaysOutside(t *testing.T) {
	var order []string
	chain := NewChain(baseRecorder(&order))

	require.NoError(t, chain.InsertInner(&tagStage{tag: "watch", order: &order}))
	require.NoError(t, chain.Use(&tagStage{tag: "late", order: &order}))

	issueRequest(t, chain.Build())

	assert.Equal(t, []string{"late", "watch", "transport"}, order)
}

func TestChainFrozenAfterBuild(t *testing.T) {
	var order []string
	chain := NewChain(baseRecorder(&order))
	require.NoError(t, chain.Use(&tagStage{tag: "stage", order: &order}))

	first := chain.Build()
	assert.Same(t, first, chain.Build())

	assert.ErrorIs(t, chain.Use(&tagStage{tag: "x", order: &order}), ErrChainBuilt)
	assert.ErrorIs(t, chain.InsertInner(&tagStage{tag: "y", order: &order}), ErrChainBuilt)
}

func TestChainNilBaseDefaults(t *testing.T) {
	chain := NewChain(nil)
	assert.NotNil(t, chain.Build())
}

func TestChainLen(t *testing.T) {
	var order []string
	chain := NewChain(baseRecorder(&order))
	assert.Equal(t, 0, chain.Len())

	require.NoError(t, chain.Use(&tagStage{tag: "a", order: &order}))
	require.NoError(t, chain.InsertInner(&tagStage{tag: "b", order: &order}))
	assert.Equal(t, 2, chain.Len())
}
