package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lwi/internal/types"
)

func ref(name string, id uint64) types.SymbolRef {
	return types.SymbolRef{ID: types.SymbolID(id), Name: name, Kind: types.KindClass}
}

func names(refs []types.SymbolRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}

func TestGetExactReturnsInsertionOrder(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("Foo", ref("Foo", 1))
	idx.Add("Foo", ref("Foo", 2))
	idx.Add("Foo", ref("Foo", 3))

	got := idx.GetExact("Foo")
	require.Len(t, got, 3)
	assert.Equal(t, types.SymbolID(1), got[0].ID)
	assert.Equal(t, types.SymbolID(2), got[1].ID)
	assert.Equal(t, types.SymbolID(3), got[2].ID)
}

func TestGetExactUnknownName(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("Foo", ref("Foo", 1))

	assert.Nil(t, idx.GetExact("Bar"))
	assert.Nil(t, idx.GetExact(""))
	assert.Nil(t, idx.GetExact("Fo"))
	assert.Nil(t, idx.GetExact("Fooo"))
}

func TestSearchNonWildcardMatchesGetExact(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("Parse", ref("Parse", 1))
	idx.Add("Parse", ref("Parse", 2))
	idx.Add("Parser", ref("Parser", 3))

	assert.Equal(t, idx.GetExact("Parse"), idx.SearchAll("Parse"))
	assert.Equal(t, idx.GetExact("Parser"), idx.SearchAll("Parser"))
	assert.Empty(t, idx.SearchAll("Pars"))
}

func TestSearchStarReturnsEverything(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("a", ref("a", 1))
	idx.Add("ab", ref("ab", 2))
	idx.Add("abc", ref("abc", 3))
	idx.Add("x", ref("x", 4))

	got := idx.SearchAll("*")
	assert.ElementsMatch(t, []string{"a", "ab", "abc", "x"}, names(got))
}

func TestSearchQuestionMatchesSingleCharNames(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("a", ref("a", 1))
	idx.Add("ab", ref("ab", 2))
	idx.Add("b", ref("b", 3))

	got := idx.SearchAll("?")
	assert.ElementsMatch(t, []string{"a", "b"}, names(got))
}

func TestSearchMixedWildcards(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("GetValue", ref("GetValue", 1))
	idx.Add("GetName", ref("GetName", 2))
	idx.Add("SetValue", ref("SetValue", 3))
	idx.Add("Get", ref("Get", 4))

	assert.ElementsMatch(t, []string{"GetValue", "GetName", "Get"}, names(idx.SearchAll("Get*")))
	assert.ElementsMatch(t, []string{"GetValue", "SetValue"}, names(idx.SearchAll("?etValue")))
	assert.ElementsMatch(t, []string{"GetValue", "SetValue"}, names(idx.SearchAll("*Value")))
}

func TestSearchMultiStarNoDuplicates(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("aa", ref("aa", 1))
	idx.Add("aba", ref("aba", 2))

	// Multiple star placements can reach the same terminal node; each
	// stored value must still appear exactly once.
	got := idx.SearchAll("*a*")
	assert.ElementsMatch(t, []string{"aa", "aba"}, names(got))

	got = idx.SearchAll("*a*a*")
	assert.ElementsMatch(t, []string{"aa", "aba"}, names(got))
}

func TestSearchIteratorIsRestartable(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("one", ref("one", 1))
	idx.Add("two", ref("two", 2))

	seq := idx.Search("*")
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, first, second)
}

func TestSearchEarlyStop(t *testing.T) {
	idx := NewSymbolIndex()
	for _, n := range []string{"a", "b", "c", "d"} {
		idx.Add(n, ref(n, 1))
	}

	seen := 0
	for range idx.Search("*") {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestClear(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("Foo", ref("Foo", 1))
	require.Equal(t, 1, idx.Len())

	idx.Clear()
	assert.Equal(t, 0, idx.Len())
	assert.Nil(t, idx.GetExact("Foo"))
	assert.Empty(t, idx.SearchAll("*"))
}

func TestLenCountsValuesNotNames(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("Foo", ref("Foo", 1))
	idx.Add("Foo", ref("Foo", 2))
	idx.Add("Bar", ref("Bar", 3))

	assert.Equal(t, 3, idx.Len())
}

func TestNames(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add("Foo", ref("Foo", 1))
	idx.Add("Foobar", ref("Foobar", 2))
	idx.Add("Bar", ref("Bar", 3))

	assert.ElementsMatch(t, []string{"Foo", "Foobar", "Bar"}, idx.Names())
}

func TestRefSwapPublishesNewIndex(t *testing.T) {
	r := NewRef()
	require.NotNil(t, r.Load())
	assert.Equal(t, 0, r.Load().Len())

	fresh := NewSymbolIndex()
	fresh.Add("Foo", ref("Foo", 1))
	r.Swap(fresh)
	assert.Equal(t, 1, r.Load().Len())
}
