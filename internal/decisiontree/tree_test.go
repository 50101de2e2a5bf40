package decisiontree

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSearchTree_PartialGroupMismatch(t *testing.T) {
	tree := New[string]()
	tree.InsertCriteria(map[string]string{"plugin": "obs"}, "all-obs")
	tree.InsertCriteria(map[string]string{"plugin": "obs", "station": "KDEN"}, "denver-obs")
	tree.RebuildTree()

	got := tree.SearchTree(map[string]string{"plugin": "obs", "station": "KOUN"})
	assert.Equal(t, []string{"all-obs"}, got)

	got = tree.SearchTree(map[string]string{"plugin": "obs", "station": "KDEN"})
	assert.Equal(t, []string{"all-obs", "denver-obs"}, got)
}

func TestSearchTree_OrGroupsDeduplicated(t *testing.T) {
	tree := New[string]()
	tree.InsertCriteria(map[string]string{"plugin": "obs"}, "alerts")
	tree.InsertCriteria(map[string]string{"station": "KOUN"}, "alerts")
	tree.InsertCriteria(map[string]string{"plugin": "obs", "station": "KOUN"}, "alerts")
	tree.RebuildTree()

	got := tree.SearchTree(map[string]string{"plugin": "obs", "station": "KOUN"})
	assert.Equal(t, []string{"alerts"}, got)
}

func TestSearchTree_FirstInsertionOrder(t *testing.T) {
	tree := New[string]()
	tree.InsertCriteria(map[string]string{"station": "KOUN"}, "zulu")
	tree.InsertCriteria(map[string]string{"plugin": "obs"}, "alpha")
	tree.InsertCriteria(map[string]string{"plugin": "obs"}, "zulu")
	tree.InsertCriteria(map[string]string{"level": "1"}, "mike")
	tree.RebuildTree()

	got := tree.SearchTree(map[string]string{"plugin": "obs", "station": "KOUN", "level": "1"})
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, got)
}

func TestSearchTree_MissingAttributeDoesNotMatch(t *testing.T) {
	tree := New[string]()
	tree.InsertCriteria(map[string]string{"plugin": "obs", "station": "KOUN"}, "koun")
	tree.RebuildTree()

	assert.Empty(t, tree.SearchTree(map[string]string{"plugin": "obs"}))
	assert.Empty(t, tree.SearchTree(nil))
}

func TestSearchTree_EmptyGroupMatchesEverything(t *testing.T) {
	tree := New[string]()
	tree.InsertCriteria(map[string]string{}, "everything")
	tree.InsertCriteria(map[string]string{"plugin": "obs"}, "obs")
	tree.RebuildTree()

	assert.Equal(t, []string{"everything"}, tree.SearchTree(map[string]string{"plugin": "radar"}))
	assert.Equal(t, []string{"everything", "obs"}, tree.SearchTree(map[string]string{"plugin": "obs"}))
}

func TestSearchTree_EmptyAttributeName(t *testing.T) {
	tree := New[string]()
	tree.InsertCriteria(map[string]string{"": "x"}, "odd")
	tree.RebuildTree()

	assert.Equal(t, []string{"odd"}, tree.SearchTree(map[string]string{"": "x"}))
	assert.Empty(t, tree.SearchTree(map[string]string{"": "y"}))
}

func TestTree_TwoPhase(t *testing.T) {
	tree := New[string]()
	assert.Nil(t, tree.SearchTree(map[string]string{"plugin": "obs"}))

	tree.InsertCriteria(map[string]string{"plugin": "obs"}, "first")
	assert.Nil(t, tree.SearchTree(map[string]string{"plugin": "obs"}), "not visible before rebuild")

	tree.RebuildTree()
	assert.Equal(t, []string{"first"}, tree.SearchTree(map[string]string{"plugin": "obs"}))

	tree.InsertCriteria(map[string]string{"plugin": "obs"}, "second")
	assert.Equal(t, []string{"first"}, tree.SearchTree(map[string]string{"plugin": "obs"}))

	tree.RebuildTree()
	assert.Equal(t, []string{"first", "second"}, tree.SearchTree(map[string]string{"plugin": "obs"}))
	assert.Equal(t, 2, tree.Len())
}

func TestTree_InsertCopiesGroup(t *testing.T) {
	tree := New[string]()
	group := map[string]string{"plugin": "obs"}
	tree.InsertCriteria(group, "obs")
	group["plugin"] = "radar"
	tree.RebuildTree()

	assert.Equal(t, []string{"obs"}, tree.SearchTree(map[string]string{"plugin": "obs"}))
}

func TestTree_CollapsesUnconstrainedLevels(t *testing.T) {
	tree := New[string]()
	tree.InsertCriteria(map[string]string{"a": "1", "c": "1"}, "x")
	tree.InsertCriteria(map[string]string{"b": "1"}, "y")
	tree.RebuildTree()

	// The a=1 branch never consults b; the unconstrained branch never consults c.
	assert.Equal(t, 2, tree.Depth())
}

func TestTree_PointerPayloads(t *testing.T) {
	type rule struct{ name string }
	a, b := &rule{"a"}, &rule{"a"}

	tree := New[*rule]()
	tree.InsertCriteria(map[string]string{"k": "v"}, a)
	tree.InsertCriteria(map[string]string{"k": "v"}, b)
	tree.RebuildTree()

	got := tree.SearchTree(map[string]string{"k": "v"})
	require.Len(t, got, 2)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
}

func TestTree_ConcurrentSearchAndRebuild(t *testing.T) {
	tree := New[int]()
	tree.InsertCriteria(map[string]string{"plugin": "obs"}, 0)
	tree.RebuildTree()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				got := tree.SearchTree(map[string]string{"plugin": "obs"})
				if len(got) == 0 || got[0] != 0 {
					t.Errorf("unexpected search result %v", got)
					return
				}
			}
		}()
	}
	for i := 1; i < 50; i++ {
		tree.InsertCriteria(map[string]string{"plugin": "obs"}, i)
		tree.RebuildTree()
	}
	wg.Wait()
}

var (
	attrNames  = []string{"plugin", "station", "level", "source"}
	attrValues = []string{"a", "b", "c"}
)

func groupGen() *rapid.Generator[map[string]string] {
	return rapid.MapOfN(rapid.SampledFrom(attrNames), rapid.SampledFrom(attrValues), 0, len(attrNames))
}

func satisfies(group, attrs map[string]string) bool {
	for k, v := range group {
		if got, ok := attrs[k]; !ok || got != v {
			return false
		}
	}
	return true
}

func TestSearchTree_MatchesBruteForce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		type criterion struct {
			group   map[string]string
			payload int
		}

		n := rapid.IntRange(0, 12).Draw(rt, "criteria")
		criteria := make([]criterion, n)
		tree := New[int]()
		for i := range criteria {
			criteria[i] = criterion{
				group:   groupGen().Draw(rt, "group"),
				payload: rapid.IntRange(0, 5).Draw(rt, "payload"),
			}
			tree.InsertCriteria(criteria[i].group, criteria[i].payload)
		}
		tree.RebuildTree()

		attrs := groupGen().Draw(rt, "attrs")

		firstSeen := make(map[int]int)
		for i, c := range criteria {
			if _, ok := firstSeen[c.payload]; !ok {
				firstSeen[c.payload] = i
			}
		}
		var want []int
		matched := make(map[int]bool)
		for _, c := range criteria {
			if satisfies(c.group, attrs) && !matched[c.payload] {
				matched[c.payload] = true
				want = append(want, c.payload)
			}
		}
		sort.Slice(want, func(i, j int) bool {
			return firstSeen[want[i]] < firstSeen[want[j]]
		})

		got := tree.SearchTree(attrs)
		if len(got) != len(want) {
			rt.Fatalf("SearchTree(%v) = %v, want %v", attrs, got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				rt.Fatalf("SearchTree(%v) = %v, want %v", attrs, got, want)
			}
		}
	})
}
