package revmig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStep(revision, downRevision string) *Step {
	return &Step{
		Revision:     revision,
		DownRevision: downRevision,
		Up:           []Action{RawStatement{SQL: "SELECT 1"}},
		Down:         []Action{RawStatement{SQL: "SELECT 1"}},
	}
}

func revisions(steps []*Step) []string {
	out := make([]string, len(steps))
	for i, step := range steps {
		out[i] = step.Revision
	}
	return out
}

func TestResolveLinearOrder(t *testing.T) {
	chain, err := Resolve([]*Step{
		testStep("c7f8a9", "b4d5e6"),
		testStep("a1f2c3", ""),
		testStep("b4d5e6", "a1f2c3"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1f2c3", "b4d5e6", "c7f8a9"}, revisions(chain.Order()))
	assert.Equal(t, []string{"c7f8a9"}, revisions(chain.Heads()))
}

func TestResolveBrokenChain(t *testing.T) {
	_, err := Resolve([]*Step{
		testStep("a1f2c3", ""),
		testStep("b4d5e6", "deadbe"),
	})
	var broken *BrokenChainError
	require.ErrorAs(t, err, &broken)
	assert.Equal(t, "b4d5e6", broken.Revision)
	assert.Equal(t, "deadbe", broken.Missing)
}

func TestResolveBrokenDependsOn(t *testing.T) {
	a := testStep("a1f2c3", "")
	b := testStep("b4d5e6", "a1f2c3")
	b.DependsOn = []string{"deadbe"}
	_, err := Resolve([]*Step{a, b})
	var broken *BrokenChainError
	require.ErrorAs(t, err, &broken)
	assert.Equal(t, "deadbe", broken.Missing)
}

func TestResolveAmbiguousFork(t *testing.T) {
	_, err := Resolve([]*Step{
		testStep("a1f2c3", ""),
		testStep("b4d5e6", "a1f2c3"),
		testStep("c7f8a9", "a1f2c3"),
	})
	var ambiguous *AmbiguousChainError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "a1f2c3", ambiguous.Predecessor)
	assert.ElementsMatch(t, []string{"b4d5e6", "c7f8a9"}, ambiguous.Revisions)
}

func TestResolveForkWithBranchLabels(t *testing.T) {
	root := testStep("a1f2c3", "")
	loans := testStep("b4d5e6", "a1f2c3")
	loans.Branch = "loans"
	docs := testStep("c7f8a9", "a1f2c3")
	docs.Branch = "documents"
	chain, err := Resolve([]*Step{root, loans, docs})
	require.NoError(t, err)
	assert.Len(t, chain.Heads(), 2)
	assert.Equal(t, "loans", chain.Branch("b4d5e6"))
	assert.Equal(t, "documents", chain.Branch("c7f8a9"))
	assert.Equal(t, "", chain.Branch("a1f2c3"))
}

func TestResolveForkWithDuplicateLabels(t *testing.T) {
	root := testStep("a1f2c3", "")
	first := testStep("b4d5e6", "a1f2c3")
	first.Branch = "loans"
	second := testStep("c7f8a9", "a1f2c3")
	second.Branch = "loans"
	_, err := Resolve([]*Step{root, first, second})
	var ambiguous *AmbiguousChainError
	require.ErrorAs(t, err, &ambiguous)
}

func TestResolveAmbiguousRoots(t *testing.T) {
	_, err := Resolve([]*Step{
		testStep("a1f2c3", ""),
		testStep("b4d5e6", ""),
	})
	var ambiguous *AmbiguousChainError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "", ambiguous.Predecessor)
}

func TestResolveLabeledRoots(t *testing.T) {
	core := testStep("a1f2c3", "")
	core.Branch = "core"
	audit := testStep("b4d5e6", "")
	audit.Branch = "audit"
	chain, err := Resolve([]*Step{core, audit})
	require.NoError(t, err)
	assert.Len(t, chain.Heads(), 2)
}

func TestResolvePredecessorCycle(t *testing.T) {
	root := testStep("r0ot00", "")
	a := testStep("a1f2c3", "b4d5e6")
	b := testStep("b4d5e6", "a1f2c3")
	_, err := Resolve([]*Step{root, a, b})
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
}

func TestResolveNoRoot(t *testing.T) {
	a := testStep("a1f2c3", "b4d5e6")
	b := testStep("b4d5e6", "a1f2c3")
	_, err := Resolve([]*Step{a, b})
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
}

func TestResolveDependsOnCycle(t *testing.T) {
	root := testStep("r0ot00", "")
	a := testStep("a1f2c3", "r0ot00")
	a.Branch = "loans"
	a.DependsOn = []string{"b4d5e6"}
	b := testStep("b4d5e6", "r0ot00")
	b.Branch = "documents"
	b.DependsOn = []string{"a1f2c3"}
	_, err := Resolve([]*Step{root, a, b})
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
}

func TestResolveDependsOnOrdering(t *testing.T) {
	root := testStep("r0ot00", "")
	docs := testStep("a1f2c3", "r0ot00")
	docs.Branch = "documents"
	merge := testStep("zz9987", "r0ot00")
	merge.Branch = "loans"
	merge.DependsOn = []string{"a1f2c3"}
	chain, err := Resolve([]*Step{merge, root, docs})
	require.NoError(t, err)
	assert.Equal(t, []string{"r0ot00", "a1f2c3", "zz9987"}, revisions(chain.Order()))
}

func TestResolveDeterministicOrder(t *testing.T) {
	steps := func() []*Step {
		root := testStep("a1f2c3", "")
		loans := testStep("b4d5e6", "a1f2c3")
		loans.Branch = "loans"
		docs := testStep("c7f8a9", "a1f2c3")
		docs.Branch = "documents"
		return []*Step{root, loans, docs}
	}
	first, err := Resolve(steps())
	require.NoError(t, err)
	second, err := Resolve(steps())
	require.NoError(t, err)
	assert.Equal(t, revisions(first.Order()), revisions(second.Order()))
}

func TestResolveDuplicateRevision(t *testing.T) {
	_, err := Resolve([]*Step{
		testStep("a1f2c3", ""),
		testStep("a1f2c3", ""),
	})
	require.ErrorContains(t, err, "duplicate revision")
}

func TestResolveEmptyRevision(t *testing.T) {
	_, err := Resolve([]*Step{testStep("", "")})
	require.ErrorContains(t, err, "empty revision")
}

func TestFindTargets(t *testing.T) {
	chain, err := Resolve([]*Step{
		testStep("a1f2c3", ""),
		testStep("a1b2c3", "a1f2c3"),
		testStep("b4d5e6", "a1b2c3"),
	})
	require.NoError(t, err)

	step, findErr := chain.Find("b4d5e6")
	require.NoError(t, findErr)
	assert.Equal(t, "b4d5e6", step.Revision)

	step, findErr = chain.Find("b4")
	require.NoError(t, findErr)
	assert.Equal(t, "b4d5e6", step.Revision)

	_, findErr = chain.Find("a1")
	require.ErrorContains(t, findErr, "ambiguous target")

	_, findErr = chain.Find("zz")
	require.ErrorContains(t, findErr, "unknown revision")
}

func TestAncestorsIncludeDependsOn(t *testing.T) {
	root := testStep("r0ot00", "")
	docs := testStep("a1f2c3", "r0ot00")
	docs.Branch = "documents"
	merge := testStep("zz9987", "r0ot00")
	merge.Branch = "loans"
	merge.DependsOn = []string{"a1f2c3"}
	chain, err := Resolve([]*Step{root, docs, merge})
	require.NoError(t, err)
	closure := chain.ancestors(merge)
	assert.True(t, closure["r0ot00"])
	assert.True(t, closure["a1f2c3"])
	assert.True(t, closure["zz9987"])
}
