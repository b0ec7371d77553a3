package revmig

import (
	"fmt"
	"sort"
	"strings"
)

// Chain is the resolved migration graph: all known steps, a validated
// topological flattening from roots to heads, and the effective branch
// of every revision. It is rebuilt from the loaded step set on every
// engine start.
type Chain struct {
	steps    map[string]*Step
	order    []*Step
	position map[string]int
	branches map[string]string
}

// Resolve validates an unordered step set and flattens it into
// execution order. It fails before any store access: dangling
// references, unlabeled forks and cycles are authoring errors.
func Resolve(steps []*Step) (*Chain, error) {
	c := &Chain{
		steps:    make(map[string]*Step, len(steps)),
		position: make(map[string]int, len(steps)),
		branches: make(map[string]string, len(steps)),
	}
	for _, step := range steps {
		if step.Revision == "" {
			return nil, fmt.Errorf("step from %q has empty revision", step.source)
		}
		if _, exists := c.steps[step.Revision]; exists {
			return nil, fmt.Errorf("duplicate revision %q", step.Revision)
		}
		c.steps[step.Revision] = step
	}
	successors := make(map[string][]*Step)
	var roots []*Step
	for _, step := range c.steps {
		if step.DownRevision == "" {
			roots = append(roots, step)
			continue
		}
		if _, exists := c.steps[step.DownRevision]; !exists {
			return nil, &BrokenChainError{Revision: step.Revision, Missing: step.DownRevision}
		}
		successors[step.DownRevision] = append(successors[step.DownRevision], step)
	}
	for _, step := range c.steps {
		for _, dep := range step.DependsOn {
			if _, exists := c.steps[dep]; !exists {
				return nil, &BrokenChainError{Revision: step.Revision, Missing: dep}
			}
		}
	}
	if len(c.steps) > 0 && len(roots) == 0 {
		return nil, &CycleError{Revision: sortedRevisions(c.steps)[0]}
	}
	if err := checkForks(rootFork, roots); err != nil {
		return nil, err
	}
	for predecessor, forked := range successors {
		if len(forked) < 2 {
			continue
		}
		if err := checkForks(predecessor, forked); err != nil {
			return nil, err
		}
	}
	if err := c.checkPredecessorCycles(); err != nil {
		return nil, err
	}
	c.resolveBranches(roots, successors)
	if err := c.flatten(successors); err != nil {
		return nil, err
	}
	return c, nil
}

const rootFork = ""

// A fork is legal only when every contender carries its own distinct
// branch label. Roots fork from the virtual empty predecessor.
func checkForks(predecessor string, contenders []*Step) error {
	if len(contenders) < 2 {
		return nil
	}
	seen := make(map[string]bool, len(contenders))
	for _, step := range contenders {
		if step.Branch == "" || seen[step.Branch] {
			revisions := make([]string, len(contenders))
			for i, s := range contenders {
				revisions[i] = s.Revision
			}
			sort.Strings(revisions)
			return &AmbiguousChainError{Predecessor: predecessor, Revisions: revisions}
		}
		seen[step.Branch] = true
	}
	return nil
}

func (c *Chain) checkPredecessorCycles() error {
	for _, step := range c.steps {
		current := step
		for hops := 0; current.DownRevision != ""; hops++ {
			if hops >= len(c.steps) {
				return &CycleError{Revision: step.Revision}
			}
			current = c.steps[current.DownRevision]
		}
	}
	return nil
}

func (c *Chain) resolveBranches(roots []*Step, successors map[string][]*Step) {
	var walk func(step *Step, branch string)
	walk = func(step *Step, branch string) {
		if step.Branch != "" {
			branch = step.Branch
		}
		c.branches[step.Revision] = branch
		for _, next := range successors[step.Revision] {
			walk(next, branch)
		}
	}
	for _, root := range roots {
		walk(root, "")
	}
}

// flatten produces the total execution order: Kahn's algorithm over
// predecessor and depends-on edges, ties broken by branch label then
// revision so the order is stable across runs.
func (c *Chain) flatten(successors map[string][]*Step) error {
	indegree := make(map[string]int, len(c.steps))
	dependents := make(map[string][]*Step)
	for _, step := range c.steps {
		if step.DownRevision != "" {
			indegree[step.Revision]++
		}
		for _, dep := range step.DependsOn {
			indegree[step.Revision]++
			dependents[dep] = append(dependents[dep], step)
		}
	}
	var ready []*Step
	for _, step := range c.steps {
		if indegree[step.Revision] == 0 {
			ready = append(ready, step)
		}
	}
	release := func(step *Step) {
		indegree[step.Revision]--
		if indegree[step.Revision] == 0 {
			ready = append(ready, step)
		}
	}
	c.order = make([]*Step, 0, len(c.steps))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			bi, bj := c.branches[ready[i].Revision], c.branches[ready[j].Revision]
			if bi != bj {
				return bi < bj
			}
			return ready[i].Revision < ready[j].Revision
		})
		step := ready[0]
		ready = ready[1:]
		c.position[step.Revision] = len(c.order)
		c.order = append(c.order, step)
		for _, next := range successors[step.Revision] {
			release(next)
		}
		for _, next := range dependents[step.Revision] {
			release(next)
		}
	}
	if len(c.order) != len(c.steps) {
		for _, revision := range sortedRevisions(c.steps) {
			if _, placed := c.position[revision]; !placed {
				return &CycleError{Revision: revision}
			}
		}
	}
	return nil
}

// Order returns all steps in execution order, root(s) first.
func (c *Chain) Order() []*Step {
	return c.order
}

// Heads returns the steps no other step names as predecessor, one per
// branch tip, in execution order.
func (c *Chain) Heads() []*Step {
	claimed := make(map[string]bool, len(c.steps))
	for _, step := range c.steps {
		if step.DownRevision != "" {
			claimed[step.DownRevision] = true
		}
	}
	var heads []*Step
	for _, step := range c.order {
		if !claimed[step.Revision] {
			heads = append(heads, step)
		}
	}
	return heads
}

// ByRevision looks a step up by exact revision id.
func (c *Chain) ByRevision(revision string) (*Step, bool) {
	step, exists := c.steps[revision]
	return step, exists
}

// Branch returns the effective branch label of a revision, inherited
// from its predecessor when the step itself carries none.
func (c *Chain) Branch(revision string) string {
	return c.branches[revision]
}

// Find resolves a target to a step: exact revision id first, then any
// unambiguous id prefix.
func (c *Chain) Find(target string) (*Step, error) {
	if step, exists := c.steps[target]; exists {
		return step, nil
	}
	var matches []*Step
	for _, step := range c.order {
		if strings.HasPrefix(step.Revision, target) {
			matches = append(matches, step)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("unknown revision %q", target)
	case 1:
		return matches[0], nil
	default:
		revisions := make([]string, len(matches))
		for i, step := range matches {
			revisions[i] = step.Revision
		}
		return nil, fmt.Errorf("ambiguous target %q matches %s", target, strings.Join(revisions, ", "))
	}
}

// ancestors returns the closure of a step over predecessor and
// depends-on links, including the step itself.
func (c *Chain) ancestors(step *Step) map[string]bool {
	closure := make(map[string]bool)
	var walk func(step *Step)
	walk = func(step *Step) {
		if closure[step.Revision] {
			return
		}
		closure[step.Revision] = true
		if step.DownRevision != "" {
			walk(c.steps[step.DownRevision])
		}
		for _, dep := range step.DependsOn {
			walk(c.steps[dep])
		}
	}
	walk(step)
	return closure
}

func sortedRevisions(steps map[string]*Step) []string {
	revisions := make([]string, 0, len(steps))
	for revision := range steps {
		revisions = append(revisions, revision)
	}
	sort.Strings(revisions)
	return revisions
}
