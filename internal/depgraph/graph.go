// Package depgraph indexes the task layer as a directed dependency
// graph and answers the scheduler's two questions: which tasks are
// eligible now, and where are the cycles.
package depgraph

import (
	"sort"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/errors"
)

// Graph is a directed graph over task IDs. Edges point from a task to
// each of its declared dependencies.
type Graph struct {
	tasks map[domain.TaskID]artifact.Task
	order []domain.TaskID
	deps  map[domain.TaskID][]domain.TaskID
}

// Cycle is one circular dependency chain. The path starts and ends at
// the same task.
type Cycle struct {
	Path []domain.TaskID
}

// Err renders the cycle as a pipeline error.
func (c *Cycle) Err() error {
	path := make([]string, len(c.Path))
	for i, id := range c.Path {
		path[i] = id.String()
	}
	return errors.NewCycleError(path)
}

// Build constructs the graph from a task set. Dependencies must resolve
// within the set.
func Build(tasks []artifact.Task) (*Graph, error) {
	g := &Graph{
		tasks: make(map[domain.TaskID]artifact.Task, len(tasks)),
		deps:  make(map[domain.TaskID][]domain.TaskID, len(tasks)),
	}
	for _, t := range tasks {
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.tasks[dep]; !ok {
				return nil, errors.New(errors.ErrCodeGraphUnknownTask,
					"task "+t.ID.String()+" depends on unknown task "+dep.String())
			}
			g.deps[t.ID] = append(g.deps[t.ID], dep)
		}
	}
	// Deterministic traversal independent of input order.
	sort.Slice(g.order, func(i, j int) bool { return g.order[i] < g.order[j] })
	for id := range g.deps {
		sort.Slice(g.deps[id], func(i, j int) bool { return g.deps[id][i] < g.deps[id][j] })
	}
	return g, nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.order) }

// Task returns a task by ID.
func (g *Graph) Task(id domain.TaskID) (artifact.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Dependencies returns a task's declared dependencies, sorted.
func (g *Graph) Dependencies(id domain.TaskID) []domain.TaskID {
	return g.deps[id]
}

// DFS coloring
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS stack
	black              // fully explored
)

// DetectCycle runs a colored DFS and returns the first cycle found, or
// nil when the graph is acyclic. A cycle is fatal only for the tasks on
// it; everything else stays schedulable.
func (g *Graph) DetectCycle() *Cycle {
	colors := make(map[domain.TaskID]color, len(g.order))

	var stack []domain.TaskID
	var found *Cycle

	var visit func(id domain.TaskID) bool
	visit = func(id domain.TaskID) bool {
		colors[id] = gray
		stack = append(stack, id)

		for _, dep := range g.deps[id] {
			switch colors[dep] {
			case gray:
				// Back edge: slice the stack from the first occurrence
				// of dep to close the loop.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				path := append([]domain.TaskID{}, stack[start:]...)
				path = append(path, dep)
				found = &Cycle{Path: path}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		colors[id] = black
		stack = stack[:len(stack)-1]
		return false
	}

	for _, id := range g.order {
		if colors[id] == white {
			if visit(id) {
				return found
			}
		}
	}
	return nil
}

// cyclicMembers returns every task that is on, or depends transitively
// on, a cycle.
func (g *Graph) cyclicMembers() map[domain.TaskID]bool {
	colors := make(map[domain.TaskID]color, len(g.order))
	onCycle := make(map[domain.TaskID]bool)

	var visit func(id domain.TaskID) bool
	visit = func(id domain.TaskID) bool {
		colors[id] = gray
		tainted := false
		for _, dep := range g.deps[id] {
			switch colors[dep] {
			case gray:
				tainted = true
			case white:
				if visit(dep) {
					tainted = true
				}
			case black:
				if onCycle[dep] {
					tainted = true
				}
			}
		}
		colors[id] = black
		if tainted {
			onCycle[id] = true
		}
		return tainted
	}

	for _, id := range g.order {
		if colors[id] == white {
			visit(id)
		}
	}
	return onCycle
}

// Eligible returns the tasks whose every dependency is either in the
// scheduled set or already held by a work package whose status is not
// Blocked. Tasks already assigned to any work package are excluded, as
// are tasks tainted by a dependency cycle; those come back in the
// unschedulable map with a reason.
func (g *Graph) Eligible(scheduled map[domain.TaskID]struct{}, assigned map[domain.TaskID]domain.WPStatus) (eligible []domain.TaskID, unschedulable map[domain.TaskID]string) {
	unschedulable = make(map[domain.TaskID]string)
	tainted := g.cyclicMembers()

	for _, id := range g.order {
		if _, taken := assigned[id]; taken {
			continue
		}
		if tainted[id] {
			unschedulable[id] = "member of or downstream of a dependency cycle"
			continue
		}

		ok := true
		for _, dep := range g.deps[id] {
			if _, sched := scheduled[dep]; sched {
				continue
			}
			if status, taken := assigned[dep]; taken && status != domain.StatusBlocked {
				continue
			}
			ok = false
			break
		}
		if ok {
			eligible = append(eligible, id)
		}
	}
	return eligible, unschedulable
}

// DependenciesSatisfiedWithin reports whether a task's dependencies are
// all satisfied by the given pool plus previously satisfied work. Used
// by the scheduler when it checks batch closure.
func (g *Graph) DependenciesSatisfiedWithin(id domain.TaskID, pool map[domain.TaskID]struct{}, satisfied map[domain.TaskID]domain.WPStatus) bool {
	for _, dep := range g.deps[id] {
		if _, inPool := pool[dep]; inPool {
			continue
		}
		if status, ok := satisfied[dep]; ok && status != domain.StatusBlocked {
			continue
		}
		return false
	}
	return true
}
