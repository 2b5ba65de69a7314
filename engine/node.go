package engine

import "math"

// node is a state in the search tree. Nodes are owned exclusively by the
// tree that created them and are never shared across search instances.
type node struct {
	state    State
	action   Action
	parent   *node
	children []*node
	untried  []Action
	visits   int
	value    float64
}

func (n *node) fullyExpanded() bool {
	return len(n.untried) == 0
}

// selectChild picks the child maximizing the UCB1 score
//
//	value/visits + w * sqrt(ln(parent visits) / visits)
//
// with unvisited children scoring +Inf so they are always expanded first.
// Ties keep the earliest child, matching encounter order.
func (n *node) selectChild(w float64) *node {
	logVisits := 0.0
	if n.visits > 0 {
		logVisits = math.Log(float64(n.visits))
	}

	var best *node
	bestScore := math.Inf(-1)
	for _, child := range n.children {
		if child.visits == 0 {
			return child
		}
		score := child.value/float64(child.visits) +
			w*math.Sqrt(logVisits/float64(child.visits))
		if score > bestScore {
			bestScore = score
			best = child
		}
	}
	return best
}

// expand pops one untried action, materializing the child for the state it
// produces. The caller has already applied the action.
func (n *node) expand(a Action, next State, untried []Action) *node {
	child := &node{
		state:   next,
		action:  a,
		parent:  n,
		untried: untried,
	}
	n.children = append(n.children, child)
	return child
}

// backpropagate walks to the root, crediting the simulation outcome to
// every node on the path. Visit counts only ever increase.
func (n *node) backpropagate(outcome float64) {
	for cur := n; cur != nil; cur = cur.parent {
		cur.visits++
		cur.value += outcome
	}
}

// bestChild returns the most visited child, ties broken by encounter
// order, or nil when the node has no children.
func (n *node) bestChild() *node {
	var best *node
	for _, child := range n.children {
		if best == nil || child.visits > best.visits {
			best = child
		}
	}
	return best
}
