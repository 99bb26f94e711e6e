// Package tree implements the in-memory algorithms over conversation message
// forests: ancestor walks, branch-aware child selection, head resolution,
// descendant closures, and consistency checking. The package is pure; it
// never touches storage. Callers project their rows into Edge, Branch, and
// MessageRef values before handing them over.
package tree

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrUnknownMessage is returned when a walk starts from a message that
	// has no tree edge.
	ErrUnknownMessage = errors.New("message has no tree edge")
	// ErrDanglingParent is returned when an ancestor walk reaches a parent
	// reference with no corresponding edge.
	ErrDanglingParent = errors.New("parent message has no tree edge")
	// ErrCycleDetected is returned when an ancestor walk exceeds the edge
	// count bound, which only happens when parent pointers form a cycle.
	ErrCycleDetected = errors.New("cycle detected in message tree")
	// ErrNoHead is returned when a branch has no messages and no fork point
	// to resolve a head from.
	ErrNoHead = errors.New("branch has no head")
)

// Edge records where a single message sits in the branch forest: its parent
// (nil for a root) and the branch it was recorded under. One edge exists per
// message.
type Edge struct {
	MessageID       string  `json:"message_id"`
	ParentMessageID *string `json:"parent_message_id,omitempty"`
	BranchID        string  `json:"branch_id"`
	IsBranchPoint   bool    `json:"is_branch_point"`

	// Ord is the edge's insertion order within the store (monotonic). It is
	// the tie-breaker for sibling ordering and head selection.
	Ord int64 `json:"-"`
}

// Branch is the projection of a branch row the engine needs: identity, main
// flag, and the fork point for head resolution of fresh forks.
type Branch struct {
	ID                  string
	IsMain              bool
	ForkedFromMessageID *string
}

// MessageRef identifies one message row for consistency checks and repair
// planning. Seq is the row's storage sequence, the tie-breaker when two
// messages share a creation timestamp.
type MessageRef struct {
	ID        string
	Seq       uint
	CreatedAt time.Time
}

// Forest is an immutable index over one conversation's tree edges. Build it
// once per operation from a single read of the message_tree rows.
type Forest struct {
	edges     []Edge
	byMessage map[string]int
	children  map[string][]int
}

// rootKey indexes edges whose parent is nil in the children map.
const rootKey = ""

// NewForest indexes the given edges. Edges are kept in insertion order
// (Ord ascending), which fixes sibling ordering everywhere below.
func NewForest(edges []Edge) *Forest {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ord < sorted[j].Ord })

	f := &Forest{
		edges:     sorted,
		byMessage: make(map[string]int, len(sorted)),
		children:  make(map[string][]int),
	}
	for i, e := range sorted {
		f.byMessage[e.MessageID] = i
		key := rootKey
		if e.ParentMessageID != nil {
			key = *e.ParentMessageID
		}
		f.children[key] = append(f.children[key], i)
	}
	return f
}

// Size returns the number of edges in the forest.
func (f *Forest) Size() int {
	return len(f.edges)
}

// Edge returns the edge for a message, if one exists.
func (f *Forest) Edge(messageID string) (Edge, bool) {
	i, ok := f.byMessage[messageID]
	if !ok {
		return Edge{}, false
	}
	return f.edges[i], true
}

// Children returns every child edge of a parent across all branches, in
// insertion order. Pass an empty string for root edges.
func (f *Forest) Children(parentID string) []Edge {
	idxs := f.children[parentID]
	out := make([]Edge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, f.edges[i])
	}
	return out
}

// ChildInBranch returns the child of parentID recorded under branchID. When a
// branch point has been forked more than once onto the same branch (repair
// can produce this), the earliest inserted child wins.
func (f *Forest) ChildInBranch(parentID, branchID string) (Edge, bool) {
	for _, i := range f.children[parentID] {
		if f.edges[i].BranchID == branchID {
			return f.edges[i], true
		}
	}
	return Edge{}, false
}

// PathToMessage walks parent pointers from the given message up to its root
// and returns the message IDs in root-to-target order. The walk is branch
// agnostic: ancestors keep whatever branch their edge was recorded under.
// The walk is bounded at Size()+1 steps so corrupted parent pointers fail
// with ErrCycleDetected instead of looping.
func (f *Forest) PathToMessage(messageID string) ([]string, error) {
	edge, ok := f.Edge(messageID)
	if !ok {
		return nil, ErrUnknownMessage
	}

	path := []string{edge.MessageID}
	steps := 0
	for edge.ParentMessageID != nil {
		steps++
		if steps > f.Size() {
			return nil, ErrCycleDetected
		}
		parent, ok := f.Edge(*edge.ParentMessageID)
		if !ok {
			return nil, ErrDanglingParent
		}
		path = append(path, parent.MessageID)
		edge = parent
	}

	// reverse to root-first order
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Head resolves the branch's head message. A branch with edges of its own
// heads at its latest leaf; a fresh fork with no edges heads at its fork
// point, so its path equals the parent lineage up to the fork (property of
// forking without copying).
func (f *Forest) Head(branch Branch) (string, error) {
	var best *Edge
	for i := range f.edges {
		e := f.edges[i]
		if e.BranchID != branch.ID {
			continue
		}
		if _, hasChild := f.ChildInBranch(e.MessageID, branch.ID); hasChild {
			continue
		}
		if best == nil || e.Ord > best.Ord {
			best = &e
		}
	}
	if best != nil {
		return best.MessageID, nil
	}
	if branch.ForkedFromMessageID != nil {
		return *branch.ForkedFromMessageID, nil
	}
	return "", ErrNoHead
}

// Descendants returns the closure of the seed messages and everything below
// them, across all branches, in insertion order. Used to compute the message
// set exclusive to a branch on delete.
func (f *Forest) Descendants(seeds []string) []string {
	inSet := make(map[string]bool, len(seeds))
	queue := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := f.byMessage[id]; ok && !inSet[id] {
			inSet[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, i := range f.children[id] {
			child := f.edges[i].MessageID
			if !inSet[child] {
				inSet[child] = true
				queue = append(queue, child)
			}
		}
	}

	out := make([]string, 0, len(inSet))
	for _, e := range f.edges {
		if inSet[e.MessageID] {
			out = append(out, e.MessageID)
		}
	}
	return out
}

// BranchSeeds returns the messages recorded directly under branchID, in
// insertion order.
func (f *Forest) BranchSeeds(branchID string) []string {
	var out []string
	for _, e := range f.edges {
		if e.BranchID == branchID {
			out = append(out, e.MessageID)
		}
	}
	return out
}

// BranchPoints returns every message that is a fork point: either flagged
// is_branch_point or observed with children on more than one distinct
// branch. Siblings within a single branch do not count. The flag is sticky,
// so a message stays a branch point even after the forked branch is deleted.
func (f *Forest) BranchPoints() []string {
	var out []string
	for _, e := range f.edges {
		if e.IsBranchPoint || f.childBranchCount(e.MessageID) > 1 {
			out = append(out, e.MessageID)
		}
	}
	return out
}

// childBranchCount counts the distinct branch ids among a message's children.
func (f *Forest) childBranchCount(messageID string) int {
	seen := make(map[string]bool)
	for _, i := range f.children[messageID] {
		seen[f.edges[i].BranchID] = true
	}
	return len(seen)
}

// DivergencePoint returns the deepest message shared by both paths, or false
// when the paths share no prefix (different roots).
func DivergencePoint(pathA, pathB []string) (string, bool) {
	n := len(pathA)
	if len(pathB) < n {
		n = len(pathB)
	}
	last := ""
	for i := 0; i < n; i++ {
		if pathA[i] != pathB[i] {
			break
		}
		last = pathA[i]
	}
	return last, last != ""
}

// Depth returns the number of ancestors between the message and its root,
// inclusive of the message itself.
func (f *Forest) Depth(messageID string) (int, error) {
	path, err := f.PathToMessage(messageID)
	if err != nil {
		return 0, err
	}
	return len(path), nil
}
