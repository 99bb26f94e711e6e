package tree

import (
	"fmt"
	"sort"
)

// ViolationKind classifies a single consistency finding.
type ViolationKind string

const (
	// ViolationMissingParent flags an edge whose parent reference points at
	// a message with no edge of its own.
	ViolationMissingParent ViolationKind = "missing_parent"
	// ViolationCycle flags a message whose ancestor walk never reaches a
	// root within the edge-count bound.
	ViolationCycle ViolationKind = "cycle"
	// ViolationUnknownBranch flags an edge recorded under a branch that does
	// not exist.
	ViolationUnknownBranch ViolationKind = "unknown_branch"
	// ViolationOrphanMessage flags a message row with no tree edge at all.
	ViolationOrphanMessage ViolationKind = "orphan_message"
	// ViolationMissingMain flags a conversation that has branches but no
	// main branch.
	ViolationMissingMain ViolationKind = "missing_main"
	// ViolationDuplicateMain flags a conversation with more than one main
	// branch.
	ViolationDuplicateMain ViolationKind = "duplicate_main"
	// ViolationDanglingFork flags a branch whose fork point message has no
	// edge.
	ViolationDanglingFork ViolationKind = "dangling_fork"
)

// Violation is one consistency finding. MessageID or BranchID identifies the
// offending row where applicable.
type Violation struct {
	Kind      ViolationKind `json:"kind"`
	MessageID string        `json:"message_id,omitempty"`
	BranchID  string        `json:"branch_id,omitempty"`
	Detail    string        `json:"detail"`
}

// Report is the outcome of a consistency check. Checking never fails on bad
// rows; every problem becomes a violation.
type Report struct {
	Violations []Violation `json:"violations"`
	// Truncated is set when the check stopped early after hitting the
	// violation cap.
	Truncated bool `json:"truncated"`
}

// Healthy reports whether the check found nothing wrong.
func (r Report) Healthy() bool {
	return len(r.Violations) == 0 && !r.Truncated
}

// maxViolations caps a single report so a badly corrupted store cannot
// produce unbounded output.
const maxViolations = 1000

// Check inspects one conversation's rows and reports every structural
// problem it can find.
func Check(branches []Branch, edges []Edge, messages []MessageRef) Report {
	var report Report
	add := func(v Violation) bool {
		if len(report.Violations) >= maxViolations {
			report.Truncated = true
			return false
		}
		report.Violations = append(report.Violations, v)
		return true
	}

	branchIDs := make(map[string]bool, len(branches))
	mainCount := 0
	for _, b := range branches {
		branchIDs[b.ID] = true
		if b.IsMain {
			mainCount++
		}
	}
	if len(branches) > 0 && mainCount == 0 {
		add(Violation{Kind: ViolationMissingMain, Detail: "conversation has branches but no main branch"})
	}
	if mainCount > 1 {
		add(Violation{Kind: ViolationDuplicateMain, Detail: fmt.Sprintf("conversation has %d main branches", mainCount)})
	}

	f := NewForest(edges)

	for _, e := range f.edges {
		if !branchIDs[e.BranchID] {
			if !add(Violation{
				Kind:      ViolationUnknownBranch,
				MessageID: e.MessageID,
				BranchID:  e.BranchID,
				Detail:    "edge references a branch that does not exist",
			}) {
				return report
			}
		}
		if e.ParentMessageID != nil {
			if _, ok := f.Edge(*e.ParentMessageID); !ok {
				if !add(Violation{
					Kind:      ViolationMissingParent,
					MessageID: e.MessageID,
					Detail:    fmt.Sprintf("parent %s has no tree edge", *e.ParentMessageID),
				}) {
					return report
				}
			}
		}
	}

	// Cycle detection: every message whose walk fails with the cycle bound.
	// Walks that fail on a missing parent were already reported above.
	for _, e := range f.edges {
		if _, err := f.PathToMessage(e.MessageID); err == ErrCycleDetected {
			if !add(Violation{
				Kind:      ViolationCycle,
				MessageID: e.MessageID,
				Detail:    "ancestor walk does not terminate",
			}) {
				return report
			}
		}
	}

	for _, m := range messages {
		if _, ok := f.Edge(m.ID); !ok {
			if !add(Violation{
				Kind:      ViolationOrphanMessage,
				MessageID: m.ID,
				Detail:    "message has no tree edge",
			}) {
				return report
			}
		}
	}

	for _, b := range branches {
		if b.ForkedFromMessageID == nil {
			continue
		}
		if _, ok := f.Edge(*b.ForkedFromMessageID); !ok {
			if !add(Violation{
				Kind:      ViolationDanglingFork,
				BranchID:  b.ID,
				MessageID: *b.ForkedFromMessageID,
				Detail:    "branch fork point has no tree edge",
			}) {
				return report
			}
		}
	}

	return report
}

// RepairAction is one mutation a repair plan wants applied: insert an edge
// for an orphaned message under the given parent on the main branch, or,
// when Reparent is set, move an existing edge whose parent vanished under a
// surviving ancestor.
type RepairAction struct {
	MessageID       string  `json:"message_id"`
	ParentMessageID *string `json:"parent_message_id,omitempty"`
	BranchID        string  `json:"branch_id"`
	Reparent        bool    `json:"reparent,omitempty"`
}

// PlanRepair computes the mutations that restore the forest shape: edge
// inserts that re-attach orphaned messages under the main branch head,
// ordered by message creation time so repaired history reads
// chronologically, then reparent moves for edges whose parent reference
// dangles. Each repaired message becomes the parent of the next, extending
// the main lineage. A reparented edge carries its intact subtree with it.
// Planning is pure; the caller applies the actions transactionally. Running
// the plan twice is a no-op because the second check finds nothing broken.
func PlanRepair(mainBranch Branch, edges []Edge, messages []MessageRef) []RepairAction {
	f := NewForest(edges)

	var orphans []MessageRef
	for _, m := range messages {
		if _, ok := f.Edge(m.ID); !ok {
			orphans = append(orphans, m)
		}
	}
	var dangling []Edge
	for _, e := range f.edges {
		if e.ParentMessageID == nil {
			continue
		}
		if _, ok := f.Edge(*e.ParentMessageID); !ok {
			dangling = append(dangling, e)
		}
	}
	if len(orphans) == 0 && len(dangling) == 0 {
		return nil
	}
	sort.SliceStable(orphans, func(i, j int) bool {
		if !orphans[i].CreatedAt.Equal(orphans[j].CreatedAt) {
			return orphans[i].CreatedAt.Before(orphans[j].CreatedAt)
		}
		return orphans[i].Seq < orphans[j].Seq
	})

	// Head resolution skips the broken edges and everything below them, so
	// neither a dangling edge nor one of its descendants can end up as its
	// own ancestor after the move.
	brokenIDs := make([]string, 0, len(dangling))
	for _, e := range dangling {
		brokenIDs = append(brokenIDs, e.MessageID)
	}
	brokenSet := make(map[string]bool)
	for _, id := range f.Descendants(brokenIDs) {
		brokenSet[id] = true
	}
	kept := make([]Edge, 0, len(f.edges))
	for _, e := range f.edges {
		if !brokenSet[e.MessageID] {
			kept = append(kept, e)
		}
	}

	var parent *string
	if head, err := NewForest(kept).Head(mainBranch); err == nil {
		h := head
		parent = &h
	}

	actions := make([]RepairAction, 0, len(orphans)+len(dangling))
	for _, m := range orphans {
		actions = append(actions, RepairAction{
			MessageID:       m.ID,
			ParentMessageID: parent,
			BranchID:        mainBranch.ID,
		})
		id := m.ID
		parent = &id
	}
	for _, e := range dangling {
		actions = append(actions, RepairAction{
			MessageID:       e.MessageID,
			ParentMessageID: parent,
			BranchID:        mainBranch.ID,
			Reparent:        true,
		})
		id := e.MessageID
		parent = &id
	}
	return actions
}
