package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/tree"
	"jan-server/services/conversation-api/internal/infrastructure/observability"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// Metrics receives domain-level counters. The prometheus implementation
// lives in infrastructure; tests use NopMetrics.
type Metrics interface {
	TurnAppended()
	BranchCreated()
	BranchDeleted(messagesRemoved int)
	RepairApplied(messagesAttached int)
	PathWalked(length int)
	ViolationsSeen(count int)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) TurnAppended()      {}
func (NopMetrics) BranchCreated()     {}
func (NopMetrics) BranchDeleted(int)  {}
func (NopMetrics) RepairApplied(int)  {}
func (NopMetrics) PathWalked(int)     {}
func (NopMetrics) ViolationsSeen(int) {}

// RepairStepBudget bounds how many actions a single RepairTree run applies.
// Zero or negative selects DefaultRepairStepBudget.
type RepairStepBudget int

// DefaultRepairStepBudget caps one repair run. A truncated run reports
// partial progress; rerunning continues where the previous run stopped.
const DefaultRepairStepBudget RepairStepBudget = 500

// Service is the transactional facade over conversations, branches, and the
// message tree. All multi-row writes go through the TxManager so they commit
// or roll back together.
type Service struct {
	repos        Repos
	tx           TxManager
	metrics      Metrics
	repairBudget int
	logger       zerolog.Logger
}

// NewService builds the conversation service.
func NewService(repos Repos, tx TxManager, metrics Metrics, repairBudget RepairStepBudget, logger zerolog.Logger) *Service {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if repairBudget <= 0 {
		repairBudget = DefaultRepairStepBudget
	}
	return &Service{
		repos:        repos,
		tx:           tx,
		metrics:      metrics,
		repairBudget: int(repairBudget),
		logger:       logger.With().Str("component", "conversation-service").Logger(),
	}
}

// ===============================================
// Conversations
// ===============================================

// CreateConversation creates an empty conversation. The main branch is
// created lazily on first use, not here.
func (s *Service) CreateConversation(ctx context.Context, name string, metadata map[string]string) (*Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New conversation"
	}

	conv := NewConversation(name, metadata)
	if err := s.repos.Conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info().Str("conversation_id", conv.PublicID).Msg("conversation created")
	return conv, nil
}

// GetConversation fetches a conversation by public ID.
func (s *Service) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	return s.repos.Conversations.GetByPublicID(ctx, conversationID)
}

// ListConversations returns conversations ordered by recent activity.
func (s *Service) ListConversations(ctx context.Context, limit, offset int) ([]Conversation, error) {
	return s.repos.Conversations.List(ctx, limit, offset)
}

// DeleteConversation removes the conversation and everything under it:
// messages, tree edges, and branches, in one transaction.
func (s *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context, repos Repos) error {
		if _, err := repos.Conversations.GetByPublicID(ctx, conversationID); err != nil {
			return err
		}

		messages, err := repos.Messages.GetMessages(ctx, conversationID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(messages))
		for _, m := range messages {
			ids = append(ids, m.PublicID)
		}

		if err := repos.Messages.DeleteTreeEdges(ctx, ids); err != nil {
			return err
		}
		if err := repos.Messages.DeleteMessages(ctx, ids); err != nil {
			return err
		}
		if err := repos.Branches.DeleteByConversation(ctx, conversationID); err != nil {
			return err
		}
		return repos.Conversations.Delete(ctx, conversationID)
	})
}

// GetHistory returns every message of the conversation in chronological
// order, ignoring tree structure. This is the flat fallback view.
func (s *Service) GetHistory(ctx context.Context, conversationID string) ([]Message, error) {
	if _, err := s.repos.Conversations.GetByPublicID(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.repos.Messages.GetMessages(ctx, conversationID)
}

// ===============================================
// Main branch
// ===============================================

// GetOrCreateMainBranch resolves the conversation's main branch, creating it
// on first use. The create runs in a transaction and re-checks under the
// lock so concurrent callers cannot produce two main branches.
func (s *Service) GetOrCreateMainBranch(ctx context.Context, conversationID string) (*Branch, error) {
	main, err := s.repos.Branches.GetMain(ctx, conversationID)
	if err == nil {
		return main, nil
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, err
	}

	var created *Branch
	txErr := s.tx.RunInTx(ctx, func(ctx context.Context, repos Repos) error {
		if _, err := repos.Conversations.GetByPublicID(ctx, conversationID); err != nil {
			return err
		}

		existing, err := repos.Branches.GetMain(ctx, conversationID)
		if err == nil {
			created = existing
			return nil
		}
		if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return err
		}

		branch := &Branch{
			PublicID:       NewBranchID(),
			ConversationID: conversationID,
			Name:           MainBranchName,
			IsMain:         true,
		}
		if err := repos.Branches.Create(ctx, branch); err != nil {
			return err
		}
		created = branch
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// ===============================================
// Turns
// ===============================================

// AppendTurnParams describes one user/assistant exchange to append.
// BranchID empty means the main branch. ParentMessageID empty chains the
// turn at the branch head; a non-empty value pins the user message under
// that explicit ancestor, which lets a retried turn assert the parent it
// meant to chain under. Message IDs may be supplied by the caller for
// idempotent retries; fresh IDs are minted otherwise.
type AppendTurnParams struct {
	ConversationID     string
	BranchID           string
	ParentMessageID    string
	UserContent        string
	AssistantContent   string
	UserAttachments    []Attachment
	UserMessageID      string
	AssistantMessageID string
}

// AppendTurn appends a user message and its assistant reply to a branch,
// under the branch head or under the explicit parent named in the params.
// All four writes, two messages and two edges, happen in one transaction; a
// failure at any step leaves the tree untouched.
func (s *Service) AppendTurn(ctx context.Context, params AppendTurnParams) (*Turn, error) {
	if strings.TrimSpace(params.UserContent) == "" {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			"user content must not be empty",
			nil,
			"5a6b7c8d-9e0f-41a2-b3c4-d5e6f7a8b9c0",
		)
	}
	if strings.TrimSpace(params.AssistantContent) == "" {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			"assistant content must not be empty",
			nil,
			"6b7c8d9e-0f1a-42b3-c4d5-e6f7a8b9c0d1",
		)
	}

	ctx, span := observability.StartTurnSpan(ctx, params.ConversationID, params.BranchID)
	defer span.End()

	branch, err := s.resolveBranch(ctx, params.ConversationID, params.BranchID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	var turn *Turn
	txErr := s.tx.RunInTx(ctx, func(ctx context.Context, repos Repos) error {
		parentID, err := s.resolveTurnParent(ctx, repos, params, branch)
		if err != nil {
			return err
		}

		userMsg := &Message{
			PublicID:       params.UserMessageID,
			ConversationID: params.ConversationID,
			Role:           RoleUser,
			Content:        params.UserContent,
			Attachments:    params.UserAttachments,
		}
		if userMsg.PublicID == "" {
			userMsg.PublicID = NewMessageID()
		}
		if err := repos.Messages.CreateMessage(ctx, userMsg); err != nil {
			return err
		}
		if err := repos.Messages.AddTreeEdge(ctx, &TreeEdge{
			MessageID:       userMsg.PublicID,
			ParentMessageID: parentID,
			BranchID:        branch.PublicID,
		}); err != nil {
			return err
		}

		assistantMsg := &Message{
			PublicID:       params.AssistantMessageID,
			ConversationID: params.ConversationID,
			Role:           RoleAssistant,
			Content:        params.AssistantContent,
		}
		if assistantMsg.PublicID == "" {
			assistantMsg.PublicID = NewMessageID()
		}
		if err := repos.Messages.CreateMessage(ctx, assistantMsg); err != nil {
			return err
		}
		userID := userMsg.PublicID
		if err := repos.Messages.AddTreeEdge(ctx, &TreeEdge{
			MessageID:       assistantMsg.PublicID,
			ParentMessageID: &userID,
			BranchID:        branch.PublicID,
		}); err != nil {
			return err
		}

		turn = &Turn{UserMessage: *userMsg, AssistantMessage: *assistantMsg}
		return nil
	})
	if txErr != nil {
		observability.RecordError(span, txErr)
		return nil, txErr
	}

	s.metrics.TurnAppended()
	s.logger.Debug().
		Str("conversation_id", params.ConversationID).
		Str("branch_id", branch.PublicID).
		Str("user_message_id", turn.UserMessage.PublicID).
		Msg("turn appended")
	return turn, nil
}

// ===============================================
// Branches
// ===============================================

// CreateBranchFromMessage forks a new branch at an existing message. No
// messages are copied: the fork point and its ancestors stay shared, and the
// new branch diverges as turns are appended to it.
func (s *Service) CreateBranchFromMessage(ctx context.Context, conversationID, messageID, name string) (*Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			"branch name must not be empty",
			nil,
			"7c8d9e0f-1a2b-43c4-d5e6-f7a8b9c0d1e2",
		)
	}

	ctx, span := observability.StartBranchSpan(ctx, "create", conversationID, "")
	defer span.End()

	var branch *Branch
	txErr := s.tx.RunInTx(ctx, func(ctx context.Context, repos Repos) error {
		if _, err := repos.Conversations.GetByPublicID(ctx, conversationID); err != nil {
			return err
		}

		msg, err := repos.Messages.GetMessage(ctx, messageID)
		if err != nil {
			return err
		}
		if msg.ConversationID != conversationID {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerDomain,
				platformerrors.ErrorTypeValidation,
				fmt.Sprintf("message %s does not belong to conversation %s", messageID, conversationID),
				nil,
				"8d9e0f1a-2b3c-44d5-e6f7-a8b9c0d1e2f3",
			)
		}
		if _, err := repos.Messages.GetTreeEdge(ctx, messageID); err != nil {
			return err
		}

		forkPoint := messageID
		branch = &Branch{
			PublicID:            NewBranchID(),
			ConversationID:      conversationID,
			Name:                name,
			ForkedFromMessageID: &forkPoint,
		}
		if err := repos.Branches.Create(ctx, branch); err != nil {
			return err
		}
		return repos.Messages.MarkBranchPoint(ctx, messageID)
	})
	if txErr != nil {
		observability.RecordError(span, txErr)
		return nil, txErr
	}
	span.SetAttributes(observability.BranchAttributes(conversationID, branch.PublicID, messageID)...)

	s.metrics.BranchCreated()
	s.logger.Info().
		Str("conversation_id", conversationID).
		Str("branch_id", branch.PublicID).
		Str("fork_point", messageID).
		Msg("branch created")
	return branch, nil
}

// ListBranches returns the conversation's branches with computed stats.
func (s *Service) ListBranches(ctx context.Context, conversationID string) ([]Branch, []BranchStats, error) {
	if _, err := s.repos.Conversations.GetByPublicID(ctx, conversationID); err != nil {
		return nil, nil, err
	}

	branches, err := s.repos.Branches.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	edges, err := s.repos.Messages.GetTreeEdges(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	forest := tree.NewForest(treeEdges(edges))
	stats := make([]BranchStats, 0, len(branches))
	for i := range branches {
		b := branches[i]
		st := BranchStats{
			BranchID: b.PublicID,
			Name:     b.Name,
			IsMain:   b.IsMain,
		}
		st.MessageCount = len(forest.BranchSeeds(b.PublicID))
		if head, err := forest.Head(treeBranch(&b)); err == nil {
			if depth, err := forest.Depth(head); err == nil {
				st.Depth = depth
			}
		}
		stats = append(stats, st)
	}
	return branches, stats, nil
}

// RenameBranch changes a branch's display name.
func (s *Service) RenameBranch(ctx context.Context, branchID, name string) (*Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			"branch name must not be empty",
			nil,
			"9e0f1a2b-3c4d-45e6-f7a8-b9c0d1e2f3a4",
		)
	}

	branch, err := s.repos.Branches.GetByPublicID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	branch.Name = name
	if err := s.repos.Branches.Update(ctx, branch); err != nil {
		return nil, err
	}
	return branch, nil
}

// DeleteBranch removes a branch together with the messages exclusive to it:
// the descendant closure of the branch's own edges. Messages above the fork
// point are shared and survive. Sub-branches forked inside the deleted
// region are removed too.
func (s *Service) DeleteBranch(ctx context.Context, branchID string) error {
	ctx, span := observability.StartBranchSpan(ctx, "delete", "", branchID)
	defer span.End()

	removed := 0
	txErr := s.tx.RunInTx(ctx, func(ctx context.Context, repos Repos) error {
		branch, err := repos.Branches.GetByPublicID(ctx, branchID)
		if err != nil {
			return err
		}
		if branch.IsMain {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerDomain,
				platformerrors.ErrorTypeValidation,
				"main branch cannot be deleted",
				nil,
				"0f1a2b3c-4d5e-46f7-a8b9-c0d1e2f3a4b5",
			)
		}

		edges, err := repos.Messages.GetTreeEdges(ctx, branch.ConversationID)
		if err != nil {
			return err
		}
		forest := tree.NewForest(treeEdges(edges))
		doomed := forest.Descendants(forest.BranchSeeds(branch.PublicID))
		doomedSet := make(map[string]bool, len(doomed))
		for _, id := range doomed {
			doomedSet[id] = true
		}

		// Sub-branches: any branch whose edges or fork point fall inside
		// the deleted region goes with it.
		branches, err := repos.Branches.ListByConversation(ctx, branch.ConversationID)
		if err != nil {
			return err
		}
		doomedBranches := map[string]bool{branch.PublicID: true}
		for _, e := range edges {
			if doomedSet[e.MessageID] {
				doomedBranches[e.BranchID] = true
			}
		}
		for _, b := range branches {
			if b.ForkedFromMessageID != nil && doomedSet[*b.ForkedFromMessageID] {
				doomedBranches[b.PublicID] = true
			}
		}

		if err := repos.Messages.DeleteTreeEdges(ctx, doomed); err != nil {
			return err
		}
		if err := repos.Messages.DeleteMessages(ctx, doomed); err != nil {
			return err
		}
		for _, b := range branches {
			if !doomedBranches[b.PublicID] || b.IsMain {
				continue
			}
			if err := repos.Branches.Delete(ctx, b.PublicID); err != nil {
				return err
			}
		}
		removed = len(doomed)
		return nil
	})
	if txErr != nil {
		observability.RecordError(span, txErr)
		return txErr
	}

	s.metrics.BranchDeleted(removed)
	s.logger.Info().
		Str("branch_id", branchID).
		Int("messages_removed", removed).
		Msg("branch deleted")
	return nil
}

// ===============================================
// Paths and tree views
// ===============================================

// GetBranchPath reconstructs the root-to-head transcript of a branch. When
// messageID is non-empty the walk targets that message instead of the
// branch head, which renders historical positions.
func (s *Service) GetBranchPath(ctx context.Context, branchID, messageID string) (*BranchPath, error) {
	ctx, span := observability.StartPathSpan(ctx, branchID, messageID)
	defer span.End()

	branch, err := s.repos.Branches.GetByPublicID(ctx, branchID)
	if err != nil {
		return nil, err
	}

	edges, err := s.repos.Messages.GetTreeEdges(ctx, branch.ConversationID)
	if err != nil {
		return nil, err
	}
	forest := tree.NewForest(treeEdges(edges))

	target := messageID
	if target != "" {
		if _, ok := forest.Edge(target); !ok {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerDomain,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("message not found in conversation tree: %s", target),
				nil,
				"4d5e6f7a-8b9c-40d1-e2f3-a4b5c6d7e8f9",
			)
		}
	}
	if target == "" {
		head, err := forest.Head(treeBranch(branch))
		if errors.Is(err, tree.ErrNoHead) {
			return &BranchPath{BranchID: branch.PublicID, Messages: []Message{}}, nil
		}
		if err != nil {
			return nil, s.treeError(ctx, err, branch.PublicID)
		}
		target = head
	}

	pathIDs, err := forest.PathToMessage(target)
	if err != nil {
		observability.RecordError(span, err)
		return nil, s.treeError(ctx, err, branch.PublicID)
	}
	s.metrics.PathWalked(len(pathIDs))

	messages, err := s.repos.Messages.GetMessagesByIDs(ctx, pathIDs)
	if err != nil {
		return nil, err
	}
	if len(messages) != len(pathIDs) {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeInconsistentTree,
			"tree references messages that do not exist",
			nil,
			"1a2b3c4d-5e6f-47a8-b9c0-d1e2f3a4b5c6",
		)
	}

	// reorder fetched rows into path order
	byID := make(map[string]Message, len(messages))
	for _, m := range messages {
		byID[m.PublicID] = m
	}
	ordered := make([]Message, 0, len(pathIDs))
	for _, id := range pathIDs {
		ordered = append(ordered, byID[id])
	}

	onPath := make(map[string]bool, len(pathIDs))
	for _, id := range pathIDs {
		onPath[id] = true
	}
	var branchPoints []string
	for _, id := range forest.BranchPoints() {
		if onPath[id] {
			branchPoints = append(branchPoints, id)
		}
	}

	return &BranchPath{
		BranchID:     branch.PublicID,
		Messages:     ordered,
		BranchPoints: branchPoints,
	}, nil
}

// GetConversationTree returns the whole forest: branches, edges, and
// messages, enough to render a branch visualization.
func (s *Service) GetConversationTree(ctx context.Context, conversationID string) (*ConversationTree, error) {
	if _, err := s.repos.Conversations.GetByPublicID(ctx, conversationID); err != nil {
		return nil, err
	}

	branches, err := s.repos.Branches.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	edges, err := s.repos.Messages.GetTreeEdges(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repos.Messages.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return &ConversationTree{
		ConversationID: conversationID,
		Branches:       branches,
		Edges:          edges,
		Messages:       messages,
	}, nil
}

// FindDivergencePoint returns the deepest message two branches share, if
// their paths share any prefix at all.
func (s *Service) FindDivergencePoint(ctx context.Context, branchA, branchB string) (string, bool, error) {
	pathA, err := s.GetBranchPath(ctx, branchA, "")
	if err != nil {
		return "", false, err
	}
	pathB, err := s.GetBranchPath(ctx, branchB, "")
	if err != nil {
		return "", false, err
	}

	idsA := make([]string, len(pathA.Messages))
	for i, m := range pathA.Messages {
		idsA[i] = m.PublicID
	}
	idsB := make([]string, len(pathB.Messages))
	for i, m := range pathB.Messages {
		idsB[i] = m.PublicID
	}

	id, ok := tree.DivergencePoint(idsA, idsB)
	return id, ok, nil
}

// ===============================================
// Maintenance
// ===============================================

// CheckConsistency inspects the conversation's rows and reports every
// structural violation. Checking never mutates anything.
func (s *Service) CheckConsistency(ctx context.Context, conversationID string) (tree.Report, error) {
	ctx, span := observability.StartMaintenanceSpan(ctx, "check", conversationID)
	defer span.End()

	if _, err := s.repos.Conversations.GetByPublicID(ctx, conversationID); err != nil {
		return tree.Report{}, err
	}

	branches, err := s.repos.Branches.ListByConversation(ctx, conversationID)
	if err != nil {
		return tree.Report{}, err
	}
	edges, err := s.repos.Messages.GetTreeEdges(ctx, conversationID)
	if err != nil {
		return tree.Report{}, err
	}
	messages, err := s.repos.Messages.GetMessages(ctx, conversationID)
	if err != nil {
		return tree.Report{}, err
	}

	report := tree.Check(treeBranches(branches), treeEdges(edges), treeMessageRefs(messages))
	observability.AddViolationsEvent(span, len(report.Violations), report.Truncated)
	s.metrics.ViolationsSeen(len(report.Violations))
	if !report.Healthy() {
		s.logger.Warn().
			Str("conversation_id", conversationID).
			Int("violations", len(report.Violations)).
			Bool("truncated", report.Truncated).
			Msg("consistency check found violations")
	}
	return report, nil
}

// RepairResult summarizes one repair run. Truncated is set when the run hit
// the step budget and left work for the next run.
type RepairResult struct {
	MessagesAttached int  `json:"messages_attached"`
	EdgesReparented  int  `json:"edges_reparented"`
	Truncated        bool `json:"truncated"`
}

// RepairTree re-attaches orphaned messages under the main branch head in
// timestamp order and moves dangling-parent edges back onto the main
// lineage. A single run applies at most the configured step budget and
// reports partial progress; rerunning continues where it stopped. Running it
// on a healthy tree is a no-op.
func (s *Service) RepairTree(ctx context.Context, conversationID string) (*RepairResult, error) {
	ctx, span := observability.StartMaintenanceSpan(ctx, "repair", conversationID)
	defer span.End()

	main, err := s.GetOrCreateMainBranch(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	result := &RepairResult{}
	txErr := s.tx.RunInTx(ctx, func(ctx context.Context, repos Repos) error {
		edges, err := repos.Messages.GetTreeEdges(ctx, conversationID)
		if err != nil {
			return err
		}
		messages, err := repos.Messages.GetMessages(ctx, conversationID)
		if err != nil {
			return err
		}

		actions := tree.PlanRepair(treeBranch(main), treeEdges(edges), treeMessageRefs(messages))
		if len(actions) > s.repairBudget {
			actions = actions[:s.repairBudget]
			result.Truncated = true
		}
		for _, a := range actions {
			if a.Reparent {
				if err := repos.Messages.ReparentEdge(ctx, a.MessageID, a.ParentMessageID, a.BranchID); err != nil {
					return err
				}
				result.EdgesReparented++
				continue
			}
			if err := repos.Messages.AddTreeEdge(ctx, &TreeEdge{
				MessageID:       a.MessageID,
				ParentMessageID: a.ParentMessageID,
				BranchID:        a.BranchID,
			}); err != nil {
				return err
			}
			result.MessagesAttached++
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if result.MessagesAttached > 0 || result.EdgesReparented > 0 {
		s.metrics.RepairApplied(result.MessagesAttached)
		s.logger.Info().
			Str("conversation_id", conversationID).
			Int("messages_attached", result.MessagesAttached).
			Int("edges_reparented", result.EdgesReparented).
			Bool("truncated", result.Truncated).
			Msg("tree repaired")
	}
	return result, nil
}

// ===============================================
// Internals
// ===============================================

// resolveTurnParent picks the tree position for a turn's user message. An
// explicit ParentMessageID is validated against the conversation and must
// already sit in the tree; otherwise the branch head wins, and an empty
// branch makes the user message a root.
func (s *Service) resolveTurnParent(ctx context.Context, repos Repos, params AppendTurnParams, branch *Branch) (*string, error) {
	if params.ParentMessageID != "" {
		parentMsg, err := repos.Messages.GetMessage(ctx, params.ParentMessageID)
		if err != nil {
			return nil, err
		}
		if parentMsg.ConversationID != params.ConversationID {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerDomain,
				platformerrors.ErrorTypeValidation,
				fmt.Sprintf("message %s does not belong to conversation %s", params.ParentMessageID, params.ConversationID),
				nil,
				"4e5f6a7b-8c9d-40e1-f2a3-b4c5d6e7f8a9",
			)
		}
		if _, err := repos.Messages.GetTreeEdge(ctx, params.ParentMessageID); err != nil {
			return nil, err
		}
		p := params.ParentMessageID
		return &p, nil
	}

	edges, err := repos.Messages.GetBranchEdges(ctx, branch.PublicID)
	if err != nil {
		return nil, err
	}
	head, err := tree.NewForest(treeEdges(edges)).Head(treeBranch(branch))
	switch {
	case err == nil:
		h := head
		return &h, nil
	case errors.Is(err, tree.ErrNoHead):
		// empty branch, the user message becomes a root
		return nil, nil
	default:
		return nil, s.treeError(ctx, err, branch.PublicID)
	}
}

// resolveBranch resolves a branch reference, defaulting to the main branch
// and verifying conversation membership.
func (s *Service) resolveBranch(ctx context.Context, conversationID, branchID string) (*Branch, error) {
	if _, err := s.repos.Conversations.GetByPublicID(ctx, conversationID); err != nil {
		return nil, err
	}

	if branchID == "" {
		return s.GetOrCreateMainBranch(ctx, conversationID)
	}

	branch, err := s.repos.Branches.GetByPublicID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if branch.ConversationID != conversationID {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			fmt.Sprintf("branch %s does not belong to conversation %s", branchID, conversationID),
			nil,
			"2b3c4d5e-6f7a-48b9-c0d1-e2f3a4b5c6d7",
		)
	}
	return branch, nil
}

// treeError converts walk failures into the inconsistent-tree error type.
func (s *Service) treeError(ctx context.Context, err error, branchID string) error {
	switch {
	case errors.Is(err, tree.ErrCycleDetected),
		errors.Is(err, tree.ErrDanglingParent),
		errors.Is(err, tree.ErrUnknownMessage):
		return platformerrors.NewErrorWithContext(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeInconsistentTree,
			"message tree is inconsistent",
			err,
			"3c4d5e6f-7a8b-49c0-d1e2-f3a4b5c6d7e8",
			map[string]any{"branch_id": branchID},
		)
	default:
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "tree operation failed")
	}
}

// treeEdges projects edge rows into the tree engine's edge type.
func treeEdges(edges []TreeEdge) []tree.Edge {
	out := make([]tree.Edge, len(edges))
	for i, e := range edges {
		out[i] = tree.Edge{
			MessageID:       e.MessageID,
			ParentMessageID: e.ParentMessageID,
			BranchID:        e.BranchID,
			IsBranchPoint:   e.IsBranchPoint,
			Ord:             e.Ord,
		}
	}
	return out
}

// treeBranch projects a branch row into the tree engine's branch type.
func treeBranch(b *Branch) tree.Branch {
	return tree.Branch{
		ID:                  b.PublicID,
		IsMain:              b.IsMain,
		ForkedFromMessageID: b.ForkedFromMessageID,
	}
}

func treeBranches(branches []Branch) []tree.Branch {
	out := make([]tree.Branch, len(branches))
	for i := range branches {
		out[i] = treeBranch(&branches[i])
	}
	return out
}

func treeMessageRefs(messages []Message) []tree.MessageRef {
	out := make([]tree.MessageRef, len(messages))
	for i, m := range messages {
		out[i] = tree.MessageRef{ID: m.PublicID, Seq: m.ID, CreatedAt: m.CreatedAt}
	}
	return out
}
