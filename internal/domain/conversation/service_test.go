package conversation_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/domain/tree"
	"jan-server/services/conversation-api/internal/infrastructure/database"
	"jan-server/services/conversation-api/internal/infrastructure/repository/uow"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

type testEnv struct {
	svc   *conversation.Service
	repos conversation.Repos
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithBudget(t, conversation.DefaultRepairStepBudget)
}

func newTestEnvWithBudget(t *testing.T, budget conversation.RepairStepBudget) *testEnv {
	t.Helper()

	db, err := database.Connect(database.Config{
		Path: filepath.Join(t.TempDir(), "conversations.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(context.Background(), db, zerolog.Nop()))

	repos := uow.NewRepos(db)
	svc := conversation.NewService(repos, uow.NewManager(db), nil, budget, zerolog.Nop())
	return &testEnv{svc: svc, repos: repos}
}

func appendTurn(t *testing.T, env *testEnv, conversationID, branchID, user, assistant string) *conversation.Turn {
	t.Helper()
	turn, err := env.svc.AppendTurn(context.Background(), conversation.AppendTurnParams{
		ConversationID:   conversationID,
		BranchID:         branchID,
		UserContent:      user,
		AssistantContent: assistant,
	})
	require.NoError(t, err)
	return turn
}

func pathIDs(path *conversation.BranchPath) []string {
	out := make([]string, len(path.Messages))
	for i, m := range path.Messages {
		out[i] = m.PublicID
	}
	return out
}

func TestCreateAndGetConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "Trip planning", map[string]string{"topic": "travel"})
	require.NoError(t, err)
	require.NotEmpty(t, conv.PublicID)

	got, err := env.svc.GetConversation(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", got.Name)
	assert.Equal(t, "travel", got.Metadata["topic"])

	_, err = env.svc.GetConversation(ctx, "conv_missing")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestAppendTurnCreatesMainBranchLazily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "lazy main", nil)
	require.NoError(t, err)

	turn := appendTurn(t, env, conv.PublicID, "", "hello", "hi there")
	assert.Equal(t, conversation.RoleUser, turn.UserMessage.Role)
	assert.Equal(t, conversation.RoleAssistant, turn.AssistantMessage.Role)

	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.True(t, main.IsMain)
	assert.Equal(t, conversation.MainBranchName, main.Name)

	path, err := env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{turn.UserMessage.PublicID, turn.AssistantMessage.PublicID}, pathIDs(path))
}

func TestAppendTurnChainsAtBranchHead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "chained", nil)
	require.NoError(t, err)

	t1 := appendTurn(t, env, conv.PublicID, "", "first question", "first answer")
	t2 := appendTurn(t, env, conv.PublicID, "", "second question", "second answer")

	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)
	path, err := env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		t1.UserMessage.PublicID, t1.AssistantMessage.PublicID,
		t2.UserMessage.PublicID, t2.AssistantMessage.PublicID,
	}, pathIDs(path))
}

func TestAppendTurnUnderExplicitParent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "pinned parent", nil)
	require.NoError(t, err)
	t1 := appendTurn(t, env, conv.PublicID, "", "q1", "a1")
	appendTurn(t, env, conv.PublicID, "", "q2", "a2")

	// Pin the turn under the first assistant reply instead of the head.
	t3, err := env.svc.AppendTurn(ctx, conversation.AppendTurnParams{
		ConversationID:   conv.PublicID,
		ParentMessageID:  t1.AssistantMessage.PublicID,
		UserContent:      "q1 retake",
		AssistantContent: "a1 retake",
	})
	require.NoError(t, err)

	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)
	path, err := env.svc.GetBranchPath(ctx, main.PublicID, t3.AssistantMessage.PublicID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		t1.UserMessage.PublicID, t1.AssistantMessage.PublicID,
		t3.UserMessage.PublicID, t3.AssistantMessage.PublicID,
	}, pathIDs(path))

	_, err = env.svc.AppendTurn(ctx, conversation.AppendTurnParams{
		ConversationID:   conv.PublicID,
		ParentMessageID:  "msg_missing",
		UserContent:      "q",
		AssistantContent: "a",
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	other, err := env.svc.CreateConversation(ctx, "other", nil)
	require.NoError(t, err)
	otherTurn := appendTurn(t, env, other.PublicID, "", "oq", "oa")
	_, err = env.svc.AppendTurn(ctx, conversation.AppendTurnParams{
		ConversationID:   conv.PublicID,
		ParentMessageID:  otherTurn.UserMessage.PublicID,
		UserContent:      "q",
		AssistantContent: "a",
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestGetOrCreateMainBranchConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "racy main", nil)
	require.NoError(t, err)

	const callers = 4
	results := make([]*conversation.Branch, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].PublicID, results[i].PublicID)
	}

	branches, _, err := env.svc.ListBranches(ctx, conv.PublicID)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.True(t, branches[0].IsMain)
}

func TestAppendTurnValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "validation", nil)
	require.NoError(t, err)

	_, err = env.svc.AppendTurn(ctx, conversation.AppendTurnParams{
		ConversationID:   conv.PublicID,
		UserContent:      "  ",
		AssistantContent: "answer",
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = env.svc.AppendTurn(ctx, conversation.AppendTurnParams{
		ConversationID:   conv.PublicID,
		UserContent:      "question",
		AssistantContent: "",
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = env.svc.AppendTurn(ctx, conversation.AppendTurnParams{
		ConversationID:   "conv_missing",
		UserContent:      "question",
		AssistantContent: "answer",
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestAppendTurnIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "atomic", nil)
	require.NoError(t, err)
	appendTurn(t, env, conv.PublicID, "", "seed", "seeded")

	// Occupy the assistant message ID so the third write of the turn fails.
	blockerID := conversation.NewMessageID()
	require.NoError(t, env.repos.Messages.CreateMessage(ctx, &conversation.Message{
		PublicID:       blockerID,
		ConversationID: conv.PublicID,
		Role:           conversation.RoleAssistant,
		Content:        "blocker",
	}))

	before, err := env.svc.GetHistory(ctx, conv.PublicID)
	require.NoError(t, err)

	_, err = env.svc.AppendTurn(ctx, conversation.AppendTurnParams{
		ConversationID:     conv.PublicID,
		UserContent:        "doomed question",
		AssistantContent:   "doomed answer",
		AssistantMessageID: blockerID,
	})
	require.Error(t, err)

	// Nothing from the failed turn may survive, including the user half.
	after, err := env.svc.GetHistory(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	edges, err := env.repos.Messages.GetTreeEdges(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}

func TestCreateBranchSharesAncestors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "forked", nil)
	require.NoError(t, err)
	t1 := appendTurn(t, env, conv.PublicID, "", "q1", "a1")
	t2 := appendTurn(t, env, conv.PublicID, "", "q2", "a2")

	branch, err := env.svc.CreateBranchFromMessage(ctx, conv.PublicID, t1.AssistantMessage.PublicID, "Alternative")
	require.NoError(t, err)
	require.NotNil(t, branch.ForkedFromMessageID)
	assert.Equal(t, t1.AssistantMessage.PublicID, *branch.ForkedFromMessageID)

	// A fresh fork heads at the fork point: its path is the shared prefix.
	path, err := env.svc.GetBranchPath(ctx, branch.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{t1.UserMessage.PublicID, t1.AssistantMessage.PublicID}, pathIDs(path))

	// Diverge and verify both lineages.
	t3 := appendTurn(t, env, conv.PublicID, branch.PublicID, "q2 alt", "a2 alt")
	path, err = env.svc.GetBranchPath(ctx, branch.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		t1.UserMessage.PublicID, t1.AssistantMessage.PublicID,
		t3.UserMessage.PublicID, t3.AssistantMessage.PublicID,
	}, pathIDs(path))

	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)
	mainPath, err := env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		t1.UserMessage.PublicID, t1.AssistantMessage.PublicID,
		t2.UserMessage.PublicID, t2.AssistantMessage.PublicID,
	}, pathIDs(mainPath))

	// Fork point is flagged in the stored tree.
	treeView, err := env.svc.GetConversationTree(ctx, conv.PublicID)
	require.NoError(t, err)
	var forkEdge *conversation.TreeEdge
	for i := range treeView.Edges {
		if treeView.Edges[i].MessageID == t1.AssistantMessage.PublicID {
			forkEdge = &treeView.Edges[i]
		}
	}
	require.NotNil(t, forkEdge)
	assert.True(t, forkEdge.IsBranchPoint)
	assert.Contains(t, path.BranchPoints, t1.AssistantMessage.PublicID)
}

func TestCreateBranchValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "branch validation", nil)
	require.NoError(t, err)
	turn := appendTurn(t, env, conv.PublicID, "", "q", "a")

	_, err = env.svc.CreateBranchFromMessage(ctx, conv.PublicID, turn.UserMessage.PublicID, "   ")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = env.svc.CreateBranchFromMessage(ctx, conv.PublicID, "msg_missing", "ghost")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	other, err := env.svc.CreateConversation(ctx, "other", nil)
	require.NoError(t, err)
	_, err = env.svc.CreateBranchFromMessage(ctx, other.PublicID, turn.UserMessage.PublicID, "stolen")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	// Duplicate branch name within the conversation.
	_, err = env.svc.CreateBranchFromMessage(ctx, conv.PublicID, turn.UserMessage.PublicID, "Twice")
	require.NoError(t, err)
	_, err = env.svc.CreateBranchFromMessage(ctx, conv.PublicID, turn.UserMessage.PublicID, "Twice")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestSiblingForksAtSamePoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "siblings", nil)
	require.NoError(t, err)
	turn := appendTurn(t, env, conv.PublicID, "", "q", "a")

	b1, err := env.svc.CreateBranchFromMessage(ctx, conv.PublicID, turn.AssistantMessage.PublicID, "take one")
	require.NoError(t, err)
	b2, err := env.svc.CreateBranchFromMessage(ctx, conv.PublicID, turn.AssistantMessage.PublicID, "take two")
	require.NoError(t, err)

	s1 := appendTurn(t, env, conv.PublicID, b1.PublicID, "alt one", "reply one")
	s2 := appendTurn(t, env, conv.PublicID, b2.PublicID, "alt two", "reply two")

	p1, err := env.svc.GetBranchPath(ctx, b1.PublicID, "")
	require.NoError(t, err)
	p2, err := env.svc.GetBranchPath(ctx, b2.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, s1.AssistantMessage.PublicID, p1.Messages[len(p1.Messages)-1].PublicID)
	assert.Equal(t, s2.AssistantMessage.PublicID, p2.Messages[len(p2.Messages)-1].PublicID)

	id, ok, err := env.svc.FindDivergencePoint(ctx, b1.PublicID, b2.PublicID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, turn.AssistantMessage.PublicID, id)
}

func TestDeleteBranchRemovesOnlyExclusiveMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "delete branch", nil)
	require.NoError(t, err)
	t1 := appendTurn(t, env, conv.PublicID, "", "q1", "a1")
	t2 := appendTurn(t, env, conv.PublicID, "", "q2", "a2")

	branch, err := env.svc.CreateBranchFromMessage(ctx, conv.PublicID, t1.AssistantMessage.PublicID, "doomed")
	require.NoError(t, err)
	side := appendTurn(t, env, conv.PublicID, branch.PublicID, "side q", "side a")

	// Sub-branch forked inside the doomed region cascades away with it.
	sub, err := env.svc.CreateBranchFromMessage(ctx, conv.PublicID, side.AssistantMessage.PublicID, "nested")
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteBranch(ctx, branch.PublicID))

	_, err = env.svc.GetBranchPath(ctx, branch.PublicID, "")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	_, err = env.svc.GetBranchPath(ctx, sub.PublicID, "")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	// Shared prefix and the main lineage survive untouched.
	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)
	mainPath, err := env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		t1.UserMessage.PublicID, t1.AssistantMessage.PublicID,
		t2.UserMessage.PublicID, t2.AssistantMessage.PublicID,
	}, pathIDs(mainPath))

	history, err := env.svc.GetHistory(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	report, err := env.svc.CheckConsistency(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.True(t, report.Healthy(), "delete left violations: %+v", report.Violations)
}

func TestDeleteMainBranchRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "protected", nil)
	require.NoError(t, err)
	appendTurn(t, env, conv.PublicID, "", "q", "a")

	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)
	err = env.svc.DeleteBranch(ctx, main.PublicID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestRenameBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "rename", nil)
	require.NoError(t, err)
	turn := appendTurn(t, env, conv.PublicID, "", "q", "a")
	branch, err := env.svc.CreateBranchFromMessage(ctx, conv.PublicID, turn.UserMessage.PublicID, "draft")
	require.NoError(t, err)

	renamed, err := env.svc.RenameBranch(ctx, branch.PublicID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", renamed.Name)

	_, err = env.svc.RenameBranch(ctx, branch.PublicID, " ")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestBranchStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "stats", nil)
	require.NoError(t, err)
	t1 := appendTurn(t, env, conv.PublicID, "", "q1", "a1")
	appendTurn(t, env, conv.PublicID, "", "q2", "a2")

	branch, err := env.svc.CreateBranchFromMessage(ctx, conv.PublicID, t1.AssistantMessage.PublicID, "alt")
	require.NoError(t, err)
	appendTurn(t, env, conv.PublicID, branch.PublicID, "alt q", "alt a")

	branches, stats, err := env.svc.ListBranches(ctx, conv.PublicID)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	require.Len(t, stats, 2)
	assert.True(t, branches[0].IsMain, "main listed first")

	byName := map[string]conversation.BranchStats{}
	for _, st := range stats {
		byName[st.Name] = st
	}
	assert.Equal(t, 4, byName[conversation.MainBranchName].MessageCount)
	assert.Equal(t, 4, byName[conversation.MainBranchName].Depth)
	assert.Equal(t, 2, byName["alt"].MessageCount)
	assert.Equal(t, 4, byName["alt"].Depth)
}

func TestCheckAndRepair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "repairable", nil)
	require.NoError(t, err)
	turn := appendTurn(t, env, conv.PublicID, "", "q", "a")

	// A message row without any tree edge is an orphan.
	orphanID := conversation.NewMessageID()
	require.NoError(t, env.repos.Messages.CreateMessage(ctx, &conversation.Message{
		PublicID:       orphanID,
		ConversationID: conv.PublicID,
		Role:           conversation.RoleUser,
		Content:        "lost",
	}))

	report, err := env.svc.CheckConsistency(ctx, conv.PublicID)
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, tree.ViolationOrphanMessage, report.Violations[0].Kind)
	assert.Equal(t, orphanID, report.Violations[0].MessageID)

	result, err := env.svc.RepairTree(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MessagesAttached)

	// The orphan now extends the main lineage after the previous head.
	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)
	path, err := env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		turn.UserMessage.PublicID, turn.AssistantMessage.PublicID, orphanID,
	}, pathIDs(path))

	report, err = env.svc.CheckConsistency(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.True(t, report.Healthy())

	// Repair is idempotent.
	result, err = env.svc.RepairTree(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MessagesAttached)
}

func TestRepairReattachesDanglingEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "dangling", nil)
	require.NoError(t, err)
	turn := appendTurn(t, env, conv.PublicID, "", "q", "a")
	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)

	// An edge whose parent reference points at a message with no edge.
	strayID := conversation.NewMessageID()
	require.NoError(t, env.repos.Messages.CreateMessage(ctx, &conversation.Message{
		PublicID:       strayID,
		ConversationID: conv.PublicID,
		Role:           conversation.RoleUser,
		Content:        "stray",
	}))
	ghost := "msg_ghost"
	require.NoError(t, env.repos.Messages.AddTreeEdge(ctx, &conversation.TreeEdge{
		MessageID:       strayID,
		ParentMessageID: &ghost,
		BranchID:        main.PublicID,
	}))

	report, err := env.svc.CheckConsistency(ctx, conv.PublicID)
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, tree.ViolationMissingParent, report.Violations[0].Kind)

	result, err := env.svc.RepairTree(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MessagesAttached)
	assert.Equal(t, 1, result.EdgesReparented)
	assert.False(t, result.Truncated)

	// The stray edge now extends the main lineage after the previous head.
	path, err := env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		turn.UserMessage.PublicID, turn.AssistantMessage.PublicID, strayID,
	}, pathIDs(path))

	report, err = env.svc.CheckConsistency(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
}

func TestRepairStepBudgetTruncatesRun(t *testing.T) {
	env := newTestEnvWithBudget(t, 1)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "budgeted", nil)
	require.NoError(t, err)
	appendTurn(t, env, conv.PublicID, "", "q", "a")

	for _, content := range []string{"lost one", "lost two"} {
		require.NoError(t, env.repos.Messages.CreateMessage(ctx, &conversation.Message{
			PublicID:       conversation.NewMessageID(),
			ConversationID: conv.PublicID,
			Role:           conversation.RoleUser,
			Content:        content,
		}))
	}

	result, err := env.svc.RepairTree(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MessagesAttached)
	assert.True(t, result.Truncated)

	// The next run picks up where the truncated one stopped.
	result, err = env.svc.RepairTree(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MessagesAttached)
	assert.False(t, result.Truncated)

	report, err := env.svc.CheckConsistency(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
}

func TestAddTreeEdgeRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "placed once", nil)
	require.NoError(t, err)
	turn := appendTurn(t, env, conv.PublicID, "", "q", "a")
	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)

	err = env.repos.Messages.AddTreeEdge(ctx, &conversation.TreeEdge{
		MessageID: turn.UserMessage.PublicID,
		BranchID:  main.PublicID,
	})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestDeleteConversationCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "cascade", nil)
	require.NoError(t, err)
	turn := appendTurn(t, env, conv.PublicID, "", "q", "a")
	_, err = env.svc.CreateBranchFromMessage(ctx, conv.PublicID, turn.UserMessage.PublicID, "side")
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteConversation(ctx, conv.PublicID))

	_, err = env.svc.GetConversation(ctx, conv.PublicID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	_, err = env.repos.Messages.GetMessage(ctx, turn.UserMessage.PublicID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	edges, err := env.repos.Messages.GetTreeEdges(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

// TestBranchingEndToEnd follows a full editing session: build a main lineage,
// fork in the middle, diverge, inspect both paths, then delete the fork and
// verify main never noticed.
func TestBranchingEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, "essay help", nil)
	require.NoError(t, err)

	t1 := appendTurn(t, env, conv.PublicID, "", "Help me outline an essay", "Here is an outline")
	t2 := appendTurn(t, env, conv.PublicID, "", "Draft the intro", "Here is a draft intro")
	t3 := appendTurn(t, env, conv.PublicID, "", "Now the conclusion", "Here is a conclusion")

	main, err := env.svc.GetOrCreateMainBranch(ctx, conv.PublicID)
	require.NoError(t, err)
	mainPath, err := env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	require.Len(t, mainPath.Messages, 6)

	// Fork at the second assistant reply to try a different intro.
	branch, err := env.svc.CreateBranchFromMessage(ctx, conv.PublicID, t2.AssistantMessage.PublicID, "punchier intro")
	require.NoError(t, err)
	b1 := appendTurn(t, env, conv.PublicID, branch.PublicID, "Make the intro punchier", "A punchier intro")

	branchPath, err := env.svc.GetBranchPath(ctx, branch.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		t1.UserMessage.PublicID, t1.AssistantMessage.PublicID,
		t2.UserMessage.PublicID, t2.AssistantMessage.PublicID,
		b1.UserMessage.PublicID, b1.AssistantMessage.PublicID,
	}, pathIDs(branchPath))

	// The fork shares four messages with main and then diverges.
	div, ok, err := env.svc.FindDivergencePoint(ctx, main.PublicID, branch.PublicID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, t2.AssistantMessage.PublicID, div)

	// Main still runs through the original conclusion.
	mainPath, err = env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	assert.Equal(t, t3.AssistantMessage.PublicID, mainPath.Messages[len(mainPath.Messages)-1].PublicID)

	// Walking to a historical position renders the prefix only.
	historical, err := env.svc.GetBranchPath(ctx, main.PublicID, t2.AssistantMessage.PublicID)
	require.NoError(t, err)
	require.Len(t, historical.Messages, 4)

	// Abandon the experiment.
	require.NoError(t, env.svc.DeleteBranch(ctx, branch.PublicID))
	mainPath, err = env.svc.GetBranchPath(ctx, main.PublicID, "")
	require.NoError(t, err)
	require.Len(t, mainPath.Messages, 6)

	report, err := env.svc.CheckConsistency(ctx, conv.PublicID)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
}
