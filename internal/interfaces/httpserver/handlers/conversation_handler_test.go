package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/domain/tree"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// MockConversationService is a mock implementation of the handler-facing
// service interface. Only the methods a test configures do anything.
type MockConversationService struct {
	CreateConversationFunc      func(ctx context.Context, name string, metadata map[string]string) (*conversation.Conversation, error)
	GetConversationFunc         func(ctx context.Context, conversationID string) (*conversation.Conversation, error)
	ListConversationsFunc       func(ctx context.Context, limit, offset int) ([]conversation.Conversation, error)
	DeleteConversationFunc      func(ctx context.Context, conversationID string) error
	GetHistoryFunc              func(ctx context.Context, conversationID string) ([]conversation.Message, error)
	AppendTurnFunc              func(ctx context.Context, params conversation.AppendTurnParams) (*conversation.Turn, error)
	CreateBranchFromMessageFunc func(ctx context.Context, conversationID, messageID, name string) (*conversation.Branch, error)
	ListBranchesFunc            func(ctx context.Context, conversationID string) ([]conversation.Branch, []conversation.BranchStats, error)
	GetBranchPathFunc           func(ctx context.Context, branchID, messageID string) (*conversation.BranchPath, error)
	GetConversationTreeFunc     func(ctx context.Context, conversationID string) (*conversation.ConversationTree, error)
	RenameBranchFunc            func(ctx context.Context, branchID, name string) (*conversation.Branch, error)
	DeleteBranchFunc            func(ctx context.Context, branchID string) error
	FindDivergencePointFunc     func(ctx context.Context, branchA, branchB string) (string, bool, error)
	CheckConsistencyFunc        func(ctx context.Context, conversationID string) (tree.Report, error)
	RepairTreeFunc              func(ctx context.Context, conversationID string) (*conversation.RepairResult, error)
}

func (m *MockConversationService) CreateConversation(ctx context.Context, name string, metadata map[string]string) (*conversation.Conversation, error) {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(ctx, name, metadata)
	}
	return nil, nil
}

func (m *MockConversationService) GetConversation(ctx context.Context, conversationID string) (*conversation.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, conversationID)
	}
	return nil, nil
}

func (m *MockConversationService) ListConversations(ctx context.Context, limit, offset int) ([]conversation.Conversation, error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *MockConversationService) DeleteConversation(ctx context.Context, conversationID string) error {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(ctx, conversationID)
	}
	return nil
}

func (m *MockConversationService) GetHistory(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	if m.GetHistoryFunc != nil {
		return m.GetHistoryFunc(ctx, conversationID)
	}
	return nil, nil
}

func (m *MockConversationService) AppendTurn(ctx context.Context, params conversation.AppendTurnParams) (*conversation.Turn, error) {
	if m.AppendTurnFunc != nil {
		return m.AppendTurnFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockConversationService) CreateBranchFromMessage(ctx context.Context, conversationID, messageID, name string) (*conversation.Branch, error) {
	if m.CreateBranchFromMessageFunc != nil {
		return m.CreateBranchFromMessageFunc(ctx, conversationID, messageID, name)
	}
	return nil, nil
}

func (m *MockConversationService) ListBranches(ctx context.Context, conversationID string) ([]conversation.Branch, []conversation.BranchStats, error) {
	if m.ListBranchesFunc != nil {
		return m.ListBranchesFunc(ctx, conversationID)
	}
	return nil, nil, nil
}

func (m *MockConversationService) GetBranchPath(ctx context.Context, branchID, messageID string) (*conversation.BranchPath, error) {
	if m.GetBranchPathFunc != nil {
		return m.GetBranchPathFunc(ctx, branchID, messageID)
	}
	return nil, nil
}

func (m *MockConversationService) GetConversationTree(ctx context.Context, conversationID string) (*conversation.ConversationTree, error) {
	if m.GetConversationTreeFunc != nil {
		return m.GetConversationTreeFunc(ctx, conversationID)
	}
	return nil, nil
}

func (m *MockConversationService) RenameBranch(ctx context.Context, branchID, name string) (*conversation.Branch, error) {
	if m.RenameBranchFunc != nil {
		return m.RenameBranchFunc(ctx, branchID, name)
	}
	return nil, nil
}

func (m *MockConversationService) DeleteBranch(ctx context.Context, branchID string) error {
	if m.DeleteBranchFunc != nil {
		return m.DeleteBranchFunc(ctx, branchID)
	}
	return nil
}

func (m *MockConversationService) FindDivergencePoint(ctx context.Context, branchA, branchB string) (string, bool, error) {
	if m.FindDivergencePointFunc != nil {
		return m.FindDivergencePointFunc(ctx, branchA, branchB)
	}
	return "", false, nil
}

func (m *MockConversationService) CheckConsistency(ctx context.Context, conversationID string) (tree.Report, error) {
	if m.CheckConsistencyFunc != nil {
		return m.CheckConsistencyFunc(ctx, conversationID)
	}
	return tree.Report{}, nil
}

func (m *MockConversationService) RepairTree(ctx context.Context, conversationID string) (*conversation.RepairResult, error) {
	if m.RepairTreeFunc != nil {
		return m.RepairTreeFunc(ctx, conversationID)
	}
	return nil, nil
}

func setupTestRouter(mockService *MockConversationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	convHandler := handlers.NewConversationHandler(mockService, zerolog.Nop())
	branchHandler := handlers.NewBranchHandler(mockService, zerolog.Nop())
	maintHandler := handlers.NewMaintenanceHandler(mockService, zerolog.Nop())

	v1 := r.Group("/v1")
	{
		v1.POST("/conversations", convHandler.Create)
		v1.GET("/conversations/:conversation_id", convHandler.Get)
		v1.POST("/conversations/:conversation_id/turns", convHandler.AppendTurn)
		v1.POST("/conversations/:conversation_id/branches", branchHandler.Create)
		v1.GET("/conversations/:conversation_id/branches", branchHandler.List)
		v1.GET("/branches/:branch_id/path", branchHandler.Path)
		v1.GET("/branches/:branch_id/divergence", branchHandler.Divergence)
		v1.DELETE("/branches/:branch_id", branchHandler.Delete)
		v1.POST("/conversations/:conversation_id/maintenance/check", maintHandler.Check)
	}
	return r
}

func TestConversationHandler_Create(t *testing.T) {
	mockService := &MockConversationService{
		CreateConversationFunc: func(ctx context.Context, name string, metadata map[string]string) (*conversation.Conversation, error) {
			return &conversation.Conversation{
				PublicID:  "conv-123",
				Name:      name,
				Metadata:  metadata,
				CreatedAt: time.Now(),
			}, nil
		},
	}
	router := setupTestRouter(mockService)

	body := bytes.NewBufferString(`{"name": "Trip planning"}`)
	req, _ := http.NewRequest("POST", "/v1/conversations", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["id"] != "conv-123" {
		t.Errorf("Expected conversation id 'conv-123', got %v", response["id"])
	}
	if response["name"] != "Trip planning" {
		t.Errorf("Expected name 'Trip planning', got %v", response["name"])
	}
}

func TestConversationHandler_GetNotFound(t *testing.T) {
	mockService := &MockConversationService{
		GetConversationFunc: func(ctx context.Context, conversationID string) (*conversation.Conversation, error) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "b3d1f0a2-5c6e-47d8-9a0b-1c2d3e4f5a6b")
		},
	}
	router := setupTestRouter(mockService)

	req, _ := http.NewRequest("GET", "/v1/conversations/conv-missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestConversationHandler_AppendTurn(t *testing.T) {
	var gotParams conversation.AppendTurnParams
	mockService := &MockConversationService{
		AppendTurnFunc: func(ctx context.Context, params conversation.AppendTurnParams) (*conversation.Turn, error) {
			gotParams = params
			return &conversation.Turn{
				UserMessage:      conversation.Message{PublicID: "msg-u", Role: conversation.RoleUser, Content: params.UserContent},
				AssistantMessage: conversation.Message{PublicID: "msg-a", Role: conversation.RoleAssistant, Content: params.AssistantContent},
			}, nil
		},
	}
	router := setupTestRouter(mockService)

	body := bytes.NewBufferString(`{"user_content": "hi", "assistant_content": "hello", "branch_id": "branch-1", "parent_message_id": "msg-parent"}`)
	req, _ := http.NewRequest("POST", "/v1/conversations/conv-123/turns", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if gotParams.ConversationID != "conv-123" {
		t.Errorf("Expected conversation id from path, got %q", gotParams.ConversationID)
	}
	if gotParams.BranchID != "branch-1" {
		t.Errorf("Expected branch id 'branch-1', got %q", gotParams.BranchID)
	}
	if gotParams.ParentMessageID != "msg-parent" {
		t.Errorf("Expected parent message id 'msg-parent', got %q", gotParams.ParentMessageID)
	}
}

func TestConversationHandler_AppendTurnRejectsMissingContent(t *testing.T) {
	router := setupTestRouter(&MockConversationService{})

	body := bytes.NewBufferString(`{"user_content": "hi"}`)
	req, _ := http.NewRequest("POST", "/v1/conversations/conv-123/turns", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestBranchHandler_Create(t *testing.T) {
	mockService := &MockConversationService{
		CreateBranchFromMessageFunc: func(ctx context.Context, conversationID, messageID, name string) (*conversation.Branch, error) {
			forkedFrom := messageID
			return &conversation.Branch{
				PublicID:            "branch-456",
				ConversationID:      conversationID,
				Name:                name,
				ForkedFromMessageID: &forkedFrom,
			}, nil
		},
	}
	router := setupTestRouter(mockService)

	body := bytes.NewBufferString(`{"message_id": "msg-2", "name": "Alternative"}`)
	req, _ := http.NewRequest("POST", "/v1/conversations/conv-123/branches", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["id"] != "branch-456" {
		t.Errorf("Expected branch id 'branch-456', got %v", response["id"])
	}
	if response["forked_from_message_id"] != "msg-2" {
		t.Errorf("Expected fork point 'msg-2', got %v", response["forked_from_message_id"])
	}
}

func TestBranchHandler_List(t *testing.T) {
	mockService := &MockConversationService{
		ListBranchesFunc: func(ctx context.Context, conversationID string) ([]conversation.Branch, []conversation.BranchStats, error) {
			return []conversation.Branch{
					{PublicID: "branch-1", Name: conversation.MainBranchName, IsMain: true},
					{PublicID: "branch-2", Name: "Alternative"},
				}, []conversation.BranchStats{
					{BranchID: "branch-1", Name: conversation.MainBranchName, IsMain: true, MessageCount: 4, Depth: 4},
					{BranchID: "branch-2", Name: "Alternative", MessageCount: 2, Depth: 4},
				}, nil
		},
	}
	router := setupTestRouter(mockService)

	req, _ := http.NewRequest("GET", "/v1/conversations/conv-123/branches", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Data  []map[string]interface{} `json:"data"`
		Stats []map[string]interface{} `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(response.Data) != 2 {
		t.Errorf("Expected 2 branches, got %d", len(response.Data))
	}
	if len(response.Stats) != 2 {
		t.Errorf("Expected stats for 2 branches, got %d", len(response.Stats))
	}
}

func TestBranchHandler_PathPassesMessageOverride(t *testing.T) {
	var gotMessageID string
	mockService := &MockConversationService{
		GetBranchPathFunc: func(ctx context.Context, branchID, messageID string) (*conversation.BranchPath, error) {
			gotMessageID = messageID
			return &conversation.BranchPath{
				BranchID: branchID,
				Messages: []conversation.Message{
					{PublicID: "msg-1", Role: conversation.RoleUser, Content: "hi"},
				},
			}, nil
		},
	}
	router := setupTestRouter(mockService)

	req, _ := http.NewRequest("GET", "/v1/branches/branch-1/path?message_id=msg-7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if gotMessageID != "msg-7" {
		t.Errorf("Expected message override 'msg-7', got %q", gotMessageID)
	}
}

func TestBranchHandler_Divergence(t *testing.T) {
	mockService := &MockConversationService{
		FindDivergencePointFunc: func(ctx context.Context, branchA, branchB string) (string, bool, error) {
			return "msg-2", true, nil
		},
	}
	router := setupTestRouter(mockService)

	req, _ := http.NewRequest("GET", "/v1/branches/branch-1/divergence?other=branch-2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["message_id"] != "msg-2" {
		t.Errorf("Expected divergence at 'msg-2', got %v", response["message_id"])
	}

	// Missing the comparison branch is a validation error
	req, _ = http.NewRequest("GET", "/v1/branches/branch-1/divergence", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestBranchHandler_DeleteMainRejected(t *testing.T) {
	mockService := &MockConversationService{
		DeleteBranchFunc: func(ctx context.Context, branchID string) error {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "the main branch cannot be deleted", nil, "c4e2a1b3-6d7f-48e9-0b1c-2d3e4f5a6b7c")
		},
	}
	router := setupTestRouter(mockService)

	req, _ := http.NewRequest("DELETE", "/v1/branches/branch-main", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestMaintenanceHandler_Check(t *testing.T) {
	mockService := &MockConversationService{
		CheckConsistencyFunc: func(ctx context.Context, conversationID string) (tree.Report, error) {
			return tree.Report{
				Violations: []tree.Violation{
					{Kind: tree.ViolationOrphanMessage, MessageID: "msg-9", Detail: "message has no tree edge"},
				},
			}, nil
		},
	}
	router := setupTestRouter(mockService)

	req, _ := http.NewRequest("POST", "/v1/conversations/conv-123/maintenance/check", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["healthy"] != false {
		t.Errorf("Expected healthy=false, got %v", response["healthy"])
	}
}
