package usecase_test

import (
	"context"
	"sync"

	"github.com/secmon-lab/slackdir/pkg/domain/model"
)

// mockSyncClient serves Slack users per workspace and counts calls
type mockSyncClient struct {
	mu         sync.Mutex
	users      map[string][]*model.SlackUser
	err        error
	fetchAll   int
	fetchUsers int
}

func newMockSyncClient() *mockSyncClient {
	return &mockSyncClient{users: make(map[string][]*model.SlackUser)}
}

func (m *mockSyncClient) set(workspaceID string, users ...*model.SlackUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[workspaceID] = users
}

func (m *mockSyncClient) FetchAllUsers(_ context.Context, workspaceID string) ([]*model.SlackUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchAll++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*model.SlackUser, len(m.users[workspaceID]))
	for i, u := range m.users[workspaceID] {
		out[i] = u.Clone()
	}
	return out, nil
}

func (m *mockSyncClient) FetchUser(_ context.Context, workspaceID string, userID model.SlackUserID) (*model.SlackUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchUsers++
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users[workspaceID] {
		if u.ID == userID {
			return u.Clone(), nil
		}
	}
	return nil, nil
}

// mockSyncer records requested workspaces
type mockSyncer struct {
	mu     sync.Mutex
	synced []string
}

func (m *mockSyncer) SyncWorkspace(_ context.Context, workspaceID string) (*model.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, workspaceID)
	return &model.SyncResult{SyncID: "sync-1", WorkspaceID: workspaceID}, nil
}

func newUser(ws, id, name string) *model.SlackUser {
	return &model.SlackUser{WorkspaceID: ws, ID: model.SlackUserID(id), Name: name, IsActive: true}
}

func newRegistry(ids ...string) *model.WorkspaceRegistry {
	reg := model.NewWorkspaceRegistry()
	for _, id := range ids {
		reg.Register(&model.WorkspaceEntry{Workspace: model.Workspace{ID: id, Name: "ws-" + id}})
	}
	return reg
}
