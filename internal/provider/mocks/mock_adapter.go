// Package mocks holds gomock-generated doubles for internal/provider's
// exported interfaces, hand-maintained in the same shape mockgen would
// emit since this module vendors no code-generation step.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	gomock "go.uber.org/mock/gomock"

	domain "govtoken-analytics/internal/domain"
	provider "govtoken-analytics/internal/provider"
)

// MockProviderAdapter is a mock of the ProviderAdapter interface.
type MockProviderAdapter struct {
	ctrl     *gomock.Controller
	recorder *MockProviderAdapterMockRecorder
}

// MockProviderAdapterMockRecorder is the mock recorder for MockProviderAdapter.
type MockProviderAdapterMockRecorder struct {
	mock *MockProviderAdapter
}

// NewMockProviderAdapter creates a new mock instance.
func NewMockProviderAdapter(ctrl *gomock.Controller) *MockProviderAdapter {
	mock := &MockProviderAdapter{ctrl: ctrl}
	mock.recorder = &MockProviderAdapterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockProviderAdapter) EXPECT() *MockProviderAdapterMockRecorder {
	return m.recorder
}

// SourceID mocks base method.
func (m *MockProviderAdapter) SourceID() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SourceID")
	ret0, _ := ret[0].(string)
	return ret0
}

// SourceID indicates an expected call of SourceID.
func (mr *MockProviderAdapterMockRecorder) SourceID() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SourceID", reflect.TypeOf((*MockProviderAdapter)(nil).SourceID))
}

// FetchHolders mocks base method.
func (m *MockProviderAdapter) FetchHolders(ctx context.Context, protocol domain.ProtocolID, limit int, cursor string) (provider.HolderPage, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchHolders", ctx, protocol, limit, cursor)
	ret0, _ := ret[0].(provider.HolderPage)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchHolders indicates an expected call of FetchHolders.
func (mr *MockProviderAdapterMockRecorder) FetchHolders(ctx, protocol, limit, cursor any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchHolders", reflect.TypeOf((*MockProviderAdapter)(nil).FetchHolders), ctx, protocol, limit, cursor)
}

// FetchProposals mocks base method.
func (m *MockProviderAdapter) FetchProposals(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Proposal, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchProposals", ctx, protocol, since, until)
	ret0, _ := ret[0].([]domain.Proposal)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchProposals indicates an expected call of FetchProposals.
func (mr *MockProviderAdapterMockRecorder) FetchProposals(ctx, protocol, since, until any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchProposals", reflect.TypeOf((*MockProviderAdapter)(nil).FetchProposals), ctx, protocol, since, until)
}

// FetchVotes mocks base method.
func (m *MockProviderAdapter) FetchVotes(ctx context.Context, proposal domain.ProposalKey) ([]domain.Vote, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchVotes", ctx, proposal)
	ret0, _ := ret[0].([]domain.Vote)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchVotes indicates an expected call of FetchVotes.
func (mr *MockProviderAdapterMockRecorder) FetchVotes(ctx, proposal any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchVotes", reflect.TypeOf((*MockProviderAdapter)(nil).FetchVotes), ctx, proposal)
}

// FetchDelegations mocks base method.
func (m *MockProviderAdapter) FetchDelegations(ctx context.Context, protocol domain.ProtocolID, since, until time.Time) ([]domain.Delegation, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchDelegations", ctx, protocol, since, until)
	ret0, _ := ret[0].([]domain.Delegation)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchDelegations indicates an expected call of FetchDelegations.
func (mr *MockProviderAdapterMockRecorder) FetchDelegations(ctx, protocol, since, until any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchDelegations", reflect.TypeOf((*MockProviderAdapter)(nil).FetchDelegations), ctx, protocol, since, until)
}
