// Package mocks holds a gomock-generated double for snapshotstore.Store,
// hand-maintained in the same shape mockgen would emit since this module
// vendors no code-generation step.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	gomock "go.uber.org/mock/gomock"

	domain "govtoken-analytics/internal/domain"
	snapshotstore "govtoken-analytics/internal/snapshotstore"
)

// MockStore is a mock of the Store interface.
type MockStore struct {
	ctrl     *gomock.Controller
	recorder *MockStoreMockRecorder
}

// MockStoreMockRecorder is the mock recorder for MockStore.
type MockStoreMockRecorder struct {
	mock *MockStore
}

// NewMockStore creates a new mock instance.
func NewMockStore(ctrl *gomock.Controller) *MockStore {
	mock := &MockStore{ctrl: ctrl}
	mock.recorder = &MockStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockStore) EXPECT() *MockStoreMockRecorder {
	return m.recorder
}

// Put mocks base method.
func (m *MockStore) Put(ctx context.Context, snapshot domain.Snapshot) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Put", ctx, snapshot)
	ret0, _ := ret[0].(error)
	return ret0
}

// Put indicates an expected call of Put.
func (mr *MockStoreMockRecorder) Put(ctx, snapshot any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Put", reflect.TypeOf((*MockStore)(nil).Put), ctx, snapshot)
}

// Get mocks base method.
func (m *MockStore) Get(ctx context.Context, protocol domain.ProtocolID, ts time.Time) (domain.Snapshot, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, protocol, ts)
	ret0, _ := ret[0].(domain.Snapshot)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// Get indicates an expected call of Get.
func (mr *MockStoreMockRecorder) Get(ctx, protocol, ts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockStore)(nil).Get), ctx, protocol, ts)
}

// Nearest mocks base method.
func (m *MockStore) Nearest(ctx context.Context, protocol domain.ProtocolID, ts time.Time) (domain.Snapshot, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Nearest", ctx, protocol, ts)
	ret0, _ := ret[0].(domain.Snapshot)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// Nearest indicates an expected call of Nearest.
func (mr *MockStoreMockRecorder) Nearest(ctx, protocol, ts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Nearest", reflect.TypeOf((*MockStore)(nil).Nearest), ctx, protocol, ts)
}

// Range mocks base method.
func (m *MockStore) Range(ctx context.Context, protocol domain.ProtocolID, from, to time.Time) ([]domain.Snapshot, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Range", ctx, protocol, from, to)
	ret0, _ := ret[0].([]domain.Snapshot)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Range indicates an expected call of Range.
func (mr *MockStoreMockRecorder) Range(ctx, protocol, from, to any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Range", reflect.TypeOf((*MockStore)(nil).Range), ctx, protocol, from, to)
}

// Series mocks base method.
func (m *MockStore) Series(ctx context.Context, protocol domain.ProtocolID, selector domain.MetricSelector, from, to time.Time) ([]snapshotstore.Point, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Series", ctx, protocol, selector, from, to)
	ret0, _ := ret[0].([]snapshotstore.Point)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Series indicates an expected call of Series.
func (mr *MockStoreMockRecorder) Series(ctx, protocol, selector, from, to any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Series", reflect.TypeOf((*MockStore)(nil).Series), ctx, protocol, selector, from, to)
}
