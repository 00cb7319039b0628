// Package centralmock holds a hand-maintained equivalent of what `mockgen -source=central.go
// -destination=centralmock/mock_transport.go` would generate for the central.Transport interface.
// Kept checked in rather than regenerated at build time, matching how the teacher's own mocks
// package is committed rather than produced by go:generate at test time.
package centralmock

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/mock/gomock"
)

// MockTransport is a mock of the central.Transport interface.
type MockTransport struct {
	ctrl     *gomock.Controller
	recorder *MockTransportMockRecorder
}

// MockTransportMockRecorder is the mock recorder for MockTransport.
type MockTransportMockRecorder struct {
	mock *MockTransport
}

// NewMockTransport creates a new mock instance.
func NewMockTransport(ctrl *gomock.Controller) *MockTransport {
	mock := &MockTransport{ctrl: ctrl}
	mock.recorder = &MockTransportMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransport) EXPECT() *MockTransportMockRecorder {
	return m.recorder
}

// Receive mocks base method.
func (m *MockTransport) Receive() <-chan []byte {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Receive")
	ret0, _ := ret[0].(<-chan []byte)
	return ret0
}

// Receive indicates an expected call of Receive.
func (mr *MockTransportMockRecorder) Receive() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Receive", reflect.TypeOf((*MockTransport)(nil).Receive))
}

// Send mocks base method.
func (m *MockTransport) Send(ctx context.Context, frame []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", ctx, frame)
	ret0, _ := ret[0].(error)
	return ret0
}

// Send indicates an expected call of Send.
func (mr *MockTransportMockRecorder) Send(ctx, frame interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockTransport)(nil).Send), ctx, frame)
}

// Close mocks base method.
func (m *MockTransport) Close() {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Close")
}

// Close indicates an expected call of Close.
func (mr *MockTransportMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockTransport)(nil).Close))
}

// RetryInterval mocks base method.
func (m *MockTransport) RetryInterval() time.Duration {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RetryInterval")
	ret0, _ := ret[0].(time.Duration)
	return ret0
}

// RetryInterval indicates an expected call of RetryInterval.
func (mr *MockTransportMockRecorder) RetryInterval() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RetryInterval", reflect.TypeOf((*MockTransport)(nil).RetryInterval))
}

// Challenge mocks base method.
func (m *MockTransport) Challenge() <-chan []byte {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Challenge")
	ret0, _ := ret[0].(<-chan []byte)
	return ret0
}

// Challenge indicates an expected call of Challenge.
func (mr *MockTransportMockRecorder) Challenge() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Challenge", reflect.TypeOf((*MockTransport)(nil).Challenge))
}
