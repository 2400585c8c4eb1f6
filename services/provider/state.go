package provider

import (
	"sync"

	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
)

// StateMachine guards the adapter connection lifecycle:
// disconnected -> connecting -> connected <-> error. Disconnect is
// reachable from any state and always succeeds locally.
type StateMachine struct {
	mu    sync.Mutex
	state enum.ConnectionState
}

func NewStateMachine() *StateMachine {
	return &StateMachine{state: enum.ConnectionDisconnected}
}

func (s *StateMachine) State() enum.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginConnect moves to connecting. Concurrent connects fail instead
// of racing.
func (s *StateMachine) BeginConnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case enum.ConnectionConnecting:
		return apperrors.ErrAlreadyConnecting
	case enum.ConnectionConnected:
		return apperrors.ErrAlreadyConnected
	}
	s.state = enum.ConnectionConnecting
	return nil
}

func (s *StateMachine) ConnectSucceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = enum.ConnectionConnected
}

func (s *StateMachine) ConnectFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = enum.ConnectionError
}

func (s *StateMachine) MarkError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = enum.ConnectionError
}

func (s *StateMachine) Disconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = enum.ConnectionDisconnected
}

// RequireConnected is the guard adapters call before any remote
// operation other than connect.
func (s *StateMachine) RequireConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != enum.ConnectionConnected {
		return apperrors.New(apperrors.KindNotConnected, "adapter is not connected")
	}
	return nil
}
