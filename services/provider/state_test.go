package provider

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
)

func TestStateMachine_ConnectLifecycle(t *testing.T) {
	sm := NewStateMachine()
	assert.Equal(t, enum.ConnectionDisconnected, sm.State())

	require.NoError(t, sm.BeginConnect())
	assert.Equal(t, enum.ConnectionConnecting, sm.State())

	sm.ConnectSucceeded()
	assert.Equal(t, enum.ConnectionConnected, sm.State())
}

func TestStateMachine_ConcurrentConnectRejected(t *testing.T) {
	sm := NewStateMachine()
	require.NoError(t, sm.BeginConnect())

	err := sm.BeginConnect()
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyConnecting))

	sm.ConnectSucceeded()
	err = sm.BeginConnect()
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyConnected))
}

func TestStateMachine_ErrorIsRecoverable(t *testing.T) {
	sm := NewStateMachine()
	require.NoError(t, sm.BeginConnect())
	sm.ConnectFailed()
	assert.Equal(t, enum.ConnectionError, sm.State())

	// error state accepts a fresh connect
	require.NoError(t, sm.BeginConnect())
	sm.ConnectSucceeded()
	assert.Equal(t, enum.ConnectionConnected, sm.State())
}

func TestStateMachine_DisconnectFromAnyState(t *testing.T) {
	sm := NewStateMachine()
	sm.Disconnected()
	assert.Equal(t, enum.ConnectionDisconnected, sm.State())

	require.NoError(t, sm.BeginConnect())
	sm.Disconnected()
	assert.Equal(t, enum.ConnectionDisconnected, sm.State())

	require.NoError(t, sm.BeginConnect())
	sm.ConnectSucceeded()
	sm.Disconnected()
	assert.Equal(t, enum.ConnectionDisconnected, sm.State())
}

func TestStateMachine_RequireConnected(t *testing.T) {
	sm := NewStateMachine()
	err := sm.RequireConnected()
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotConnected, apperrors.KindOf(err))

	require.NoError(t, sm.BeginConnect())
	sm.ConnectSucceeded()
	assert.NoError(t, sm.RequireConnected())
}
