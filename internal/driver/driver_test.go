package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	rerr "ralph/internal/errors"
)

func TestTranslateCompletedContinues(t *testing.T) {
	stop, reason, exit := translate(rerr.ExitOK)
	require.False(t, stop)
	require.Equal(t, StopNone, reason)
	require.Equal(t, 0, exit)
}

func TestTranslateNoRunnableTaskStopsDone(t *testing.T) {
	stop, reason, _ := translate(rerr.ExitNoRunnableTask)
	require.True(t, stop)
	require.Equal(t, StopDone, reason)
}

func TestTranslateHumanRequired(t *testing.T) {
	stop, reason, _ := translate(rerr.ExitHumanRequired)
	require.True(t, stop)
	require.Equal(t, StopHuman, reason)
}

func TestTranslateDependencyGate(t *testing.T) {
	for _, code := range []rerr.ExitCode{rerr.ExitDependencyGate, rerr.ExitExplicitTaskMismatch} {
		stop, reason, _ := translate(code)
		require.True(t, stop)
		require.Equal(t, StopDependencies, reason)
	}
}

func TestTranslateBlockedCodes(t *testing.T) {
	for _, code := range []rerr.ExitCode{rerr.ExitMissingResult, rerr.ExitAttemptLimit, rerr.ExitContextRequired} {
		stop, reason, _ := translate(code)
		require.True(t, stop)
		require.Equal(t, StopBlocked, reason)
	}
}

func TestTranslateProgressContinues(t *testing.T) {
	stop, reason, _ := translate(rerr.ExitProgressNotDone)
	require.False(t, stop)
	require.Equal(t, StopNone, reason)
}

func TestTranslateCancelled(t *testing.T) {
	stop, reason, exit := translate(rerr.ExitCancelled)
	require.True(t, stop)
	require.Equal(t, StopCancelled, reason)
	require.Equal(t, 130, exit)
}

func TestTranslateHardFailureBelowTen(t *testing.T) {
	stop, reason, exit := translate(rerr.ExitGenericFailure)
	require.True(t, stop)
	require.Equal(t, StopFailure, reason)
	require.Equal(t, 1, exit)
}

func TestTranslateUnknownSoftFailureContinues(t *testing.T) {
	stop, reason, _ := translate(rerr.ExitCode(42))
	require.False(t, stop)
	require.Equal(t, StopNone, reason)
}
