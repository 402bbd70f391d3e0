package duplexrpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteErrorUsesFixedMessageAndDiagnosticData(t *testing.T) {
	w := newResponseWriter(false)
	require.NoError(t, w.WriteError(ErrorInvalidParams, errors.New("argument 0: cannot use string as int")))

	require.Equal(t, ErrorInvalidParams, w.err.Code)
	require.Equal(t, "Invalid params", w.err.Message)
	require.Equal(t, "argument 0: cannot use string as int", w.err.Data)
}

func TestWriteErrorWithDataOverridesDefaultData(t *testing.T) {
	w := newResponseWriter(false)
	require.NoError(t, w.WriteErrorWithData(ErrorInvalidRequest, errors.New("diagnostic"), map[string]interface{}{"field": "id"}))

	require.Equal(t, "Invalid Request", w.err.Message)
	require.Equal(t, map[string]interface{}{"field": "id"}, w.err.Data)
}

func TestWriteErrorUnknownCodeFallsBackToDiagnosticMessage(t *testing.T) {
	w := newResponseWriter(false)
	require.NoError(t, w.WriteError(-1, errors.New("application specific failure")))

	require.Equal(t, "application specific failure", w.err.Message)
}

func TestWriteErrorOnceOnly(t *testing.T) {
	w := newResponseWriter(false)
	require.NoError(t, w.WriteMessage("first"))
	require.Error(t, w.WriteError(ErrorInternal, errors.New("too late")))
}

func TestWriteErrorRejectedForNotification(t *testing.T) {
	w := newResponseWriter(true)
	require.Error(t, w.WriteError(ErrorInternal, errors.New("nope")))
}
