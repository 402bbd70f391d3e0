package duplexrpc_test

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crtv-io/duplexrpc"
)

func newPipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func TestEchoReverseViaFunc(t *testing.T) {
	serverSide, clientSide := newPipe(t)

	server := duplexrpc.ConnectJSONRPC(serverSide, duplexrpc.Handlers{
		"echo": duplexrpc.Func(func(s string) string { return reverseString(s) }),
	}, nil)
	t.Cleanup(func() { server.Close() })

	client := duplexrpc.ConnectJSONRPC(clientSide, nil, nil)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.Request(ctx, "echo", "hello")
	require.NoError(t, err)
	require.Equal(t, "olleh", result)
}

func TestArityMismatchIsInvalidParams(t *testing.T) {
	serverSide, clientSide := newPipe(t)

	server := duplexrpc.ConnectJSONRPC(serverSide, duplexrpc.Handlers{
		"echo": duplexrpc.Func(func(s string) string { return reverseString(s) }),
	}, nil)
	t.Cleanup(func() { server.Close() })

	client := duplexrpc.ConnectJSONRPC(clientSide, nil, nil)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Request(ctx, "echo", "too", "many")
	require.Error(t, err)

	var peerErr *duplexrpc.PeerError
	require.ErrorAs(t, err, &peerErr)
	require.Equal(t, duplexrpc.ErrorInvalidParams, peerErr.Code)
	require.Equal(t, "Invalid params", peerErr.Message)
	require.Contains(t, peerErr.Data, "echo")
}

func TestGenericHandlerPanicIsServerError(t *testing.T) {
	serverSide, clientSide := newPipe(t)

	server := duplexrpc.ConnectJSONRPC(serverSide, duplexrpc.Handlers{
		"boom": duplexrpc.HandlerFunc(func(w duplexrpc.ResponseWriter, r *duplexrpc.Request) {
			panic("kaboom")
		}),
	}, nil)
	t.Cleanup(func() { server.Close() })

	client := duplexrpc.ConnectJSONRPC(clientSide, nil, nil)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Request(ctx, "boom")
	require.Error(t, err)

	var peerErr *duplexrpc.PeerError
	require.ErrorAs(t, err, &peerErr)
	require.Equal(t, duplexrpc.ErrorServer, peerErr.Code)
}

func TestMethodNotFound(t *testing.T) {
	serverSide, clientSide := newPipe(t)

	server := duplexrpc.ConnectJSONRPC(serverSide, duplexrpc.Handlers{}, nil)
	t.Cleanup(func() { server.Close() })

	client := duplexrpc.ConnectJSONRPC(clientSide, nil, nil)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Request(ctx, "nope")
	require.Error(t, err)

	var peerErr *duplexrpc.PeerError
	require.ErrorAs(t, err, &peerErr)
	require.Equal(t, duplexrpc.ErrorMethodNotFound, peerErr.Code)
}

func TestHandlerInitiatedCloseConnection(t *testing.T) {
	serverSide, clientSide := newPipe(t)

	server := duplexrpc.ConnectJSONRPC(serverSide, duplexrpc.Handlers{
		"bye": duplexrpc.HandlerFunc(func(w duplexrpc.ResponseWriter, r *duplexrpc.Request) {
			duplexrpc.CloseConnection("goodbye")
		}),
	}, nil)
	t.Cleanup(func() { server.Close() })

	client := duplexrpc.ConnectJSONRPC(clientSide, nil, nil)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.Request(ctx, "bye")
	require.NoError(t, err)
	require.Equal(t, "goodbye", result)

	<-server.Done()

	require.Eventually(t, func() bool {
		_, err := client.Request(ctx, "bye")
		return err != nil
	}, 5*time.Second, 10*time.Millisecond, "requests must fail once the peer has closed the connection")
}

func TestBidirectionalNotifications(t *testing.T) {
	serverSide, clientSide := newPipe(t)

	var (
		mu       sync.Mutex
		received strings.Builder
		done     = make(chan struct{})
	)

	message := "hi"
	server := duplexrpc.ConnectJSONRPC(serverSide, duplexrpc.Handlers{
		"start": duplexrpc.HandlerFunc(func(w duplexrpc.ResponseWriter, r *duplexrpc.Request) {
			go func() {
				for _, ch := range message {
					r.Conn.Notify("char", string(ch))
				}
				r.Conn.Notify("done")
			}()
			w.WriteMessage(nil)
		}),
	}, nil)
	t.Cleanup(func() { server.Close() })

	client := duplexrpc.ConnectJSONRPC(clientSide, nil, duplexrpc.Handlers{
		"char": duplexrpc.HandlerFunc(func(w duplexrpc.ResponseWriter, r *duplexrpc.Request) {
			mu.Lock()
			received.WriteString(r.Params[0].(string))
			mu.Unlock()
		}),
		"done": duplexrpc.HandlerFunc(func(w duplexrpc.ResponseWriter, r *duplexrpc.Request) {
			close(done)
		}),
	})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Request(ctx, "start")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("did not receive all notifications in time")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, message, received.String())
}
