package duplexrpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drainWithTimeout(t *testing.T, d *jsonFramelessDecoder) []item {
	t.Helper()
	done := make(chan []item, 1)
	go func() { done <- d.Drain() }()
	select {
	case items := <-done:
		return items
	case <-time.After(2 * time.Second):
		t.Fatal("Drain did not return in time")
		return nil
	}
}

func TestJSONFramelessDecodesConcatenatedValues(t *testing.T) {
	d := newJSONFramelessDecoder(nil)
	var got []item

	got = append(got, d.Feed([]byte(`{"jsonrpc":"2.0","method":"a"}`))...)
	// give the background decode goroutine a moment to produce the item
	require.Eventually(t, func() bool {
		got = append(got, d.drainAvailable()...)
		return len(got) == 1
	}, time.Second, time.Millisecond)

	got = append(got, d.Feed([]byte(`{"jsonrpc":"2.0","method":"b"}`))...)
	require.Eventually(t, func() bool {
		got = append(got, d.drainAvailable()...)
		return len(got) == 2
	}, time.Second, time.Millisecond)

	require.Equal(t, "a", got[0].message["method"])
	require.Equal(t, "b", got[1].message["method"])

	items := drainWithTimeout(t, d)
	require.Empty(t, items)
}

func TestJSONFramelessCleanEOFEmitsNoItem(t *testing.T) {
	d := newJSONFramelessDecoder(nil)
	var got []item
	got = append(got, d.Feed([]byte(`{"jsonrpc":"2.0","method":"only"}`))...)
	require.Eventually(t, func() bool {
		got = append(got, d.drainAvailable()...)
		return len(got) == 1
	}, time.Second, time.Millisecond)

	items := drainWithTimeout(t, d)
	require.Empty(t, items, "a clean end of stream must not itself be reported as an error")
}

func TestJSONFramelessMidValueEOFIsTrailingGarbage(t *testing.T) {
	d := newJSONFramelessDecoder(nil)
	d.Feed([]byte(`{"jsonrpc":"2.0","method":`))

	items := drainWithTimeout(t, d)
	require.Len(t, items, 1)
	require.Equal(t, ErrTrailingGarbage, items[0].parseErr.Kind)
	require.False(t, items[0].parseErr.Irrecoverable)
}

func TestJSONFramelessSyntaxErrorIsInvalidJSON(t *testing.T) {
	d := newJSONFramelessDecoder(nil)
	d.Feed([]byte(`not json at all`))

	items := drainWithTimeout(t, d)
	require.Len(t, items, 1)
	require.Equal(t, ErrInvalidJSON, items[0].parseErr.Kind)
	require.True(t, items[0].parseErr.Irrecoverable)
}

func TestJSONFramelessKeyFn(t *testing.T) {
	d := newJSONFramelessDecoder(func(k string) string {
		if k == "Method" {
			return "method"
		}
		return k
	})
	d.Feed([]byte(`{"jsonrpc":"2.0","Method":"ping"}`))

	var got []item
	require.Eventually(t, func() bool {
		got = append(got, d.drainAvailable()...)
		return len(got) == 1
	}, time.Second, time.Millisecond)

	require.Equal(t, "ping", got[0].message["method"])
}
