package reassembly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/headerstore"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/trace"
)

func bytesOf(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestCompletionAcrossFrag1AndFragN(t *testing.T) {
	var completedBody []byte
	var completedKey Key
	completed := false

	eng := New(DefaultConfig(), trace.Hooks{}, func(key Key, body []byte, headers *headerstore.Store) {
		completed = true
		completedKey = key
		completedBody = append([]byte{}, body...)
	})

	key := NewKey([]byte{1}, []byte{2}, 100, 0x55) // expectedTotal = 100-7+48 = 141
	store := headerstore.New()
	store.Insert(headerstore.Header{Kind: headerstore.KindIPv6, Bytes: []byte{0xAA}})

	eng.InsertFrag1(key, bytesOf(48, 'A'), store)
	require.False(t, completed)

	eng.InsertFragN(key, bytesOf(93, 'B'), 0) // actual offset = 0+48 = 48

	require.True(t, completed)
	assert.Equal(t, key, completedKey)
	require.Len(t, completedBody, 141)
	assert.Equal(t, bytesOf(48, 'A'), completedBody[:48])
	assert.Equal(t, bytesOf(93, 'B'), completedBody[48:])
	assert.Equal(t, 0, eng.Len())
}

func TestOverlapKeepsEarliestArrivedBytes(t *testing.T) {
	// expectedTotal = 29 - 7 + 48 = 70
	key := NewKey([]byte{1}, []byte{2}, 29, 0x01)

	completed := false
	var body []byte
	eng := New(DefaultConfig(), trace.Hooks{}, func(k Key, b []byte, h *headerstore.Store) {
		completed = true
		body = append([]byte{}, b...)
	})
	eng.InsertFrag1(key, bytesOf(40, 'A'), nil)
	eng.InsertFragN(key, bytesOf(20, 'B'), 40-48) // actual offset 40, covers [40,60)
	eng.InsertFragN(key, bytesOf(20, 'C'), 50-48) // actual offset 50, covers [50,70), overlaps [50,60)

	require.True(t, completed)
	require.Len(t, body, 70)
	assert.Equal(t, bytesOf(40, 'A'), body[:40])
	assert.Equal(t, bytesOf(20, 'B'), body[40:60], "earlier-arrived B must win the [50,60) overlap")
	assert.Equal(t, bytesOf(10, 'C'), body[60:70], "only C's non-overlapping tail is new")

	assert.Equal(t, 0, eng.Len())
}

func TestLRUEvictionDropsOldestEntry(t *testing.T) {
	var droppedReasons []trace.Reason
	hooks := trace.Hooks{
		Drop: func(reason trace.Reason, device string, ifindex int) {
			droppedReasons = append(droppedReasons, reason)
		},
	}
	eng := New(Config{ListSize: 2, ExpirationTimeout: time.Minute}, hooks, nil)

	k1 := NewKey([]byte{1}, []byte{9}, 1000, 1)
	k2 := NewKey([]byte{2}, []byte{9}, 1000, 2)
	k3 := NewKey([]byte{3}, []byte{9}, 1000, 3)

	eng.InsertFrag1(k1, []byte{0}, nil)
	time.Sleep(time.Millisecond)
	eng.InsertFrag1(k2, []byte{0}, nil)
	time.Sleep(time.Millisecond)
	eng.InsertFrag1(k3, []byte{0}, nil) // should evict k1

	require.Equal(t, 2, eng.Len())
	require.Len(t, droppedReasons, 1)
	assert.Equal(t, trace.FragmentBufferFull, droppedReasons[0])
}

func TestTimeoutDropsEntryAfterExpiration(t *testing.T) {
	dropped := make(chan trace.Reason, 1)
	hooks := trace.Hooks{
		Drop: func(reason trace.Reason, device string, ifindex int) {
			dropped <- reason
		},
	}
	eng := New(Config{ListSize: 0, ExpirationTimeout: 20 * time.Millisecond}, hooks, nil)

	key := NewKey([]byte{1}, []byte{2}, 1000, 7)
	eng.InsertFrag1(key, []byte{0}, nil) // far too small to complete

	select {
	case reason := <-dropped:
		assert.Equal(t, trace.FragmentTimeout, reason)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for FragmentTimeout drop trace")
	}
	assert.Equal(t, 0, eng.Len())
}
