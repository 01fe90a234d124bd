package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toppsdigital/cardsync/errors"
)

func TestSetAndGet(t *testing.T) {
	s := NewStore()
	s.Set("job|a", "payload", Freshness{Stale: time.Minute, Evict: time.Hour})

	entry, ok := s.Get("job|a")
	require.True(t, ok)
	assert.Equal(t, "payload", entry.Data)
	assert.NoError(t, entry.Err)
	assert.False(t, entry.FetchedAt.IsZero())
	assert.Equal(t, uint64(1), entry.Seq)
}

func TestGetMissing(t *testing.T) {
	s := NewStore()
	_, ok := s.Get("job|missing")
	assert.False(t, ok)
}

func TestStaleness(t *testing.T) {
	s := NewStore()
	s.Set("job|a", "x", Freshness{Stale: 30 * time.Second, Evict: 5 * time.Minute})

	entry, _ := s.Get("job|a")
	now := time.Now()
	assert.False(t, entry.Stale(now))
	assert.True(t, entry.Stale(now.Add(31*time.Second)))
	assert.False(t, entry.Expired(now.Add(31*time.Second)))
	assert.True(t, entry.Expired(now.Add(6*time.Minute)))
}

func TestZeroStaleWindowAlwaysStale(t *testing.T) {
	s := NewStore()
	s.Set("batch|a,b", "x", Freshness{Stale: 0, Evict: 5 * time.Minute})

	entry, _ := s.Get("batch|a,b")
	assert.True(t, entry.Stale(time.Now()))
}

func TestSetErrorKeepsData(t *testing.T) {
	s := NewStore()
	s.Set("job|a", "last-good", Freshness{Stale: time.Minute, Evict: time.Hour})
	s.SetError("job|a", errors.New("gateway down"))

	entry, ok := s.Get("job|a")
	require.True(t, ok)
	assert.Equal(t, "last-good", entry.Data)
	assert.Error(t, entry.Err)
}

func TestSetClearsError(t *testing.T) {
	s := NewStore()
	s.SetError("job|a", errors.New("boom"))
	s.Set("job|a", "fresh", Freshness{Stale: time.Minute, Evict: time.Hour})

	entry, _ := s.Get("job|a")
	assert.NoError(t, entry.Err)
	assert.Equal(t, "fresh", entry.Data)
}

func TestUpdateDoesNotResetFreshness(t *testing.T) {
	s := NewStore()
	s.Set("job|a", 1, Freshness{Stale: time.Minute, Evict: time.Hour})
	before, _ := s.Get("job|a")

	time.Sleep(5 * time.Millisecond)
	changed := s.Update("job|a", func(data interface{}) (interface{}, bool) {
		return data.(int) + 1, true
	})
	require.True(t, changed)

	after, _ := s.Get("job|a")
	assert.Equal(t, 2, after.Data)
	assert.Equal(t, before.FetchedAt, after.FetchedAt, "a patch is not a fetch")
	assert.Equal(t, before.Seq+1, after.Seq)
}

func TestUpdateMissingEntryIsNoop(t *testing.T) {
	s := NewStore()
	changed := s.Update("job|absent", func(data interface{}) (interface{}, bool) {
		return "anything", true
	})
	assert.False(t, changed)
	assert.Equal(t, 0, s.Len())
}

func TestUpdateUnchangedSkipsNotification(t *testing.T) {
	s := NewStore()
	s.Set("job|a", "x", Freshness{Stale: time.Minute, Evict: time.Hour})

	notified := 0
	unsub := s.Subscribe("job|a", func(Key) { notified++ })
	defer unsub()

	s.Update("job|a", func(data interface{}) (interface{}, bool) {
		return data, false
	})
	assert.Equal(t, 0, notified)
}

func TestInvalidateMarksStaleKeepsData(t *testing.T) {
	s := NewStore()
	s.Set("job|a", "keep-me", Freshness{Stale: time.Hour, Evict: 2 * time.Hour})
	s.Invalidate("job|a")

	entry, ok := s.Get("job|a")
	require.True(t, ok)
	assert.Equal(t, "keep-me", entry.Data)
	assert.True(t, entry.Stale(time.Now()))
}

func TestInvalidatePrefix(t *testing.T) {
	s := NewStore()
	fresh := Freshness{Stale: time.Hour, Evict: 2 * time.Hour}
	s.Set("jobs|mine=true|status=", "a", fresh)
	s.Set("jobs|mine=false|status=completed", "b", fresh)
	s.Set("job|x", "untouched", fresh)

	s.InvalidatePrefix("jobs|")

	now := time.Now()
	for _, key := range []Key{"jobs|mine=true|status=", "jobs|mine=false|status=completed"} {
		entry, _ := s.Get(key)
		assert.True(t, entry.Stale(now), "list entry %s should be stale", key)
	}
	detail, _ := s.Get("job|x")
	assert.False(t, detail.Stale(now))
}

func TestSubscribeNotifiesOnWrite(t *testing.T) {
	s := NewStore()

	var gotKey Key
	notified := 0
	unsub := s.Subscribe("job|a", func(key Key) {
		gotKey = key
		notified++
	})

	s.Set("job|a", "x", Freshness{Stale: time.Minute, Evict: time.Hour})
	assert.Equal(t, 1, notified)
	assert.Equal(t, Key("job|a"), gotKey)

	s.Set("job|other", "y", Freshness{Stale: time.Minute, Evict: time.Hour})
	assert.Equal(t, 1, notified, "unrelated key must not notify")

	unsub()
	s.Set("job|a", "z", Freshness{Stale: time.Minute, Evict: time.Hour})
	assert.Equal(t, 1, notified, "unsubscribed listener must not fire")
}

func TestListenerMayCallBackIntoStore(t *testing.T) {
	s := NewStore()
	fresh := Freshness{Stale: time.Minute, Evict: time.Hour}

	unsub := s.Subscribe("job|a", func(key Key) {
		// Re-entrant read; deadlocks if notification runs under the lock.
		_, _ = s.Get(key)
	})
	defer unsub()

	done := make(chan struct{})
	go func() {
		s.Set("job|a", "x", fresh)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener deadlocked against the store lock")
	}
}

func TestSubscribeAll(t *testing.T) {
	s := NewStore()
	fresh := Freshness{Stale: time.Minute, Evict: time.Hour}

	keys := make([]Key, 0)
	unsub := s.SubscribeAll(func(key Key) { keys = append(keys, key) })
	defer unsub()

	s.Set("job|a", 1, fresh)
	s.Set("files|a", 2, fresh)
	assert.Equal(t, []Key{"job|a", "files|a"}, keys)
}

func TestEntriesByPrefixSorted(t *testing.T) {
	s := NewStore()
	fresh := Freshness{Stale: time.Minute, Evict: time.Hour}
	s.Set("jobs|mine=true|status=", "b", fresh)
	s.Set("jobs|mine=false|status=", "a", fresh)
	s.Set("job|x", "c", fresh)

	kvs := s.EntriesByPrefix("jobs|")
	require.Len(t, kvs, 2)
	assert.Equal(t, Key("jobs|mine=false|status="), kvs[0].Key)
	assert.Equal(t, Key("jobs|mine=true|status="), kvs[1].Key)
}

func TestSweepEvictsExpiredOnly(t *testing.T) {
	s := NewStore()
	s.Set("job|old", "x", Freshness{Stale: time.Second, Evict: time.Minute})
	s.Set("job|new", "y", Freshness{Stale: time.Second, Evict: time.Hour})

	removed := s.Sweep(time.Now().Add(30 * time.Minute))
	assert.Equal(t, 1, removed)

	_, oldOK := s.Get("job|old")
	_, newOK := s.Get("job|new")
	assert.False(t, oldOK)
	assert.True(t, newOK)
}

func TestSweepSkipsSubscribedKeys(t *testing.T) {
	s := NewStore()
	s.Set("job|watched", "x", Freshness{Stale: time.Second, Evict: time.Minute})

	unsub := s.Subscribe("job|watched", func(Key) {})
	removed := s.Sweep(time.Now().Add(time.Hour))
	assert.Equal(t, 0, removed)

	unsub()
	removed = s.Sweep(time.Now().Add(time.Hour))
	assert.Equal(t, 1, removed)
}
