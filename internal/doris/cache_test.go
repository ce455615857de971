package doris

import "testing"

type fakeReleaser struct {
	released []*Connection
}

func (f *fakeReleaser) ReleaseConnection(conn *Connection) {
	f.released = append(f.released, conn)
}

func testConn(id, sessionID string) *Connection {
	return &Connection{id: id, sessionID: sessionID}
}

func TestCachePinsReservedSessions(t *testing.T) {
	pool := &fakeReleaser{}
	cache := NewSessionCache(pool)

	conn := testConn("c1", SessionSystem)
	cache.Save(SessionSystem, conn)

	if len(pool.released) != 0 {
		t.Fatal("reserved-session connection should be cached, not released")
	}
	if got := cache.Get(SessionSystem); got != conn {
		t.Fatalf("Get = %v, want the cached connection", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d", cache.Len())
	}
}

func TestCacheReleasesUserSessionsByDefault(t *testing.T) {
	pool := &fakeReleaser{}
	cache := NewSessionCache(pool)

	conn := testConn("c1", "user-abc")
	if cache.Save("user-abc", conn) {
		t.Fatal("user session must not be cached by default")
	}

	if len(pool.released) != 0 {
		t.Error("rejected save must not touch the pool; the caller still owns the connection")
	}
	if cache.Get("user-abc") != nil {
		t.Error("rejected session found in the cache")
	}
}

func TestCacheUserCachingOptIn(t *testing.T) {
	pool := &fakeReleaser{}
	cache := NewSessionCache(pool, WithUserCaching(true))

	conn := testConn("c1", "user-abc")
	cache.Save("user-abc", conn)
	if cache.Get("user-abc") != conn {
		t.Error("user caching enabled but connection not cached")
	}
}

func TestCacheSystemCachingOptOut(t *testing.T) {
	pool := &fakeReleaser{}
	cache := NewSessionCache(pool, WithSystemCaching(false))

	if cache.Save(SessionQuery, testConn("c1", SessionQuery)) {
		t.Error("system caching disabled but connection kept")
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d", cache.Len())
	}
}

func TestCacheSaveReplacesPrevious(t *testing.T) {
	pool := &fakeReleaser{}
	cache := NewSessionCache(pool)

	first := testConn("c1", SessionQuery)
	second := testConn("c2", SessionQuery)
	cache.Save(SessionQuery, first)
	cache.Save(SessionQuery, second)

	if len(pool.released) != 1 || pool.released[0] != first {
		t.Fatal("previous cached connection should be released on replace")
	}
	if cache.Get(SessionQuery) != second {
		t.Error("replacement connection not cached")
	}
}

func TestCacheRemoveTransfersOwnership(t *testing.T) {
	pool := &fakeReleaser{}
	cache := NewSessionCache(pool)

	conn := testConn("c1", SessionSystem)
	cache.Save(SessionSystem, conn)

	if got := cache.Remove(SessionSystem); got != conn {
		t.Fatalf("Remove = %v, want the cached connection back", got)
	}
	if cache.Get(SessionSystem) != nil {
		t.Error("removed session still cached")
	}
	if len(pool.released) != 0 {
		t.Errorf("released = %d, want 0; remove evicts only", len(pool.released))
	}
	if got := cache.Remove(SessionSystem); got != nil {
		t.Errorf("second Remove = %v, want nil", got)
	}
}

func TestCacheClearReleasesEverything(t *testing.T) {
	pool := &fakeReleaser{}
	cache := NewSessionCache(pool, WithUserCaching(true))

	cache.Save(SessionSystem, testConn("c1", SessionSystem))
	cache.Save("user-a", testConn("c2", "user-a"))

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear = %d", cache.Len())
	}
	if len(pool.released) != 2 {
		t.Errorf("released after Clear = %d, want 2", len(pool.released))
	}
}

func TestCacheDropsClosedConnections(t *testing.T) {
	pool := &fakeReleaser{}
	cache := NewSessionCache(pool)

	conn := testConn("c1", SessionSystem)
	conn.closed = true
	cache.Save(SessionSystem, conn)

	if cache.Get(SessionSystem) != nil {
		t.Error("closed connection must not be returned")
	}
	if len(pool.released) != 1 || pool.released[0] != conn {
		t.Error("evicted closed connection must go back to the pool")
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d", cache.Len())
	}
}
