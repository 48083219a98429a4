package dfs_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"dfs-go/internal/dfs"
	"dfs-go/internal/testutil"
)

func newTestRegistry() *dfs.PeerRegistry {
	return dfs.NewPeerRegistry(dfs.NewNopLogger(), testutil.FixedClock(), dfs.NopMetrics{})
}

func peerIDs(peers []dfs.StoragePeer) []string {
	ids := make([]string, len(peers))
	for i, p := range peers {
		ids[i] = p.ID()
	}
	return ids
}

func TestPeerRegistry_Register(t *testing.T) {
	t.Run("adds healthy peer", func(t *testing.T) {
		r := newTestRegistry()
		if !r.Register("node1", testutil.NewFakePeer("node1")) {
			t.Fatal("Register() = false for healthy peer")
		}
		if _, ok := r.Get("node1"); !ok {
			t.Error("Get() did not find registered peer")
		}
	})

	t.Run("omits unhealthy peer", func(t *testing.T) {
		r := newTestRegistry()
		p := testutil.NewFakePeer("node1")
		p.SetHealthy(false)

		if r.Register("node1", p) {
			t.Error("Register() = true for unhealthy peer")
		}
		if r.Len() != 0 {
			t.Errorf("Len() = %d, want 0", r.Len())
		}
	})

	t.Run("omits unreachable peer", func(t *testing.T) {
		r := newTestRegistry()
		p := testutil.NewFakePeer("node1")
		p.SetHealthErr(errors.New("connection refused"))

		if r.Register("node1", p) {
			t.Error("Register() = true for unreachable peer")
		}
		if _, ok := r.Get("node1"); ok {
			t.Error("Get() found unreachable peer")
		}
	})

	t.Run("replaces handle and keeps position", func(t *testing.T) {
		r := newTestRegistry()
		r.Register("node1", testutil.NewFakePeer("node1"))
		r.Register("node2", testutil.NewFakePeer("node2"))

		replacement := testutil.NewFakePeer("node1")
		r.Register("node1", replacement)

		got, _ := r.Get("node1")
		if got != replacement {
			t.Error("Get() did not return the replacement handle")
		}
		ids := r.IDs()
		if len(ids) != 2 || ids[0] != "node1" || ids[1] != "node2" {
			t.Errorf("IDs() = %v, want [node1 node2]", ids)
		}
	})

	t.Run("unhealthy replacement drops old handle", func(t *testing.T) {
		r := newTestRegistry()
		r.Register("node1", testutil.NewFakePeer("node1"))
		r.Register("node2", testutil.NewFakePeer("node2"))

		replacement := testutil.NewFakePeer("node1")
		replacement.SetHealthErr(errors.New("connection refused"))
		if r.Register("node1", replacement) {
			t.Fatal("Register() = true for unreachable replacement")
		}

		if _, ok := r.Get("node1"); ok {
			t.Error("Get() still returns the old node1 handle")
		}
		if ids := r.IDs(); len(ids) != 1 || ids[0] != "node2" {
			t.Errorf("IDs() = %v, want [node2]", ids)
		}
		if got := peerIDs(r.SelectForWrite(2)); len(got) != 1 || got[0] != "node2" {
			t.Errorf("SelectForWrite(2) = %v, want [node2]", got)
		}
	})
}

func TestPeerRegistry_SelectForWrite(t *testing.T) {
	t.Run("returns up to count in registration order", func(t *testing.T) {
		r := newTestRegistry()
		for _, id := range []string{"node1", "node2", "node3"} {
			r.Register(id, testutil.NewFakePeer(id))
		}

		got := peerIDs(r.SelectForWrite(2))
		if len(got) != 2 || got[0] != "node1" || got[1] != "node2" {
			t.Errorf("SelectForWrite(2) = %v, want [node1 node2]", got)
		}
	})

	t.Run("skips peers that became unhealthy", func(t *testing.T) {
		r := newTestRegistry()
		peers := map[string]*testutil.FakePeer{}
		for _, id := range []string{"node1", "node2", "node3"} {
			peers[id] = testutil.NewFakePeer(id)
			r.Register(id, peers[id])
		}
		peers["node1"].SetHealthy(false)
		peers["node3"].SetHealthErr(errors.New("timeout"))

		got := peerIDs(r.SelectForWrite(3))
		if len(got) != 1 || got[0] != "node2" {
			t.Errorf("SelectForWrite(3) = %v, want [node2]", got)
		}
	})

	t.Run("does not check beyond count", func(t *testing.T) {
		r := newTestRegistry()
		var peers []*testutil.FakePeer
		for _, id := range []string{"node1", "node2", "node3"} {
			p := testutil.NewFakePeer(id)
			r.Register(id, p)
			peers = append(peers, p)
		}
		before := peers[2].Calls("health")

		r.SelectForWrite(2)

		if peers[2].Calls("health") != before {
			t.Error("third peer was checked although two were already selected")
		}
	})

	t.Run("empty registry", func(t *testing.T) {
		if got := newTestRegistry().SelectForWrite(3); len(got) != 0 {
			t.Errorf("SelectForWrite(3) = %v, want none", peerIDs(got))
		}
	})
}

func TestPeerRegistry_IsHealthy(t *testing.T) {
	r := newTestRegistry()
	p := testutil.NewFakePeer("node1")
	r.Register("node1", p)

	if !r.IsHealthy("node1") {
		t.Error("IsHealthy() = false for healthy peer")
	}
	p.SetHealthErr(errors.New("broken pipe"))
	if r.IsHealthy("node1") {
		t.Error("IsHealthy() = true after health error")
	}
	if r.IsHealthy("unknown") {
		t.Error("IsHealthy() = true for unknown peer")
	}
}

func TestPeerRegistry_Status(t *testing.T) {
	clock := testutil.FixedClock()
	r := dfs.NewPeerRegistry(dfs.NewNopLogger(), clock, dfs.NopMetrics{})
	up := testutil.NewFakePeer("node1")
	down := testutil.NewFakePeer("node2")
	r.Register("node1", up)
	r.Register("node2", down)
	down.SetHealthy(false)
	clock.Advance(time.Minute)

	statuses := r.Status()
	if len(statuses) != 2 {
		t.Fatalf("len(Status()) = %d, want 2", len(statuses))
	}
	if !statuses[0].Healthy || statuses[0].FreeSpace <= 0 {
		t.Errorf("Status()[0] = %+v, want healthy with free space", statuses[0])
	}
	if statuses[1].Healthy || statuses[1].FreeSpace != -1 {
		t.Errorf("Status()[1] = %+v, want unhealthy with unknown free space", statuses[1])
	}
	if !statuses[0].CheckedAt.Equal(clock.Now()) {
		t.Errorf("CheckedAt = %v, want %v", statuses[0].CheckedAt, clock.Now())
	}
}

func TestPeerRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry()
	for _, id := range []string{"node1", "node2", "node3"} {
		r.Register(id, testutil.NewFakePeer(id))
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				r.Register("node4", testutil.NewFakePeer("node4"))
			}
			r.SelectForWrite(2)
			r.Get("node2")
			r.IsHealthy("node3")
		}(i)
	}
	wg.Wait()

	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}
}
