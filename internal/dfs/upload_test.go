package dfs_test

import (
	"errors"
	"slices"
	"testing"

	"dfs-go/internal/dfs"
)

func TestCoordinator_Upload(t *testing.T) {
	t.Run("stores on replicaCount peers", func(t *testing.T) {
		env := newTestEnv(t, 3, "node1", "node2", "node3", "node4")

		res := env.upload(t, "/user1/docs/a.txt", "hello", env.alice.ID)

		if !slices.Equal(res.PeerIDs, []string{"node1", "node2", "node3"}) {
			t.Errorf("PeerIDs = %v, want [node1 node2 node3]", res.PeerIDs)
		}
		for i, p := range env.peers {
			want := i < 3
			if got := p.Len() == 1; got != want {
				t.Errorf("peer %s holds blob = %v, want %v", p.ID(), got, want)
			}
		}

		file, err := env.db.FindFileByPathAndOwner("/user1/docs/a.txt", env.alice.ID)
		if err != nil || file == nil {
			t.Fatalf("FindFileByPathAndOwner() = %v, %v", file, err)
		}
		if file.Size != 5 || file.Name != "a.txt" {
			t.Errorf("file = %+v, want size 5 named a.txt", file)
		}
		if dir, _ := env.db.FindDirectoryByPath("/user1/docs", env.alice.ID); dir == nil {
			t.Error("parent directory was not created")
		}
	})

	t.Run("two healthy peers of three", func(t *testing.T) {
		env := newTestEnv(t, 3, "node1", "node2", "node3")
		env.peers[1].SetHealthy(false)

		res := env.upload(t, "/user1/a.txt", "data", env.alice.ID)

		if !slices.Equal(res.PeerIDs, []string{"node1", "node3"}) {
			t.Errorf("PeerIDs = %v, want [node1 node3]", res.PeerIDs)
		}
		replicas, _ := env.db.FindReplicaPeerIDs(res.FileID)
		if !slices.Equal(replicas, []string{"node1", "node3"}) {
			t.Errorf("recorded replicas = %v, want [node1 node3]", replicas)
		}
		if env.peers[1].Calls("store") != 0 {
			t.Error("unhealthy peer received a store call")
		}
	})

	for _, healthy := range []int{0, 1} {
		t.Run("fails with too few healthy peers", func(t *testing.T) {
			env := newTestEnv(t, 3, "node1", "node2", "node3")
			for _, p := range env.peers[healthy:] {
				p.SetHealthy(false)
			}

			results, err := env.coord.Upload([]string{"/user1/a.txt"}, [][]byte{[]byte("x")}, env.alice.ID)
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if results[0].OK() || results[0].FileID != 0 {
				t.Fatalf("result = %+v, want failed item", results[0])
			}
			assertKind(t, results[0].Err, dfs.ErrPlacement)

			if file, _ := env.db.FindFileByPathAndOwner("/user1/a.txt", env.alice.ID); file != nil {
				replicas, _ := env.db.FindReplicaPeerIDs(file.ID)
				t.Errorf("file record left behind with replicas %v", replicas)
			}
			for _, p := range env.peers {
				if p.Len() != 0 {
					t.Errorf("peer %s holds bytes after failed placement", p.ID())
				}
			}
		})
	}

	t.Run("peer store failure skips that peer", func(t *testing.T) {
		env := newTestEnv(t, 3, "node1", "node2", "node3")
		env.peers[0].FailStore(true)

		res := env.upload(t, "/user1/a.txt", "data", env.alice.ID)

		if !slices.Equal(res.PeerIDs, []string{"node2", "node3"}) {
			t.Errorf("PeerIDs = %v, want [node2 node3]", res.PeerIDs)
		}
	})

	t.Run("fails when every selected peer rejects the bytes", func(t *testing.T) {
		env := newTestEnv(t, 2, "node1", "node2")
		for _, p := range env.peers {
			p.FailStore(true)
		}

		results, _ := env.coord.Upload([]string{"/user1/a.txt"}, [][]byte{[]byte("x")}, env.alice.ID)
		assertKind(t, results[0].Err, dfs.ErrPeerIO)

		if file, _ := env.db.FindFileByPathAndOwner("/user1/a.txt", env.alice.ID); file != nil {
			t.Error("file record left behind")
		}
	})

	t.Run("out-of-namespace item fails alone", func(t *testing.T) {
		env := newTestEnv(t, 3, "node1", "node2", "node3")

		results, err := env.coord.Upload(
			[]string{"/user1/a.txt", "/user2/b.txt"},
			[][]byte{[]byte("a"), []byte("b")},
			env.alice.ID,
		)
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("len(results) = %d, want 2", len(results))
		}
		if !results[0].OK() {
			t.Errorf("first item error = %v", results[0].Err)
		}
		if results[1].OK() {
			t.Error("second item succeeded outside the namespace")
		}
		assertKind(t, results[1].Err, dfs.ErrValidation)
	})

	t.Run("length mismatch rejects the call", func(t *testing.T) {
		env := newTestEnv(t, 3, "node1", "node2", "node3")

		results, err := env.coord.Upload([]string{"/user1/a", "/user1/b"}, [][]byte{[]byte("a")}, env.alice.ID)
		if results != nil {
			t.Errorf("results = %v, want nil", results)
		}
		assertKind(t, err, dfs.ErrValidation)
		if env.peers[0].Calls("store") != 0 {
			t.Error("peer was written despite the rejected call")
		}
	})

	t.Run("existing path fails", func(t *testing.T) {
		env := newTestEnv(t, 3, "node1", "node2", "node3")
		first := env.upload(t, "/user1/a.txt", "v1", env.alice.ID)

		results, _ := env.coord.Upload([]string{"/user1/a.txt"}, [][]byte{[]byte("v2")}, env.alice.ID)
		assertKind(t, results[0].Err, dfs.ErrValidation)

		data, err := env.peers[0].Read(blobKey(first.FileID))
		if err != nil || string(data) != "v1" {
			t.Errorf("original bytes = %q, %v; want v1", data, err)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		env := newTestEnv(t, 2, "node1", "node2")

		results, _ := env.coord.Upload([]string{"/user1/empty"}, [][]byte{nil}, env.alice.ID)
		if !results[0].OK() {
			t.Fatalf("item error = %v", results[0].Err)
		}
		if ok, _ := env.peers[0].Exists(blobKey(results[0].FileID)); !ok {
			t.Error("empty blob not stored")
		}
	})

	t.Run("root path fails", func(t *testing.T) {
		env := newTestEnv(t, 2, "node1", "node2")

		results, _ := env.coord.Upload([]string{"/user1"}, [][]byte{[]byte("x")}, env.alice.ID)
		if !errors.Is(results[0].Err, dfs.ErrValidation) {
			t.Errorf("error = %v, want validation error", results[0].Err)
		}
	})
}
