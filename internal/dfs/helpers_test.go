package dfs_test

import (
	"errors"
	"testing"

	"dfs-go/internal/database"
	"dfs-go/internal/dfs"
	"dfs-go/internal/model"
	"dfs-go/internal/testutil"
)

// testEnv is a coordinator over an in-memory database and fake peers.
type testEnv struct {
	coord *dfs.Coordinator
	db    *database.SQLiteDatabase
	peers []*testutil.FakePeer
	alice *model.User // id 1, namespace /user1
	bob   *model.User // id 2, namespace /user2
}

// newTestEnv registers one FakePeer per id, in order, and places uploads on up
// to replicaCount of them.
func newTestEnv(t *testing.T, replicaCount int, peerIDs ...string) *testEnv {
	t.Helper()

	db := testutil.NewTestDatabase(t)
	registry := dfs.NewPeerRegistry(dfs.NewNopLogger(), testutil.FixedClock(), dfs.NopMetrics{})

	env := &testEnv{db: db}
	for _, id := range peerIDs {
		p := testutil.NewFakePeer(id)
		registry.Register(id, p)
		env.peers = append(env.peers, p)
	}

	env.coord = dfs.NewCoordinator(db, registry, replicaCount, dfs.NewNopLogger(), dfs.NopMetrics{})
	env.alice = testutil.CreateUser(t, db, "alice", "alice@example.com")
	env.bob = testutil.CreateUser(t, db, "bob", "bob@example.com")
	return env
}

// upload stores data at p as owner and fails the test if the item fails.
func (e *testEnv) upload(t *testing.T, p string, data string, ownerID int64) dfs.UploadResult {
	t.Helper()

	results, err := e.coord.Upload([]string{p}, [][]byte{[]byte(data)}, ownerID)
	if err != nil {
		t.Fatalf("Upload(%s) error = %v", p, err)
	}
	if !results[0].OK() {
		t.Fatalf("Upload(%s) item error = %v", p, results[0].Err)
	}
	return results[0]
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Errorf("error = %v, want kind %v", err, kind)
	}
}

func assertBatchIndex(t *testing.T, err error, index int) {
	t.Helper()
	var batchErr *dfs.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("error = %v, want *dfs.BatchError", err)
	}
	if batchErr.Index != index {
		t.Errorf("BatchError.Index = %d, want %d", batchErr.Index, index)
	}
}
