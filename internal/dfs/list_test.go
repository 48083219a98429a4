package dfs_test

import (
	"testing"

	"dfs-go/internal/dfs"
)

func TestCoordinator_List(t *testing.T) {
	t.Run("empty root", func(t *testing.T) {
		env := newTestEnv(t, 2, "node1", "node2")

		listing, err := env.coord.List("/user1", env.alice.ID)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(listing.Directories) != 0 || len(listing.Files) != 0 {
			t.Errorf("listing = %+v, want empty", listing)
		}
	})

	t.Run("immediate children only", func(t *testing.T) {
		env := newTestEnv(t, 2, "node1", "node2")
		env.upload(t, "/user1/top.txt", "t", env.alice.ID)
		env.upload(t, "/user1/docs/inner.txt", "i", env.alice.ID)
		env.coord.CreateDirectories([]string{"/user1/pics/2024"}, env.alice.ID)

		listing, err := env.coord.List("/user1", env.alice.ID)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(listing.Directories) != 2 {
			t.Errorf("len(Directories) = %d, want 2", len(listing.Directories))
		}
		if len(listing.Files) != 1 || listing.Files[0].Name != "top.txt" {
			t.Errorf("Files = %+v, want [top.txt]", listing.Files)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		env := newTestEnv(t, 2, "node1", "node2")

		_, err := env.coord.List("/user1/nope", env.alice.ID)
		assertKind(t, err, dfs.ErrNotFound)
	})

	t.Run("foreign namespace", func(t *testing.T) {
		env := newTestEnv(t, 2, "node1", "node2")

		_, err := env.coord.List("/user2", env.alice.ID)
		assertKind(t, err, dfs.ErrValidation)
	})
}
