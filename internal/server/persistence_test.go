package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ito-server/internal/game"
	"ito-server/internal/server"
)

// newTestStore spins up a throwaway Postgres container. Skips when the
// container runtime is unavailable so the rest of the suite still runs.
func newTestStore(t *testing.T) *server.RoomStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ito_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("skipping: could not start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := server.NewRoomStore(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return store
}

func newStoredGame(t *testing.T, code string) *game.Game {
	t.Helper()
	g, err := game.NewGame(code, []string{"Alice", "Bob"}, 2)
	require.NoError(t, err)
	return g
}

func TestNewRoomStoreEmptyURLDisablesPersistence(t *testing.T) {
	store, err := server.NewRoomStore(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, store)
}

func TestSaveAndLoadRoom(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	g := newStoredGame(t, "ABC123")
	require.NoError(t, g.Distribute(game.DefaultPool))
	_, err := g.SubmitOrder([]string{"Alice", "Bob"})
	require.NoError(t, err)

	require.NoError(t, store.SaveRoom(ctx, g))

	loaded, err := store.LoadRoom(ctx, "ABC123")
	require.NoError(t, err)

	assert.Equal(g.RoomCode, loaded.RoomCode)
	assert.Equal(g.Players, loaded.Players)
	assert.Equal(g.MaxRounds, loaded.MaxRounds)
	assert.Equal(g.Status, loaded.Status)
	assert.Equal(g.CardsPerRound[1], loaded.CardsPerRound[1])

	// Round keys survive the JSON round trip as ints.
	result, ok := loaded.Results[1]
	require.True(t, ok)
	assert.Equal(g.Results[1].PlayedOrder, result.PlayedOrder)
	assert.Equal(g.Results[1].CorrectOrder, result.CorrectOrder)
	assert.Equal(g.Results[1].IsCorrect, result.IsCorrect)
}

func TestSaveRoomUpserts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	g := newStoredGame(t, "ABC123")
	require.NoError(t, store.SaveRoom(ctx, g))

	require.NoError(t, g.Distribute(game.DefaultPool))
	require.NoError(t, store.SaveRoom(ctx, g))

	loaded, err := store.LoadRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, game.StatusPlaying, loaded.Status)
}

func TestLoadRoomNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadRoom(context.Background(), "ZZZZ99")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_NOT_FOUND")
}

func TestLoadAllRooms(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveRoom(ctx, newStoredGame(t, "AAAAA1")))
	require.NoError(t, store.SaveRoom(ctx, newStoredGame(t, "BBBBB2")))

	rooms, err := store.LoadAllRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
	assert.Contains(t, rooms, "AAAAA1")
	assert.Contains(t, rooms, "BBBBB2")
}

func TestDeleteRoom(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveRoom(ctx, newStoredGame(t, "ABC123")))
	require.NoError(t, store.DeleteRoom(ctx, "ABC123"))

	_, err := store.LoadRoom(ctx, "ABC123")
	assert.Error(t, err)

	err = store.DeleteRoom(ctx, "ABC123")
	assert.Error(t, err, "deleting twice reports the missing room")
}

func TestCleanupOldRoomsOnlyPrunesFinished(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	active := newStoredGame(t, "ACTIVE")

	finished := newStoredGame(t, "DONE99")
	require.NoError(t, finished.Distribute(game.DefaultPool))
	_, err := finished.SubmitOrder([]string{"Alice", "Bob"})
	require.NoError(t, err)
	require.NoError(t, finished.AdvanceOrFinish())
	_, err = finished.SubmitOrder([]string{"Alice", "Bob"})
	assert.Error(t, err, "round 2 needs a fresh distribution first")
	require.NoError(t, finished.Distribute(game.DefaultPool))
	_, err = finished.SubmitOrder([]string{"Alice", "Bob", "Alice", "Bob"})
	require.NoError(t, err)
	require.NoError(t, finished.AdvanceOrFinish())
	require.Equal(t, game.StatusFinished, finished.Status)

	require.NoError(t, store.SaveRoom(ctx, active))
	require.NoError(t, store.SaveRoom(ctx, finished))

	// Zero age: everything finished is already stale.
	codes, err := store.CleanupOldRooms(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"DONE99"}, codes)

	_, err = store.LoadRoom(ctx, "ACTIVE")
	assert.NoError(t, err)
	_, err = store.LoadRoom(ctx, "DONE99")
	assert.Error(t, err)
}
