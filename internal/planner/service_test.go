package planner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/event"
	"planner/internal/invitee"
	"planner/internal/persist/boltdb"
	"planner/internal/scheduler"
	"planner/internal/store"
)

type memRepo struct {
	data  []byte
	saves int
	fail  error
}

func (m *memRepo) Load() ([]byte, error) {
	if m.data == nil {
		return nil, boltdb.ErrNotFound
	}
	return m.data, nil
}

func (m *memRepo) Save(data []byte) error {
	if m.fail != nil {
		return m.fail
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func TestOpenEmpty(t *testing.T) {
	svc, err := Open(&memRepo{}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Read(func(st *store.Store) error {
		assert.Equal(t, 0, st.Events.Len())
		return nil
	}))
	assert.False(t, svc.Dirty())
}

func TestOpenPropagatesDecodeErrors(t *testing.T) {
	_, err := Open(&memRepo{data: []byte(`{"version":"7"}`)}, nil)
	var unrecognized *store.UnrecognizedStoreVersionError
	assert.ErrorAs(t, err, &unrecognized)
}

func TestUpdateAndSnapshot(t *testing.T) {
	repo := &memRepo{}
	svc, err := Open(repo, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Snapshot())
	assert.Equal(t, 0, repo.saves)

	require.NoError(t, svc.Update(func(st *store.Store) error {
		e, err := st.Events.Create("ABC123", "Wizard People")
		if err != nil {
			return err
		}
		e.Invite(invitee.Freeform("frey"))
		return nil
	}))
	assert.True(t, svc.Dirty())
	require.NoError(t, svc.Snapshot())
	assert.Equal(t, 1, repo.saves)
	assert.False(t, svc.Dirty())

	reopened, err := Open(repo, nil)
	require.NoError(t, err)
	require.NoError(t, reopened.Read(func(st *store.Store) error {
		e, err := st.Events.Lookup("abc123")
		require.NoError(t, err)
		assert.Equal(t, "Wizard People", e.Name())
		assert.True(t, e.IsInvited(invitee.Freeform("frey")))
		return nil
	}))
}

func TestFailedUpdateStaysClean(t *testing.T) {
	svc, err := Open(&memRepo{}, nil)
	require.NoError(t, err)

	err = svc.Update(func(st *store.Store) error {
		_, err := st.Events.Lookup("NOPE")
		return err
	})
	var invalid *event.InvalidEventError
	assert.ErrorAs(t, err, &invalid)
	assert.False(t, svc.Dirty())
}

func TestSnapshotFailureKeepsDirty(t *testing.T) {
	repo := &memRepo{fail: errors.New("disk full")}
	svc, err := Open(repo, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Update(func(st *store.Store) error {
		_, err := st.Events.Create("", "Anything")
		return err
	}))

	assert.Error(t, svc.Snapshot())
	assert.True(t, svc.Dirty())
}

func TestBoltRoundTrip(t *testing.T) {
	repo := boltdb.New(boltdb.Config{Path: filepath.Join(t.TempDir(), "planner.db")})
	svc, err := Open(repo, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Update(func(st *store.Store) error {
		_, err := st.Events.Create("Q1", "Quarterly")
		return err
	}))
	require.NoError(t, svc.Snapshot())

	reopened, err := Open(repo, nil)
	require.NoError(t, err)
	require.NoError(t, reopened.Read(func(st *store.Store) error {
		assert.Equal(t, 1, st.Events.Len())
		return nil
	}))
}

func eventCount(svc *Service) int {
	var n int
	_ = svc.Read(func(st *store.Store) error {
		n = st.Events.Len()
		return nil
	})
	return n
}

// boltPair returns two repositories on one file, as a server and a CLI
// process would hold them.
func boltPair(t *testing.T) (*boltdb.Repo, *boltdb.Repo) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.db")
	return boltdb.New(boltdb.Config{Path: path}), boltdb.New(boltdb.Config{Path: path})
}

func TestReloadPicksUpOtherWriters(t *testing.T) {
	serverRepo, cliRepo := boltPair(t)
	server, err := Open(serverRepo, nil)
	require.NoError(t, err)
	cli, err := Open(cliRepo, nil)
	require.NoError(t, err)

	require.NoError(t, cli.Update(func(st *store.Store) error {
		_, err := st.Events.Create("Q1", "Quarterly")
		return err
	}))
	require.NoError(t, cli.Snapshot())

	assert.Equal(t, 0, eventCount(server))
	require.NoError(t, server.Reload())
	assert.Equal(t, 1, eventCount(server))
	assert.False(t, server.Dirty())

	require.NoError(t, cli.Update(func(st *store.Store) error {
		return st.Events.Delete("Q1")
	}))
	require.NoError(t, cli.Snapshot())
	require.NoError(t, server.Sync())
	assert.Equal(t, 0, eventCount(server))
}

func TestReloadKeepsUnsavedChanges(t *testing.T) {
	repo := &memRepo{}
	svc, err := Open(repo, nil)
	require.NoError(t, err)
	other, err := Open(repo, nil)
	require.NoError(t, err)
	require.NoError(t, other.Update(func(st *store.Store) error {
		_, err := st.Events.Create("A", "Saved elsewhere")
		return err
	}))
	require.NoError(t, other.Snapshot())

	require.NoError(t, svc.Update(func(st *store.Store) error {
		_, err := st.Events.Create("B", "Local")
		return err
	}))

	require.NoError(t, svc.Reload())
	require.NoError(t, svc.Read(func(st *store.Store) error {
		_, err := st.Events.Lookup("B")
		return err
	}))

	// Sync saves the local store instead of reloading.
	require.NoError(t, svc.Sync())
	assert.False(t, svc.Dirty())
	assert.Equal(t, 2, repo.saves)
}

func TestReloadSkipsUnchangedEnvelope(t *testing.T) {
	repo := &memRepo{}
	svc, err := Open(repo, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Update(func(st *store.Store) error {
		_, err := st.Events.Create("A", "Anything")
		return err
	}))
	require.NoError(t, svc.Snapshot())

	var before *store.Store
	require.NoError(t, svc.Read(func(st *store.Store) error {
		before = st
		return nil
	}))
	require.NoError(t, svc.Reload())
	require.NoError(t, svc.Read(func(st *store.Store) error {
		assert.Same(t, before, st)
		return nil
	}))
}

func TestScheduledSyncSeesOtherWriters(t *testing.T) {
	serverRepo, cliRepo := boltPair(t)
	server, err := Open(serverRepo, nil)
	require.NoError(t, err)

	sched, err := scheduler.New("sync", "@every 1s", time.UTC, server.Sync)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(finished)
	}()
	defer func() {
		cancel()
		<-finished
	}()

	cli, err := Open(cliRepo, nil)
	require.NoError(t, err)
	require.NoError(t, cli.Update(func(st *store.Store) error {
		_, err := st.Events.Create("ZZZ999", "Wizard People")
		return err
	}))
	require.NoError(t, cli.Snapshot())

	assert.Eventually(t, func() bool { return eventCount(server) == 1 }, 5*time.Second, 50*time.Millisecond)
}
