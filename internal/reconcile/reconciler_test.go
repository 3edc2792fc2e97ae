package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badminton-expense-bot/internal/localstore"
	"badminton-expense-bot/internal/model"
	"badminton-expense-bot/internal/repository"
)

// fakeRemote is an in-memory RemoteStore that can be forced to fail.
type fakeRemote struct {
	rows    map[string][]byte
	origins map[string]string
	seqs    map[string]int64
	fail    bool
	getErr  error
	upserts int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		rows:    make(map[string][]byte),
		origins: make(map[string]string),
		seqs:    make(map[string]int64),
	}
}

func (f *fakeRemote) Get(_ context.Context, key string) (*repository.DayRow, error) {
	if f.fail {
		return nil, errors.New("remote unavailable")
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.rows[key]
	if !ok {
		return nil, repository.ErrDayNotFound
	}
	return &repository.DayRow{ID: key, Data: data}, nil
}

func (f *fakeRemote) Upsert(_ context.Context, key string, data []byte, origin string, seq int64) error {
	if f.fail {
		return errors.New("remote unavailable")
	}
	f.upserts++
	f.rows[key] = data
	f.origins[key] = origin
	f.seqs[key] = seq
	return nil
}

// fakeLocal is an in-memory LocalStore.
type fakeLocal struct {
	rows map[string][]byte
	fail bool
	puts int
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{rows: make(map[string][]byte)}
}

func (f *fakeLocal) Get(_ context.Context, key string) ([]byte, error) {
	if f.fail {
		return nil, errors.New("disk error")
	}
	data, ok := f.rows[key]
	if !ok {
		return nil, localstore.ErrNotFound
	}
	return data, nil
}

func (f *fakeLocal) Put(_ context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk error")
	}
	f.puts++
	f.rows[key] = value
	return nil
}

func mustJSON(t *testing.T, data *model.AppData) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return raw
}

func sampleData(players ...string) *model.AppData {
	d := model.NewAppData()
	d.Players = append(d.Players, players...)
	d.ShuttlecockPrice = 120
	return d
}

const key = "2025-06-07"

func TestLoadPrefersRemote(t *testing.T) {
	remote := newFakeRemote()
	local := newFakeLocal()
	remote.rows[key] = mustJSON(t, sampleData("A", "B"))
	local.rows[key] = mustJSON(t, sampleData("stale"))

	r := New(remote, local, nil)
	data := r.Load(context.Background(), key)

	assert.Equal(t, []string{"A", "B"}, data.Players)
}

func TestLoadFallsBackToLocalOnRemoteError(t *testing.T) {
	remote := newFakeRemote()
	remote.fail = true
	local := newFakeLocal()
	local.rows[key] = mustJSON(t, sampleData("A"))

	r := New(remote, local, nil)
	data := r.Load(context.Background(), key)

	assert.Equal(t, []string{"A"}, data.Players)
}

func TestLoadFallsBackToLocalOnRemoteMiss(t *testing.T) {
	remote := newFakeRemote()
	local := newFakeLocal()
	local.rows[key] = mustJSON(t, sampleData("A"))

	r := New(remote, local, nil)
	data := r.Load(context.Background(), key)

	assert.Equal(t, []string{"A"}, data.Players)
}

func TestLoadDefaultsWhenNothingStored(t *testing.T) {
	r := New(newFakeRemote(), newFakeLocal(), func() *model.AppData {
		d := model.NewAppData()
		d.Players = []string{"A", "B", "C", "D"}
		d.CourtSetup.RatePerHour = 170
		return d
	})

	data := r.Load(context.Background(), key)

	assert.Equal(t, []string{"A", "B", "C", "D"}, data.Players)
	assert.InDelta(t, 170.0, data.CourtSetup.RatePerHour, 1e-9)
}

func TestLoadDefaultsOnCorruptLocalRecord(t *testing.T) {
	remote := newFakeRemote()
	remote.fail = true
	local := newFakeLocal()
	local.rows[key] = []byte("not json")

	r := New(remote, local, nil)
	data := r.Load(context.Background(), key)

	require.NotNil(t, data)
	assert.Empty(t, data.Players)
}

func TestLoadNormalizesLegacyRemoteDocument(t *testing.T) {
	remote := newFakeRemote()
	remote.rows[key] = []byte(`{"shuttlecockPrice":10,"courtFee":400,"players":["A"],"games":[]}`)

	r := New(remote, newFakeLocal(), nil)
	data := r.Load(context.Background(), key)

	assert.Equal(t, []string{"A"}, data.Players)
	assert.NotNil(t, data.PaidPlayers)
}

func TestSaveWritesRemoteOnly(t *testing.T) {
	remote := newFakeRemote()
	local := newFakeLocal()
	r := New(remote, local, nil)

	r.Save(context.Background(), sampleData("A"), key)

	assert.Equal(t, 1, remote.upserts)
	assert.Zero(t, local.puts, "local store must not be written when remote succeeds")
	assert.Equal(t, r.Origin(), remote.origins[key])
	assert.Equal(t, int64(1), remote.seqs[key])
}

func TestSaveFallsBackToLocal(t *testing.T) {
	remote := newFakeRemote()
	remote.fail = true
	local := newFakeLocal()
	r := New(remote, local, nil)

	r.Save(context.Background(), sampleData("A"), key)

	assert.Equal(t, 1, local.puts)

	// The fallback copy round-trips.
	data := r.Load(context.Background(), key)
	assert.Equal(t, []string{"A"}, data.Players)
}

func TestSaveSequenceIncreases(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, newFakeLocal(), nil)

	r.Save(context.Background(), sampleData("A"), key)
	r.Save(context.Background(), sampleData("A", "B"), key)

	assert.Equal(t, int64(2), remote.seqs[key])
}

func TestSubscribeDeliversRemoteChanges(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, newFakeLocal(), nil)

	var delivered *model.AppData
	unsub := r.Subscribe(key, func(_ string, data *model.AppData) {
		delivered = data
	})
	defer unsub()

	remote.rows[key] = mustJSON(t, sampleData("A", "B"))
	r.HandleNotification(context.Background(), repository.Notification{ID: key, Origin: "other-client", Seq: 9})

	require.NotNil(t, delivered)
	assert.Equal(t, []string{"A", "B"}, delivered.Players)
}

func TestSubscribeIgnoresOtherKeys(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, newFakeLocal(), nil)

	called := false
	unsub := r.Subscribe(key, func(string, *model.AppData) { called = true })
	defer unsub()

	remote.rows["2025-06-14"] = mustJSON(t, sampleData("A"))
	r.HandleNotification(context.Background(), repository.Notification{ID: "2025-06-14", Origin: "other", Seq: 1})

	assert.False(t, called)
}

func TestSelfEchoSuppressed(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, newFakeLocal(), nil)

	called := 0
	unsub := r.Subscribe(key, func(string, *model.AppData) { called++ })
	defer unsub()

	r.Save(context.Background(), sampleData("A"), key)

	// The echo of our own write comes back with our origin and seq.
	r.HandleNotification(context.Background(), repository.Notification{
		ID: key, Origin: r.Origin(), Seq: remote.seqs[key],
	})
	assert.Zero(t, called, "own write echo must be suppressed")

	// A later write from this origin (e.g. another key's echo arriving
	// out of order) with a seq beyond the counter is not ours.
	r.HandleNotification(context.Background(), repository.Notification{
		ID: key, Origin: r.Origin(), Seq: remote.seqs[key] + 100,
	})
	assert.Equal(t, 1, called)
}

func TestForeignChangesNotSuppressed(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, newFakeLocal(), nil)

	called := 0
	unsub := r.Subscribe(key, func(string, *model.AppData) { called++ })
	defer unsub()

	r.Save(context.Background(), sampleData("A"), key)

	// Same seq but a different origin is a genuine foreign write.
	r.HandleNotification(context.Background(), repository.Notification{
		ID: key, Origin: "other-client", Seq: 1,
	})
	assert.Equal(t, 1, called)
}

func TestSuppressionSurvivesMultipleWritesInFlight(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, newFakeLocal(), nil)

	called := 0
	unsub := r.Subscribe(key, func(string, *model.AppData) { called++ })
	defer unsub()

	// Two writes issued before either echo arrives.
	r.Save(context.Background(), sampleData("A"), key)
	r.Save(context.Background(), sampleData("A", "B"), key)

	r.HandleNotification(context.Background(), repository.Notification{ID: key, Origin: r.Origin(), Seq: 1})
	r.HandleNotification(context.Background(), repository.Notification{ID: key, Origin: r.Origin(), Seq: 2})

	assert.Zero(t, called, "both in-flight echoes must be suppressed")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, newFakeLocal(), nil)

	called := 0
	unsub := r.Subscribe(key, func(string, *model.AppData) { called++ })
	unsub()

	remote.rows[key] = mustJSON(t, sampleData("A"))
	r.HandleNotification(context.Background(), repository.Notification{ID: key, Origin: "other", Seq: 1})

	assert.Zero(t, called)
}

func TestNotificationDroppedWhenFetchFails(t *testing.T) {
	remote := newFakeRemote()
	r := New(remote, newFakeLocal(), nil)

	called := 0
	unsub := r.Subscribe(key, func(string, *model.AppData) { called++ })
	defer unsub()

	remote.getErr = errors.New("remote unavailable")
	r.HandleNotification(context.Background(), repository.Notification{ID: key, Origin: "other", Seq: 1})

	assert.Zero(t, called)
}
