package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badminton-expense-bot/internal/allocation"
	"badminton-expense-bot/internal/localstore"
	"badminton-expense-bot/internal/model"
	"badminton-expense-bot/internal/reconcile"
	"badminton-expense-bot/internal/repository"
)

// memRemote is an in-memory remote store for service tests.
type memRemote struct {
	rows    map[string][]byte
	upserts int
}

func (m *memRemote) Get(_ context.Context, key string) (*repository.DayRow, error) {
	data, ok := m.rows[key]
	if !ok {
		return nil, repository.ErrDayNotFound
	}
	return &repository.DayRow{ID: key, Data: data}, nil
}

func (m *memRemote) Upsert(_ context.Context, key string, data []byte, _ string, _ int64) error {
	m.upserts++
	m.rows[key] = data
	return nil
}

type memLocal struct{ rows map[string][]byte }

func (m *memLocal) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.rows[key]
	if !ok {
		return nil, localstore.ErrNotFound
	}
	return data, nil
}

func (m *memLocal) Put(_ context.Context, key string, value []byte) error {
	m.rows[key] = value
	return nil
}

type fixture struct {
	svc    *DayService
	remote *memRemote
}

func newFixture(t *testing.T, policy allocation.Policy, defaultPlayers ...string) *fixture {
	t.Helper()
	remote := &memRemote{rows: make(map[string][]byte)}
	defaults := func() *model.AppData {
		d := model.NewAppData()
		d.Players = append(d.Players, defaultPlayers...)
		d.CourtSetup.RatePerHour = 170
		return d
	}
	svc := NewDayService(
		reconcile.New(remote, &memLocal{rows: make(map[string][]byte)}, defaults),
		policy, defaultPlayers, 170,
	)
	svc.now = func() time.Time { return time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.SelectDate(context.Background(), "2025-06-07"))
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, remote: remote}
}

func (f *fixture) addPlayers(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, f.svc.AddPlayer(context.Background(), n))
	}
}

func (f *fixture) storedData(t *testing.T) *model.AppData {
	t.Helper()
	raw, ok := f.remote.rows[f.svc.Key()]
	require.True(t, ok, "nothing persisted for %s", f.svc.Key())
	var data model.AppData
	require.NoError(t, json.Unmarshal(raw, &data))
	return &data
}

func TestSelectDateRejectsBadKey(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)

	for _, key := range []string{"", "today", "2025/06/07", "2025-13-40"} {
		assert.ErrorIs(t, f.svc.SelectDate(context.Background(), key), ErrInvalidDayKey, key)
	}
	assert.NoError(t, f.svc.SelectDate(context.Background(), model.SingletonKey))
}

func TestSelectDateSeedsDefaults(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot, "A", "B", "C", "D")

	data := f.svc.Data()
	assert.Equal(t, []string{"A", "B", "C", "D"}, data.Players)
	assert.InDelta(t, 170.0, data.CourtSetup.RatePerHour, 1e-9)
}

func TestAddPlayerValidation(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	ctx := context.Background()

	require.NoError(t, f.svc.AddPlayer(ctx, "Arm"))

	tests := []struct {
		name    string
		player  string
		wantErr error
	}{
		{"empty", "", ErrEmptyPlayerName},
		{"whitespace only", "   ", ErrEmptyPlayerName},
		{"too long", "Chanathip J", ErrPlayerNameTooLong},
		{"duplicate", "Arm", ErrDuplicatePlayer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, f.svc.AddPlayer(ctx, tt.player), tt.wantErr)
		})
	}

	assert.Equal(t, []string{"Arm"}, f.svc.Data().Players)
}

func TestAddGameValidation(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	f.addPlayers(t, "A", "B", "C", "D")
	ctx := context.Background()

	tests := []struct {
		name         string
		players      [4]string
		shuttlecocks float64
		wantErr      error
	}{
		{"repeated player", [4]string{"A", "A", "B", "C"}, 4, ErrPlayerCount},
		{"empty slot", [4]string{"A", "B", "C", ""}, 4, ErrPlayerCount},
		{"not rostered", [4]string{"A", "B", "C", "X"}, 4, ErrUnknownPlayer},
		{"zero shuttlecocks", [4]string{"A", "B", "C", "D"}, 0, ErrInvalidShuttlecocks},
		{"negative shuttlecocks", [4]string{"A", "B", "C", "D"}, -1, ErrInvalidShuttlecocks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.AddGame(ctx, tt.players[0], tt.players[1], tt.players[2], tt.players[3], tt.shuttlecocks, false)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.svc.Data().Games, "rejected game must not be applied")
		})
	}

	require.NoError(t, f.svc.AddGame(ctx, "A", "B", "C", "D", 3.5, true))
	data := f.svc.Data()
	require.Len(t, data.Games, 1)
	assert.True(t, data.Games[0].ReusedShuttlecocks)
	assert.Equal(t, "2025-06-07T10:00:00Z", data.Games[0].Date)
}

func TestRemovePlayerCascades(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	f.addPlayers(t, "A", "B", "C", "D", "E")
	ctx := context.Background()

	require.NoError(t, f.svc.AddGame(ctx, "A", "B", "C", "D", 4, false))
	require.NoError(t, f.svc.AddGame(ctx, "B", "C", "D", "E", 4, false))
	require.NoError(t, f.svc.SetPaid(ctx, "A", true))
	require.NoError(t, f.svc.SetPaid(ctx, "E", true))

	// Remove A (index 0): their game goes with them, the other stays.
	require.NoError(t, f.svc.RemovePlayer(ctx, 0))

	data := f.svc.Data()
	assert.Equal(t, []string{"B", "C", "D", "E"}, data.Players)
	require.Len(t, data.Games, 1)
	assert.False(t, data.Games[0].Has("A"))
	// Paid mark is pruned with the player.
	assert.Equal(t, []string{"E"}, data.PaidPlayers)
}

func TestRemovedAndReaddedPlayerStartsUnpaid(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	f.addPlayers(t, "A", "B")
	ctx := context.Background()

	require.NoError(t, f.svc.SetPaid(ctx, "A", true))
	require.NoError(t, f.svc.RemovePlayer(ctx, 0))
	require.NoError(t, f.svc.AddPlayer(ctx, "A"))

	assert.False(t, f.svc.Data().IsPaid("A"))
}

func TestRemoveIndexOutOfRange(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	f.addPlayers(t, "A")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.RemovePlayer(ctx, 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, f.svc.RemovePlayer(ctx, -1), ErrIndexOutOfRange)
	assert.ErrorIs(t, f.svc.RemoveGame(ctx, 0), ErrIndexOutOfRange)
	assert.ErrorIs(t, f.svc.RemoveCourtEntry(ctx, 0), ErrIndexOutOfRange)
}

func TestSetPaidRequiresRosteredPlayer(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	f.addPlayers(t, "A")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.SetPaid(ctx, "X", true), ErrUnknownPlayer)

	require.NoError(t, f.svc.SetPaid(ctx, "A", true))
	require.NoError(t, f.svc.SetPaid(ctx, "A", true)) // idempotent
	assert.Equal(t, []string{"A"}, f.svc.Data().PaidPlayers)

	require.NoError(t, f.svc.SetPaid(ctx, "A", false))
	assert.Empty(t, f.svc.Data().PaidPlayers)
}

func TestMutationsPersistThrough(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	f.addPlayers(t, "A", "B", "C", "D")
	ctx := context.Background()

	require.NoError(t, f.svc.SetShuttlecockPrice(ctx, 240))
	require.NoError(t, f.svc.AddCourtEntry(ctx, model.CourtSetupEntry{CourtNumber: "5", StartHour: 18, EndHour: 20}))
	require.NoError(t, f.svc.AddGame(ctx, "A", "B", "C", "D", 4, false))

	stored := f.storedData(t)
	assert.InDelta(t, 240.0, stored.ShuttlecockPrice, 1e-9)
	require.Len(t, stored.CourtSetup.Entries, 1)
	require.Len(t, stored.Games, 1)
	assert.Equal(t, []string{"A", "B", "C", "D"}, stored.Players)
}

func TestRejectedMutationDoesNotPersist(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)

	before := f.remote.upserts
	assert.Error(t, f.svc.AddPlayer(context.Background(), ""))
	assert.Equal(t, before, f.remote.upserts)
}

func TestSummaryUsesConfiguredPolicy(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	f.addPlayers(t, "A", "B", "C", "D")
	ctx := context.Background()

	// Court fee: 170 per hour for 2 hours = 340; shuttlecock total 60.
	require.NoError(t, f.svc.SetShuttlecockPrice(ctx, 60))
	require.NoError(t, f.svc.AddCourtEntry(ctx, model.CourtSetupEntry{CourtNumber: "1", StartHour: 18, EndHour: 20}))
	require.NoError(t, f.svc.AddGame(ctx, "A", "B", "C", "D", 4, false))

	summary, fee := f.svc.Summary()

	assert.InDelta(t, 340.0, fee, 1e-9)
	assert.Equal(t, allocation.PolicySlot, summary.Policy)
	assert.InDelta(t, 400.0, summary.TotalCost, 1e-9)
	require.Len(t, summary.Shares, 4)
	assert.InDelta(t, 100.0, summary.Shares[0].Cost, 1e-9)
}

func TestReset(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot, "A", "B", "C", "D")
	ctx := context.Background()

	require.NoError(t, f.svc.AddPlayer(ctx, "E"))
	require.NoError(t, f.svc.AddGame(ctx, "A", "B", "C", "E", 4, false))
	require.NoError(t, f.svc.SetPaid(ctx, "A", true))
	require.NoError(t, f.svc.SetShuttlecockPrice(ctx, 120))

	require.NoError(t, f.svc.Reset(ctx))

	data := f.svc.Data()
	assert.Equal(t, []string{"A", "B", "C", "D"}, data.Players)
	assert.Empty(t, data.Games)
	assert.Empty(t, data.PaidPlayers)
	assert.Zero(t, data.ShuttlecockPrice)
	assert.InDelta(t, 170.0, data.CourtSetup.RatePerHour, 1e-9)
	assert.Empty(t, data.CourtSetup.Entries)
}

func TestSelectDateLoadsStoredDocument(t *testing.T) {
	f := newFixture(t, allocation.PolicySlot)
	f.addPlayers(t, "A", "B")

	// Switch away and back; the stored document comes back intact.
	require.NoError(t, f.svc.SelectDate(context.Background(), "2025-06-14"))
	assert.Empty(t, f.svc.Data().Players)

	require.NoError(t, f.svc.SelectDate(context.Background(), "2025-06-07"))
	assert.Equal(t, []string{"A", "B"}, f.svc.Data().Players)
}
