package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidline/dispatch/core/model"
	corestore "github.com/aidline/dispatch/core/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dispatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRequestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	respondedAt := time.Now().Truncate(time.Millisecond)
	req := model.HelpRequest{
		ID:                    "r1",
		OwnerID:               "owner",
		Location:              &model.Location{Lat: 48.85, Lng: 2.35},
		Resume:                map[string]any{"condition": "diabetic", "age": float64(70)},
		Status:                model.StatusAwaitingVolunteer,
		CurrentVolunteerID:    "v1",
		CurrentVolunteerIndex: 2,
		LastResponse:          model.ResponseDeclined,
		LastResponderID:       "v0",
		LastRespondedAt:       &respondedAt,
	}
	require.NoError(t, s.CreateRequest(ctx, req))

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, req.OwnerID, got.OwnerID)
	assert.Equal(t, req.Status, got.Status)
	assert.Equal(t, req.CurrentVolunteerID, got.CurrentVolunteerID)
	assert.Equal(t, req.CurrentVolunteerIndex, got.CurrentVolunteerIndex)
	assert.Equal(t, req.Resume, got.Resume)
	require.NotNil(t, got.Location)
	assert.InDelta(t, 48.85, got.Location.Lat, 1e-9)
	require.NotNil(t, got.LastRespondedAt)
	assert.True(t, got.LastRespondedAt.Equal(respondedAt))
	assert.Nil(t, got.ProcessingAt)
}

func TestSQLiteGetRequestNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRequest(context.Background(), "ghost")
	assert.ErrorIs(t, err, corestore.ErrNotFound)
}

func TestSQLiteTxRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, model.HelpRequest{ID: "r1", OwnerID: "o", Status: model.StatusOpen}))

	wantErr := assert.AnError
	err := s.RunInTx(ctx, func(tx corestore.Tx) error {
		req, err := tx.GetRequest("r1")
		require.NoError(t, err)
		req.Status = model.StatusProcessing
		require.NoError(t, tx.PutRequest(req))
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.Status)
}

func TestSQLiteRankedListWriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	list := model.RankedList{
		RequestID: "r1",
		Entries: []model.RankedEntry{
			{VolunteerID: "v1", Score: 0.9, DistanceKm: 1.2, Reason: "closest medic"},
			{VolunteerID: "v2", Score: 0.4, DistanceKm: 9999, Reason: "no location"},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.RunInTx(ctx, func(tx corestore.Tx) error {
		return tx.CreateRankedList(list)
	}))

	err := s.RunInTx(ctx, func(tx corestore.Tx) error {
		return tx.CreateRankedList(list)
	})
	assert.ErrorIs(t, err, corestore.ErrRankedListExists)

	var got model.RankedList
	require.NoError(t, s.RunInTx(ctx, func(tx corestore.Tx) error {
		var err error
		got, err = tx.GetRankedList("r1")
		return err
	}))
	assert.Equal(t, list.Entries, got.Entries)
}

func TestSQLiteEligibleVolunteerFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	vols := []model.Volunteer{
		{ID: "v1", IsVolunteer: true, VolunteerStatus: model.VolunteerStatusApproved, Location: &model.Location{Lat: 1, Lng: 2}, Skills: "cpr"},
		{ID: "v2", IsVolunteer: true, VolunteerStatus: "pending"},
		{ID: "v3", IsVolunteer: false, VolunteerStatus: model.VolunteerStatusApproved},
		{ID: "v4", IsVolunteer: true, VolunteerStatus: model.VolunteerStatusApproved},
	}
	for _, v := range vols {
		require.NoError(t, s.UpsertVolunteer(ctx, v))
	}

	got, err := s.ListEligibleVolunteers(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, v := range got {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, []string{"v1", "v4"}, ids)
	for _, v := range got {
		if v.ID == "v1" {
			require.NotNil(t, v.Location)
			assert.Equal(t, "cpr", v.Skills)
		}
		if v.ID == "v4" {
			assert.Nil(t, v.Location)
		}
	}
}

func TestSQLiteConcurrentTxSerialized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, model.HelpRequest{ID: "r1", OwnerID: "o", Status: model.StatusOpen}))

	var wg sync.WaitGroup
	const n = 20
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunInTx(ctx, func(tx corestore.Tx) error {
				req, err := tx.GetRequest("r1")
				if err != nil {
					return err
				}
				req.CurrentVolunteerIndex++
				return tx.PutRequest(req)
			})
		}()
	}
	wg.Wait()

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, n, got.CurrentVolunteerIndex, "lost update under concurrency")
}
