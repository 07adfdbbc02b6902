package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aidline/dispatch/core/model"
)

func TestMemoryStoreRollbackOnError(t *testing.T) {
	s := NewMemoryStore()
	s.SeedRequest(model.HelpRequest{ID: "r1", Status: model.StatusOpen})

	sentinel := errors.New("abort")
	err := s.RunInTx(context.Background(), func(tx Tx) error {
		req, err := tx.GetRequest("r1")
		if err != nil {
			return err
		}
		req.Status = model.StatusProcessing
		if err := tx.PutRequest(req); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("RunInTx error = %v, want sentinel", err)
	}

	req, err := s.GetRequest(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != model.StatusOpen {
		t.Fatalf("status = %v, want open after rollback", req.Status)
	}
}

func TestMemoryStoreTxReadsOwnWrites(t *testing.T) {
	s := NewMemoryStore()
	s.SeedRequest(model.HelpRequest{ID: "r1", Status: model.StatusOpen})

	err := s.RunInTx(context.Background(), func(tx Tx) error {
		req, _ := tx.GetRequest("r1")
		req.Status = model.StatusProcessing
		if err := tx.PutRequest(req); err != nil {
			return err
		}
		again, err := tx.GetRequest("r1")
		if err != nil {
			return err
		}
		if again.Status != model.StatusProcessing {
			t.Errorf("tx read = %v, want processing", again.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemoryStoreRankedListWriteOnce(t *testing.T) {
	s := NewMemoryStore()
	list := model.RankedList{RequestID: "r1", Entries: []model.RankedEntry{{VolunteerID: "v1"}}}

	if err := s.RunInTx(context.Background(), func(tx Tx) error {
		return tx.CreateRankedList(list)
	}); err != nil {
		t.Fatal(err)
	}
	err := s.RunInTx(context.Background(), func(tx Tx) error {
		return tx.CreateRankedList(list)
	})
	if !errors.Is(err, ErrRankedListExists) {
		t.Fatalf("second create = %v, want ErrRankedListExists", err)
	}
}

func TestMemoryStoreEligibleFilter(t *testing.T) {
	s := NewMemoryStore()
	s.SeedVolunteer(model.Volunteer{ID: "v1", IsVolunteer: true, VolunteerStatus: model.VolunteerStatusApproved})
	s.SeedVolunteer(model.Volunteer{ID: "v2", IsVolunteer: true, VolunteerStatus: "pending"})
	s.SeedVolunteer(model.Volunteer{ID: "v3", IsVolunteer: false, VolunteerStatus: model.VolunteerStatusApproved})

	vols, err := s.ListEligibleVolunteers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vols) != 1 || vols[0].ID != "v1" {
		t.Fatalf("eligible = %+v, want only v1", vols)
	}
}

func TestMemoryStoreConcurrentTx(t *testing.T) {
	s := NewMemoryStore()
	s.SeedRequest(model.HelpRequest{ID: "r1", Status: model.StatusOpen, CurrentVolunteerIndex: 0})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunInTx(context.Background(), func(tx Tx) error {
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

	req, _ := s.GetRequest(context.Background(), "r1")
	if req.CurrentVolunteerIndex != 50 {
		t.Fatalf("index = %d, want 50 (lost update)", req.CurrentVolunteerIndex)
	}
}
