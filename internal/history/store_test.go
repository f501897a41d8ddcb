package history

import (
	"testing"
	"time"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_BatchLifecycle(t *testing.T) {
	store := memStore(t)

	batchID, err := store.BeginBatch("all", 5)
	if err != nil {
		t.Fatal(err)
	}
	if batchID == "" {
		t.Fatal("empty batch id")
	}

	summary := domain.Summary{Processed: 3, Errored: 1, TotalShare: 15500}
	if err := store.FinishBatch(batchID, summary); err != nil {
		t.Fatal(err)
	}

	batches, err := store.RecentBatches(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}

	b := batches[0]
	if b.Mode != "all" || b.Concurrency != 5 {
		t.Errorf("batch = %+v", b)
	}
	if b.Processed != 3 || b.Errored != 1 || b.TotalShare != 15500 {
		t.Errorf("summary fields = %d/%d/%v, want 3/1/15500", b.Processed, b.Errored, b.TotalShare)
	}
	if b.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestStore_RecordAndQueryAttempts(t *testing.T) {
	store := memStore(t)

	batchID, err := store.BeginBatch("retry-failed", 2)
	if err != nil {
		t.Fatal(err)
	}

	ok := domain.Result{
		ProfileID:   "id-1",
		ProfileName: "Depin001",
		Email:       "a@x.com",
		LoginOK:     true,
		CheckInOK:   true,
		SharePoints: 800,
		Timestamp:   time.Now(),
	}
	failed := domain.Result{
		ProfileID: "id-2", ProfileName: "Depin002",
		Error: "OTP timeout (60s)", Timestamp: time.Now(),
	}

	if err := store.RecordAttempt(batchID, ok, time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordAttempt(batchID, failed, time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	attempts, err := store.AttemptsForBatch(batchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}

	byKey := map[string]Attempt{}
	for _, a := range attempts {
		byKey[a.ProfileKey] = a
	}

	if byKey["Depin001"].Status != domain.RunCompleted {
		t.Errorf("Depin001 status = %s, want completed", byKey["Depin001"].Status)
	}
	if byKey["Depin002"].Status != domain.RunFailed {
		t.Errorf("Depin002 status = %s, want failed", byKey["Depin002"].Status)
	}
	if byKey["Depin001"].Result.SharePoints != 800 {
		t.Errorf("SharePoints = %v, want 800", byKey["Depin001"].Result.SharePoints)
	}
}

func TestStore_AttemptsForProfileNewestFirst(t *testing.T) {
	store := memStore(t)

	batchID, err := store.BeginBatch("all", 1)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		r := domain.Result{
			ProfileName: "Depin001", ProfileID: "id-1",
			SharePoints: float64(i), Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.RecordAttempt(batchID, r, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}

	attempts, err := store.AttemptsForProfile("Depin001", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2 (limit respected)", len(attempts))
	}
	if attempts[0].Result.SharePoints != 2 {
		t.Errorf("newest attempt SharePoints = %v, want 2", attempts[0].Result.SharePoints)
	}
}
