package slots

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	slotserrors "labbook/internal/slots/errors"
	"labbook/internal/slots/repository"
	"labbook/internal/slots/service"
	"labbook/pkg/model"
	"labbook/test/integration/testutil"
)

func newSlotRepo(t *testing.T) (repository.SlotRepository, *testutil.MongoHelper) {
	t.Helper()

	helper := testutil.NewMongoHelper(t)
	t.Cleanup(func() {
		helper.CleanCollection(t, repository.CollectionName)
		helper.Close(t)
	})
	helper.CleanCollection(t, repository.CollectionName)

	return repository.NewMongoSlotRepository(helper.Config()), helper
}

func insertSlot(t *testing.T, repo repository.SlotRepository, kind, status string, start, end time.Time) *model.Slot {
	t.Helper()

	slot := &model.Slot{
		InfrastructureID: "nmr-1",
		BookingDate:      start.Format(model.DateLayout),
		StartAt:          start,
		EndAt:            end,
		Kind:             kind,
		Status:           status,
	}
	if err := repo.Insert(context.Background(), slot); err != nil {
		t.Fatalf("failed to insert slot: %v", err)
	}
	return slot
}

func TestCountOverlapping_HalfOpenWindows(t *testing.T) {
	repo, helper := newSlotRepo(t)
	ctx := context.Background()

	day := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	date := day.Format(model.DateLayout)

	tests := []struct {
		name                 string
		existStart, existEnd time.Time
		status               string
		checkStart, checkEnd time.Time
		want                 int64
	}{
		{"contained window overlaps", at(9, 0), at(11, 0), model.StatusAvailable, at(10, 0), at(10, 30), 1},
		{"containing window overlaps", at(10, 0), at(10, 30), model.StatusAvailable, at(9, 0), at(11, 0), 1},
		{"partial overlap from the left", at(9, 0), at(11, 0), model.StatusPending, at(8, 0), at(9, 30), 1},
		{"partial overlap from the right", at(9, 0), at(11, 0), model.StatusApproved, at(10, 30), at(12, 0), 1},
		{"identical window overlaps", at(9, 0), at(11, 0), model.StatusAvailable, at(9, 0), at(11, 0), 1},
		{"adjacent window does not overlap", at(9, 0), at(11, 0), model.StatusAvailable, at(11, 0), at(12, 0), 0},
		{"adjacent window before does not overlap", at(9, 0), at(11, 0), model.StatusAvailable, at(8, 0), at(9, 0), 0},
		{"canceled row never blocks", at(9, 0), at(11, 0), model.StatusCanceled, at(10, 0), at(10, 30), 0},
		{"completed row never blocks", at(9, 0), at(11, 0), model.StatusCompleted, at(10, 0), at(10, 30), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			helper.CleanCollection(t, repository.CollectionName)
			insertSlot(t, repo, model.KindTimeslot, tt.status, tt.existStart, tt.existEnd)

			got, err := repo.CountOverlapping(ctx, "nmr-1", date, tt.checkStart, tt.checkEnd, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CountOverlapping(%v, %v) = %d, want %d", tt.checkStart, tt.checkEnd, got, tt.want)
			}
		})
	}
}

func TestCountOverlapping_OtherInfrastructureIgnored(t *testing.T) {
	repo, _ := newSlotRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	insertSlot(t, repo, model.KindTimeslot, model.StatusAvailable, start, start.Add(2*time.Hour))

	got, err := repo.CountOverlapping(ctx, "sem-2", start.Format(model.DateLayout), start, start.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("expected windows on another infrastructure to be ignored, got %d", got)
	}
}

func TestClaimAvailable_SingleWinner(t *testing.T) {
	repo, _ := newSlotRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	slot := insertSlot(t, repo, model.KindTimeslot, model.StatusAvailable, start, start.Add(time.Hour))

	const claimants = 8
	var wg sync.WaitGroup
	results := make([]error, claimants)
	wg.Add(claimants)
	for i := 0; i < claimants; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = repo.ClaimAvailable(ctx, slot.ID, fmt.Sprintf("user%d@lab.edu", i), "calibration run")
		}(i)
	}
	wg.Wait()

	var winners, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, slotserrors.ErrStatusConflict):
			conflicts++
		default:
			t.Errorf("unexpected claim error: %v", err)
		}
	}

	if winners != 1 {
		t.Errorf("expected exactly one winning claim, got %d", winners)
	}
	if conflicts != claimants-1 {
		t.Errorf("expected %d conflicts, got %d", claimants-1, conflicts)
	}

	claimed, err := repo.FindByID(ctx, slot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed.Kind != model.KindBooking || claimed.Status != model.StatusPending {
		t.Errorf("expected a pending booking after the claim, got kind=%s status=%s", claimed.Kind, claimed.Status)
	}
	if claimed.UserEmail == "" {
		t.Error("expected the winner's email on the claimed row")
	}
}

func TestClaimAvailable_ClaimedRowConflicts(t *testing.T) {
	repo, _ := newSlotRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	slot := insertSlot(t, repo, model.KindTimeslot, model.StatusAvailable, start, start.Add(time.Hour))

	if _, err := repo.ClaimAvailable(ctx, slot.ID, "ada@lab.edu", "calibration run"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	_, err := repo.ClaimAvailable(ctx, slot.ID, "grace@lab.edu", "other work")
	if !errors.Is(err, slotserrors.ErrStatusConflict) {
		t.Errorf("expected status conflict on the second claim, got %v", err)
	}

	claimed, err := repo.FindByID(ctx, slot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed.UserEmail != "ada@lab.edu" {
		t.Errorf("expected the first claimant to keep the row, got %s", claimed.UserEmail)
	}
}

func TestSweep_RetiresExpiredRowsOnce(t *testing.T) {
	repo, helper := newSlotRepo(t)
	ctx := context.Background()
	cfg := helper.Config()

	past := time.Now().UTC().Add(-48 * time.Hour)
	future := time.Now().UTC().Add(48 * time.Hour)

	expired := []*model.Slot{
		insertSlot(t, repo, model.KindTimeslot, model.StatusAvailable, past, past.Add(time.Hour)),
		insertSlot(t, repo, model.KindBooking, model.StatusPending, past.Add(2*time.Hour), past.Add(3*time.Hour)),
		insertSlot(t, repo, model.KindBooking, model.StatusApproved, past.Add(4*time.Hour), past.Add(5*time.Hour)),
	}
	terminal := insertSlot(t, repo, model.KindBooking, model.StatusRejected, past, past.Add(time.Hour))
	upcoming := insertSlot(t, repo, model.KindTimeslot, model.StatusAvailable, future, future.Add(time.Hour))

	// Batch size below the expired count so the sweep has to drain in
	// multiple scans.
	sweeper := service.NewSweeper(repo, time.Minute, 2, cfg.Log)

	updated, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != int64(len(expired)) {
		t.Errorf("expected %d retired rows, got %d", len(expired), updated)
	}

	for _, slot := range expired {
		swept, err := repo.FindByID(ctx, slot.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if swept.Status != model.StatusCompleted || !swept.IsTerminal() {
			t.Errorf("expected slot %s to be completed, got %s", slot.ID, swept.Status)
		}
	}

	kept, err := repo.FindByID(ctx, terminal.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kept.Status != model.StatusRejected {
		t.Errorf("expected the rejected row to keep its status, got %s", kept.Status)
	}

	active, err := repo.FindByID(ctx, upcoming.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.Status != model.StatusAvailable {
		t.Errorf("expected the future row to stay available, got %s", active.Status)
	}

	// A second pass has nothing left to retire.
	updated, err = sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 0 {
		t.Errorf("expected an idempotent second sweep, got %d", updated)
	}
}
