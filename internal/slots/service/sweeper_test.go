package service

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "labbook/pkg/errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestSweeper(repo *mockSlotRepository, batchSize int) *Sweeper {
	cfg := testConfig()
	return NewSweeper(repo, time.Minute, batchSize, cfg.Log)
}

func makeIDs(n int) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, n)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
	}
	return ids
}

func TestSweep_NothingExpired(t *testing.T) {
	repo := &mockSlotRepository{
		findExpiredIDsFunc: func(ctx context.Context, now time.Time, limit int) ([]primitive.ObjectID, error) {
			return nil, nil
		},
		markCompletedFunc: func(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
			t.Fatal("mark must not run with nothing to sweep")
			return 0, nil
		},
	}

	updated, err := newTestSweeper(repo, 3).Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 0 {
		t.Errorf("expected 0 updated, got %d", updated)
	}
}

func TestSweep_DrainsInBatches(t *testing.T) {
	var scans int
	repo := &mockSlotRepository{
		findExpiredIDsFunc: func(ctx context.Context, now time.Time, limit int) ([]primitive.ObjectID, error) {
			scans++
			switch scans {
			case 1:
				return makeIDs(limit), nil
			case 2:
				return makeIDs(1), nil
			default:
				t.Fatalf("unexpected scan %d", scans)
				return nil, nil
			}
		},
	}

	updated, err := newTestSweeper(repo, 3).Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scans != 2 {
		t.Errorf("expected 2 scans, got %d", scans)
	}
	if updated != 4 {
		t.Errorf("expected 4 updated, got %d", updated)
	}
}

func TestSweep_ScanFailure(t *testing.T) {
	repo := &mockSlotRepository{
		findExpiredIDsFunc: func(ctx context.Context, now time.Time, limit int) ([]primitive.ObjectID, error) {
			return nil, errors.New("cursor timeout")
		},
	}

	_, err := newTestSweeper(repo, 3).Sweep(context.Background())

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestSweeper_StopTerminatesRun(t *testing.T) {
	swept := make(chan struct{}, 10)
	repo := &mockSlotRepository{
		findExpiredIDsFunc: func(ctx context.Context, now time.Time, limit int) ([]primitive.ObjectID, error) {
			select {
			case swept <- struct{}{}:
			default:
			}
			return nil, nil
		},
	}

	sweeper := newTestSweeper(repo, 3)
	sweeper.Start(context.Background())

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate first sweep")
	}

	sweeper.Stop()
}
