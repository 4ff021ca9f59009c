package storage

import (
	"context"
	"testing"
	"time"

	"github.com/statvalue/statvalue-companion/internal/backend"
	"github.com/statvalue/statvalue-companion/internal/positions"
	"github.com/statvalue/statvalue-companion/internal/session"
)

func seedSession(t *testing.T, db *DB, id string) {
	t.Helper()
	repo := NewSessionRepository(db, nil)
	if err := repo.Save(context.Background(), session.Record{ID: id, Position: positions.Forward}); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryRepository_Comparisons(t *testing.T) {
	db := setupTestDB(t)
	seedSession(t, db, "s-1")
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, names := range [][]string{{"A", "B"}, {"A", "C", "D"}} {
		results := make([]session.ComparisonResult, len(names))
		for j, n := range names {
			results[j] = session.ComparisonResult{
				Player:     session.PlayerDetails{Name: n},
				Normalized: map[string]float64{"Goals": float64(100 - j*10)},
			}
		}
		rec := session.ComparisonRecord{
			SessionID: "s-1",
			Position:  "forward",
			Players:   names,
			Results:   results,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.SaveComparison(ctx, rec); err != nil {
			t.Fatalf("SaveComparison() error = %v", err)
		}
	}

	got, err := repo.ListComparisons(ctx, "s-1", 0)
	if err != nil {
		t.Fatalf("ListComparisons() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(got))
	}
	if len(got[0].Players) != 3 {
		t.Errorf("newest comparison should come first, got players %v", got[0].Players)
	}
	if got[0].Normalized["C"]["Goals"] != 90 {
		t.Errorf("normalized C Goals = %v, want 90", got[0].Normalized["C"]["Goals"])
	}

	limited, err := repo.ListComparisons(ctx, "s-1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d", len(limited))
	}

	other, err := repo.ListComparisons(ctx, "other", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("expected no comparisons for another session, got %d", len(other))
	}
}

func TestHistoryRepository_Predictions(t *testing.T) {
	db := setupTestDB(t)
	seedSession(t, db, "s-1")
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	p := backend.Prediction{
		PlayerName:      "Bukayo Saka",
		Year:            2027,
		PredictedValue:  150_000_000,
		CurrentValue:    120_000_000,
		ConfidenceLevel: "High (85%)",
	}
	if err := repo.SavePrediction(ctx, "s-1", p); err != nil {
		t.Fatalf("SavePrediction() error = %v", err)
	}

	got, err := repo.ListPredictions(ctx, "s-1", 10)
	if err != nil {
		t.Fatalf("ListPredictions() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 prediction, got %d", len(got))
	}
	if got[0].Confidence != "High (85%)" || got[0].Year != 2027 {
		t.Errorf("unexpected prediction %+v", got[0])
	}
}

func TestHistoryRepository_CascadeOnSessionDelete(t *testing.T) {
	db := setupTestDB(t)
	seedSession(t, db, "s-1")
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	if err := repo.SavePrediction(ctx, "s-1", backend.Prediction{PlayerName: "X", Year: 2026}); err != nil {
		t.Fatal(err)
	}
	if err := NewSessionRepository(db, nil).Delete(ctx, "s-1"); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListPredictions(ctx, "s-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("predictions should be removed with their session, got %d", len(got))
	}
}
