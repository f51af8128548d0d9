package world_test

import (
	"path/filepath"
	"testing"

	"github.com/duskward/narrator/internal/world"
)

func TestGameTime_Advance(t *testing.T) {
	gt := world.GameTime{}
	gt = gt.Advance(90) // 1h30m
	if gt.Hour != 1 || gt.Minute != 30 {
		t.Fatalf("got hour=%d minute=%d, want 1/30", gt.Hour, gt.Minute)
	}
	if gt.TotalMinutes != 90 {
		t.Fatalf("TotalMinutes = %d, want 90", gt.TotalMinutes)
	}
}

func TestGameTime_AdvanceRollsOverDay(t *testing.T) {
	gt := world.GameTime{}
	gt = gt.Advance(int64(world.MinutesPerHour * world.HoursPerDay))
	if gt.Day != 1 || gt.Hour != 0 || gt.Minute != 0 {
		t.Fatalf("got day=%d hour=%d minute=%d, want day=1", gt.Day, gt.Hour, gt.Minute)
	}
}

func TestGameTime_AdvanceRollsOverYear(t *testing.T) {
	gt := world.GameTime{}
	minutesPerYear := int64(world.MinutesPerHour * world.HoursPerDay * world.DaysPerMonth * world.MonthsPerYear)
	gt = gt.Advance(minutesPerYear + 1)
	if gt.Year != 1 || gt.Minute != 1 {
		t.Fatalf("got year=%d minute=%d, want year=1 minute=1", gt.Year, gt.Minute)
	}
}

func TestGameTime_AdvanceNeverNegative(t *testing.T) {
	gt := world.GameTime{TotalMinutes: 10}
	gt = gt.Advance(-100)
	if gt.TotalMinutes != 0 {
		t.Fatalf("TotalMinutes = %d, want clamped to 0", gt.TotalMinutes)
	}
}

func TestGameTimeStore_LoadMissingIsZero(t *testing.T) {
	dir := t.TempDir()
	s := world.NewGameTimeStore(filepath.Join(dir, "game_time.jsonc"))
	gt, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gt.TotalMinutes != 0 {
		t.Fatalf("TotalMinutes = %d, want 0", gt.TotalMinutes)
	}
}

func TestGameTimeStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := world.NewGameTimeStore(filepath.Join(dir, "game_time.jsonc"))

	want := world.GameTime{}.Advance(200)
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2 := world.NewGameTimeStore(filepath.Join(dir, "game_time.jsonc"))
	got, err := s2.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestGameTimeStore_Advance(t *testing.T) {
	dir := t.TempDir()
	s := world.NewGameTimeStore(filepath.Join(dir, "game_time.jsonc"))

	gt, err := s.Advance(45)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if gt.Minute != 45 {
		t.Fatalf("Minute = %d, want 45", gt.Minute)
	}

	gt2, err := s.Advance(30)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if gt2.TotalMinutes != 75 {
		t.Fatalf("TotalMinutes = %d, want 75", gt2.TotalMinutes)
	}
}
