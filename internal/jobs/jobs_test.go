package jobs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCreateGetAndMergeUpdate(t *testing.T) {
	store := NewStore()
	if err := store.Create("a", Job{Message: "queued", Progress: InitialProgress, OriginalFilename: "x.pdf"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create("a", Job{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	if err := store.Update("a", Patch{Message: Ptr("Generating audio"), Progress: Ptr(0.8)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	job, ok := store.Get("a")
	if !ok {
		t.Fatal("expected job")
	}
	if job.Status != StatusProcessing {
		t.Fatalf("expected status untouched, got %q", job.Status)
	}
	if job.Message != "Generating audio" || job.Progress != 0.8 {
		t.Fatalf("unexpected merge result: %+v", job)
	}
	if job.OriginalFilename != "x.pdf" {
		t.Fatalf("expected untouched field preserved, got %q", job.OriginalFilename)
	}
	if err := store.Update("missing", Patch{}); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewStore()
	_ = store.Create("a", Job{Message: "one"})
	job, _ := store.Get("a")
	job.Message = "mutated"
	again, _ := store.Get("a")
	if again.Message != "one" {
		t.Fatalf("expected snapshot isolation, got %q", again.Message)
	}
}

func TestProgressClamped(t *testing.T) {
	store := NewStore()
	_ = store.Create("a", Job{})
	_ = store.Update("a", Patch{Progress: Ptr(1.5)})
	job, _ := store.Get("a")
	if job.Progress != 1 {
		t.Fatalf("expected clamp to 1, got %v", job.Progress)
	}
}

func TestListNewestFirstAndCounts(t *testing.T) {
	store := NewStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	_ = store.Create("old", Job{})
	_ = store.Create("new", Job{})
	_ = store.Update("old", Patch{Status: Ptr(StatusCompleted)})

	list := store.List()
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "old" {
		t.Fatalf("unexpected order: %+v", list)
	}
	counts := store.Counts()
	if counts[StatusCompleted] != 1 || counts[StatusProcessing] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("job-%d", i)
		if err := store.Create(id, Job{}); err != nil {
			t.Fatal(err)
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			for p := 1; p <= 10; p++ {
				_ = store.Update(id, Patch{Progress: Ptr(float64(p) / 10)})
			}
		}()
		go func() {
			defer wg.Done()
			for p := 0; p < 10; p++ {
				_, _ = store.Get(id)
				_ = store.List()
			}
		}()
	}
	wg.Wait()
	for _, job := range store.List() {
		if job.Progress != 1 {
			t.Fatalf("expected final progress 1 for %s, got %v", job.ID, job.Progress)
		}
	}
}

func TestTerminalJobsOnlyAcceptPublicURL(t *testing.T) {
	store := NewStore()
	_ = store.Create("a", Job{Message: "queued"})
	if err := store.Update("a", Patch{Status: Ptr(StatusCompleted), Message: Ptr("done"), Progress: Ptr(1.0)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.Update("a", Patch{Status: Ptr(StatusFailed), Message: Ptr("Error: late")}); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := store.Update("a", Patch{PublicURL: Ptr("https://cdn.example/a.mp3"), Progress: Ptr(0.5)}); !errors.Is(err, ErrTerminal) {
		t.Fatalf("mixed patch must be rejected, got %v", err)
	}
	if err := store.Update("a", Patch{PublicURL: Ptr("https://cdn.example/a.mp3")}); err != nil {
		t.Fatalf("public url patch: %v", err)
	}

	job, _ := store.Get("a")
	if job.Status != StatusCompleted || job.Message != "done" || job.Progress != 1 {
		t.Fatalf("terminal fields changed: %+v", job)
	}
	if job.PublicURL != "https://cdn.example/a.mp3" {
		t.Fatalf("unexpected public url %q", job.PublicURL)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusProcessing.IsTerminal() || !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}
