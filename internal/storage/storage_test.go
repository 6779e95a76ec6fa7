package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/img2pdf/internal/models"
)

func TestSetGetDelete(t *testing.T) {
	store := New()
	store.Set("a", models.NewSession("a"))

	got, ok := store.Get("a")
	if !ok || got.ID != "a" {
		t.Fatalf("Expected session a, got %v (exists=%v)", got, ok)
	}

	store.Delete("a")
	if _, ok := store.Get("a"); ok {
		t.Error("Expected session to be deleted")
	}
}

func TestGetAllOrdered(t *testing.T) {
	store := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		s := models.NewSession(id)
		s.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		store.Set(id, s)
	}

	all := store.GetAll()
	want := []string{"c", "a", "b"}
	for i, s := range all {
		if s.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], s.ID)
		}
	}
}

func TestUpdate(t *testing.T) {
	store := New()
	store.Set("a", models.NewSession("a"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update("a", func(s *models.Session) error {
				s.Add(models.NewImageItem("/same.jpg"))
				return nil
			})
		}()
	}
	wg.Wait()

	s, _ := store.Get("a")
	if s.Len() != 1 {
		t.Errorf("Expected one entry after concurrent duplicate adds, got %d", s.Len())
	}

	err := store.Update("missing", func(*models.Session) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	wantErr := errors.New("rejected")
	if err := store.Update("a", func(*models.Session) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("Expected callback error, got %v", err)
	}
}
