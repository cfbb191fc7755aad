package doctors

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingRepo struct {
	*InMemoryRepository
	gets int
}

func (c *countingRepo) GetByID(ctx context.Context, id string) (*Doctor, error) {
	c.gets++
	return c.InMemoryRepository.GetByID(ctx, id)
}

func newCacheFixture(t *testing.T) (*countingRepo, *CachedRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingRepo{InMemoryRepository: NewInMemoryRepository()}
	inner.Put(&Doctor{ID: "doc1", Name: "Dr Test", Speciality: "General", Fees: 100, Available: true})
	return inner, NewCachedRepository(inner, client, time.Minute), mr
}

func TestCachedGetServesFromRedisOnSecondRead(t *testing.T) {
	inner, cache, _ := newCacheFixture(t)

	for i := 0; i < 3; i++ {
		d, err := cache.GetByID(context.Background(), "doc1")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if d.Name != "Dr Test" {
			t.Fatalf("name = %q", d.Name)
		}
	}
	if inner.gets != 1 {
		t.Fatalf("inner gets = %d, want 1 (cache should absorb repeats)", inner.gets)
	}
}

func TestSetAvailabilityInvalidatesCache(t *testing.T) {
	inner, cache, _ := newCacheFixture(t)

	if _, err := cache.GetByID(context.Background(), "doc1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := cache.SetAvailability(context.Background(), "doc1", false); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}

	d, err := cache.GetByID(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("GetByID after invalidate: %v", err)
	}
	if d.Available {
		t.Fatal("expected availability=false after write-through")
	}
	if inner.gets != 2 {
		t.Fatalf("inner gets = %d, want 2 (invalidation forces a reload)", inner.gets)
	}
}

func TestCacheFailureFallsThrough(t *testing.T) {
	inner, cache, mr := newCacheFixture(t)
	mr.Close()

	d, err := cache.GetByID(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("GetByID with redis down: %v", err)
	}
	if d.ID != "doc1" {
		t.Fatalf("doctor = %+v", d)
	}
	if inner.gets != 1 {
		t.Fatalf("inner gets = %d, want 1", inner.gets)
	}
}

func TestCachedListInvalidatedByAvailabilityWrite(t *testing.T) {
	_, cache, _ := newCacheFixture(t)

	list, err := cache.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || !list[0].Available {
		t.Fatalf("list = %+v", list)
	}

	if err := cache.SetAvailability(context.Background(), "doc1", false); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}
	list, err = cache.List(context.Background())
	if err != nil {
		t.Fatalf("List after invalidate: %v", err)
	}
	if list[0].Available {
		t.Fatal("expected stale list entry to be invalidated")
	}
}

func TestUnknownDoctor(t *testing.T) {
	_, cache, _ := newCacheFixture(t)
	if _, err := cache.GetByID(context.Background(), "nope"); err != ErrDoctorNotFound {
		t.Fatalf("err = %v, want ErrDoctorNotFound", err)
	}
}
