package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostgREST serves one in-memory table per collection.
type fakePostgREST struct {
	mu     sync.Mutex
	rows   map[string][]map[string]any
	gets   atomic.Int32
	status int
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != "secret" || r.Header.Get("Authorization") != "Bearer secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"no api key"}`))
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"message":"forced"}`))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	table := strings.TrimPrefix(r.URL.Path, restPrefix)
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")

	switch r.Method {
	case http.MethodGet:
		f.gets.Add(1)
		_ = json.NewEncoder(w).Encode(f.rows[table])
	case http.MethodPost:
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		for _, existing := range f.rows[table] {
			if existing["id"] == row["id"] {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
				return
			}
		}
		f.rows[table] = append(f.rows[table], row)
		w.WriteHeader(http.StatusCreated)
	case http.MethodPatch, http.MethodDelete:
		var patch map[string]any
		if r.Method == http.MethodPatch {
			_ = json.NewDecoder(r.Body).Decode(&patch)
		}
		var matched []map[string]any
		kept := f.rows[table][:0]
		for _, row := range f.rows[table] {
			if row["id"] != id {
				kept = append(kept, row)
				continue
			}
			for k, v := range patch {
				row[k] = v
			}
			matched = append(matched, row)
			if r.Method == http.MethodPatch {
				kept = append(kept, row)
			}
		}
		f.rows[table] = kept
		if matched == nil {
			matched = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(matched)
	}
}

func newFake() *fakePostgREST {
	return &fakePostgREST{rows: map[string][]map[string]any{}}
}

func TestRESTStore_CRUD(t *testing.T) {
	fake := newFake()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewRESTStore(srv.URL+"/", "secret", time.Second)
	ctx := context.Background()

	want := reservation("res-1", "10:00 AM", today)
	require.NoError(t, s.Insert(ctx, models.CollectionReservations, want.Record()))
	assert.ErrorIs(t, s.Insert(ctx, models.CollectionReservations, want.Record()), domain.ErrDuplicateRecord)

	records, err := s.FetchAll(ctx, models.CollectionReservations, "date")
	require.NoError(t, err)
	require.Len(t, records, 1)
	got, err := models.ReservationFromRecord(records[0])
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Update(ctx, models.CollectionReservations, "res-1", models.Record{"player_name": "Bea"}))
	assert.ErrorIs(t, s.Update(ctx, models.CollectionReservations, "nope", models.Record{"player_name": "x"}), domain.ErrRecordNotFound)

	require.NoError(t, s.Delete(ctx, models.CollectionReservations, "res-1"))
	assert.ErrorIs(t, s.Delete(ctx, models.CollectionReservations, "res-1"), domain.ErrRecordNotFound)
}

func TestRESTStore_StatusMapping(t *testing.T) {
	fake := newFake()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()

	wrongKey := NewRESTStore(srv.URL, "wrong", time.Second)
	assert.ErrorIs(t, wrongKey.Insert(ctx, models.CollectionMembers, models.Member{ID: "m"}.Record()), domain.ErrRecordRejected)

	s := NewRESTStore(srv.URL, "secret", time.Second)
	fake.status = http.StatusBadGateway
	_, err := s.FetchAll(ctx, models.CollectionMembers, "")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	fake.status = http.StatusBadRequest
	assert.ErrorIs(t, s.Insert(ctx, models.CollectionMembers, models.Member{ID: "m"}.Record()), domain.ErrRecordRejected)
}

func TestRESTStore_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	s := NewRESTStore(srv.URL, "secret", time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Insert(ctx, models.CollectionMembers, models.Member{ID: "m"}.Record())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRESTStore_RedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	fake := newFake()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewRESTStore(srv.URL, "secret", time.Second)
	s.UseRedisCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, models.CollectionWaitlist, models.WaitlistEntry{ID: "wl-1", Name: "Kim", Phone: "555"}.Record()))

	for i := 0; i < 3; i++ {
		records, err := s.FetchAll(ctx, models.CollectionWaitlist, "")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	}
	assert.Equal(t, int32(1), fake.gets.Load(), "served from cache after the first fetch")
	assert.True(t, mr.Exists("remote:waitlist:joined_at"))

	require.NoError(t, s.Insert(ctx, models.CollectionWaitlist, models.WaitlistEntry{ID: "wl-2", Name: "Lee", Phone: "777"}.Record()))
	assert.False(t, mr.Exists("remote:waitlist:joined_at"), "writes invalidate the collection")

	records, err := s.FetchAll(ctx, models.CollectionWaitlist, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(2), fake.gets.Load())
}
