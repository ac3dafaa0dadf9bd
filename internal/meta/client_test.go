package meta

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/commander-builder/internal/storage"
)

func newTestClient(t *testing.T, cache Cache, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&Config{
		BaseURL:   server.URL + "/api",
		CacheTTL:  time.Hour,
		RateLimit: time.Millisecond,
	}, cache, nil, nil)
}

func TestTopCommanders(t *testing.T) {
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/commander/", r.URL.Path)
		_, _ = io.WriteString(w, `{"cards":[{"id":"1","name":"Atraxa, Praetors' Voice","color_identity":"WUBG"}]}`)
	})

	top, err := client.TopCommanders(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, []string{"W", "U", "B", "G"}, []string(top[0].ColorIdentity))
}

func TestAvailableCategories(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   []string
	}{
		{"success", http.StatusOK, `{"commander":"Atraxa","available_categories":["New Cards","Top Cards"]}`, []string{"New Cards", "Top Cards"}},
		{"from detail", http.StatusNotFound, `{"detail":"Category 'None' not found. Available categories: New Cards, High Synergy Cards, Top Cards"}`, []string{"New Cards", "High Synergy Cards", "Top Cards"}},
		{"bracketed", http.StatusBadRequest, `{"detail":"Unknown category; choose one of ['Lands', 'Ramp']"}`, []string{"Lands", "Ramp"}},
		{"error field", http.StatusBadRequest, `{"detail":{"code":1},"available_categories":["Creatures"]}`, []string{"Creatures"}},
		{"no categories", http.StatusOK, `{"commander":"Atraxa"}`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/commander/Atraxa/meta", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			got, err := client.AvailableCategories(context.Background(), "Atraxa")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAvailableCategories_UnparseableError(t *testing.T) {
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `oops`)
	})

	_, err := client.AvailableCategories(context.Background(), "Atraxa")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
}

func TestAllMetaCards(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	client := newTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")
		mu.Lock()
		seen[category]++
		mu.Unlock()

		switch category {
		case "":
			_, _ = io.WriteString(w, `{"available_categories":["Top Cards","Empty","Broken"]}`)
		case "Top Cards":
			_, _ = io.WriteString(w, `{"category":"Top Cards","cards":[{"id":"sol","name":"Sol Ring"}]}`)
		case "Empty":
			_, _ = io.WriteString(w, `{"category":"Empty","cards":[]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	byCategory, err := client.AllMetaCards(context.Background(), "Atraxa")
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Sol Ring", byCategory["Top Cards"][0].Name)
	assert.Equal(t, 1, seen["Broken"])
}

func TestFetch_UsesPersistentCache(t *testing.T) {
	db, err := storage.Open(storage.DefaultConfig(":memory:"))
	require.NoError(t, err)
	defer db.Close()

	var calls atomic.Int32
	client := newTestClient(t, storage.NewMetaStore(db), func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"cards":[{"id":"1","name":"Edgar Markov"}]}`)
	})

	for range 3 {
		top, err := client.TopCommanders(context.Background())
		require.NoError(t, err)
		require.Len(t, top, 1)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestCategoriesFromError(t *testing.T) {
	assert.Nil(t, CategoriesFromError([]byte(`not json`)))
	assert.Nil(t, CategoriesFromError([]byte(`{"detail":"Commander not found"}`)))
	assert.Equal(t, []string{"A", "B"}, CategoriesFromError([]byte(`{"detail":"available category: A, B."}`)))
}
