//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/jsamuelsen/quotebook/internal/adapters/http"
	"github.com/jsamuelsen/quotebook/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotebook/internal/adapters/storage"
	"github.com/jsamuelsen/quotebook/internal/app"
	"github.com/jsamuelsen/quotebook/internal/domain"
)

// newFileBackedServer serves the API over a file backend rooted at dir.
func newFileBackedServer(t *testing.T, dir string) (*httptest.Server, *app.QuoteStore) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	backend, err := storage.NewFile(dir)
	require.NoError(t, err)

	store := app.NewQuoteStore(app.QuoteStoreConfig{
		Storage: backend,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, store.Restore(context.Background()))

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		QuoteHandler: handlers.NewQuoteHandler(store),
		Timeout:      5 * time.Second,
	})

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return srv, store
}

// TestConcurrent_AddsOverHTTP verifies that concurrent adds all land, get
// distinct ids, and are all present after a restart.
func TestConcurrent_AddsOverHTTP(t *testing.T) {
	dir := t.TempDir()
	srv, store := newFileBackedServer(t, dir)

	const numGoroutines = 40

	var (
		wg      sync.WaitGroup
		created int32
	)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			body := fmt.Sprintf(`{"text":"quote %d","author":"author %d"}`, n, n%5)
			resp, err := http.Post(srv.URL+"/api/v1/quotes", "application/json", strings.NewReader(body))
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusCreated {
				atomic.AddInt32(&created, 1)
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(numGoroutines), atomic.LoadInt32(&created))
	assert.Equal(t, numGoroutines, store.Len())
	assert.Len(t, store.ListAuthors(), 5)

	seen := make(map[int64]bool)
	for _, q := range store.Filter("", "") {
		assert.False(t, seen[q.ID], "duplicate id %d", q.ID)
		seen[q.ID] = true
	}

	_, restarted := newFileBackedServer(t, dir)
	assert.Equal(t, store.Filter("", ""), restarted.Filter("", ""))
}

// TestConcurrent_ReadsDuringWrites verifies that readers always observe a
// consistent view while writers add and delete.
func TestConcurrent_ReadsDuringWrites(t *testing.T) {
	_, store := newFileBackedServer(t, t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup

	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				select {
				case <-stop:
					return
				default:
				}

				v := store.Visible(domain.Filter{SearchText: "keep"})
				assert.LessOrEqual(t, len(v.Quotes), v.Total)

				for i := 1; i < len(v.Quotes); i++ {
					assert.Greater(t, v.Quotes[i-1].ID, v.Quotes[i].ID, "collection must stay newest first")
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		keep, err := store.Add(ctx, fmt.Sprintf("keep %d", i), "Writer", "")
		require.NoError(t, err)

		drop, err := store.Add(ctx, fmt.Sprintf("drop %d", i), "Writer", "")
		require.NoError(t, err)

		deleted, err := store.Delete(ctx, drop.ID)
		require.NoError(t, err)
		require.True(t, deleted)

		_, found := store.Find(keep.ID)
		require.True(t, found)
	}

	close(stop)
	wg.Wait()

	assert.Equal(t, 50, store.Len())
	assert.Equal(t, "50 quotes", store.Visible(domain.Filter{SearchText: "keep"}).Stats)
}
