package gallery

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/ordering"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_FilterByCategory(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	sess := f.svc.Session("dev")
	assert.Same(t, sess, f.svc.Session("dev"))

	view, err := sess.FilterByCategory(ctx, CategoryAll)
	require.NoError(t, err)
	assert.Equal(t, ordering.SmartPersonalized, view.Algorithm)
	assert.Equal(t, 13, view.TotalItems)
	assert.Equal(t, 5, view.TotalPages)
	assert.Len(t, view.Photos, 3)

	sess.Next()
	view, err = sess.FilterByCategory(ctx, "bangla")
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentPage, "filtering resets the page")
	assert.Equal(t, ordering.Personalized, view.Algorithm)
	assert.Equal(t, 4, view.TotalItems)
	for _, p := range view.Photos {
		assert.Equal(t, "bangla", p.Category)
	}

	view, err = sess.FilterByCategory(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, view.Photos)
	assert.NotNil(t, view.Photos)
	assert.Equal(t, 1, view.TotalPages)
}

func TestSession_PopularCategory(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	_, err := f.svc.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, f.svc.Click(ctx, "dev", models.PhotoRef{Table: "illustration_1", ID: "3"}))
	f.svc.Views(ctx, []string{"bangla_quotes_1-2"})

	view, err := f.svc.Session("dev").FilterByCategory(ctx, CategoryPopular)
	require.NoError(t, err)
	assert.Equal(t, ordering.MostPopular, view.Algorithm)
	require.Len(t, view.Photos, 13)
	assert.Equal(t, "illustration_1-3", view.Photos[0].CompositeKey)
	assert.Equal(t, "bangla_quotes_1-2", view.Photos[1].CompositeKey)
	f.sync.Wait()
}

func TestSession_ShuffleResetsPage(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	sess := f.svc.Session("dev")
	_, err := sess.FilterByCategory(ctx, CategoryAll)
	require.NoError(t, err)
	sess.GoTo(3)

	view, err := sess.Shuffle(ctx, ordering.Random)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CurrentPage)
	assert.Equal(t, ordering.Random, view.Algorithm)
	assert.Equal(t, 13, view.TotalItems)
}

func TestSession_ViewKeepsOrderWhilePaging(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	sess := f.svc.Session("dev")

	first, err := sess.View(ctx, CategoryAll, ordering.Random, 1, 0)
	require.NoError(t, err)
	second, err := sess.View(ctx, CategoryAll, ordering.Random, 2, 0)
	require.NoError(t, err)
	again, err := sess.View(ctx, CategoryAll, "", 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, second.CurrentPage)
	assert.Equal(t, first.Photos, again.Photos, "paging does not reshuffle")

	seen := map[string]bool{}
	for _, p := range append(first.Photos, second.Photos...) {
		assert.False(t, seen[p.CompositeKey])
		seen[p.CompositeKey] = true
	}

	last, err := sess.View(ctx, CategoryAll, ordering.Random, 99, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, last.CurrentPage)
	assert.Len(t, last.Photos, 1)
}

func TestSession_ViewChangesLimit(t *testing.T) {
	f := newFixture(t, 4)
	view, err := f.svc.Session("dev").View(context.Background(), "", "", 1, 10)
	require.NoError(t, err)
	assert.Len(t, view.Photos, 10)
	assert.Equal(t, 2, view.TotalPages)
	assert.Equal(t, CategoryAll, view.Category)
}

func TestSession_ReorderAfterReload(t *testing.T) {
	f := newFixture(t, 20)
	ctx := context.Background()
	sess := f.svc.Session("dev")
	view, err := sess.View(ctx, CategoryAll, "", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 13, view.TotalItems)

	f.store.AddRecord("photography_1", models.RawRecord{"id": "99", "image": "https://e.com/99.jpg"})
	_, err = f.svc.Reload(ctx)
	require.NoError(t, err)

	view, err = sess.View(ctx, CategoryAll, "", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 14, view.TotalItems)
}

func TestSession_IdleSessionsAreEvicted(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixtureWithOptions(t, Options{
		PageSize:   4,
		SessionTTL: time.Minute,
		Clock:      func() time.Time { return now },
	})
	ctx := context.Background()

	sess := f.svc.Session("dev")
	_, err := sess.View(ctx, CategoryAll, ordering.Random, 2, 0)
	require.NoError(t, err)
	assert.Same(t, sess, f.svc.Session("dev"))

	now = now.Add(2 * time.Minute)
	fresh := f.svc.Session("dev")
	assert.NotSame(t, sess, fresh)
	assert.Equal(t, 1, fresh.Current().CurrentPage)
	assert.Equal(t, 1, f.svc.SessionCount())
}

func TestSession_AnonymousTrafficIsBounded(t *testing.T) {
	f := newFixtureWithOptions(t, Options{PageSize: 4, SessionCapacity: 50})
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_, err := f.svc.Session(fmt.Sprintf("anon-%d", i)).View(ctx, CategoryAll, "", 1, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 50, f.svc.SessionCount())
}
