package library

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/moodbox/internal/domain/track"
)

func TestLibrary_Add_DedupByPath(t *testing.T) {
	lib := New()

	first, added := lib.Add(track.Track{Path: "/music/a.mp3", Title: "A"})
	require.True(t, added)
	require.NotEmpty(t, first.ID)
	require.False(t, first.AddedAt.IsZero())

	second, added := lib.Add(track.Track{Path: "/music/a.mp3", Title: "A again"})
	assert.False(t, added)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "A", second.Title)
	assert.Equal(t, 1, lib.Len())
}

func TestLibrary_Add_ConcurrentSamePath(t *testing.T) {
	lib := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lib.Add(track.Track{Path: "/music/same.mp3"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, lib.Len())
}

func TestLibrary_Remove(t *testing.T) {
	lib := New()
	added, _ := lib.Add(track.Track{Path: "/music/a.mp3"})

	removed, err := lib.Remove(added.ID)
	require.NoError(t, err)
	assert.Equal(t, added.ID, removed.ID)
	assert.Equal(t, 0, lib.Len())

	// Path is free again after removal.
	_, addedAgain := lib.Add(track.Track{Path: "/music/a.mp3"})
	assert.True(t, addedAgain)

	_, err = lib.Remove("no-such-id")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLibrary_AllPreservesInsertionOrder(t *testing.T) {
	lib := New()
	lib.Add(track.Track{Path: "/music/1.mp3", Title: "one"})
	lib.Add(track.Track{Path: "/music/2.mp3", Title: "two"})
	lib.Add(track.Track{Path: "/music/3.mp3", Title: "three"})

	all := lib.All()
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Title)
	assert.Equal(t, "two", all[1].Title)
	assert.Equal(t, "three", all[2].Title)
}

func TestLibrary_Search(t *testing.T) {
	lib := New()
	lib.Add(track.Track{Path: "/m/1.mp3", Title: "Nightcall", Artist: "Kavinsky"})
	lib.Add(track.Track{Path: "/m/2.mp3", Title: "Something", Artist: "Night Band"})
	lib.Add(track.Track{Path: "/m/3.mp3", Title: "Other", Artist: "Other"})

	assert.Len(t, lib.Search("night"), 2)
	assert.Len(t, lib.Search("kavinsky"), 1)
	assert.Empty(t, lib.Search("zzz"))
}

func TestLibrary_Update(t *testing.T) {
	lib := New()
	added, _ := lib.Add(track.Track{Path: "/m/1.mp3", Title: "Old"})

	added.Custom = &track.Override{Title: "New"}
	require.NoError(t, lib.Update(added))

	got, ok := lib.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, "New", got.EffectiveTitle())

	err := lib.Update(track.Track{ID: "missing", Path: "/m/x.mp3"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLibrary_SetAll_DropsDuplicates(t *testing.T) {
	lib := New()
	lib.SetAll([]track.Track{
		{ID: "1", Path: "/m/1.mp3"},
		{ID: "2", Path: "/m/1.mp3"}, // duplicate path
		{ID: "", Path: "/m/2.mp3"},  // missing ID
		{ID: "3", Path: "/m/3.mp3"},
	})

	assert.Equal(t, 2, lib.Len())
}
