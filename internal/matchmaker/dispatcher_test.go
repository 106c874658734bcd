package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jkeevk/VKinder/internal/cache"
	"github.com/jkeevk/VKinder/internal/config"
	"github.com/jkeevk/VKinder/internal/db"
	"github.com/jkeevk/VKinder/internal/repository"
	"github.com/jkeevk/VKinder/internal/vk"
)

//
// Test helpers
//

// fakeProvider is an in-memory stand-in for the VK API.
type fakeProvider struct {
	profiles  map[int64]vk.Profile
	photos    map[int64][]vk.Photo
	cities    map[string]vk.City
	searchIDs []int64
	searchErr error
	searches  int
}

func (f *fakeProvider) LookupProfile(_ context.Context, userID int64) (vk.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return vk.Profile{}, fmt.Errorf("profile %d not found", userID)
	}
	return p, nil
}

func (f *fakeProvider) SearchCandidates(_ context.Context, _, _, _ int, _ int64, _ int) ([]int64, error) {
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchIDs, nil
}

func (f *fakeProvider) LookupPhotos(_ context.Context, ownerID int64) ([]vk.Photo, error) {
	return f.photos[ownerID], nil
}

func (f *fakeProvider) ResolveCityByName(_ context.Context, name string) (vk.City, bool, error) {
	city, ok := f.cities[strings.ToLower(strings.TrimSpace(name))]
	return city, ok, nil
}

const requesterID int64 = 1

// newFakeProvider wires a requester (age 25, female, city known) and
// three open candidate profiles with photos.
func newFakeProvider() *fakeProvider {
	fp := &fakeProvider{
		profiles: map[int64]vk.Profile{
			requesterID: {ID: requesterID, FirstName: "Vera", LastName: "K", Sex: vk.SexFemale, Age: 25, CityID: 2},
		},
		photos: map[int64][]vk.Photo{},
		cities: map[string]vk.City{
			"saratov": {ID: 95, Title: "Saratov"},
		},
	}
	for _, id := range []int64{101, 102, 103} {
		fp.profiles[id] = vk.Profile{ID: id, FirstName: fmt.Sprintf("C%d", id), LastName: "Demo", Sex: vk.SexMale, Age: 24, CityID: 2}
		fp.photos[id] = []vk.Photo{
			{ID: 1, OwnerID: id, Likes: 3},
			{ID: 2, OwnerID: id, Likes: 9},
		}
		fp.searchIDs = append(fp.searchIDs, id)
	}
	return fp
}

// newTestDispatcher spins up an in-memory SQLite store and a
// miniredis-backed cache around the fake provider.
func newTestDispatcher(t *testing.T, fp *fakeProvider) (*Dispatcher, *repository.DecisionStore) {
	t.Helper()

	dbase, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err)
	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)

	store := repository.NewDecisionStore(dbase)
	directory := NewDirectory(fp, redisCache)
	log := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests

	return NewDispatcher(store, directory, NewRegistry(), 50, log), store
}

func inbound(text string) vk.Event {
	return vk.Event{IsNewMessage: true, ToMe: true, UserID: requesterID, Text: text}
}

//
// Tests
//

// TestSearchFavoriteBlacklistSkipScenario walks the full decision
// flow: three candidates seeded, first favorited, second blacklisted,
// then the stream runs dry.
func TestSearchFavoriteBlacklistSkipScenario(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, newFakeProvider())

	out := d.HandleEvent(ctx, inbound("Search"))
	require.NotEmpty(t, out)
	sess, _ := d.sessions.GetOrCreate(requesterID)
	require.Equal(t, PhaseConfigured, sess.Phase)
	require.NotNil(t, sess.Displayed)
	first := sess.Displayed.ID

	// announcement carries the profile link and ranked photos
	last := out[len(out)-1]
	assert.Contains(t, last.Text, fmt.Sprintf("https://vk.com/id%d", first))
	assert.Contains(t, last.Attachment, fmt.Sprintf("photo%d_2", first)) // 9 likes ranks first

	out = d.HandleEvent(ctx, inbound("Add to favorites"))
	require.NotEmpty(t, out)
	favorites, err := store.GetFavorites(ctx, requesterID)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, first, favorites[0].TargetID)

	require.NotNil(t, sess.Displayed)
	second := sess.Displayed.ID
	assert.NotEqual(t, first, second)

	out = d.HandleEvent(ctx, inbound("Add to blacklist"))
	require.NotEmpty(t, out)
	blocked, err := store.GetBlacklistIDs(ctx, requesterID)
	require.NoError(t, err)
	_, ok := blocked[second]
	assert.True(t, ok)

	require.NotNil(t, sess.Displayed)
	third := sess.Displayed.ID
	assert.NotEqual(t, first, third)
	assert.NotEqual(t, second, third)

	out = d.HandleEvent(ctx, inbound("Skip"))
	require.Len(t, out, 1)
	assert.Equal(t, msgNoMoreCandidates, out[0].Text)
	assert.Equal(t, PhaseConfigured, sess.Phase)

	// exhaustion is terminal for this stream
	out = d.HandleEvent(ctx, inbound("Skip"))
	require.Len(t, out, 1)
	assert.Equal(t, msgNoMoreCandidates, out[0].Text)
}

// TestExcludedCandidatesNeverShown pre-blocks one of the seeded ids
// and verifies it never surfaces.
func TestExcludedCandidatesNeverShown(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, newFakeProvider())

	require.NoError(t, store.RegisterUser(ctx, requesterID, 25, db.SexFemale, 2))
	require.NoError(t, store.AddToBlacklist(ctx, requesterID, 102))

	d.HandleEvent(ctx, inbound("Search"))
	sess, _ := d.sessions.GetOrCreate(requesterID)

	shown := map[int64]bool{}
	for sess.Displayed != nil && !shown[sess.Displayed.ID] {
		shown[sess.Displayed.ID] = true
		d.HandleEvent(ctx, inbound("Skip"))
	}

	assert.False(t, shown[102])
	assert.Len(t, shown, 2)
}

// TestChangeCityFlow drops the session back into city resolution and
// refuses to search until a valid city name arrives.
func TestChangeCityFlow(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, newFakeProvider())

	d.HandleEvent(ctx, inbound("Search"))
	sess, _ := d.sessions.GetOrCreate(requesterID)
	require.Equal(t, PhaseConfigured, sess.Phase)

	out := d.HandleEvent(ctx, inbound("Change city"))
	require.Len(t, out, 1)
	assert.Equal(t, msgAskCity, out[0].Text)
	assert.Equal(t, PhaseCityUnknown, sess.Phase)
	assert.Nil(t, sess.Stream)
	assert.Nil(t, sess.Displayed)

	cityID, _, err := store.GetUserCity(ctx, requesterID)
	require.NoError(t, err)
	assert.Equal(t, CityUnknown, cityID)

	// searching is refused while the city is unknown
	out = d.HandleEvent(ctx, inbound("Search"))
	require.Len(t, out, 1)
	assert.Equal(t, msgAskCity, out[0].Text)

	// unknown city names keep the sub-flow going
	out = d.HandleEvent(ctx, inbound("Atlantis"))
	require.Len(t, out, 1)
	assert.Equal(t, msgCityNotFound, out[0].Text)
	assert.Equal(t, PhaseCityUnknown, sess.Phase)

	// a real city reconfigures the session and persists the choice
	out = d.HandleEvent(ctx, inbound("Saratov"))
	require.NotEmpty(t, out)
	assert.Contains(t, out[0].Text, "Saratov")
	assert.Equal(t, PhaseConfigured, sess.Phase)
	assert.Equal(t, int64(95), sess.Params.CityID)

	cityID, _, err = store.GetUserCity(ctx, requesterID)
	require.NoError(t, err)
	assert.Equal(t, int64(95), cityID)
}

// TestFavoriteWithoutDisplayedCandidate guards the defect where
// favorite/blacklist acted on an undefined prior candidate.
func TestFavoriteWithoutDisplayedCandidate(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, newFakeProvider())

	// first contact configures the session but displays nothing
	d.HandleEvent(ctx, inbound("Main menu"))
	sess, _ := d.sessions.GetOrCreate(requesterID)
	require.Equal(t, PhaseConfigured, sess.Phase)
	require.Nil(t, sess.Displayed)

	out := d.HandleEvent(ctx, inbound("Add to favorites"))
	require.Len(t, out, 1)
	assert.Equal(t, msgNoDisplayed, out[0].Text)

	out = d.HandleEvent(ctx, inbound("Add to blacklist"))
	require.Len(t, out, 1)
	assert.Equal(t, msgNoDisplayed, out[0].Text)

	favorites, err := store.GetFavorites(ctx, requesterID)
	require.NoError(t, err)
	assert.Empty(t, favorites)
}

// TestSkipWithoutStream asks to skip before any search ran.
func TestSkipWithoutStream(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, newFakeProvider())

	out := d.HandleEvent(ctx, inbound("Skip"))
	require.Len(t, out, 1)
	assert.Equal(t, msgStartSearchFirst, out[0].Text)
}

// TestSearchFailureLeavesSessionUnseeded keeps the session usable
// when the upstream search is down.
func TestSearchFailureLeavesSessionUnseeded(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.searchErr = errors.New("upstream down")
	d, _ := newTestDispatcher(t, fp)

	out := d.HandleEvent(ctx, inbound("Search"))
	require.Len(t, out, 1)
	assert.Equal(t, msgTryAgain, out[0].Text)

	sess, _ := d.sessions.GetOrCreate(requesterID)
	assert.Equal(t, PhaseConfigured, sess.Phase)
	assert.Nil(t, sess.Stream)

	// recovery: the next search succeeds
	fp.searchErr = nil
	d.HandleEvent(ctx, inbound("Search"))
	assert.NotNil(t, sess.Stream)
	assert.NotNil(t, sess.Displayed)
}

// TestSearchReseedsAfterExhaustion verifies that a fresh "search"
// starts a new stream once the previous one ran dry.
func TestSearchReseedsAfterExhaustion(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.searchIDs = []int64{101}
	d, _ := newTestDispatcher(t, fp)

	d.HandleEvent(ctx, inbound("Search"))
	out := d.HandleEvent(ctx, inbound("Skip"))
	require.Len(t, out, 1)
	require.Equal(t, msgNoMoreCandidates, out[0].Text)

	seeded := fp.searches
	d.HandleEvent(ctx, inbound("Search"))
	assert.Equal(t, seeded+1, fp.searches)
}

// TestUnrecognizedInputFallsBackToMenu treats junk as control flow,
// not as an error.
func TestUnrecognizedInputFallsBackToMenu(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, newFakeProvider())

	d.HandleEvent(ctx, inbound("Main menu"))
	out := d.HandleEvent(ctx, inbound("banana"))
	require.Len(t, out, 1)
	assert.Equal(t, msgFallback, out[0].Text)
	assert.NotEmpty(t, out[0].Keyboard)
}

// TestViewFavoritesListing formats the saved candidates with their
// profile links.
func TestViewFavoritesListing(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, newFakeProvider())

	d.HandleEvent(ctx, inbound("Main menu"))

	out := d.HandleEvent(ctx, inbound("View favorites"))
	require.Len(t, out, 1)
	assert.Equal(t, msgNoFavorites, out[0].Text)

	require.NoError(t, store.AddToFavorites(ctx, requesterID, "Anna", "Ivanova", 777, nil))
	out = d.HandleEvent(ctx, inbound("View favorites"))
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Anna Ivanova: https://vk.com/id777")
}

// TestProfileLookupFailureRetriesNextEvent drops the half-built
// session so first contact can be retried.
func TestProfileLookupFailureRetriesNextEvent(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	delete(fp.profiles, requesterID)
	d, _ := newTestDispatcher(t, fp)

	out := d.HandleEvent(ctx, inbound("Search"))
	require.Len(t, out, 1)
	assert.Equal(t, msgTryAgain, out[0].Text)
	assert.Equal(t, 0, d.sessions.Len())

	// profile becomes reachable again
	fp.profiles[requesterID] = vk.Profile{ID: requesterID, Sex: vk.SexFemale, Age: 25, CityID: 2}
	d.HandleEvent(ctx, inbound("Search"))
	assert.Equal(t, 1, d.sessions.Len())
}

// TestEventsNotAddressedToBotAreIgnored
func TestEventsNotAddressedToBotAreIgnored(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, newFakeProvider())

	out := d.HandleEvent(ctx, vk.Event{IsNewMessage: true, ToMe: false, UserID: requesterID, Text: "Search"})
	assert.Nil(t, out)
	out = d.HandleEvent(ctx, vk.Event{IsNewMessage: false, ToMe: true, UserID: requesterID, Text: "Search"})
	assert.Nil(t, out)
	assert.Equal(t, 0, d.sessions.Len())
}
