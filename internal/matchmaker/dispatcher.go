package matchmaker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jkeevk/VKinder/internal/metrics"
	"github.com/jkeevk/VKinder/internal/repository"
	"github.com/jkeevk/VKinder/internal/vk"
)

// Button labels double as the recognized commands. Matching is
// case-insensitive and exact; anything else falls through to the
// default branch.
const (
	labelSearch             = "Search"
	labelRules              = "Rules"
	labelHelp               = "Help"
	labelChangeCity         = "Change city"
	labelSkip               = "Skip"
	labelAddFavorite        = "Add to favorites"
	labelAddBlacklist       = "Add to blacklist"
	labelViewFavorites      = "View favorites"
	labelMainMenu           = "Main menu"
	labelClearFavorites     = "Clear favorites"
	labelRemoveLastFavorite = "Remove last favorite"
	labelClearBlacklist     = "Clear blacklist"
	labelRemoveLastBlocked  = "Remove last blocked"
)

const rulesText = "Hi! I am a bot that helps you meet people on VK.\n\n" +
	"1. Search: press \"Search\" and I will look for interesting people near you.\n" +
	"2. Add to favorites: liked someone? Save their profile.\n" +
	"3. Add to blacklist: never want to see someone again? Block them.\n" +
	"4. View favorites: everyone you saved, in one list.\n" +
	"5. Skip: not your type? Move on to the next one.\n\n" +
	"Press a button to continue!"

const (
	msgAskCity          = "What city are you in?"
	msgCityNotFound     = "I could not find that city. What city are you in?"
	msgTryAgain         = "Something went wrong, please try again."
	msgNoMoreCandidates = "No more candidates. Back to the main menu."
	msgNoDisplayed      = "No candidate is displayed right now. Press \"Search\" first."
	msgStartSearchFirst = "Start a search first."
	msgMainMenu         = "Back to the main menu."
	msgFallback         = "I did not catch that... Pick one of the buttons:"
	msgFavoritesCleared = "Your favorites list has been cleared."
	msgLastFavoriteGone = "The last favorite has been removed."
	msgBlacklistCleared = "Your blacklist has been cleared."
	msgLastBlockedGone  = "The last blocked user has been removed."
	msgNoFavorites      = "Your favorites list is empty."
)

// Outbound is one message for the transport to deliver. Keyboard and
// Attachment are optional serialized VK payloads.
type Outbound struct {
	UserID     int64
	Text       string
	Keyboard   string
	Attachment string
}

// Dispatcher maps (session state, inbound command) to store
// mutations, stream advances and outbound messages. It never returns
// an error: every failure mode resolves to an outbound message plus a
// well-defined next state.
type Dispatcher struct {
	store       *repository.DecisionStore
	directory   *Directory
	sessions    *Registry
	searchCount int
	log         *slog.Logger
}

func NewDispatcher(store *repository.DecisionStore, directory *Directory, sessions *Registry, searchCount int, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:       store,
		directory:   directory,
		sessions:    sessions,
		searchCount: searchCount,
		log:         log,
	}
}

// HandleEvent runs one inbound event through the state machine and
// returns the outbound messages to deliver. Events that are not new
// messages addressed to the bot are ignored.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev vk.Event) []Outbound {
	if !ev.IsNewMessage || !ev.ToMe {
		return nil
	}

	cmd := strings.ToLower(strings.TrimSpace(ev.Text))
	log := d.log.With("event_id", uuid.NewString(), "user_id", ev.UserID, "text", cmd)
	metrics.EventsTotal.WithLabelValues(commandLabel(cmd)).Inc()

	sess, created := d.sessions.GetOrCreate(ev.UserID)
	if created {
		if out, ok := d.initSession(ctx, sess, log); !ok {
			return out
		}
	}

	if sess.Phase == PhaseCityUnknown {
		return d.handleCityUnknown(ctx, sess, ev.Text, cmd, log)
	}
	return d.handleConfigured(ctx, sess, cmd, log)
}

// initSession registers the requester on first contact and restores
// the persisted city. On provider failure the session is dropped so
// the next event retries from scratch.
func (d *Dispatcher) initSession(ctx context.Context, sess *Session, log *slog.Logger) ([]Outbound, bool) {
	profile, err := d.directory.Profile(ctx, sess.UserID)
	if err != nil {
		log.Warn("profile lookup failed", "err", err)
		d.sessions.Drop(sess.UserID)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}, false
	}

	sess.Params = NormalizeProfile(profile)

	if err := d.store.RegisterUser(ctx, sess.UserID, StoredAge(profile), StoredSex(profile.Sex), profile.CityID); err != nil {
		log.Error("register user failed", "err", err)
		d.sessions.Drop(sess.UserID)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}, false
	}

	// the persisted city wins over the profile one: the user may have
	// switched cities in an earlier process lifetime
	cityID, registered, err := d.store.GetUserCity(ctx, sess.UserID)
	if err != nil || !registered {
		log.Error("city lookup failed", "err", err)
		d.sessions.Drop(sess.UserID)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}, false
	}

	sess.Params.CityID = cityID
	if cityID != CityUnknown {
		sess.Phase = PhaseConfigured
	}
	log.Info("session created", "city_id", cityID, "phase", sess.Phase)
	return nil, true
}

// handleCityUnknown runs the city-resolution sub-flow: rules are
// still answered, everything else is treated as a city name.
func (d *Dispatcher) handleCityUnknown(ctx context.Context, sess *Session, rawText, cmd string, log *slog.Logger) []Outbound {
	switch cmd {
	case "", strings.ToLower(labelSearch):
		// searching is refused until the city is known
		return []Outbound{{UserID: sess.UserID, Text: msgAskCity, Keyboard: mainMenuKeyboard}}
	case strings.ToLower(labelRules), strings.ToLower(labelHelp):
		return []Outbound{{UserID: sess.UserID, Text: rulesText, Keyboard: mainMenuKeyboard}}
	}

	city, found, err := d.directory.ResolveCity(ctx, rawText)
	if err != nil {
		log.Warn("city resolution failed", "err", err)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
	}
	if !found {
		return []Outbound{{UserID: sess.UserID, Text: msgCityNotFound, Keyboard: mainMenuKeyboard}}
	}

	if err := d.store.UpdateUserCity(ctx, sess.UserID, city.ID); err != nil {
		log.Error("city update failed", "err", err)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
	}

	sess.Params.CityID = city.ID
	sess.Phase = PhaseConfigured
	sess.Displayed = nil

	out := []Outbound{{
		UserID:   sess.UserID,
		Text:     fmt.Sprintf("City set to %s.", city.Title),
		Keyboard: mainMenuKeyboard,
	}}

	// seed a fresh stream right away; a failed search just leaves the
	// session without one until the next "search"
	if stream, ok := d.seedStream(ctx, sess, log); ok {
		sess.Stream = stream
	}
	return out
}

// handleConfigured is the main command branch.
func (d *Dispatcher) handleConfigured(ctx context.Context, sess *Session, cmd string, log *slog.Logger) []Outbound {
	switch cmd {
	case strings.ToLower(labelSearch):
		if sess.Stream == nil || sess.Stream.Exhausted() {
			stream, ok := d.seedStream(ctx, sess, log)
			if !ok {
				return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
			}
			sess.Stream = stream
		}
		return d.advance(ctx, sess, log)

	case strings.ToLower(labelSkip):
		if sess.Stream == nil {
			return []Outbound{{UserID: sess.UserID, Text: msgStartSearchFirst, Keyboard: mainMenuKeyboard}}
		}
		return d.advance(ctx, sess, log)

	case strings.ToLower(labelRules), strings.ToLower(labelHelp):
		return []Outbound{{UserID: sess.UserID, Text: rulesText, Keyboard: mainMenuKeyboard}}

	case strings.ToLower(labelChangeCity):
		if err := d.store.UpdateUserCity(ctx, sess.UserID, CityUnknown); err != nil {
			log.Error("city reset failed", "err", err)
			return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
		}
		sess.Phase = PhaseCityUnknown
		sess.Params.CityID = CityUnknown
		sess.Stream = nil
		sess.Displayed = nil
		return []Outbound{{UserID: sess.UserID, Text: msgAskCity, Keyboard: mainMenuKeyboard}}

	case strings.ToLower(labelAddFavorite):
		return d.handleAddFavorite(ctx, sess, log)

	case strings.ToLower(labelAddBlacklist):
		return d.handleAddBlacklist(ctx, sess, log)

	case strings.ToLower(labelViewFavorites):
		return d.handleViewFavorites(ctx, sess, log)

	case strings.ToLower(labelMainMenu):
		return []Outbound{{UserID: sess.UserID, Text: msgMainMenu, Keyboard: mainMenuKeyboard}}

	case strings.ToLower(labelClearFavorites):
		return d.storeOp(ctx, sess, log, "clear favorites", msgFavoritesCleared, d.store.DeleteAllFavorites)

	case strings.ToLower(labelRemoveLastFavorite):
		return d.storeOp(ctx, sess, log, "remove last favorite", msgLastFavoriteGone, d.store.DeleteLastFavorite)

	case strings.ToLower(labelClearBlacklist):
		return d.storeOp(ctx, sess, log, "clear blacklist", msgBlacklistCleared, d.store.DeleteAllBlocked)

	case strings.ToLower(labelRemoveLastBlocked):
		return d.storeOp(ctx, sess, log, "remove last blocked", msgLastBlockedGone, d.store.DeleteLastBlocked)

	default:
		return []Outbound{{UserID: sess.UserID, Text: msgFallback, Keyboard: mainMenuKeyboard}}
	}
}

// seedStream runs one search and shuffles the result into a fresh
// stream. On failure the caller's session keeps its previous stream
// state untouched.
func (d *Dispatcher) seedStream(ctx context.Context, sess *Session, log *slog.Logger) (*CandidateStream, bool) {
	ids, err := d.directory.Search(ctx, sess.Params, d.searchCount)
	if err != nil {
		log.Warn("candidate search failed", "err", err)
		return nil, false
	}
	metrics.SearchesTotal.Inc()
	log.Info("stream seeded", "candidates", len(ids))
	return NewCandidateStream(sess.UserID, ids, d.store), true
}

// advance pulls the next eligible candidate and announces it, or
// reports exhaustion. Exhaustion keeps the session in Configured.
func (d *Dispatcher) advance(ctx context.Context, sess *Session, log *slog.Logger) []Outbound {
	id, ok, err := sess.Stream.Advance(ctx)
	if err != nil {
		log.Error("stream advance failed", "err", err)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
	}
	if !ok {
		metrics.StreamsExhaustedTotal.Inc()
		return []Outbound{{UserID: sess.UserID, Text: msgNoMoreCandidates, Keyboard: mainMenuKeyboard}}
	}

	cand, err := d.directory.Candidate(ctx, id)
	if err != nil {
		log.Warn("candidate lookup failed", "candidate_id", id, "err", err)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
	}

	sess.Displayed = &cand
	metrics.CandidatesShownTotal.Inc()

	text := fmt.Sprintf("%s %s\n%s", cand.FirstName, cand.LastName, cand.ProfileURL())
	if !cand.HasPhotos {
		text += "\n(no photos)"
	}
	return []Outbound{{
		UserID:     sess.UserID,
		Text:       text,
		Keyboard:   searchKeyboard,
		Attachment: strings.Join(cand.PhotoRefs, ","),
	}}
}

// handleAddFavorite persists the displayed candidate as a favorite
// and advances. With nothing displayed it is a guarded no-op.
func (d *Dispatcher) handleAddFavorite(ctx context.Context, sess *Session, log *slog.Logger) []Outbound {
	cand := sess.Displayed
	if cand == nil {
		return []Outbound{{UserID: sess.UserID, Text: msgNoDisplayed, Keyboard: mainMenuKeyboard}}
	}

	if err := d.store.AddToFavorites(ctx, sess.UserID, cand.FirstName, cand.LastName, cand.ID, cand.PhotoRefs); err != nil {
		log.Error("add to favorites failed", "candidate_id", cand.ID, "err", err)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
	}
	metrics.FavoritesTotal.Inc()

	out := []Outbound{{
		UserID:   sess.UserID,
		Text:     fmt.Sprintf("%s\nAdded to favorites.", cand.ProfileURL()),
		Keyboard: favoritesKeyboard,
	}}
	return append(out, d.advance(ctx, sess, log)...)
}

// handleAddBlacklist persists the displayed candidate on the
// blacklist and advances. With nothing displayed it is a guarded
// no-op.
func (d *Dispatcher) handleAddBlacklist(ctx context.Context, sess *Session, log *slog.Logger) []Outbound {
	cand := sess.Displayed
	if cand == nil {
		return []Outbound{{UserID: sess.UserID, Text: msgNoDisplayed, Keyboard: mainMenuKeyboard}}
	}

	if err := d.store.AddToBlacklist(ctx, sess.UserID, cand.ID); err != nil {
		log.Error("add to blacklist failed", "candidate_id", cand.ID, "err", err)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
	}
	metrics.BlacklistsTotal.Inc()

	out := []Outbound{{
		UserID:   sess.UserID,
		Text:     fmt.Sprintf("%s\nAdded to blacklist.", cand.ProfileURL()),
		Keyboard: blacklistKeyboard,
	}}
	return append(out, d.advance(ctx, sess, log)...)
}

func (d *Dispatcher) handleViewFavorites(ctx context.Context, sess *Session, log *slog.Logger) []Outbound {
	favorites, err := d.store.GetFavorites(ctx, sess.UserID)
	if err != nil {
		log.Error("list favorites failed", "err", err)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
	}

	if len(favorites) == 0 {
		return []Outbound{{UserID: sess.UserID, Text: msgNoFavorites, Keyboard: favoritesKeyboard}}
	}

	lines := make([]string, 0, len(favorites))
	for _, fav := range favorites {
		lines = append(lines, fmt.Sprintf("%s %s: https://vk.com/id%d", fav.FirstName, fav.LastName, fav.TargetID))
	}
	return []Outbound{{
		UserID:   sess.UserID,
		Text:     "Your favorites:\n\n" + strings.Join(lines, "\n"),
		Keyboard: favoritesKeyboard,
	}}
}

// storeOp runs one list-maintenance operation against the store.
func (d *Dispatcher) storeOp(ctx context.Context, sess *Session, log *slog.Logger, name, doneMsg string, op func(context.Context, int64) error) []Outbound {
	if err := op(ctx, sess.UserID); err != nil {
		log.Error(name+" failed", "err", err)
		return []Outbound{{UserID: sess.UserID, Text: msgTryAgain}}
	}
	return []Outbound{{UserID: sess.UserID, Text: doneMsg, Keyboard: mainMenuKeyboard}}
}

// commandLabel normalizes free text into a metric label so the
// cardinality of the events counter stays bounded.
func commandLabel(cmd string) string {
	switch cmd {
	case strings.ToLower(labelSearch), strings.ToLower(labelRules), strings.ToLower(labelHelp),
		strings.ToLower(labelChangeCity), strings.ToLower(labelSkip),
		strings.ToLower(labelAddFavorite), strings.ToLower(labelAddBlacklist),
		strings.ToLower(labelViewFavorites), strings.ToLower(labelMainMenu),
		strings.ToLower(labelClearFavorites), strings.ToLower(labelRemoveLastFavorite),
		strings.ToLower(labelClearBlacklist), strings.ToLower(labelRemoveLastBlocked):
		return cmd
	default:
		return "free_text"
	}
}
