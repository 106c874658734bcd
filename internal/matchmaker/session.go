package matchmaker

import (
	"fmt"
	"sync"
)

// Phase is the coarse conversational state of a session.
type Phase int

const (
	// PhaseCityUnknown: the requester must name a city before any
	// search can run. Free text is interpreted as a city name.
	PhaseCityUnknown Phase = iota
	// PhaseConfigured: search parameters are known; commands drive
	// the candidate stream.
	PhaseConfigured
)

// Candidate is a discovered counterpart profile as shown to the
// requester. PhotoRefs holds the ranked attachment references;
// HasPhotos is false when the profile has no photos at all.
type Candidate struct {
	ID        int64
	FirstName string
	LastName  string
	PhotoRefs []string
	HasPhotos bool
}

// ProfileURL is the public link included in announcements.
func (c Candidate) ProfileURL() string {
	return fmt.Sprintf("https://vk.com/id%d", c.ID)
}

// Session is the per-requester mutable conversational context: the
// phase, the normalized search parameters, the active candidate
// stream and the currently displayed candidate, so that "favorite"
// and "blacklist" act on the thing just shown.
//
// A session is owned by exactly one worker at a time; the bot's
// per-user fan-out guarantees no two events for the same user are
// processed concurrently.
type Session struct {
	UserID    int64
	Phase     Phase
	Params    SearchParams
	Stream    *CandidateStream
	Displayed *Candidate
}

// Registry holds sessions by requester id. Sessions are created on
// first contact and retained for the process lifetime.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

// GetOrCreate returns the session for a requester, creating it on
// first contact. The second return value is true when a new session
// was created.
func (r *Registry) GetOrCreate(userID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[userID]; ok {
		return sess, false
	}
	sess := &Session{UserID: userID, Phase: PhaseCityUnknown}
	r.sessions[userID] = sess
	return sess, true
}

// Drop removes a session so the next event rebuilds it from scratch.
// Used when session initialization fails halfway.
func (r *Registry) Drop(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
