package matchmaker

import (
	"context"
	"math/rand"
)

// ExclusionSource yields the set of candidate ids a requester must
// never be shown: the union of their blacklist and favorites.
type ExclusionSource interface {
	ExclusionSet(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// CandidateStream is a lazy, finite sequence of eligible candidate
// ids over a one-shot search result. The seed order is shuffled at
// construction so repeated searches do not keep surfacing the same
// head-of-list candidates. A stream is not restartable: once
// exhausted it stays exhausted until a new search seeds a new stream.
//
// Not safe for concurrent use; the bot serializes events per user.
type CandidateStream struct {
	userID     int64
	seed       []int64
	pos        int
	exclusions ExclusionSource
}

// NewCandidateStream seeds a stream for one requester from a single
// search result.
func NewCandidateStream(userID int64, seed []int64, exclusions ExclusionSource) *CandidateStream {
	ids := make([]int64, len(seed))
	copy(ids, seed)
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return &CandidateStream{
		userID:     userID,
		seed:       ids,
		exclusions: exclusions,
	}
}

// Advance returns the next eligible candidate id. The second return
// value is false once the seed list is exhausted; further calls keep
// reporting exhaustion. The exclusion set is fetched fresh on every
// call so decisions made earlier in the conversation take effect
// immediately. Ineligible ids are discarded in a plain loop bounded
// by the seed length.
func (s *CandidateStream) Advance(ctx context.Context) (int64, bool, error) {
	if s.pos >= len(s.seed) {
		return 0, false, nil
	}

	excluded, err := s.exclusions.ExclusionSet(ctx, s.userID)
	if err != nil {
		return 0, false, err
	}

	for s.pos < len(s.seed) {
		id := s.seed[s.pos]
		s.pos++
		if _, skip := excluded[id]; !skip {
			return id, true, nil
		}
	}
	return 0, false, nil
}

// Exhausted reports whether the stream has run dry.
func (s *CandidateStream) Exhausted() bool {
	return s.pos >= len(s.seed)
}

// Remaining reports how many seed ids have not been consumed yet.
// Some of them may still turn out ineligible.
func (s *CandidateStream) Remaining() int {
	return len(s.seed) - s.pos
}
