package matchmaker

import (
	"github.com/jkeevk/VKinder/internal/db"
	"github.com/jkeevk/VKinder/internal/vk"
)

// CityUnknown is the sentinel for a requester whose city has not been
// resolved yet. No search is ever run against it.
const CityUnknown int64 = 0

const (
	minSearchAge = 16
	defaultAge   = 18
	ageWindowLow = 10
	ageWindowUp  = 5
)

// SearchParams are the candidate-search parameters derived from a
// requester's profile.
type SearchParams struct {
	Sex    int // VK sex code of the counterpart
	AgeMin int
	AgeMax int
	CityID int64
}

// NormalizeProfile turns a raw requester profile into search
// parameters: the opposite sex, an age window of [age-10, age+5]
// clamped to the platform minimum of 16, and the profile city.
// A hidden birth date falls back to a default age of 18; a missing
// city propagates the CityUnknown sentinel so the city-resolution
// flow runs instead of a search.
func NormalizeProfile(p vk.Profile) SearchParams {
	age := p.Age
	if age == 0 {
		age = defaultAge
	}

	oppositeSex := vk.SexFemale
	if p.Sex == vk.SexFemale {
		oppositeSex = vk.SexMale
	}

	ageMin := age - ageWindowLow
	if ageMin < minSearchAge {
		ageMin = minSearchAge
	}

	return SearchParams{
		Sex:    oppositeSex,
		AgeMin: ageMin,
		AgeMax: age + ageWindowUp,
		CityID: p.CityID,
	}
}

// StoredAge is the age persisted for a requester, with the same
// default the normalizer applies.
func StoredAge(p vk.Profile) int {
	if p.Age == 0 {
		return defaultAge
	}
	return p.Age
}

// StoredSex maps the VK sex code onto the store's F/M encoding.
func StoredSex(code int) string {
	if code == vk.SexFemale {
		return db.SexFemale
	}
	return db.SexMale
}
