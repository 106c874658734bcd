package matchmaker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jkeevk/VKinder/internal/matchmaker"
	"github.com/jkeevk/VKinder/internal/vk"
)

func TestNormalizeProfileAgeClamp(t *testing.T) {
	// age 20: the lower bound clamps to the platform minimum of 16
	params := matchmaker.NormalizeProfile(vk.Profile{Sex: vk.SexFemale, Age: 20, CityID: 1})
	assert.Equal(t, 16, params.AgeMin)
	assert.Equal(t, 25, params.AgeMax)

	// age 30: no clamp
	params = matchmaker.NormalizeProfile(vk.Profile{Sex: vk.SexFemale, Age: 30, CityID: 1})
	assert.Equal(t, 20, params.AgeMin)
	assert.Equal(t, 35, params.AgeMax)
}

func TestNormalizeProfileOppositeSex(t *testing.T) {
	params := matchmaker.NormalizeProfile(vk.Profile{Sex: vk.SexFemale, Age: 25})
	assert.Equal(t, vk.SexMale, params.Sex)

	params = matchmaker.NormalizeProfile(vk.Profile{Sex: vk.SexMale, Age: 25})
	assert.Equal(t, vk.SexFemale, params.Sex)
}

func TestNormalizeProfileDefaultAge(t *testing.T) {
	// hidden birth date: default age of 18 applies, clamped window
	params := matchmaker.NormalizeProfile(vk.Profile{Sex: vk.SexMale, Age: 0})
	assert.Equal(t, 16, params.AgeMin)
	assert.Equal(t, 23, params.AgeMax)
}

func TestNormalizeProfileCityUnknownPropagates(t *testing.T) {
	params := matchmaker.NormalizeProfile(vk.Profile{Sex: vk.SexFemale, Age: 25, CityID: 0})
	assert.Equal(t, matchmaker.CityUnknown, params.CityID)
}
