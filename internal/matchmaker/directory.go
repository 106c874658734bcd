package matchmaker

import (
	"context"

	"github.com/jkeevk/VKinder/internal/cache"
	"github.com/jkeevk/VKinder/internal/metrics"
	"github.com/jkeevk/VKinder/internal/vk"
)

// Provider is the slice of the VK API the matchmaker consumes.
// *vk.Client satisfies it; tests plug in a fake.
type Provider interface {
	LookupProfile(ctx context.Context, userID int64) (vk.Profile, error)
	SearchCandidates(ctx context.Context, sex, ageMin, ageMax int, cityID int64, count int) ([]int64, error)
	LookupPhotos(ctx context.Context, ownerID int64) ([]vk.Photo, error)
	ResolveCityByName(ctx context.Context, name string) (vk.City, bool, error)
}

// Directory resolves candidate details and city names on top of the
// provider, caching ranked photo refs and resolved cities in Redis so
// repeated lookups do not hit the VK API again.
type Directory struct {
	provider Provider
	cache    *cache.RedisCache
}

func NewDirectory(provider Provider, rc *cache.RedisCache) *Directory {
	return &Directory{provider: provider, cache: rc}
}

// Profile proxies a requester profile lookup.
func (d *Directory) Profile(ctx context.Context, userID int64) (vk.Profile, error) {
	p, err := d.provider.LookupProfile(ctx, userID)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("users.get").Inc()
		return vk.Profile{}, err
	}
	return p, nil
}

// Search runs one candidate search for the given parameters.
func (d *Directory) Search(ctx context.Context, params SearchParams, count int) ([]int64, error) {
	ids, err := d.provider.SearchCandidates(ctx, params.Sex, params.AgeMin, params.AgeMax, params.CityID, count)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("users.search").Inc()
		return nil, err
	}
	return ids, nil
}

// Candidate builds the displayable candidate: short profile info plus
// the top ranked photo attachments. Ranked refs are cached per
// candidate; a cached empty list means the profile has no photos.
func (d *Directory) Candidate(ctx context.Context, candidateID int64) (Candidate, error) {
	profile, err := d.provider.LookupProfile(ctx, candidateID)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("users.get").Inc()
		return Candidate{}, err
	}

	cand := Candidate{
		ID:        candidateID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	}

	if refs, ok := d.cache.GetPhotoRefs(ctx, candidateID); ok {
		cand.PhotoRefs = refs
		cand.HasPhotos = len(refs) > 0
		return cand, nil
	}

	photos, err := d.provider.LookupPhotos(ctx, candidateID)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("photos.get").Inc()
		return Candidate{}, err
	}

	ranked, hasPhotos := RankPhotos(photos, TopPhotoCount)
	cand.PhotoRefs = AttachmentRefs(ranked)
	cand.HasPhotos = hasPhotos
	d.cache.PutPhotoRefs(ctx, candidateID, cand.PhotoRefs)
	return cand, nil
}

// ResolveCity resolves a free-text city name, consulting the cache
// first. The second return value is false when nothing matched.
func (d *Directory) ResolveCity(ctx context.Context, name string) (vk.City, bool, error) {
	if id, title, ok := d.cache.GetCity(ctx, name); ok {
		return vk.City{ID: id, Title: title}, true, nil
	}

	city, found, err := d.provider.ResolveCityByName(ctx, name)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("database.getCities").Inc()
		return vk.City{}, false, err
	}
	if !found {
		return vk.City{}, false, nil
	}

	d.cache.PutCity(ctx, name, city.ID, city.Title)
	return city, true, nil
}
