package matchmaker

import (
	"sort"

	"github.com/jkeevk/VKinder/internal/vk"
)

// TopPhotoCount is how many photos are attached to a candidate
// announcement.
const TopPhotoCount = 3

// RankPhotos selects at most n photos ordered by descending like
// count, ties kept in input order. The second return value is false
// when the candidate has no photos at all, which is a domain signal
// distinct from an empty selection.
func RankPhotos(photos []vk.Photo, n int) ([]vk.Photo, bool) {
	if len(photos) == 0 {
		return nil, false
	}

	ranked := make([]vk.Photo, len(photos))
	copy(ranked, photos)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Likes > ranked[j].Likes
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, true
}

// AttachmentRefs renders ranked photos as VK attachment references.
func AttachmentRefs(photos []vk.Photo) []string {
	refs := make([]string, 0, len(photos))
	for _, p := range photos {
		refs = append(refs, p.AttachmentRef())
	}
	return refs
}
