package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jkeevk/VKinder/internal/db"
)

// Favorite is one favorited candidate as seen by a requester,
// ordered by insertion.
type Favorite struct {
	TargetID  int64
	FirstName string
	LastName  string
}

// DecisionStore provides data access for requesters and their
// blacklist/favorite decisions. All mutating operations are
// idempotent: duplicate inserts are absorbed by unique constraints,
// never surfaced as errors.
type DecisionStore struct {
	db *gorm.DB
}

// NewDecisionStore creates a store bound to the given DB connection.
func NewDecisionStore(database *gorm.DB) *DecisionStore {
	return &DecisionStore{db: database}
}

// RegisterUser creates a requester row if absent. An existing row is
// left untouched, including its city.
func (s *DecisionStore) RegisterUser(ctx context.Context, userID int64, age int, sex string, cityID int64) error {
	user := db.User{ID: userID, Age: age, Sex: sex, CityID: cityID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&user).Error
}

// GetUserCity returns the stored city for a requester, 0 meaning
// unknown. The second return value is false for unregistered users.
func (s *DecisionStore) GetUserCity(ctx context.Context, userID int64) (int64, bool, error) {
	var user db.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return user.CityID, true, nil
}

// UpdateUserCity sets the requester's city. CityID 0 resets it to
// unknown, which is how "change city" parks a user in the
// city-resolution flow.
func (s *DecisionStore) UpdateUserCity(ctx context.Context, userID, cityID int64) error {
	return s.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		Update("city_id", cityID).Error
}

// AddToBlacklist records that userID blocked targetID. Duplicate
// calls are no-ops.
func (s *DecisionStore) AddToBlacklist(ctx context.Context, userID, targetID int64) error {
	entry := db.BlacklistEntry{UserID: userID, BlockedID: targetID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
}

// AddToFavorites upserts the deduplicated candidate row, then the
// requester's edge to it. Re-favoriting an already known candidate
// never rewrites the candidate row.
func (s *DecisionStore) AddToFavorites(ctx context.Context, userID int64, firstName, lastName string, targetID int64, photoRefs []string) error {
	refs, err := json.Marshal(photoRefs)
	if err != nil {
		return fmt.Errorf("encode photo refs: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fav := db.FavoriteUser{
			TargetID:  targetID,
			FirstName: firstName,
			LastName:  lastName,
			PhotoRefs: refs,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error; err != nil {
			return err
		}

		link := db.FavoriteLink{UserID: userID, TargetID: targetID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	})
}

// GetFavorites lists the requester's favorites in insertion order.
func (s *DecisionStore) GetFavorites(ctx context.Context, userID int64) ([]Favorite, error) {
	var favorites []Favorite
	err := s.db.WithContext(ctx).
		Table("favorite_links fl").
		Select("fu.target_id, fu.first_name, fu.last_name").
		Joins("JOIN favorite_users fu ON fu.target_id = fl.target_id").
		Where("fl.user_id = ?", userID).
		Order("fl.id ASC").
		Scan(&favorites).Error
	if err != nil {
		return nil, err
	}
	return favorites, nil
}

// GetBlacklistIDs returns the set of candidate ids the requester has
// blocked.
func (s *DecisionStore) GetBlacklistIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&db.BlacklistEntry{}).
		Where("user_id = ?", userID).
		Pluck("blocked_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

// GetFavoriteIDs returns the set of candidate ids the requester has
// favorited.
func (s *DecisionStore) GetFavoriteIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&db.FavoriteLink{}).
		Where("user_id = ?", userID).
		Pluck("target_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

// ExclusionSet returns the union of the requester's blacklist and
// favorite target ids. Fetched fresh on every call so a decision made
// moments ago is reflected immediately.
func (s *DecisionStore) ExclusionSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	excluded, err := s.GetBlacklistIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	favorites, err := s.GetFavoriteIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for id := range favorites {
		excluded[id] = struct{}{}
	}
	return excluded, nil
}

// DeleteLastFavorite removes the requester's most recently added
// favorite edge. The shared candidate row is removed too, but only
// when no other requester still references it.
func (s *DecisionStore) DeleteLastFavorite(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link db.FavoriteLink
		err := tx.Where("user_id = ?", userID).Order("id DESC").First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Delete(&link).Error; err != nil {
			return err
		}
		return collectOrphan(tx, link.TargetID)
	})
}

// DeleteAllFavorites removes every favorite edge of the requester and
// garbage-collects candidate rows that became orphaned.
func (s *DecisionStore) DeleteAllFavorites(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var targetIDs []int64
		if err := tx.Model(&db.FavoriteLink{}).Where("user_id = ?", userID).Pluck("target_id", &targetIDs).Error; err != nil {
			return err
		}
		if len(targetIDs) == 0 {
			return nil
		}

		if err := tx.Where("user_id = ?", userID).Delete(&db.FavoriteLink{}).Error; err != nil {
			return err
		}
		for _, targetID := range targetIDs {
			if err := collectOrphan(tx, targetID); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteLastBlocked removes the requester's most recently added
// blacklist entry. No-op when the blacklist is empty.
func (s *DecisionStore) DeleteLastBlocked(ctx context.Context, userID int64) error {
	var entry db.BlacklistEntry
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&entry).Error
}

// DeleteAllBlocked clears the requester's blacklist.
func (s *DecisionStore) DeleteAllBlocked(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&db.BlacklistEntry{}).Error
}

// collectOrphan drops a FavoriteUser row once no edge references it.
func collectOrphan(tx *gorm.DB, targetID int64) error {
	var count int64
	if err := tx.Model(&db.FavoriteLink{}).Where("target_id = ?", targetID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Where("target_id = ?", targetID).Delete(&db.FavoriteUser{}).Error
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
