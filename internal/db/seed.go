package db

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo
// requesters and decisions. Useful for poking at the store without a
// live bot.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"favorite_links", "favorite_users", "blacklist_entries", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// --- Requesters ---
	for i := 1; i <= 10; i++ {
		sex := SexMale
		if i > 5 {
			sex = SexFemale
		}
		user := User{
			ID:     int64(i),
			Age:    18 + r.Intn(20),
			Sex:    sex,
			CityID: 1, // Moscow
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}

	// --- Favorited candidates, shared between requesters ---
	for i := 0; i < 20; i++ {
		targetID := int64(100_000 + i)
		refs, _ := json.Marshal([]string{
			fmt.Sprintf("photo%d_%d", targetID, 1),
			fmt.Sprintf("photo%d_%d", targetID, 2),
		})
		fav := FavoriteUser{
			TargetID:  targetID,
			FirstName: fmt.Sprintf("Candidate%d", i),
			LastName:  "Demo",
			PhotoRefs: refs,
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error; err != nil {
			return fmt.Errorf("failed to seed favorite user: %w", err)
		}

		// each candidate is favorited by one or two requesters
		for _, userID := range []int64{int64(i%10 + 1), int64((i+3)%10 + 1)} {
			link := FavoriteLink{UserID: userID, TargetID: targetID}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return fmt.Errorf("failed to seed favorite link: %w", err)
			}
		}
	}

	// --- Blacklist entries ---
	for userID := int64(1); userID <= 10; userID++ {
		for j := 0; j < 3; j++ {
			entry := BlacklistEntry{
				UserID:    userID,
				BlockedID: int64(200_000 + r.Intn(50)),
			}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to seed blacklist entry: %w", err)
			}
		}
	}

	return nil
}
