package db

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedOptions sizes the demo data set.
type SeedOptions struct {
	Users           int
	FollowsPerUser  int
	Chats           int
	MessagesPerChat int
	// AdminPhones are "+<cc><number>" entries; only those starting with AdminCountryCode are seeded.
	AdminPhones      []string
	AdminCountryCode string
	Clear            bool
}

// SeedSummary counts what a run inserted.
type SeedSummary struct {
	Users    int
	Follows  int
	Chats    int
	Messages int
	Admins   int
}

// SeedTestData populates the database with demo users, a follow graph, chats and messages.
//
// Behavior:
//  1. With Clear set, every table is emptied first (children before parents).
//  2. Users get phones +1 555 000NNNN, are verified and active, and every 4th is private.
//  3. User i follows the next FollowsPerUser users; even/odd neighbours are mutual.
//  4. Chats open between mutual neighbours, each with MessagesPerChat alternating texts.
//
//  5. Admins are created, verified, for each AdminPhones entry in AdminCountryCode.
//
// Re-running without Clear reuses existing users and admins and skips pairs that already have a chat.
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB, opts SeedOptions) (*SeedSummary, error) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	sum := &SeedSummary{}

	if opts.Clear {
		if err := clearAll(db); err != nil {
			return nil, err
		}
		log.Println("Cleared existing data")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, p := range opts.AdminPhones {
			cc := opts.AdminCountryCode
			if cc == "" || !strings.HasPrefix(p, cc) || len(p) == len(cc) {
				continue
			}
			a := Admin{Identity: Identity{CountryCode: cc, Phone: p[len(cc):], IsVerified: true, IsActive: true}, Name: "Admin"}
			var out Admin
			if err := tx.Where("country_code = ? AND phone = ?", a.CountryCode, a.Phone).
				Attrs(a).FirstOrCreate(&out).Error; err != nil {
				return fmt.Errorf("failed to seed admin: %w", err)
			}
			sum.Admins++
		}

		users := make([]User, 0, opts.Users)
		for i := 1; i <= opts.Users; i++ {
			username := fmt.Sprintf("user%d", i)
			u := User{
				Identity: Identity{
					CountryCode: "+1",
					Phone:       fmt.Sprintf("555%07d", i),
					IsVerified:  true,
					IsActive:    true,
				},
				Name:      fmt.Sprintf("Demo User %d", i),
				Username:  &username,
				Bio:       "Seeded account",
				IsPrivate: i%4 == 0,
			}
			var out User
			if err := tx.Where("country_code = ? AND phone = ?", u.CountryCode, u.Phone).
				Attrs(u).FirstOrCreate(&out).Error; err != nil {
				return fmt.Errorf("failed to seed user: %w", err)
			}
			users = append(users, out)
		}
		sum.Users = len(users)
		log.Printf("Seeded %d users.", sum.Users)

		for i := range users {
			for j := 1; j <= opts.FollowsPerUser && i+j < len(users); j++ {
				if err := follow(tx, users[i].ID, users[i+j].ID); err != nil {
					return err
				}
				sum.Follows++
			}
			if i%2 == 0 && i+1 < len(users) {
				if err := follow(tx, users[i+1].ID, users[i].ID); err != nil {
					return err
				}
				sum.Follows++
			}
		}

		for i := 0; i+1 < len(users) && sum.Chats < opts.Chats; i += 2 {
			// Neighbours are mutual only when a follows b.
			if opts.FollowsPerUser < 1 {
				break
			}
			n, created, err := seedChat(tx, r, users[i].ID, users[i+1].ID, opts.MessagesPerChat)
			if err != nil {
				return err
			}
			if !created {
				continue
			}
			sum.Chats++
			sum.Messages += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

var demoLines = []string{
	"hey!", "how was your weekend?", "did you see the game?", "sounds good",
	"let's catch up soon", "sending the photos later", "haha", "on my way",
}

func follow(tx *gorm.DB, followerID, followeeID string) error {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
	if err != nil {
		return fmt.Errorf("failed to seed follow: %w", err)
	}
	return nil
}

func seedChat(tx *gorm.DB, r *rand.Rand, a, b string, messages int) (int, bool, error) {
	var existing int64
	if err := tx.Model(&Chat{}).Where("pair_key = ?", PairKey(a, b)).Count(&existing).Error; err != nil {
		return 0, false, fmt.Errorf("failed to look up chat: %w", err)
	}
	if existing > 0 {
		return 0, false, nil
	}

	chat := Chat{PairKey: PairKey(a, b), IsActive: true}
	if err := tx.Create(&chat).Error; err != nil {
		return 0, false, fmt.Errorf("failed to seed chat: %w", err)
	}
	parts := []ChatParticipant{{ChatID: chat.ID, UserID: a}, {ChatID: chat.ID, UserID: b}}
	if err := tx.Create(&parts).Error; err != nil {
		return 0, false, fmt.Errorf("failed to seed participants: %w", err)
	}
	if messages <= 0 {
		return 0, true, nil
	}

	start := Now().Add(-time.Duration(messages) * time.Minute)
	unread := map[string]int{}
	var last Message
	for k := 0; k < messages; k++ {
		sender, recipient := a, b
		if k%2 == 1 {
			sender, recipient = b, a
		}
		last = Message{
			ChatID:    chat.ID,
			SenderID:  sender,
			Type:      MessageText,
			Content:   demoLines[r.Intn(len(demoLines))],
			CreatedAt: start.Add(time.Duration(k) * time.Minute),
		}
		if err := tx.Create(&last).Error; err != nil {
			return 0, false, fmt.Errorf("failed to seed message: %w", err)
		}
		unread[recipient]++
	}

	if err := tx.Model(&Chat{}).Where("id = ?", chat.ID).Updates(map[string]any{
		"last_message_id": last.ID,
		"last_message_at": last.CreatedAt,
	}).Error; err != nil {
		return 0, false, fmt.Errorf("failed to update chat: %w", err)
	}
	for userID, n := range unread {
		if err := tx.Model(&ChatParticipant{}).
			Where("chat_id = ? AND user_id = ?", chat.ID, userID).
			Update("unread_count", n).Error; err != nil {
			return 0, false, fmt.Errorf("failed to update unread count: %w", err)
		}
	}
	return messages, true, nil
}

// clearAll empties every table, children first.
func clearAll(db *gorm.DB) error {
	models := AllModels()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", models[i], err)
		}
	}
	return nil
}
