package service

import (
	"context"
	"fmt"
	"time"

	"estatechat/internal/domain"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "demo1234"

// SeedDemo creates a buyer, two agencies and a listing conversation with
// each. It does nothing when the buyer already exists.
func SeedDemo(ctx context.Context, auth *AuthService, users domain.UserRepository, rooms domain.RoomRepository, messages domain.MessageRepository) error {
	existing, err := users.GetByUsername(ctx, "dana")
	if err != nil {
		return fmt.Errorf("check seed: %w", err)
	}
	if existing != nil {
		return nil
	}

	people := []*domain.User{
		{Username: "dana", DisplayName: "Dana Levi", AvatarRef: "avatars/dana.png"},
		{Username: "sunrise", DisplayName: "Sunrise Realty", AvatarRef: "avatars/sunrise.png"},
		{Username: "harbor", DisplayName: "Harbor Homes", AvatarRef: "avatars/harbor.png"},
	}
	for _, u := range people {
		if err := auth.Register(ctx, u, DemoPassword); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	buyer, sunrise, harbor := people[0], people[1], people[2]

	threads := []struct {
		room  *domain.Room
		agent *domain.User
		lines []string
	}{
		{
			room:  &domain.Room{ListingTitle: "Bright 3-room apartment, city centre", ListingImageRef: "listings/101.jpg"},
			agent: sunrise,
			lines: []string{"Hi, is the apartment still available?", "Yes! Would you like to schedule a viewing?"},
		},
		{
			room:  &domain.Room{ListingTitle: "Garden cottage near the harbor", ListingImageRef: "listings/202.jpg"},
			agent: harbor,
			lines: []string{"Is the price negotiable?"},
		},
	}

	start := time.Now().UTC().Add(-time.Hour)
	for _, th := range threads {
		if err := rooms.Create(ctx, th.room, []int64{buyer.ID, th.agent.ID}); err != nil {
			return fmt.Errorf("seed room: %w", err)
		}
		for i, text := range th.lines {
			sender := buyer.ID
			if i%2 == 1 {
				sender = th.agent.ID
			}
			start = start.Add(time.Minute)
			m := &domain.StoredMessage{RoomID: th.room.ID, SenderID: sender, Text: text, CreatedAt: start}
			if err := messages.Create(ctx, m); err != nil {
				return fmt.Errorf("seed message: %w", err)
			}
		}
	}
	return nil
}
