package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"realtime-service/internal/database"
)

// PresenceService mirrors which users currently hold at least one realtime
// connection into Redis, where the REST services read it.
type PresenceService struct {
	client *database.RedisClient
}

func NewPresenceService(client *database.RedisClient) *PresenceService {
	return &PresenceService{client: client}
}

func (p *PresenceService) SetUserOnline(ctx context.Context, userID string) error {
	pipe := p.client.GetClient().Pipeline()

	pipe.SAdd(ctx, "online_users", userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":     "online",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 5*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	slog.Debug("User set to online", "userID", userID)
	return nil
}

func (p *PresenceService) SetUserOffline(ctx context.Context, userID string) error {
	pipe := p.client.GetClient().Pipeline()

	pipe.SRem(ctx, "online_users", userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":     "offline",
		"last_seen":  time.Now().Unix(),
		"updated_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	slog.Debug("User set to offline", "userID", userID)
	return nil
}

func (p *PresenceService) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.GetClient().SIsMember(ctx, "online_users", userID).Result()
}

func (p *PresenceService) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.GetClient().SMembers(ctx, "online_users").Result()
}
