package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

const defaultPermissionCachePrefix = "rbac:user_permissions"

// PermissionCache stores the aggregated permission list of each user as JSON.
type PermissionCache struct {
	client *red.Client
	prefix string
}

// NewPermissionCache constructs a permission cache helper.
func NewPermissionCache(client *red.Client, keyPrefix string) *PermissionCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPermissionCachePrefix
	}

	return &PermissionCache{client: client, prefix: prefix}
}

type cachedPermission struct {
	ID          string  `json:"id"`
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Get returns the cached permissions, or repository.ErrNotFound on a miss.
func (c *PermissionCache) Get(ctx context.Context, userID domain.UserID) ([]domain.Permission, error) {
	payload, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get user permissions: %w", err)
	}

	var cached []cachedPermission
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("decode cached permissions: %w", err)
	}

	permissions := make([]domain.Permission, 0, len(cached))
	for _, entry := range cached {
		id, err := domain.ParsePermissionID(entry.ID)
		if err != nil {
			return nil, fmt.Errorf("decode cached permission id: %w", err)
		}
		permission, err := domain.ReconstitutePermission(id, entry.Key, entry.Name, entry.Description)
		if err != nil {
			return nil, fmt.Errorf("decode cached permission %s: %w", entry.ID, err)
		}
		permissions = append(permissions, permission)
	}
	return permissions, nil
}

// Set stores permissions for the user with the provided TTL.
func (c *PermissionCache) Set(ctx context.Context, userID domain.UserID, permissions []domain.Permission, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	cached := make([]cachedPermission, 0, len(permissions))
	for _, permission := range permissions {
		cached = append(cached, cachedPermission{
			ID:          permission.ID().String(),
			Key:         permission.Key().String(),
			Name:        permission.Name(),
			Description: permission.Description(),
		})
	}

	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set user permissions: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry of the user.
func (c *PermissionCache) Invalidate(ctx context.Context, userID domain.UserID) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete user permissions: %w", err)
	}
	return nil
}

func (c *PermissionCache) key(userID domain.UserID) string {
	return fmt.Sprintf("%s:%s", c.prefix, userID.String())
}

var _ port.PermissionCache = (*PermissionCache)(nil)
