package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/Guyuepp/engagement-sync/internal/repository/cache"
)

const (
	KeySubject         = "subject:%s"
	KeyUserLiked       = "user:%d:liked:%s"
	KeyLikesBuffer     = "subject:likes:%s"
	KeyViewsBuffer     = "subject:views:buffer"
	KeyViewsProcessing = "subject:views:processing"

	// likedSetSentinel 占位成员，保证空点赞集合也能与"未缓存"区分开
	likedSetSentinel = "__init__"

	likedSetTTLSec = 1800
)

type engagementCache struct {
	client *redis.Client
}

var _ domain.EngagementCache = (*engagementCache)(nil)

func NewEngagementCache(client *redis.Client) *engagementCache {
	return &engagementCache{
		client,
	}
}

func subjectKey(ref domain.SubjectRef) string {
	return fmt.Sprintf(KeySubject, ref.String())
}

func userLikedKey(kind domain.SubjectKind, uid int64) string {
	return fmt.Sprintf(KeyUserLiked, uid, kind.Slug())
}

// GetSubject 返回缓存的 subject 以及它是否已逻辑过期
func (c *engagementCache) GetSubject(ctx context.Context, ref domain.SubjectRef) (domain.Subject, bool, error) {
	data, err := c.client.Get(ctx, subjectKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Subject{}, false, domain.ErrCacheMiss
	} else if err != nil {
		return domain.Subject{}, false, err
	}

	var wrapped cache.SubjectWithLogicalExpire
	if err = json.Unmarshal(data, &wrapped); err != nil {
		return domain.Subject{}, false, err
	}
	return wrapped.Subject, wrapped.IsLogicalExpired(), nil
}

func (c *engagementCache) SetSubject(ctx context.Context, s *domain.Subject, ttl time.Duration) error {
	wrapped := cache.NewSubjectWithLogicalExpire(*s, ttl)
	data, err := json.Marshal(wrapped)
	if err != nil {
		return err
	}
	// 物理 TTL 放宽到逻辑 TTL 的若干倍，过期重建靠逻辑时间
	return c.client.Set(ctx, subjectKey(s.Ref), string(data), 10*ttl).Err()
}

func (c *engagementCache) DeleteSubject(ctx context.Context, ref domain.SubjectRef) error {
	return c.client.Del(ctx, subjectKey(ref)).Err()
}

func (c *engagementCache) IncrViews(ctx context.Context, ref domain.SubjectRef) (int64, error) {
	return c.client.HIncrBy(ctx, KeyViewsBuffer, ref.String(), 1).Result()
}

func (c *engagementCache) GetViewsDelta(ctx context.Context, ref domain.SubjectRef) (int64, error) {
	val, err := c.client.HGet(ctx, KeyViewsBuffer, ref.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (c *engagementCache) FetchAndResetViews(ctx context.Context) (map[domain.SubjectRef]int64, error) {
	result := make(map[domain.SubjectRef]int64)
	err := c.client.Rename(ctx, KeyViewsBuffer, KeyViewsProcessing).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) || strings.Contains(err.Error(), "no such key") {
			return result, nil
		}
		return result, err
	}

	data, err := c.client.HGetAll(ctx, KeyViewsProcessing).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return result, nil
		}
		return result, err
	}

	for field, viewsStr := range data {
		ref, err := parseRefField(field)
		if err != nil {
			logrus.Errorf("bad view buffer field %q: %v", field, err)
			continue
		}
		views, _ := strconv.ParseInt(viewsStr, 10, 64)
		result[ref] = views
	}

	c.client.Del(ctx, KeyViewsProcessing)

	return result, nil
}

func parseRefField(field string) (domain.SubjectRef, error) {
	slug, id, ok := strings.Cut(field, "/")
	if !ok {
		return domain.SubjectRef{}, domain.ErrBadParamInput
	}
	kind, err := domain.ParseSubjectKind(slug)
	if err != nil {
		return domain.SubjectRef{}, err
	}
	return domain.SubjectRef{Kind: kind, ID: id}, nil
}

func (c *engagementCache) GetLikeCount(ctx context.Context, ref domain.SubjectRef) (int64, error) {
	resStr, err := c.client.Get(ctx, fmt.Sprintf(KeyLikesBuffer, ref.String())).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrCacheMiss
	} else if err != nil {
		return 0, err
	}

	likes, err := strconv.ParseInt(resStr, 10, 64)
	if err != nil {
		logrus.Errorf("strconv.ParseInt failed: %v", err)
		return 0, err
	}
	return max(likes, 0), nil
}

func (c *engagementCache) SetLikeCount(ctx context.Context, ref domain.SubjectRef, likes int64) error {
	return c.client.Set(ctx, fmt.Sprintf(KeyLikesBuffer, ref.String()), likes, 30*time.Minute).Err()
}

var addLikeScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1 -- 未缓存, 需要加载缓存
	end

	if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
		return 0 -- 已点赞
	else
		redis.call('SADD', KEYS[1], ARGV[1])
		redis.call('EXPIRE', KEYS[1], ` + strconv.Itoa(likedSetTTLSec) + `)

		if redis.call('EXISTS', KEYS[2]) == 1 then
			redis.call('INCR', KEYS[2])
		end

		return 1 -- 点赞成功
	end
`)

var decrLikeScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1 -- 未缓存, 需要加载缓存
	end

	if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 0 then
		return 0 -- 未点赞
	else
		redis.call('SREM', KEYS[1], ARGV[1])
		redis.call('EXPIRE', KEYS[1], ` + strconv.Itoa(likedSetTTLSec) + `)

		if redis.call('EXISTS', KEYS[2]) == 1 then
			redis.call('DECR', KEYS[2])
		end

		return 1 -- 取消赞成功
	end
`)

// AddLikeRecord 原子地检查并写入点赞记录。
// 返回 (true, nil) 表示状态发生了翻转, (false, nil) 表示重复点赞,
// ErrCacheMiss 表示该用户的点赞集合尚未加载。
func (c *engagementCache) AddLikeRecord(ctx context.Context, rec domain.LikeRecord) (bool, error) {
	keys := []string{
		userLikedKey(rec.Subject.Kind, rec.UserID),
		fmt.Sprintf(KeyLikesBuffer, rec.Subject.String()),
	}
	args := []any{rec.Subject.ID}

	res, err := addLikeScript.Run(ctx, c.client, keys, args).Int()
	if err != nil {
		return false, err
	}
	switch res {
	case -1:
		return false, domain.ErrCacheMiss
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

func (c *engagementCache) DecrLikeRecord(ctx context.Context, rec domain.LikeRecord) (bool, error) {
	keys := []string{
		userLikedKey(rec.Subject.Kind, rec.UserID),
		fmt.Sprintf(KeyLikesBuffer, rec.Subject.String()),
	}
	args := []any{rec.Subject.ID}

	res, err := decrLikeScript.Run(ctx, c.client, keys, args).Int()
	if err != nil {
		return false, err
	}
	switch res {
	case -1:
		return false, domain.ErrCacheMiss
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

func (c *engagementCache) IsLiked(ctx context.Context, rec domain.LikeRecord) (bool, error) {
	return c.client.SIsMember(ctx, userLikedKey(rec.Subject.Kind, rec.UserID), rec.Subject.ID).Result()
}

var isLikedBatchScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return nil
	end

	redis.call('EXPIRE', KEYS[1], ` + strconv.Itoa(likedSetTTLSec) + `)

	local results = {}
	for i, id in ipairs(ARGV) do
		results[i] = redis.call('SISMEMBER', KEYS[1], id)
	end
	return results
`)

func (c *engagementCache) IsLikedBatch(ctx context.Context, kind domain.SubjectKind, uid int64, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := isLikedBatchScript.Run(ctx, c.client, []string{userLikedKey(kind, uid)}, args).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	resMap := make(map[string]bool)
	for i, val := range result {
		liked, _ := val.(int64)
		resMap[ids[i]] = liked == 1
	}

	return resMap, nil
}

// SetUserLiked 写入某用户某一类型下已点赞的 subject 集合。
// 总是额外写入一个占位成员，让空集合也能命中缓存。
func (c *engagementCache) SetUserLiked(ctx context.Context, kind domain.SubjectKind, uid int64, ids []string) error {
	members := make([]any, 0, len(ids)+1)
	members = append(members, likedSetSentinel)
	for _, id := range ids {
		members = append(members, id)
	}
	key := userLikedKey(kind, uid)

	pipe := c.client.Pipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, likedSetTTLSec*time.Second)
	_, err := pipe.Exec(ctx)
	return err
}
