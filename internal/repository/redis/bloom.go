package redis

import (
	"context"
	"hash/crc32"
	"hash/fnv"

	"github.com/Guyuepp/engagement-sync/domain"
	"github.com/redis/go-redis/v9"
)

const (
	KeySubjectBloom = "bloom:subject:ids"
)

type redisBloomRepo struct {
	client       *redis.Client
	BloomBitSize uint64
}

var _ domain.BloomRepository = (*redisBloomRepo)(nil)

func NewRedisBloomRepo(client *redis.Client, bitSize uint64) *redisBloomRepo {
	return &redisBloomRepo{
		client:       client,
		BloomBitSize: bitSize,
	}
}

func (r *redisBloomRepo) Add(ctx context.Context, ref domain.SubjectRef) error {
	offsets := r.getOffset(ref)
	pipe := r.client.Pipeline()
	for _, offset := range offsets {
		pipe.SetBit(ctx, KeySubjectBloom, int64(offset), 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisBloomRepo) Exists(ctx context.Context, ref domain.SubjectRef) (bool, error) {
	offsets := r.getOffset(ref)
	pipe := r.client.Pipeline()
	for _, offset := range offsets {
		pipe.GetBit(ctx, KeySubjectBloom, int64(offset))
	}
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}

	for _, cmd := range cmds {
		val, err := cmd.(*redis.IntCmd).Result()
		if err != nil {
			return false, err
		}
		if val == 0 {
			return false, nil
		}
	}

	return true, nil
}

func (r *redisBloomRepo) getOffset(ref domain.SubjectRef) []uint64 {
	data := []byte(ref.String())
	offsets := make([]uint64, 3) // 假设 k=3

	// Hash 1: CRC32
	offsets[0] = uint64(crc32.ChecksumIEEE(data)) % r.BloomBitSize

	// Hash 2: FNV64
	h := fnv.New64()
	h.Write(data)
	offsets[1] = h.Sum64() % r.BloomBitSize

	// Hash 3: 线性混合
	offsets[2] = (offsets[0] + offsets[1] + 0xABC) % r.BloomBitSize

	return offsets
}

func (r *redisBloomRepo) BulkAdd(ctx context.Context, refs []domain.SubjectRef) error {
	if len(refs) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, ref := range refs {
		offsets := r.getOffset(ref)
		for _, offset := range offsets {
			pipe.SetBit(ctx, KeySubjectBloom, int64(offset), 1)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
