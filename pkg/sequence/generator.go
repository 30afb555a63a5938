package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"promowheel/pkg/rediskey"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("sequence",
	fx.Provide(NewGenerator),
)

// Generator produces the unique part of a voucher code. Callers still
// re-check uniqueness against storage.
type Generator interface {
	NextVoucherSuffix(ctx context.Context, prefix string) (string, error)
}

type Params struct {
	fx.In

	Redis *redis.Client   `optional:"true"`
	Node  *snowflake.Node
}

// NewGenerator uses the redis sequence when a client is wired and falls
// back to snowflake ids whenever redis fails.
func NewGenerator(p Params) Generator {
	fallback := NewSnowflakeGenerator(p.Node)
	if p.Redis == nil {
		return fallback
	}
	return &withFallback{primary: NewRedisGenerator(p.Redis), secondary: fallback}
}

type RedisGenerator struct {
	rdb *redis.Client
}

func NewRedisGenerator(rdb *redis.Client) *RedisGenerator {
	return &RedisGenerator{rdb: rdb}
}

func (g *RedisGenerator) NextVoucherSuffix(ctx context.Context, prefix string) (string, error) {
	seq, err := g.rdb.Incr(ctx, rediskey.BuildVoucherSequenceKey(prefix)).Result()
	if err != nil {
		return "", err
	}

	// base36 sequence, padded to 4, plus 4 random characters so codes are not guessable
	encodedSeq := strings.ToUpper(fmt.Sprintf("%04s", strconv.FormatInt(seq, 36)))
	randSuffix, err := randomAlphaNumeric(4)
	if err != nil {
		return "", err
	}

	return encodedSeq + randSuffix, nil
}

type SnowflakeGenerator struct {
	node *snowflake.Node
}

func NewSnowflakeGenerator(node *snowflake.Node) *SnowflakeGenerator {
	return &SnowflakeGenerator{node: node}
}

func (g *SnowflakeGenerator) NextVoucherSuffix(ctx context.Context, prefix string) (string, error) {
	return strings.ToUpper(g.node.Generate().Base36()), nil
}

type withFallback struct {
	primary   Generator
	secondary Generator
}

func (g *withFallback) NextVoucherSuffix(ctx context.Context, prefix string) (string, error) {
	suffix, err := g.primary.NextVoucherSuffix(ctx, prefix)
	if err == nil {
		return suffix, nil
	}
	zap.L().Warn("voucher sequence unavailable, using snowflake suffix", zap.String("prefix", prefix), zap.Error(err))
	return g.secondary.NextVoucherSuffix(ctx, prefix)
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
