package redisstore

import (
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lordnynex/qless-core/store"
)

func wrap(op string, err error) error {
	return fmt.Errorf("qless-core/redisstore: %s: %w", op, err)
}

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toScored(zs []goredis.Z) []store.ScoredMember {
	out := make([]store.ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, store.ScoredMember{Member: member, Score: z.Score})
	}
	return out
}
