// Command poolgen tops up the pre-generated short code pool.
//
// It is meant to run on a schedule, keeping the pool's supply ahead of the
// allocation rate. Codes already known to the pool are skipped on insert,
// so the tool can safely overshoot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/bigshort-one/bigshort/internal/config"
	"github.com/bigshort-one/bigshort/internal/pool"
	pkgredis "github.com/bigshort-one/bigshort/pkg/redis"
)

// codeAlphabet omits '-' and '_'; those are reserved for custom codes.
const codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const batchSize = 1000

func main() {
	count := flag.Int("n", 10000, "number of codes to generate")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *count); err != nil {
		fmt.Fprintf(os.Stderr, "poolgen: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, count int) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	rdb, err := pkgredis.New(
		ctx,
		cfg.Redis.Addr(),
		pkgredis.WithPassword(cfg.Redis.Password),
		pkgredis.WithDB(cfg.Redis.DB),
	)
	if err != nil {
		return err
	}
	defer rdb.Close()

	codePool := pool.New(rdb)

	var added int64

	for generated := 0; generated < count; {
		n := batchSize
		if remaining := count - generated; remaining < n {
			n = remaining
		}

		codes := make([]string, 0, n)
		for i := 0; i < n; i++ {
			code, err := gonanoid.Generate(codeAlphabet, cfg.Shortener.CodeLength)
			if err != nil {
				return fmt.Errorf("failed to generate code: %w", err)
			}
			codes = append(codes, code)
		}

		batchAdded, err := codePool.Add(ctx, codes...)
		if err != nil {
			return fmt.Errorf("failed to add codes to pool: %w", err)
		}

		added += batchAdded
		generated += n
	}

	size, err := codePool.Size(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pool size: %w", err)
	}

	fmt.Printf("generated %d codes, added %d new, pool size is now %d\n", count, added, size)

	return nil
}
