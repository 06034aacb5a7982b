package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/vango-dev/reactor/internal/config"
	rerrors "github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/timeline"
)

// openStore builds the timeline store selected by cfg. The returned close
// function releases the store and any client it created.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (timeline.Store, func() error, error) {
	switch cfg.Store.Kind {
	case config.StoreS3:
		client := newS3Client(cfg.Store.S3)
		store := timeline.NewS3Store(client, cfg.Store.S3.Bucket, cfg.Store.S3.Prefix)
		logger.Info("timeline store", "kind", "s3", "bucket", cfg.Store.S3.Bucket, "prefix", cfg.Store.S3.Prefix)
		return store, store.Close, nil

	case config.StoreRedis:
		ttl, err := cfg.Store.Redis.TTLDuration()
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, rerrors.FromError(err, rerrors.CodeStoreUnavailable).
				WithSubject("redis " + cfg.Store.Redis.Addr)
		}
		store := timeline.NewRedisStore(client,
			timeline.WithRedisPrefix(cfg.Store.Redis.Prefix),
			timeline.WithTTL(ttl),
		)
		logger.Info("timeline store", "kind", "redis", "addr", cfg.Store.Redis.Addr, "ttl", ttl)
		closeAll := func() error {
			store.Close()
			return client.Close()
		}
		return store, closeAll, nil

	default:
		store := timeline.NewMemoryStore(timeline.WithLimit(100))
		logger.Info("timeline store", "kind", "memory")
		return store, store.Close, nil
	}
}

// newS3Client creates an S3 client from the store section. Credentials are
// read from the standard AWS environment variables.
func newS3Client(c config.S3Config) *s3.Client {
	region := c.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	opts := s3.Options{
		Region:       region,
		UsePathStyle: c.PathStyle,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
					SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
					SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
					Source:          "environment",
				}, nil
			},
		)),
	}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
	}
	return s3.New(opts)
}
