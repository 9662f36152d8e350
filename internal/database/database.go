package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/batyrai/backend/internal/config"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Stores bundles the durable backends shared by the API: Postgres for
// user usage records and Redis for job status documents.
type Stores struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// Connect opens both stores. The service must not start without them,
// so any error here is fatal to the caller.
func Connect(cfg *config.Config) (*Stores, error) {
	// PostgreSQL connection with retry logic
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)

	var (
		db  *gorm.DB
		err error
	)
	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d/%d failed: %v. Retrying in 2 seconds...", i+1, maxRetries, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connected successfully")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		sqlDB.Close()
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("Redis connected successfully")

	return &Stores{DB: db, Redis: rdb}, nil
}

// Ping checks both backends; used by the health endpoint.
func (s *Stores) Ping(ctx context.Context) (dbErr, redisErr error) {
	if sqlDB, err := s.DB.DB(); err != nil {
		dbErr = err
	} else {
		dbErr = sqlDB.PingContext(ctx)
	}
	redisErr = s.Redis.Ping(ctx).Err()
	return dbErr, redisErr
}

func (s *Stores) Close() {
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
}
