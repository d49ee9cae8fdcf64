package repository_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/secmon-lab/slackdir/pkg/domain/interfaces"
	"github.com/secmon-lab/slackdir/pkg/repository/firestore"
	"github.com/secmon-lab/slackdir/pkg/repository/memory"
	"github.com/secmon-lab/slackdir/pkg/repository/mongodb"
	"github.com/secmon-lab/slackdir/pkg/repository/redis"
)

func newMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	return memory.New()
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	if err != nil {
		t.Fatalf("failed to create firestore repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

func newMongoDBRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d_", time.Now().UnixNano())
	repo, err := mongodb.New(ctx, uri,
		mongodb.WithDatabase("slackdir_test"),
		mongodb.WithCollectionPrefix(prefix),
	)
	if err != nil {
		t.Fatalf("failed to create mongodb repository: %v", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate mongodb repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close mongodb repository: %v", err)
		}
	})
	return repo
}

func newRedisRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			t.Fatalf("invalid TEST_REDIS_DB: %v", err)
		}
		db = n
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d:", time.Now().UnixNano())
	repo, err := redis.New(ctx, addr, os.Getenv("TEST_REDIS_PASSWORD"), db, redis.WithKeyPrefix(prefix))
	if err != nil {
		t.Fatalf("failed to create redis repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close redis repository: %v", err)
		}
	})
	return repo
}
