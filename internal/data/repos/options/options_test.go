package options

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lms-progress/internal/data/repos/testutil"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	var got []string
	ok, err := s.Get(ctx, "errors", &got)
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if ok {
		t.Fatalf("Get missing: expected ok=false")
	}

	if err := s.Set(ctx, "errors", []string{"a", "b"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "errors", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	ok, err = s.Get(ctx, "errors", &got)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got) != 3 || got[2] != "c" {
		t.Fatalf("Get: unexpected value %v", got)
	}

	if err := s.Set(ctx, "cursor", int64(42)); err != nil {
		t.Fatalf("Set cursor: %v", err)
	}
	var cursor int64
	if ok, err := s.Get(ctx, "cursor", &cursor); err != nil || !ok || cursor != 42 {
		t.Fatalf("Get cursor: ok=%v err=%v cursor=%d", ok, err, cursor)
	}

	if err := s.Delete(ctx, "errors"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, err := s.Get(ctx, "errors", nil); err != nil || ok {
		t.Fatalf("Get after delete: ok=%v err=%v", ok, err)
	}
	if err := s.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestGormStore(t *testing.T) {
	db := testutil.DB(t)
	exerciseStore(t, NewGormStore(db, testutil.Logger(t)))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis option tests")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 2 * time.Second})
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	prefix := fmt.Sprintf("lms-progress-test:%d:", time.Now().UnixNano())
	exerciseStore(t, NewRedisStore(rdb, prefix, testutil.Logger(t)))
}
