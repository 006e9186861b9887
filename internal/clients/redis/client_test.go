package redis

import (
	"context"
	"os"
	"testing"
)

func TestNewClientRequiresAddr(t *testing.T) {
	if _, err := NewClient(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestNewClientPings(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := NewClient(context.Background(), addr)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_ = rdb.Close()
}
