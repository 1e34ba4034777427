package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
)

func TestRedisCache_GetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := newRedisCacheWithClient(db, "test:")

	mock.ExpectGet("test:price:eth").SetVal(`{"usd":1000}`)

	got, found, err := c.Get(context.Background(), "price:eth")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected hit")
	}
	if string(got) != `{"usd":1000}` {
		t.Errorf("got %q", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRedisCache_GetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := newRedisCacheWithClient(db, "test:")

	mock.ExpectGet("test:absent").RedisNil()

	_, found, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get on redis.Nil should not error: %v", err)
	}
	if found {
		t.Error("expected miss")
	}
}

func TestRedisCache_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := newRedisCacheWithClient(db, "test:")

	mock.ExpectSet("test:k", []byte("v"), time.Hour).SetVal("OK")

	if err := c.Set(context.Background(), "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
