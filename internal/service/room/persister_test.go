package room

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/roomsync/internal/domain"
	roomRedis "github.com/sharetube/roomsync/internal/repository/room/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersister(t *testing.T) (*persister, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	repo := roomRedis.NewRepo(rc, time.Hour, logger)

	return newPersister("r", time.UnixMilli(0), true, repo, logger, time.Second, 200*time.Millisecond), mr
}

func runPersister(t *testing.T, p *persister) {
	t.Helper()
	go p.run()
	p.stop()

	select {
	case <-p.done:
	case <-time.After(3 * time.Second):
		require.FailNow(t, "persister did not stop")
	}
}

func TestPersisterWritesInOrder(t *testing.T) {
	p, mr := newTestPersister(t)
	for seq := uint64(0); seq < 3; seq++ {
		p.enqueue(domain.Event{Seq: seq, Type: domain.EventChat})
	}

	runPersister(t, p)

	assert.False(t, p.isLost())
	assert.True(t, mr.Exists("room:r"))
	items, err := mr.List("room:r:events")
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestPersisterDropsLogAfterLostAppend(t *testing.T) {
	p, mr := newTestPersister(t)
	p.enqueue(domain.Event{Seq: 0, Type: domain.EventChat})
	// seq 1 never arrives: the append conflicts and cannot be retried
	p.enqueue(domain.Event{Seq: 2, Type: domain.EventChat})
	p.enqueue(domain.Event{Seq: 3, Type: domain.EventChat})

	runPersister(t, p)

	assert.True(t, p.isLost())
	assert.False(t, mr.Exists("room:r"))
	assert.False(t, mr.Exists("room:r:events"))
}
