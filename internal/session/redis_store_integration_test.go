//go:build integration

package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Krisp140/sebi/internal/domain"
	"github.com/Krisp140/sebi/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RedisStoreSuite гоняет RedisStore против настоящего Redis в контейнере.
type RedisStoreSuite struct {
	suite.Suite
	ctx         context.Context
	container   *tcredis.RedisContainer
	redisClient *redis.Client
	store       *RedisStore
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.container, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")

	host, err := s.container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := s.container.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)

	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(s.T(), s.redisClient.Ping(s.ctx).Err())

	s.store = NewRedisStore(s.redisClient, time.Hour, time.Minute, zap.NewNop())
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redisClient.FlushDB(s.ctx).Err())
}

func (s *RedisStoreSuite) TestAcquireRelease() {
	token, err := s.store.Acquire(s.ctx, "a")
	s.Require().NoError(err)
	_, err = s.store.Acquire(s.ctx, "a")
	s.ErrorIs(err, models.ErrGenerationInProgress)
	s.Require().NoError(s.store.Release(s.ctx, "a", token))
	_, err = s.store.Acquire(s.ctx, "a")
	s.NoError(err)

	ttl, err := s.redisClient.TTL(s.ctx, lockKey("a")).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisStoreSuite) TestReleaseWithStaleTokenKeepsLock() {
	first, err := s.store.Acquire(s.ctx, "b")
	s.Require().NoError(err)
	// Блокировка первого запуска истекла, сессию занял второй запуск
	s.Require().NoError(s.redisClient.Del(s.ctx, lockKey("b")).Err())
	second, err := s.store.Acquire(s.ctx, "b")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Release(s.ctx, "b", first))
	owner, err := s.redisClient.Get(s.ctx, lockKey("b")).Result()
	s.Require().NoError(err)
	s.Equal(second, owner)

	s.Require().NoError(s.store.Release(s.ctx, "b", second))
	s.Equal(int64(0), s.redisClient.Exists(s.ctx, lockKey("b")).Val())
}

func (s *RedisStoreSuite) TestSaveLoad() {
	_, err := s.store.Load(s.ctx, "missing")
	s.ErrorIs(err, ErrSessionNotFound)

	sess := New("b")
	sess.Begin("dog")
	sess.SetStory(testStory)
	s.Require().NoError(sess.MergePanel(0, "https://img/0"))
	s.Require().NoError(s.store.Save(s.ctx, sess))

	loaded, err := s.store.Load(s.ctx, "b")
	s.Require().NoError(err)
	s.Equal(StatusLoading, loaded.Status)
	s.Equal("https://img/0", loaded.Panels[0].ImageURL)
	s.Equal("c1", loaded.Panels[1].Caption)
}

func (s *RedisStoreSuite) TestTrackerOverRedis() {
	tr := NewTracker(s.store, "c", nil, zap.NewNop())
	s.Require().NoError(tr.Begin(s.ctx, "dog"))
	tr.OnStoryReady(s.ctx, testStory)
	tr.OnPanelReady(s.ctx, domain.PanelResult{Index: 0, ImageURL: "https://img/0"})
	tr.OnPanelReady(s.ctx, domain.PanelResult{Index: 1, ImageURL: "https://img/1"})

	loaded, err := s.store.Load(s.ctx, "c")
	s.Require().NoError(err)
	s.Equal(StatusReady, loaded.Status)
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	suite.Run(t, new(RedisStoreSuite))
}
