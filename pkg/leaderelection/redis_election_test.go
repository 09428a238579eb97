package leaderelection

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethpandaops/godwoken-proxy/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(nodeID string) *Config {
	return &Config{
		TTL:             2 * time.Second,
		RenewalInterval: 50 * time.Millisecond,
		NodeID:          nodeID,
	}
}

func TestRedisElectorAcquiresLeadership(t *testing.T) {
	client, _ := testutil.NewMiniredisClient(t)

	elector, err := NewRedisElector(client, logrus.New(), "test:leader", testConfig("node-a"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, elector.Start(ctx))

	defer func() {
		require.NoError(t, elector.Stop(ctx))
	}()

	require.Eventually(t, elector.IsLeader, time.Second, 10*time.Millisecond)

	leaderID, err := elector.GetLeaderID()
	require.NoError(t, err)
	assert.Equal(t, "node-a", leaderID)
}

func TestRedisElectorOnlyOneLeader(t *testing.T) {
	client, _ := testutil.NewMiniredisClient(t)

	first, err := NewRedisElector(client, logrus.New(), "test:leader", testConfig("node-a"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, first.Start(ctx))
	require.Eventually(t, first.IsLeader, time.Second, 10*time.Millisecond)

	second, err := NewRedisElector(client, logrus.New(), "test:leader", testConfig("node-b"))
	require.NoError(t, err)
	require.NoError(t, second.Start(ctx))

	// The second elector keeps losing the race while the first renews.
	time.Sleep(200 * time.Millisecond)
	assert.True(t, first.IsLeader())
	assert.False(t, second.IsLeader())

	require.NoError(t, second.Stop(ctx))
	require.NoError(t, first.Stop(ctx))
}

func TestRedisElectorStopReleasesLock(t *testing.T) {
	client, s := testutil.NewMiniredisClient(t)

	elector, err := NewRedisElector(client, logrus.New(), "test:leader", testConfig("node-a"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, elector.Start(ctx))
	require.Eventually(t, elector.IsLeader, time.Second, 10*time.Millisecond)

	require.NoError(t, elector.Stop(ctx))

	assert.False(t, s.Exists("test:leader"))
	assert.False(t, elector.IsLeader())

	_, err = elector.GetLeaderID()
	assert.Error(t, err)
}

func TestRedisElectorFailoverAfterRelease(t *testing.T) {
	client, _ := testutil.NewMiniredisClient(t)

	first, err := NewRedisElector(client, logrus.New(), "test:leader", testConfig("node-a"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, first.Start(ctx))
	require.Eventually(t, first.IsLeader, time.Second, 10*time.Millisecond)

	second, err := NewRedisElector(client, logrus.New(), "test:leader", testConfig("node-b"))
	require.NoError(t, err)
	require.NoError(t, second.Start(ctx))

	require.NoError(t, first.Stop(ctx))

	require.Eventually(t, second.IsLeader, time.Second, 10*time.Millisecond)

	require.NoError(t, second.Stop(ctx))
}

func TestRedisElectorCallbacks(t *testing.T) {
	client, _ := testutil.NewMiniredisClient(t)

	elector, err := NewRedisElector(client, logrus.New(), "test:leader", testConfig("node-a"))
	require.NoError(t, err)

	var gained atomic.Bool

	elector.OnLeadershipChange(func(_ context.Context, isLeader bool) {
		if isLeader {
			gained.Store(true)
		}
	})

	ctx := context.Background()
	require.NoError(t, elector.Start(ctx))

	require.Eventually(t, gained.Load, time.Second, 10*time.Millisecond)

	require.NoError(t, elector.Stop(ctx))
}

func TestRedisElectorGeneratesNodeID(t *testing.T) {
	client, _ := testutil.NewMiniredisClient(t)

	elector, err := NewRedisElector(client, logrus.New(), "test:leader", &Config{
		TTL:             time.Second,
		RenewalInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, elector.nodeID)
}
