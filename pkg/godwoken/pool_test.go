package godwoken

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/godwoken-proxy/pkg/godwoken/node"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolEmpty(t *testing.T) {
	pool := NewPool(logrus.New(), "test", &Config{})

	assert.False(t, pool.HasNodes())
	assert.False(t, pool.HasHealthyNodes())
	assert.Nil(t, pool.GetHealthyNode())
}

func TestPoolWaitForHealthyNodeNoNodes(t *testing.T) {
	pool := NewPool(logrus.New(), "test", &Config{})

	_, err := pool.WaitForHealthyNode(context.Background())
	assert.Error(t, err)
}

func TestPoolWaitForHealthyNodeContextCancelled(t *testing.T) {
	pool := NewPool(logrus.New(), "test", &Config{
		Nodes: []*node.Config{{Name: "primary", Address: "http://localhost:8119"}},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := pool.WaitForHealthyNode(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())

	assert.Error(t, (&Config{
		Nodes: []*node.Config{{Name: "primary"}},
	}).Validate())

	assert.NoError(t, (&Config{
		Nodes: []*node.Config{{Name: "primary", Address: "http://localhost:8119"}},
	}).Validate())
}
