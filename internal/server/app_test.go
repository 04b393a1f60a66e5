package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	return c
}

func TestNewMailer(t *testing.T) {
	ctx := context.Background()

	m, err := newMailer(ctx, testConfig(), logging.Nop{})
	require.NoError(t, err)
	assert.IsType(t, &mail.LogTransport{}, m)

	c := testConfig()
	c.MailTransport = "pigeon"
	_, err = newMailer(ctx, c, logging.Nop{})
	require.Error(t, err)
}

func TestNewLimits_NoRedis(t *testing.T) {
	limits, rdb, err := newLimits(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.Nil(t, limits.Reset)
	assert.Nil(t, limits.Signin)
}

func TestNewLimits_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := testConfig()
	c.RedisAddr = mr.Addr()
	c.ResetRequestLimit = 2
	c.RateLimitWindow = time.Minute

	limits, rdb, err := newLimits(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, rdb)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	require.NoError(t, limits.Reset.Allow(ctx, "a@b.com"))
	require.NoError(t, limits.Reset.Allow(ctx, "a@b.com"))
	require.ErrorIs(t, limits.Reset.Allow(ctx, "a@b.com"), common.ErrRateLimited)

	// Signin counters are separate.
	require.NoError(t, limits.Signin.Allow(ctx, "a@b.com"))
}

func TestNewLimits_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := testConfig()
	c.RedisAddr = mr.Addr()
	mr.Close()

	_, rdb, err := newLimits(context.Background(), c)
	require.Error(t, err)
	assert.Nil(t, rdb)
}
