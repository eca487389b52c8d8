// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb)
}

func TestCreate_ReturnsLoadableSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.Token)

	loaded, err := s.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, sess.Token, loaded.Token)
	assert.Equal(t, sess.Created.Unix(), loaded.Created.Unix())
}

func TestLoad_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, time.Hour)
	require.NoError(t, err)

	ok, err := s.Exists(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_RemovesSessionAndRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, time.Hour)
	require.NoError(t, err)
	_, err = s.RegisterRole(ctx, sess.ID, "workstation", "conn-1")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, sess.ID))

	ok, err := s.Exists(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	holder, err := s.RoleHolder(ctx, sess.ID, "workstation")
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestRefresh_ExtendsTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Refresh(ctx, sess.ID, time.Hour))
}

func TestRefresh_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Refresh(context.Background(), "nope", time.Hour)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterRoleAndRoleHolder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, time.Hour)
	require.NoError(t, err)

	holder, err := s.RoleHolder(ctx, sess.ID, "workstation")
	require.NoError(t, err)
	assert.Empty(t, holder)

	previous, err := s.RegisterRole(ctx, sess.ID, "workstation", "conn-1")
	require.NoError(t, err)
	assert.Empty(t, previous, "no prior holder to report")
	holder, err = s.RoleHolder(ctx, sess.ID, "workstation")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", holder)
}

func TestRegisterRole_NewerConnectionWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, time.Hour)
	require.NoError(t, err)

	previous, err := s.RegisterRole(ctx, sess.ID, "workstation", "conn-1")
	require.NoError(t, err)
	assert.Empty(t, previous)

	previous, err = s.RegisterRole(ctx, sess.ID, "workstation", "conn-2")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", previous, "the superseded connection id must be reported so it can be closed")

	holder, err := s.RoleHolder(ctx, sess.ID, "workstation")
	require.NoError(t, err)
	assert.Equal(t, "conn-2", holder)
}

func TestUnregisterRole_CompareAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, time.Hour)
	require.NoError(t, err)

	_, err = s.RegisterRole(ctx, sess.ID, "workstation", "conn-1")
	require.NoError(t, err)
	_, err = s.RegisterRole(ctx, sess.ID, "workstation", "conn-2")
	require.NoError(t, err)

	// conn-1 was superseded; its own teardown must not clobber conn-2.
	deleted, err := s.UnregisterRole(ctx, sess.ID, "workstation", "conn-1")
	require.NoError(t, err)
	assert.False(t, deleted, "a superseded connection's unregister must report no deletion")
	holder, err := s.RoleHolder(ctx, sess.ID, "workstation")
	require.NoError(t, err)
	assert.Equal(t, "conn-2", holder, "stale unregister must not remove the current holder")

	deleted, err = s.UnregisterRole(ctx, sess.ID, "workstation", "conn-2")
	require.NoError(t, err)
	assert.True(t, deleted, "the current holder's unregister must report a deletion")
	holder, err = s.RoleHolder(ctx, sess.ID, "workstation")
	require.NoError(t, err)
	assert.Empty(t, holder)
}

func TestChannelKey(t *testing.T) {
	assert.Equal(t, "ch:abc", ChannelKey("abc"))
}
