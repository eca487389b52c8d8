// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store is the Redis-backed session record store for the relay: it
// owns session creation/lookup/TTL refresh and per-session role
// registration, using the sess:{id} / sess:{id}:roles / ch:{id} key scheme.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id has no record (expired or
// never registered).
var ErrNotFound = errors.New("relay: session not found")

// ErrRoleConflict reports a role already held by a different connection.
// RegisterRole does not return it: it always hands the role to the newer
// connection.
var ErrRoleConflict = errors.New("relay: role already registered")

// Session is the durable record for one paired session.
type Session struct {
	ID      string
	Token   string
	Created time.Time
}

func sessionKey(id string) string { return "sess:" + id }
func rolesKey(id string) string   { return "sess:" + id + ":roles" }

// ChannelKey returns the pub/sub channel name for a session.
func ChannelKey(id string) string { return "ch:" + id }

// Store wraps a redis client with the relay's session schema.
type Store struct {
	rdb *redis.Client
}

// New wraps an already-configured redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Create mints a new session id and token, persists the record with the
// given TTL, and returns it.
func (s *Store) Create(ctx context.Context, ttl time.Duration) (Session, error) {
	sess := Session{
		ID:      uuid.New().String(),
		Token:   uuid.New().String(),
		Created: time.Now(),
	}
	if err := s.save(ctx, sess, ttl); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) save(ctx context.Context, sess Session, ttl time.Duration) error {
	key := sessionKey(sess.ID)
	if err := s.rdb.HSet(ctx, key,
		"token", sess.Token,
		"created", sess.Created.Unix(),
	).Err(); err != nil {
		return fmt.Errorf("relay: save session: %w", err)
	}
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("relay: set session ttl: %w", err)
	}
	// A freshly (re)created session starts with no registered roles.
	s.rdb.Del(ctx, rolesKey(sess.ID))
	return nil
}

// Load fetches a session record. It returns ErrNotFound if the key has
// expired or was never created.
func (s *Store) Load(ctx context.Context, id string) (Session, error) {
	key := sessionKey(id)
	data, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Session{}, fmt.Errorf("relay: load session: %w", err)
	}
	if len(data) == 0 {
		return Session{}, ErrNotFound
	}

	created, _ := strconv.ParseInt(data["created"], 10, 64)
	return Session{
		ID:      id,
		Token:   data["token"],
		Created: time.Unix(created, 0),
	}, nil
}

// Refresh extends a session's TTL, used on every received heartbeat.
func (s *Store) Refresh(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.rdb.Expire(ctx, sessionKey(id), ttl).Result()
	if err != nil {
		return fmt.Errorf("relay: refresh session: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Delete removes the session record and its role map.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.Del(ctx, rolesKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("relay: delete session: %w", err)
	}
	return nil
}

// Exists reports whether a session record is currently present.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("relay: check session exists: %w", err)
	}
	return n > 0, nil
}

// RegisterRole records that connID now holds role for session id,
// overwriting any prior holder (a newer connection always wins). It
// returns the previous holder's connection id, if any, so the caller can
// close that connection with a peer-replaced notice instead of leaving it
// live and subscribed alongside the new one.
func (s *Store) RegisterRole(ctx context.Context, id, role, connID string) (string, error) {
	previous, err := s.RoleHolder(ctx, id, role)
	if err != nil {
		return "", err
	}
	if err := s.rdb.HSet(ctx, rolesKey(id), role, connID).Err(); err != nil {
		return "", fmt.Errorf("relay: register role: %w", err)
	}
	return previous, nil
}

// RoleHolder returns the connection id currently registered for role, or
// "" if no connection holds it.
func (s *Store) RoleHolder(ctx context.Context, id, role string) (string, error) {
	connID, err := s.rdb.HGet(ctx, rolesKey(id), role).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("relay: get role holder: %w", err)
	}
	return connID, nil
}

// UnregisterRole removes the role entry only if it is still held by
// connID (compare-and-delete), so a connection that has already been
// superseded by a newer one cannot clobber the newer registration on its
// own teardown. It reports whether it actually deleted the entry, so a
// superseded connection's teardown can tell it no longer holds the role
// and must not announce a peer-left for a role someone else now holds.
func (s *Store) UnregisterRole(ctx context.Context, id, role, connID string) (bool, error) {
	current, err := s.RoleHolder(ctx, id, role)
	if err != nil {
		return false, err
	}
	if current != connID {
		return false, nil
	}
	if err := s.rdb.HDel(ctx, rolesKey(id), role).Err(); err != nil {
		return false, fmt.Errorf("relay: unregister role: %w", err)
	}
	return true, nil
}
