// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events hosts the background workers that observe external state:
// scene updates published on redis and joint feedback from the planner.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/armcell/internal/log"
	"github.com/ManuGH/armcell/internal/metrics"
	"github.com/ManuGH/armcell/internal/planning"
	"github.com/ManuGH/armcell/internal/scene"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrInvalidEvent marks a payload that could not be applied.
var ErrInvalidEvent = errors.New("events: invalid scene event")

// Scene event kinds.
const (
	KindUpsert = "upsert"
	KindMove   = "move"
	KindRemove = "remove"
	KindShift  = "shift"
)

// SceneEvent is the JSON payload published by the perception side.
type SceneEvent struct {
	Kind       string    `json:"kind"`
	ObjectID   string    `json:"objectId"`
	Pose       []float64 `json:"pose,omitempty"`
	Dimensions []float64 `json:"dimensions,omitempty"`
	SideShift  float64   `json:"sideShift,omitempty"`
}

// SceneWriter applies scene mutations.
type SceneWriter interface {
	Add(o scene.Object) error
	Move(id string, pose planning.Pose) error
	Remove(id string) error
	ShiftObject(id string, sideShift float64) (planning.Vec3, error)
}

// RedisConfig holds the subscriber connection settings.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
	Channel  string // Pub/sub channel carrying scene events
}

// SceneSubscriber applies scene events received on a redis channel.
type SceneSubscriber struct {
	client  *redis.Client
	channel string
	scene   SceneWriter
	logger  zerolog.Logger
}

// NewSceneSubscriber connects to redis and verifies the connection.
func NewSceneSubscriber(ctx context.Context, cfg RedisConfig, sc SceneWriter) (*SceneSubscriber, error) {
	if cfg.Channel == "" {
		return nil, errors.New("events: channel is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := xglog.WithComponent("scene-events")
	logger.Info().
		Str("addr", cfg.Addr).
		Str("channel", cfg.Channel).
		Msg("connected to scene event bus")

	return &SceneSubscriber{client: client, channel: cfg.Channel, scene: sc, logger: logger}, nil
}

// Run consumes events until ctx is cancelled. Invalid payloads are logged and skipped.
func (s *SceneSubscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("events: subscribe %s: %w", s.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.Apply([]byte(msg.Payload)); err != nil {
				s.logger.Warn().
					Str(xglog.FieldEvent, "scene.event_invalid").
					Err(err).
					Msg("dropping scene event")
			}
		}
	}
}

// Apply decodes and applies one payload.
func (s *SceneSubscriber) Apply(payload []byte) (err error) {
	defer func() { metrics.RecordSceneEvent("redis", err == nil) }()

	var ev SceneEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ev.ObjectID == "" {
		return fmt.Errorf("%w: missing object id", ErrInvalidEvent)
	}

	switch ev.Kind {
	case KindUpsert:
		pose, err := planning.PoseFromSlice(ev.Pose)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		if len(ev.Dimensions) != 3 {
			return fmt.Errorf("%w: dimensions need 3 values, got %d", ErrInvalidEvent, len(ev.Dimensions))
		}
		return s.scene.Add(scene.Object{
			ID:         ev.ObjectID,
			Pose:       pose,
			Dimensions: planning.Vec3{X: ev.Dimensions[0], Y: ev.Dimensions[1], Z: ev.Dimensions[2]},
		})
	case KindMove:
		pose, err := planning.PoseFromSlice(ev.Pose)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		return s.scene.Move(ev.ObjectID, pose)
	case KindRemove:
		return s.scene.Remove(ev.ObjectID)
	case KindShift:
		_, err := s.scene.ShiftObject(ev.ObjectID, ev.SideShift)
		return err
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
	}
}

// HealthCheck pings redis.
func (s *SceneSubscriber) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis connection.
func (s *SceneSubscriber) Close() error {
	return s.client.Close()
}
