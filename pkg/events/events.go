/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package events

import (
	"sync"
	"time"
)

// Event is one notification, fanned out to every subscriber.
type Event struct {
	Type        string                 `json:"type"`
	ExecutionId int64                  `json:"executionId,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Time        time.Time              `json:"time"`
}

const subscriberBuffer = 64

// Broadcaster fans events out to subscribers. Slow subscribers drop events
// instead of blocking the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	nextId int64
	subs   map[int64]chan Event
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int64]chan Event)}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (b *Broadcaster) Subscribe() (int64, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextId++
	ch := make(chan Event, subscriberBuffer)
	b.subs[b.nextId] = ch
	return b.nextId, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers the event to every subscriber that can take it.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
