// Package channel implements named broadcast groups. Channels carry general
// chat as well as the per-table game feed: every table owns one, and
// spectators (kibitzers) subscribe to it without holding a seat.
package channel

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"table-game-server/internal/player"
)

// Errors for channel subscription operations.
var (
	ErrAlreadyConnected = errors.New("already connected to channel")
	ErrNotConnected     = errors.New("not connected to channel")
	ErrBadKey           = errors.New("wrong channel key")
	ErrPermissionDenied = errors.New("channel requires admin privilege")
)

// Channel is a named broadcast group with a subscriber set.
type Channel struct {
	displayName    string
	normalizedName string

	// Persistent channels survive having zero subscribers; non-persistent
	// empty channels are reaped by the directory's cleanup sweep.
	Persistent bool

	// Notify controls whether join/leave notices are broadcast.
	Notify bool

	// Gameable channels may be reused as a table's backing channel.
	Gameable bool

	// Key, when non-empty, must be presented on connect.
	Key string

	subscribers map[string]player.Participant
}

// New creates a channel. The normalized name is the lowercase form of the
// display name and is the channel's unique key.
func New(displayName string) *Channel {
	return &Channel{
		displayName:    displayName,
		normalizedName: Normalize(displayName),
		Notify:         true,
		subscribers:    make(map[string]player.Participant),
	}
}

// Normalize returns the canonical lookup form of a channel or table name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Name returns the display name.
func (c *Channel) Name() string {
	return c.displayName
}

// NormalizedName returns the unique lowercase key.
func (c *Channel) NormalizedName() string {
	return c.normalizedName
}

// Connect adds a participant to the subscriber set. If notifications are
// enabled, existing subscribers (not the joiner) receive a join notice.
func (c *Channel) Connect(p player.Participant, key string) error {
	if _, ok := c.subscribers[p.ID()]; ok {
		return ErrAlreadyConnected
	}
	if c.Key != "" && key != c.Key {
		return ErrBadKey
	}
	if c.Notify {
		c.Broadcast(fmt.Sprintf("%s has joined channel %s.", p.Name(), c.displayName))
	}
	c.subscribers[p.ID()] = p
	return nil
}

// Disconnect removes a participant and, if enabled, broadcasts a leave notice
// to the remaining subscribers.
func (c *Channel) Disconnect(p player.Participant) error {
	if _, ok := c.subscribers[p.ID()]; !ok {
		return ErrNotConnected
	}
	delete(c.subscribers, p.ID())
	if c.Notify {
		c.Broadcast(fmt.Sprintf("%s has left channel %s.", p.Name(), c.displayName))
	}
	return nil
}

// IsConnected reports whether the participant is subscribed.
func (c *Channel) IsConnected(p player.Participant) bool {
	_, ok := c.subscribers[p.ID()]
	return ok
}

// Broadcast sends text to every subscriber.
func (c *Channel) Broadcast(text string) {
	for _, p := range c.subscribers {
		p.Send(text)
	}
}

// Send broadcasts a chat line on behalf of a subscribed participant.
// Returns false when the sender is not subscribed.
func (c *Channel) Send(p player.Participant, text string) bool {
	if _, ok := c.subscribers[p.ID()]; !ok {
		return false
	}
	c.Broadcast(fmt.Sprintf("[%s] %s: %s", c.displayName, p.Name(), text))
	return true
}

// Subscribers returns the current subscribers sorted by display name.
func (c *Channel) Subscribers() []player.Participant {
	subs := make([]player.Participant, 0, len(c.subscribers))
	for _, p := range c.subscribers {
		subs = append(subs, p)
	}
	sort.Slice(subs, func(i, j int) bool {
		return strings.ToLower(subs[i].Name()) < strings.ToLower(subs[j].Name())
	})
	return subs
}

// Empty reports whether the channel has no subscribers.
func (c *Channel) Empty() bool {
	return len(c.subscribers) == 0
}
