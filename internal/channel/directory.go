package channel

import (
	"sort"

	"github.com/rs/zerolog/log"

	"table-game-server/internal/player"
)

// AdminChannelName is the reserved admin broadcast channel. Connecting to it
// requires the admin predicate to hold.
const AdminChannelName = "admin"

// GlobalChannelName is the server-wide announcement channel.
const GlobalChannelName = "global"

// Directory owns the set of live channels, keyed by normalized name.
// All mutation happens on the engine goroutine.
type Directory struct {
	channels map[string]*Channel
}

// NewDirectory creates an empty channel directory.
func NewDirectory() *Directory {
	return &Directory{channels: make(map[string]*Channel)}
}

// Bootstrap creates the persistent Global and Admin channels.
func (d *Directory) Bootstrap() {
	global := New("Global")
	global.Persistent = true
	global.Notify = false
	d.channels[global.NormalizedName()] = global

	admin := New("Admin")
	admin.Persistent = true
	d.channels[admin.NormalizedName()] = admin

	log.Info().Str("component", "channels").Msg("bootstrapped Global and Admin channels")
}

// Get returns the channel with the given name, matched case-insensitively.
func (d *Directory) Get(name string) (*Channel, bool) {
	c, ok := d.channels[Normalize(name)]
	return c, ok
}

// GetOrCreate returns the named channel, creating a non-persistent one with
// notifications enabled if it does not exist yet.
func (d *Directory) GetOrCreate(name string) *Channel {
	if c, ok := d.Get(name); ok {
		return c
	}
	c := New(name)
	d.channels[c.NormalizedName()] = c
	log.Debug().Str("component", "channels").Str("channel", c.Name()).Msg("channel created on demand")
	return c
}

// Add inserts a pre-built channel. Returns false if the name is taken.
func (d *Directory) Add(c *Channel) bool {
	if _, ok := d.channels[c.NormalizedName()]; ok {
		return false
	}
	d.channels[c.NormalizedName()] = c
	return true
}

// Remove deletes the named channel.
func (d *Directory) Remove(name string) {
	delete(d.channels, Normalize(name))
}

// Connect subscribes a participant to the named channel, creating the channel
// on demand. The admin channel additionally requires admin privilege; that
// check lives here rather than on the channel itself.
func (d *Directory) Connect(p player.Participant, name, key string) error {
	if Normalize(name) == AdminChannelName && !p.IsAdmin() {
		log.Warn().
			Str("component", "channels").
			Str("participant", p.Name()).
			Msg("non-admin attempted to join admin channel")
		return ErrPermissionDenied
	}
	c := d.GetOrCreate(name)
	return c.Connect(p, key)
}

// Disconnect unsubscribes a participant from the named channel.
func (d *Directory) Disconnect(p player.Participant, name string) error {
	c, ok := d.Get(name)
	if !ok {
		return ErrNotConnected
	}
	return c.Disconnect(p)
}

// DisconnectAll removes the participant from every channel. Used on session
// teardown; safe to call for a participant with no subscriptions.
func (d *Directory) DisconnectAll(p player.Participant) {
	for _, c := range d.channels {
		if c.IsConnected(p) {
			_ = c.Disconnect(p)
		}
	}
}

// Cleanup reaps every non-persistent channel with zero subscribers.
// Running it twice in a row removes nothing the second time.
func (d *Directory) Cleanup() {
	for name, c := range d.channels {
		if !c.Persistent && c.Empty() {
			delete(d.channels, name)
			log.Debug().Str("component", "channels").Str("channel", c.Name()).Msg("reaped empty channel")
		}
	}
}

// List returns the live channels sorted by normalized name.
func (d *Directory) List() []*Channel {
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Channel, 0, len(names))
	for _, name := range names {
		out = append(out, d.channels[name])
	}
	return out
}
