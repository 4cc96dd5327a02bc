// Package ipc is the bounded, ordered channel the Vmspace spawn
// hand-off protocol rides on: a fixed-capacity ring of entries, each
// either a byte message or a capability grant, generalizing circbuf's
// ring-buffer algorithm from raw bytes to framed entries so a
// capability never has to be serialized through memory a receiver
// could forge.
package ipc

import (
	"vanadinite/capability"
	"vanadinite/kernerr"
	"vanadinite/spinlock"
)

// EntryKind distinguishes the two things a Channel carries.
type EntryKind int

const (
	KindMessage EntryKind = iota
	KindCapability
)

// Grant is a capability handed across a Channel together with the
// rights the receiver is permitted.
type Grant struct {
	Cap    capability.Ptr
	Rights capability.Rights
}

// Entry is one slot in a Channel: a message body or a capability grant,
// tagged by Kind.
type Entry struct {
	Kind    EntryKind
	Message []byte
	Grant   Grant
}

// Channel is a bounded FIFO of Entries connecting a parent task to a
// spawned child.
type Channel struct {
	mu   spinlock.Mutex
	buf  []Entry
	head int
	tail int
}

// NewChannel returns a channel able to hold capacity pending entries.
func NewChannel(capacity int) *Channel {
	return &Channel{buf: make([]Entry, capacity)}
}

func (c *Channel) full() bool  { return c.head-c.tail == len(c.buf) }
func (c *Channel) empty() bool { return c.head == c.tail }

// SendMessage enqueues a message carrying body.
func (c *Channel) SendMessage(body []byte) error {
	return c.send(Entry{Kind: KindMessage, Message: append([]byte(nil), body...)})
}

// SendCapability enqueues a capability grant.
func (c *Channel) SendCapability(cap capability.Ptr, rights capability.Rights) error {
	return c.send(Entry{Kind: KindCapability, Grant: Grant{Cap: cap, Rights: rights}})
}

func (c *Channel) send(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full() {
		return kernerr.New(kernerr.WouldBlock, "ipc: channel full")
	}
	c.buf[c.head%len(c.buf)] = e
	c.head++
	return nil
}

// Receive dequeues the next entry in FIFO order, reporting ok=false if
// the channel is empty.
func (c *Channel) Receive() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.empty() {
		return Entry{}, false
	}
	e := c.buf[c.tail%len(c.buf)]
	c.tail++
	return e, true
}
