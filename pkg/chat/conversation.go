package chat

import "sync"

// Conversation is the ordered list of messages of one advisor session.
//
// Only the last message may change after it was appended, and only while it
// is an open assistant message receiving deltas. Every mutation publishes a
// full snapshot of the list to all subscribers, synchronously and in the order
// the mutations were applied. Mutations are expected to come from a single
// writer at a time (the active read loop or the submit path); the mutex only
// keeps concurrent readers and subscriber registration safe.
type Conversation struct {
	mu       sync.Mutex
	messages []Message

	nextID      int
	subscribers map[int]func([]Message)
	order       []int
}

// NewConversation returns an empty Conversation.
func NewConversation() *Conversation {
	return &Conversation{
		subscribers: make(map[int]func([]Message)),
	}
}

// StartUserTurn appends a new user message. It never merges with a previous
// message.
func (c *Conversation) StartUserTurn(text string) {
	c.mutate(func() {
		c.messages = append(c.messages, NewUserMessage(text))
	})
}

// AppendDelta extends the open assistant message with text. If the last
// message is not an assistant message, a new assistant message holding text
// is appended instead.
func (c *Conversation) AppendDelta(text string) {
	c.mutate(func() {
		last := len(c.messages) - 1
		if last >= 0 && c.messages[last].Role == RoleAssistant {
			c.messages[last].Content += text
			return
		}
		c.messages = append(c.messages, NewAssistantMessage(text))
	})
}

// AppendAssistant appends a new, separate assistant message. A partially
// streamed assistant message before it is left untouched.
func (c *Conversation) AppendAssistant(text string) {
	c.mutate(func() {
		c.messages = append(c.messages, NewAssistantMessage(text))
	})
}

// Messages returns a snapshot copy of the message list.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshot()
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.messages)
}

// Last returns the last message, if any.
func (c *Conversation) Last() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Subscribe registers fn to receive a snapshot of the full message list after
// every mutation. The snapshot is shared between subscribers and must not be
// modified. The returned function removes the subscription.
func (c *Conversation) Subscribe(fn func([]Message)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	c.order = append(c.order, id)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		delete(c.subscribers, id)
		for i, sid := range c.order {
			if sid == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// mutate applies fn under the lock and then publishes the resulting snapshot.
// Subscribers run outside the lock so they may read the conversation.
func (c *Conversation) mutate(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshot()
	subs := make([]func([]Message), 0, len(c.order))
	for _, id := range c.order {
		subs = append(subs, c.subscribers[id])
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

func (c *Conversation) snapshot() []Message {
	snap := make([]Message, len(c.messages))
	copy(snap, c.messages)
	return snap
}
