package cache

import (
	"encoding/json"
	"io"

	"github.com/dotcommander/agentd/internal/proto"
)

// Conversations caches full message histories keyed by conversation ID.
type Conversations struct {
	cache *Cache[[]proto.Message]
}

// NewConversations creates the conversation message cache under baseDir.
func NewConversations(baseDir string) (*Conversations, error) {
	c, err := New[[]proto.Message](baseDir, ConversationCache)
	if err != nil {
		return nil, err
	}
	return &Conversations{cache: c}, nil
}

// Read loads the messages for the given conversation ID.
func (c *Conversations) Read(id string, messages *[]proto.Message) error {
	return c.cache.Read(id, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(messages)
	})
}

// Write stores the messages for the given conversation ID.
func (c *Conversations) Write(id string, messages []proto.Message) error {
	return c.cache.Write(id, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(messages)
	})
}

// Delete removes the messages for the given conversation ID.
func (c *Conversations) Delete(id string) error {
	return c.cache.Delete(id)
}
