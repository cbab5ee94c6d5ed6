// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
)

// MaxTurns is the maximum number of turns kept in a conversation.
// When exceeded, the oldest turns are pruned.
const MaxTurns = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the caller-owned ordered sequence of turns. Providers only
// ever see copies returned by Turns or Trailing.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{turns: make([]Turn, 0)}
}

// NewGreetedConversation creates a conversation opened by the greeting turn.
func NewGreetedConversation() *Conversation {
	c := NewConversation()
	c.Append(NewAssistantTurn(Greeting))
	return c
}

// Append adds turns to the end of the conversation.
func (c *Conversation) Append(turns ...Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
	c.pruneLocked()
}

// Turns returns a copy of every turn in order.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Turn(nil), c.turns...)
}

// Trailing returns a copy of the last n turns in order.
func (c *Conversation) Trailing(n int) []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Trailing(c.turns, n)
}

// Last returns the most recent turn.
func (c *Conversation) Last() (Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Clear removes every turn.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = make([]Turn, 0)
}

func (c *Conversation) pruneLocked() {
	if len(c.turns) <= MaxTurns {
		return
	}
	c.turns = append([]Turn(nil), c.turns[len(c.turns)-MaxTurns:]...)
}

// Trailing returns a copy of the last n turns of history in order.
// n <= 0 yields an empty slice.
func Trailing(history []Turn, n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return append([]Turn{}, history...)
}
