// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SPEAKER TYPE
// =============================================================================

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// String returns the string representation of the speaker.
func (s Speaker) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the speaker.
func (s Speaker) DisplayName() string {
	switch s {
	case SpeakerUser:
		return "You"
	case SpeakerAssistant:
		return "Assistant"
	default:
		return string(s)
	}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Greeting is the assistant turn that opens every chat session.
const Greeting = "Привет! Я готов ответить на ваши вопросы. (Hi! Ready to answer your questions.)"

// Turn is one entry in a conversation. Turns are values and are never
// modified after creation.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	// Failed marks an assistant turn that reports an error instead of an answer.
	Failed bool `json:"failed,omitempty"`
}

// NewTurn creates a turn with a fresh time-ordered ID.
func NewTurn(speaker Speaker, text string) Turn {
	return Turn{
		ID:        generateID(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewUserTurn creates a user turn.
func NewUserTurn(text string) Turn {
	return NewTurn(SpeakerUser, text)
}

// NewAssistantTurn creates an assistant turn.
func NewAssistantTurn(text string) Turn {
	return NewTurn(SpeakerAssistant, text)
}

// NewFailedTurn creates an assistant turn describing err.
func NewFailedTurn(err error) Turn {
	t := NewTurn(SpeakerAssistant, "Error: "+err.Error())
	t.Failed = true
	return t
}

// IsUser reports whether the user produced the turn.
func (t Turn) IsUser() bool {
	return t.Speaker == SpeakerUser
}

// generateID returns a UUIDv7 so IDs sort by creation time.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
