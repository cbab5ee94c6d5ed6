// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurn(t *testing.T) {
	turn := NewUserTurn("hello")

	assert.Equal(t, SpeakerUser, turn.Speaker)
	assert.Equal(t, "hello", turn.Text)
	assert.False(t, turn.Failed)
	assert.False(t, turn.CreatedAt.IsZero())

	id, err := uuid.Parse(turn.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestTurnIDs_TimeOrdered(t *testing.T) {
	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, NewAssistantTurn("x").ID)
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestNewFailedTurn(t *testing.T) {
	turn := NewFailedTurn(errors.New("Invalid Key or Network Error."))

	assert.Equal(t, SpeakerAssistant, turn.Speaker)
	assert.True(t, turn.Failed)
	assert.Equal(t, "Error: Invalid Key or Network Error.", turn.Text)
}

func TestSpeaker_DisplayName(t *testing.T) {
	assert.Equal(t, "You", SpeakerUser.DisplayName())
	assert.Equal(t, "Assistant", SpeakerAssistant.DisplayName())
	assert.Equal(t, "other", Speaker("other").DisplayName())
}

func TestNewGreetedConversation(t *testing.T) {
	conv := NewGreetedConversation()
	last, ok := conv.Last()
	require.True(t, ok)
	assert.Equal(t, Greeting, last.Text)
	assert.Equal(t, SpeakerAssistant, last.Speaker)
}

func TestConversation_TurnsIsCopy(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserTurn("a"), NewAssistantTurn("b"))

	turns := conv.Turns()
	turns[0].Text = "mutated"

	assert.Equal(t, "a", conv.Turns()[0].Text)
}

func TestTrailing(t *testing.T) {
	var history []Turn
	for i := 1; i <= 8; i++ {
		history = append(history, NewUserTurn(fmt.Sprintf("turn %d", i)))
	}

	tests := map[string]struct {
		n    int
		want []string
	}{
		"last five":     {n: 5, want: []string{"turn 4", "turn 5", "turn 6", "turn 7", "turn 8"}},
		"more than all": {n: 20, want: []string{"turn 1", "turn 2", "turn 3", "turn 4", "turn 5", "turn 6", "turn 7", "turn 8"}},
		"zero":          {n: 0, want: []string{}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := Trailing(history, tt.n)
			texts := make([]string, 0, len(got))
			for _, turn := range got {
				texts = append(texts, turn.Text)
			}
			assert.Equal(t, tt.want, texts)
		})
	}
}

func TestConversation_Prune(t *testing.T) {
	conv := NewConversation()
	for i := 0; i < MaxTurns+10; i++ {
		conv.Append(NewUserTurn(fmt.Sprintf("%d", i)))
	}

	assert.Equal(t, MaxTurns, conv.Len())
	assert.Equal(t, "10", conv.Turns()[0].Text)
}

func TestConversation_Clear(t *testing.T) {
	conv := NewGreetedConversation()
	conv.Clear()
	assert.Equal(t, 0, conv.Len())
	_, ok := conv.Last()
	assert.False(t, ok)
}

func TestConversation_ConcurrentAccess(t *testing.T) {
	conv := NewConversation()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			conv.Append(NewUserTurn(fmt.Sprintf("%d", n)))
		}(i)
		go func() {
			defer wg.Done()
			_ = conv.Trailing(5)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, conv.Len())
}
