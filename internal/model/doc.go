// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation types shared by the providers
// and the CLI.
//
// # Key Types
//
//   - Turn: one immutable user or assistant entry with a UUIDv7 ID
//   - Speaker: who produced a turn (user, assistant)
//   - Conversation: the caller-owned, ordered turn sequence
//
// # Usage
//
//	conv := model.NewGreetedConversation()
//	conv.Append(model.NewUserTurn("Hello!"))
//
//	answer, err := client.Chat(ctx, "Hello!", conv.Turns(), settings)
//	if err != nil {
//	    conv.Append(model.NewFailedTurn(err))
//	} else {
//	    conv.Append(model.NewAssistantTurn(answer))
//	}
package model
