// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

var initScheme sync.Once

// SearchMatch is one chat that matched a search, with its fzf score.
type SearchMatch struct {
	Chat  Chat
	Score int
	// Positions are the rune offsets in Chat.Name that matched, for
	// highlighting.
	Positions []int
}

// SearchChats filters chats to those whose name contains the pattern's
// runes in order, case-insensitively, and ranks them best first. Ties
// keep their input order. An empty or all-space pattern returns every
// chat unchanged.
func SearchChats(chats []Chat, pattern string) []Chat {
	matches := MatchChats(chats, pattern)
	result := make([]Chat, len(matches))
	for i, match := range matches {
		result[i] = match.Chat
	}
	return result
}

// MatchChats is SearchChats with scores and match positions.
func MatchChats(chats []Chat, pattern string) []SearchMatch {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		matches := make([]SearchMatch, len(chats))
		for i, chat := range chats {
			matches[i] = SearchMatch{Chat: chat}
		}
		return matches
	}
	initScheme.Do(func() { algo.Init("default") })

	runes := []rune(strings.ToLower(pattern))
	slab := util.MakeSlab(100*1024, 2048)
	var matches []SearchMatch
	for _, chat := range chats {
		chars := util.ToChars([]byte(chat.Name))
		result, positions := algo.FuzzyMatchV2(false, true, true, &chars, runes, true, slab)
		if result.Start < 0 {
			continue
		}
		match := SearchMatch{Chat: chat, Score: result.Score}
		if positions != nil {
			match.Positions = append([]int(nil), (*positions)...)
			sort.Ints(match.Positions)
		}
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
