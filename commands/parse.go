// Package commands turns chat messages into Spotify playback actions.
//
// Two commands are recognized, case-sensitively, at the start of the trimmed
// message:
//
//	?song <query>   search the catalog and queue the first match
//	?skip           skip the current track
//
// Everything else is ignored without a reply.
package commands

import (
	"strings"
	"unicode"
)

// Kind identifies a recognized chat command.
type Kind int

const (
	KindRequestSong Kind = iota + 1
	KindSkip
)

const (
	PrefixSong = "?song"
	PrefixSkip = "?skip"
)

func (k Kind) String() string {
	switch k {
	case KindRequestSong:
		return "song"
	case KindSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Command is a parsed chat command. Query is only set for KindRequestSong.
type Command struct {
	Kind  Kind
	Query string
}

// Parse recognizes a command in text. The command word must be followed by
// whitespace or the end of the message, so "?songs" and "?skipper" are not commands.
func Parse(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if rest, ok := cutWord(text, PrefixSong); ok {
		return Command{Kind: KindRequestSong, Query: strings.TrimSpace(rest)}, true
	}
	if _, ok := cutWord(text, PrefixSkip); ok {
		return Command{Kind: KindSkip}, true
	}
	return Command{}, false
}

func cutWord(text, word string) (string, bool) {
	rest, ok := strings.CutPrefix(text, word)
	if !ok {
		return "", false
	}
	if rest != "" && !unicode.IsSpace([]rune(rest)[0]) {
		return "", false
	}
	return rest, true
}
