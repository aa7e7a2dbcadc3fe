package irc

import (
	"sort"
	"strings"
)

// CommandFunc handles one private-message command. nick is the sender; text
// is the full message including the command word. The returned string is
// sent back to the sender; empty means no reply.
type CommandFunc func(nick, text string) string

const defaultReply = "I didn't understand that"

// RegisterCommand adds a command keyed by its first word. Registration
// after Run is safe; the table is read under the session mutex.
func (s *Session) RegisterCommand(name string, fn CommandFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[strings.ToLower(name)] = fn
}

func (s *Session) registerDefaultCommands() {
	s.commands["ping"] = func(string, string) string {
		return "pong"
	}
	s.commands["help"] = func(string, string) string {
		s.mu.Lock()
		names := make([]string, 0, len(s.commands))
		for name := range s.commands {
			names = append(names, name)
		}
		s.mu.Unlock()
		sort.Strings(names)
		return "commands: " + strings.Join(names, ", ")
	}
}

// commandReply resolves the first whitespace-delimited word of a private
// message against the command table.
func (s *Session) commandReply(nick, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	s.mu.Lock()
	fn, ok := s.commands[strings.ToLower(fields[0])]
	s.mu.Unlock()
	if !ok {
		return defaultReply
	}
	return fn(nick, text)
}
