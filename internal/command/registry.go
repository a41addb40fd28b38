package command

import (
	"sort"
	"strings"
	"sync"
)

type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: map[string]Command{}}
}

// Register adds a command under its name and aliases.
func (r *Registry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(cmd.Name())] = cmd
	for _, a := range cmd.Aliases() {
		r.commands[strings.ToLower(a)] = cmd
	}
}

func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// All returns each command once, ordered by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	list := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if seen[cmd.Name()] {
			continue
		}
		list = append(list, cmd)
		seen[cmd.Name()] = true
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Parse splits a prefixed message into a command name and its arguments.
func Parse(prefix, content string) (name string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
