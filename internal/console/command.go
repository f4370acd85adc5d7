package console

import (
	"context"
	"errors"
	"sort"
)

// errExit ends the console loop.
var errExit = errors.New("exit")

// Command represents a console command that can be executed interactively.
type Command interface {
	// Execute runs the command with the given arguments
	Execute(ctx context.Context, args []string) error

	// Usage returns the usage string for the command
	Usage() string

	// Description returns a brief description of what the command does
	Description() string

	// Aliases returns alternative names for this command
	Aliases() []string
}

// funcCommand adapts a function to Command.
type funcCommand struct {
	usage       string
	description string
	aliases     []string
	run         func(ctx context.Context, args []string) error
}

func (c *funcCommand) Execute(ctx context.Context, args []string) error { return c.run(ctx, args) }
func (c *funcCommand) Usage() string                                    { return c.usage }
func (c *funcCommand) Description() string                              { return c.description }
func (c *funcCommand) Aliases() []string                                { return c.aliases }

// Registry manages available commands for the console.
type Registry struct {
	commands map[string]Command
	aliases  map[string]string // alias -> primary command name
}

// NewRegistry creates a new command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds a command to the registry.
func (r *Registry) Register(name string, cmd Command) {
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases() {
		r.aliases[alias] = name
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) (Command, bool) {
	if cmd, exists := r.commands[name]; exists {
		return cmd, true
	}
	if primary, exists := r.aliases[name]; exists {
		cmd, ok := r.commands[primary]
		return cmd, ok
	}
	return nil, false
}

// Names returns the primary command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
