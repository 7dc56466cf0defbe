package runner

import (
	"context"
	"sync"
)

// Recorder is a Runner that remembers every command instead of running it.
// If Handler is set, its Result is returned; otherwise commands succeed.
type Recorder struct {
	Handler func(Command) Result

	mu       sync.Mutex
	commands []Command
}

func (r *Recorder) Run(_ context.Context, cmd Command) Result {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.Handler != nil {
		res := r.Handler(cmd)
		res.Command = cmd
		return res
	}
	return Result{Command: cmd}
}

// Commands returns the commands run so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Named returns the recorded commands whose program is name.
func (r *Recorder) Named(name string) []Command {
	var out []Command
	for _, cmd := range r.Commands() {
		if cmd.Name == name {
			out = append(out, cmd)
		}
	}
	return out
}
