package trip

import (
	"fmt"
	"log/slog"
	"sync"
)

// Tab names a view in the shell.
type Tab string

// Shell tabs, in display order.
const (
	TabHome     Tab = "home"
	TabTrekkers Tab = "trekkers"
	TabTasks    Tab = "tasks"
	TabFlights  Tab = "flights"
	TabPrices   Tab = "prices"
	TabPacking  Tab = "packing"
	TabChat     Tab = "chat"
	TabTraining Tab = "training"
)

// Tabs returns every tab in display order.
func Tabs() []Tab {
	return []Tab{TabHome, TabTrekkers, TabTasks, TabFlights, TabPrices, TabPacking, TabChat, TabTraining}
}

// ParseTab returns the Tab named s.
func ParseTab(s string) (Tab, error) {
	for _, t := range Tabs() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q", s)
}

// Mount opens the view of tab.
func Mount(env *Env, tab Tab) (View, error) {
	switch tab {
	case TabHome:
		return &HomeView{env: env}, nil
	case TabTrekkers:
		return OpenRoster(env), nil
	case TabTasks:
		return OpenTasks(env), nil
	case TabFlights:
		return OpenFlights(env), nil
	case TabPrices:
		return OpenPrices(env), nil
	case TabPacking:
		return OpenPacking(env), nil
	case TabChat:
		return OpenChat(env), nil
	case TabTraining:
		return OpenTraining(env), nil
	default:
		return nil, fmt.Errorf("unknown tab %q", string(tab))
	}
}

// Shell keeps exactly one view mounted. Switching tabs closes the previous
// view's bindings before the next view subscribes. No state flows through
// the shell.
type Shell struct {
	env *Env

	mu     sync.Mutex
	active View
}

// NewShell returns a shell showing the home tab.
func NewShell(env *Env) *Shell {
	return &Shell{env: env, active: &HomeView{env: env}}
}

// Active returns the mounted view.
func (s *Shell) Active() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Activate mounts tab. Activating the mounted tab is a no-op.
func (s *Shell) Activate(tab Tab) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.Tab() == tab {
		return s.active, nil
	}
	if _, err := ParseTab(string(tab)); err != nil {
		return nil, err
	}
	if s.active != nil {
		s.active.Close()
		s.active = nil
	}
	v, err := Mount(s.env, tab)
	if err != nil {
		return nil, err
	}
	slog.Debug("Mounted view", "tab", tab)
	s.active = v
	return v, nil
}

// Close releases the mounted view.
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Close()
		s.active = nil
	}
}
