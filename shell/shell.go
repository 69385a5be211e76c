// Package shell provides an interactive command shell for driving
// certificate operations: account registration, issuance, revocation
// and store maintenance.
package shell

import (
	"fmt"

	"github.com/abiosoft/ishell"
	"github.com/abiosoft/readline"

	"github.com/certweld/certweld/acme/manager"
	"github.com/certweld/certweld/storage"
)

const (
	// The base prompt used for shell commands.
	BasePrompt = "[ certweld ] > "
	// The ishell context key that the manager instance is stored under.
	ManagerKey = "manager"
	// The ishell context key that the certificate store is stored under.
	StoreKey = "certstore"
)

// Options configures a Shell.
type Options struct {
	Manager *manager.Manager
	Certs   *storage.Store
}

// Shell is an ishell.Shell instance wired to a certificate manager. The
// manager and certificate store are stored in the shell instance for
// access by commands.
type Shell struct {
	*ishell.Shell
}

// New creates a Shell with all certificate commands registered. The
// session does not start until Run is called.
func New(opts *Options) *Shell {
	shell := ishell.NewWithConfig(&readline.Config{
		Prompt: BasePrompt,
	})

	shell.Set(ManagerKey, opts.Manager)
	shell.Set(StoreKey, opts.Certs)

	for _, cmd := range shellCommands() {
		shell.AddCmd(cmd)
	}

	return &Shell{Shell: shell}
}

// Run drops into an interactive session that blocks on user input until
// it is time to exit.
func (s *Shell) Run() {
	s.Println("Welcome to certweld")
	s.Shell.Run()
	s.Println("Goodbye!")
}

// shellContext is a common interface for retrieving objects from an
// ishell.Shell or an ishell.Context.
type shellContext interface {
	Get(string) interface{}
}

// getManager reads the *manager.Manager from the shellContext or panics.
func getManager(c shellContext) *manager.Manager {
	raw := c.Get(ManagerKey)
	if raw == nil {
		panic(fmt.Sprintf("nil %q value in shellContext", ManagerKey))
	}
	if m, ok := raw.(*manager.Manager); ok {
		return m
	}
	panic(fmt.Sprintf("%q value in shellContext was not a *manager.Manager", ManagerKey))
}

// getStore reads the *storage.Store from the shellContext or panics.
func getStore(c shellContext) *storage.Store {
	raw := c.Get(StoreKey)
	if raw == nil {
		panic(fmt.Sprintf("nil %q value in shellContext", StoreKey))
	}
	if s, ok := raw.(*storage.Store); ok {
		return s
	}
	panic(fmt.Sprintf("%q value in shellContext was not a *storage.Store", StoreKey))
}
