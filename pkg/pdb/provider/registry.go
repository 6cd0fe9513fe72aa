package provider

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// RegistrationDoc is where operators find provider installation instructions.
const RegistrationDoc = "docs/PROVIDERS.md"

var (
	// ErrNotRegistered is matched by bootstrap errors for unknown providers.
	ErrNotRegistered = errors.New("provider not registered")
	// ErrUnspecified is matched by bootstrap errors raised while instantiating a provider.
	ErrUnspecified = errors.New("unspecified provider error")
	// ErrInitialization is matched when the subsystem cannot be initialized.
	ErrInitialization = errors.New("provider subsystem initialization failed")
)

// BootstrapError describes a fatal failure to bring up a provider.
type BootstrapError struct {
	Kind       error // One of ErrNotRegistered, ErrUnspecified, ErrInitialization
	Provider   string
	Registered []string
	Status     Status
	Err        error
}

func (e *BootstrapError) Error() string {
	switch e.Kind {
	case ErrNotRegistered:
		var b strings.Builder
		fmt.Fprintf(&b, "unable to locate the %q symbol provider; it is required to load PDB files", e.Provider)
		if len(e.Registered) > 0 {
			fmt.Fprintf(&b, " (registered: %s)", strings.Join(e.Registered, ", "))
		}
		fmt.Fprintf(&b, "\n* see %s for provider registration instructions", RegistrationDoc)
		return b.String()
	case ErrUnspecified:
		return fmt.Sprintf("unspecified error occurred instantiating provider %q: 0x%08x: %v", e.Provider, uint32(e.Status), e.Err)
	default:
		return fmt.Sprintf("unable to initialize provider subsystem: %v", e.Err)
	}
}

func (e *BootstrapError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Registry holds the named provider factories and the process subsystem state.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	active    *Subsystem
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default is the registry providers register themselves with.
var Default = NewRegistry()

// Register makes a provider available by name in the default registry.
func Register(name string, f Factory) {
	Default.Register(name, f)
}

// Bootstrap brings up the named provider from the default registry.
func Bootstrap(name string) (*Subsystem, error) {
	return Default.Bootstrap(name)
}

// Register makes a provider available by name. It panics if the name is
// empty, the factory is nil, or the name is taken.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		panic("provider: Register with empty name")
	}
	if f == nil {
		panic("provider: Register factory is nil")
	}
	if _, dup := r.factories[name]; dup {
		panic("provider: Register called twice for provider " + name)
	}
	r.factories[name] = f
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bootstrap initializes the subsystem and instantiates the named provider's
// data source. Only one subsystem may be live per registry; it must be torn
// down before the next Bootstrap.
func (r *Registry) Bootstrap(name string) (*Subsystem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, &BootstrapError{
			Kind:     ErrInitialization,
			Provider: name,
			Status:   E_UNEXPECTED,
			Err:      fmt.Errorf("subsystem already initialized with provider %q", r.active.name),
		}
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, &BootstrapError{
			Kind:       ErrNotRegistered,
			Provider:   name,
			Registered: r.namesLocked(),
			Status:     REGDB_E_CLASSNOTREG,
		}
	}

	src, err := factory()
	if err == nil && src == nil {
		err = Errorf(E_UNEXPECTED, "provider returned no data source")
	}
	if err != nil {
		status := StatusOf(err)
		if status == REGDB_E_CLASSNOTREG {
			return nil, &BootstrapError{
				Kind:       ErrNotRegistered,
				Provider:   name,
				Registered: r.namesLocked(),
				Status:     status,
				Err:        err,
			}
		}
		return nil, &BootstrapError{Kind: ErrUnspecified, Provider: name, Status: status, Err: err}
	}

	sub := &Subsystem{registry: r, name: name, source: src}
	r.active = sub
	return sub, nil
}

func (r *Registry) release(s *Subsystem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == s {
		r.active = nil
	}
}

// Subsystem is the live provider state for one bootstrap/teardown cycle.
// It is not safe for concurrent use.
type Subsystem struct {
	registry *Registry
	name     string
	source   DataSource
	sessions []Session
	hooks    []func() error
}

// Name returns the provider name the subsystem was bootstrapped with.
func (s *Subsystem) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Source returns the data source. Sessions opened through it are closed by Teardown.
// It returns nil once the subsystem has been torn down.
func (s *Subsystem) Source() DataSource {
	if s == nil || s.source == nil {
		return nil
	}
	return &trackedSource{DataSource: s.source, owner: s}
}

// OnTeardown registers fn to run at the end of Teardown, after every handle
// has been released. Hooks run in registration order.
func (s *Subsystem) OnTeardown(fn func() error) {
	if s == nil || fn == nil {
		return
	}
	s.hooks = append(s.hooks, fn)
}

// Teardown closes open sessions and the data source, releases the subsystem
// and clears every handle. It is safe on a nil subsystem and safe to call twice.
func (s *Subsystem) Teardown() error {
	if s == nil {
		return nil
	}

	var errs []error
	for i := len(s.sessions) - 1; i >= 0; i-- {
		if err := s.sessions[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	s.sessions = nil

	if c, ok := s.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data source: %w", err))
		}
	}
	s.source = nil

	if s.registry != nil {
		s.registry.release(s)
		s.registry = nil
	}

	hooks := s.hooks
	s.hooks = nil
	for _, fn := range hooks {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// trackedSource records the sessions it opens so Teardown can close them.
type trackedSource struct {
	DataSource
	owner *Subsystem
}

func (t *trackedSource) OpenSession() (Session, error) {
	sess, err := t.DataSource.OpenSession()
	if err == nil && sess != nil {
		t.owner.sessions = append(t.owner.sessions, sess)
	}
	return sess, err
}
