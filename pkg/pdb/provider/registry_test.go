package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/pdbident/pkg/pdb/guid"
)

type stubSession struct {
	closed int
}

func (s *stubSession) GlobalScope() (Symbol, error) { return nil, errors.New("unused") }
func (s *stubSession) Close() error {
	s.closed++
	return nil
}

type stubSource struct {
	session  *stubSession
	closed   int
	closeErr error
}

func (s *stubSource) LoadDataFromPDB(*WideString) error { return nil }
func (s *stubSource) LoadAndValidateDataFromPDB(*WideString, *guid.GUID, uint32, uint32) error {
	return nil
}
func (s *stubSource) OpenSession() (Session, error) {
	s.session = &stubSession{}
	return s.session, nil
}
func (s *stubSource) Close() error {
	s.closed++
	return s.closeErr
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func() (DataSource, error) { return &stubSource{}, nil })
	r.Register("a", func() (DataSource, error) { return &stubSource{}, nil })

	assert.Equal(t, []string{"a", "b"}, r.Names())

	assert.Panics(t, func() { r.Register("a", func() (DataSource, error) { return nil, nil }) })
	assert.Panics(t, func() { r.Register("", func() (DataSource, error) { return nil, nil }) })
	assert.Panics(t, func() { r.Register("c", nil) })
}

func TestRegistry_Bootstrap(t *testing.T) {
	src := &stubSource{}
	r := NewRegistry()
	r.Register("stub", func() (DataSource, error) { return src, nil })

	sub, err := r.Bootstrap("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", sub.Name())
	require.NotNil(t, sub.Source())

	_, err = sub.Source().OpenSession()
	require.NoError(t, err)

	var order []string
	sub.OnTeardown(func() error {
		order = append(order, "hook")
		assert.Nil(t, sub.Source(), "handles must be cleared before hooks run")
		return nil
	})

	require.NoError(t, sub.Teardown())
	assert.Equal(t, []string{"hook"}, order)
	assert.Equal(t, 1, src.session.closed)
	assert.Equal(t, 1, src.closed)
	assert.Nil(t, sub.Source())

	// Second teardown releases nothing and runs no hooks.
	require.NoError(t, sub.Teardown())
	assert.Equal(t, []string{"hook"}, order)
	assert.Equal(t, 1, src.closed)

	// The registry can be bootstrapped again once torn down.
	again, err := r.Bootstrap("stub")
	require.NoError(t, err)
	require.NoError(t, again.Teardown())
}

func TestRegistry_BootstrapTwice(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func() (DataSource, error) { return &stubSource{}, nil })

	sub, err := r.Bootstrap("stub")
	require.NoError(t, err)
	defer sub.Teardown()

	_, err = r.Bootstrap("stub")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitialization)

	var be *BootstrapError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, E_UNEXPECTED, be.Status)
}

func TestRegistry_NotRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register("native", func() (DataSource, error) { return &stubSource{}, nil })

	sub, err := r.Bootstrap("dia")
	assert.Nil(t, sub)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.NotErrorIs(t, err, ErrUnspecified)
	assert.Contains(t, err.Error(), `"dia"`)
	assert.Contains(t, err.Error(), "registered: native")
	assert.Contains(t, err.Error(), RegistrationDoc)

	var be *BootstrapError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, REGDB_E_CLASSNOTREG, be.Status)

	// A failed bootstrap leaves the subsystem free, and tearing down nothing is safe.
	assert.NoError(t, sub.Teardown())
	other, err := r.Bootstrap("native")
	require.NoError(t, err)
	require.NoError(t, other.Teardown())
}

func TestRegistry_FactoryReportsClassNotRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register("dia", func() (DataSource, error) {
		return nil, Errorf(REGDB_E_CLASSNOTREG, "msdia140.dll not registered")
	})

	_, err := r.Bootstrap("dia")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Equal(t, REGDB_E_CLASSNOTREG, StatusOf(err))
}

func TestRegistry_Unspecified(t *testing.T) {
	tests := []struct {
		name    string
		factory Factory
		status  Status
	}{
		{
			name:    "status error",
			factory: func() (DataSource, error) { return nil, Errorf(E_OUTOFMEMORY, "no memory") },
			status:  E_OUTOFMEMORY,
		},
		{
			name:    "plain error",
			factory: func() (DataSource, error) { return nil, errors.New("boom") },
			status:  E_FAIL,
		},
		{
			name:    "nil source",
			factory: func() (DataSource, error) { return nil, nil },
			status:  E_UNEXPECTED,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register("p", tt.factory)

			_, err := r.Bootstrap("p")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnspecified)

			var be *BootstrapError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.status, be.Status)
			assert.Contains(t, err.Error(), "unspecified error occurred")
		})
	}
}

func TestSubsystem_TeardownErrors(t *testing.T) {
	r := NewRegistry()
	src := &stubSource{closeErr: errors.New("close failed")}
	r.Register("stub", func() (DataSource, error) { return src, nil })

	sub, err := r.Bootstrap("stub")
	require.NoError(t, err)

	hookErr := errors.New("hook failed")
	sub.OnTeardown(func() error { return hookErr })

	err = sub.Teardown()
	assert.ErrorIs(t, err, hookErr)
	assert.ErrorContains(t, err, "close failed")

	var nilSub *Subsystem
	assert.NoError(t, nilSub.Teardown())
	assert.Nil(t, nilSub.Source())
	assert.Empty(t, nilSub.Name())
}
