package identity

import (
	"github.com/jtang613/pdbident/pkg/pdb/guid"
	"github.com/jtang613/pdbident/pkg/pdb/provider"
)

type loadCall struct {
	validated bool
	path      string
	guid      *guid.GUID
	signature uint32
	age       uint32
	wide      *provider.WideString
}

// fakeSource records load calls and hands out a configurable global scope.
type fakeSource struct {
	loadErr    error
	sessionErr error
	nilSession bool
	session    *fakeSession

	calls []loadCall
}

func newFakeSource() *fakeSource {
	return &fakeSource{session: &fakeSession{global: newFakeSymbol()}}
}

func (f *fakeSource) record(validated bool, path *provider.WideString, g *guid.GUID, sig, age uint32) error {
	name, err := path.String()
	if err != nil {
		return err
	}
	var gCopy *guid.GUID
	if g != nil {
		v := *g
		gCopy = &v
	}
	f.calls = append(f.calls, loadCall{validated: validated, path: name, guid: gCopy, signature: sig, age: age, wide: path})
	return f.loadErr
}

func (f *fakeSource) LoadDataFromPDB(path *provider.WideString) error {
	return f.record(false, path, nil, 0, 0)
}

func (f *fakeSource) LoadAndValidateDataFromPDB(path *provider.WideString, g *guid.GUID, sig, age uint32) error {
	return f.record(true, path, g, sig, age)
}

func (f *fakeSource) OpenSession() (provider.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	if f.nilSession {
		return nil, nil
	}
	return f.session, nil
}

type fakeSession struct {
	global    *fakeSymbol
	nilGlobal bool
	scopeErr  error
}

func (s *fakeSession) GlobalScope() (provider.Symbol, error) {
	if s.scopeErr != nil {
		return nil, s.scopeErr
	}
	if s.nilGlobal {
		return nil, nil
	}
	return s.global, nil
}

func (s *fakeSession) Close() error { return nil }

type fakeSymbol struct {
	id      uint32
	name    string
	guid    guid.GUID
	age     uint32
	nameErr error
	guidErr error
	ageErr  error
}

var fixtureGUID = guid.GUID{0xFF, 0x19, 0x96, 0x6F, 0x86, 0x8B, 0x11, 0xD0, 0xB4, 0x2D, 0x00, 0xC0, 0x4F, 0xC9, 0x64, 0xFF}

func newFakeSymbol() *fakeSymbol {
	return &fakeSymbol{id: 1, name: "app", guid: fixtureGUID, age: 7}
}

func (s *fakeSymbol) SymIndexID() uint32 { return s.id }

func (s *fakeSymbol) Name() (string, error) { return s.name, s.nameErr }

func (s *fakeSymbol) GUID() (guid.GUID, error) { return s.guid, s.guidErr }

func (s *fakeSymbol) Age() (uint32, error) { return s.age, s.ageErr }

var errProvider = provider.Errorf(provider.E_FAIL, "provider failure")
