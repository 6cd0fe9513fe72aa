package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, Status(0x806D0004), E_PDB_NOT_FOUND)
	assert.True(t, E_PDB_NOT_FOUND.Failed())
	assert.True(t, REGDB_E_CLASSNOTREG.Failed())
	assert.False(t, S_OK.Failed())
	assert.False(t, S_FALSE.Failed())

	assert.Equal(t, "E_PDB_INVALID_AGE (0x806d0006)", E_PDB_INVALID_AGE.String())
	assert.Equal(t, "0x12345678", Status(0x12345678).String())
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, S_OK, StatusOf(nil))
	assert.Equal(t, E_FAIL, StatusOf(errors.New("plain")))

	err := Errorf(E_PDB_CORRUPT, "bad block %d", 7)
	assert.Equal(t, E_PDB_CORRUPT, StatusOf(err))
	assert.Equal(t, E_PDB_CORRUPT, StatusOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, "bad block 7: E_PDB_CORRUPT (0x806d000d)", err.Error())

	bare := &StatusError{Status: E_PDB_FORMAT}
	assert.Equal(t, "E_PDB_FORMAT (0x806d000b)", bare.Error())
}
