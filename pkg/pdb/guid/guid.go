// Package guid implements the 128-bit identifiers that bind a PDB to its executable.
package guid

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Size is the size of a GUID in bytes.
const Size = 16

// StringLen is the length of the canonical braced form,
// e.g. {6F9619FF-8B86-D011-B42D-00C04FC964FF}.
const StringLen = 38

// GUID is a globally unique identifier stored in on-disk order:
// Data1 (uint32), Data2 and Data3 (uint16) little-endian, then 8 raw bytes.
type GUID [Size]byte

// Nil is the all-zero GUID.
var Nil GUID

// Parse parses the textual form of a GUID. The hyphenated, braced,
// urn:uuid: and 32-digit forms are accepted.
func Parse(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("invalid GUID %q: %w", s, err)
	}
	return FromUUID(u), nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// FromUUID converts an RFC 4122 byte-ordered UUID into on-disk GUID order.
func FromUUID(u uuid.UUID) GUID {
	var g GUID
	binary.LittleEndian.PutUint32(g[0:4], binary.BigEndian.Uint32(u[0:4]))
	binary.LittleEndian.PutUint16(g[4:6], binary.BigEndian.Uint16(u[4:6]))
	binary.LittleEndian.PutUint16(g[6:8], binary.BigEndian.Uint16(u[6:8]))
	copy(g[8:], u[8:])
	return g
}

// FromSignature builds the GUID reported for stores that predate GUIDs:
// the 32-bit signature in Data1 and zero elsewhere.
func FromSignature(sig uint32) GUID {
	var g GUID
	binary.LittleEndian.PutUint32(g[0:4], sig)
	return g
}

// UUID returns g in RFC 4122 byte order.
func (g GUID) UUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], g.Data1())
	binary.BigEndian.PutUint16(u[4:6], g.Data2())
	binary.BigEndian.PutUint16(u[6:8], g.Data3())
	copy(u[8:], g[8:])
	return u
}

func (g GUID) Data1() uint32 { return binary.LittleEndian.Uint32(g[0:4]) }
func (g GUID) Data2() uint16 { return binary.LittleEndian.Uint16(g[4:6]) }
func (g GUID) Data3() uint16 { return binary.LittleEndian.Uint16(g[6:8]) }

// IsNil reports whether g is all zeros.
func (g GUID) IsNil() bool {
	return g == Nil
}

// Format writes the canonical braced upper-case form of g into dst and
// returns the number of bytes written, or 0 if dst is too small.
func (g GUID) Format(dst []byte) int {
	if len(dst) < StringLen {
		return 0
	}
	u := g.UUID()
	dst[0] = '{'
	hexUpper(dst[1:9], u[0:4])
	dst[9] = '-'
	hexUpper(dst[10:14], u[4:6])
	dst[14] = '-'
	hexUpper(dst[15:19], u[6:8])
	dst[19] = '-'
	hexUpper(dst[20:24], u[8:10])
	dst[24] = '-'
	hexUpper(dst[25:37], u[10:16])
	dst[37] = '}'
	return StringLen
}

// String returns the canonical braced upper-case form of g.
func (g GUID) String() string {
	var buf [StringLen]byte
	n := g.Format(buf[:])
	return string(buf[:n])
}

func hexUpper(dst, src []byte) {
	hex.Encode(dst, src)
	for i, c := range dst {
		if c >= 'a' && c <= 'f' {
			dst[i] = c - 'a' + 'A'
		}
	}
}
