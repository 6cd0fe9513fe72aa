// Package pdb provides high-level access to Microsoft PDB debug files and a
// native, pure-Go symbol provider registered under the name "native".
package pdb

// PDBInfo contains basic PDB file information.
type PDBInfo struct {
	File         string            `json:"file"`
	Executable   string            `json:"exe"`
	GUID         string            `json:"guid"`
	Signature    uint32            `json:"signature"`
	Age          uint32            `json:"age"`
	DBIAge       uint32            `json:"dbi_age,omitempty"`
	Version      uint32            `json:"version"`
	Machine      string            `json:"machine,omitempty"`
	Streams      int               `json:"streams"`
	Modules      int               `json:"modules"`
	NamedStreams map[string]uint32 `json:"named_streams,omitempty"`
	Linker       *LinkerInfo       `json:"linker,omitempty"`
}

// LinkerInfo describes the symbols the linker recorded about itself.
type LinkerInfo struct {
	Object      string            `json:"object,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Records     []string          `json:"records"`
}
