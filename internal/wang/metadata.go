package wang

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"
)

// MetadataFile is the name of the metadata file inside a tileset directory.
const MetadataFile = "metadata.json"

// Metadata describes a persisted tileset.
type Metadata struct {
	TilesetID        string    `json:"tileset_id"`
	LowerBaseTileID  string    `json:"lower_base_tile_id,omitempty"`
	UpperBaseTileID  string    `json:"upper_base_tile_id,omitempty"`
	LowerDescription string    `json:"lower_description,omitempty"`
	UpperDescription string    `json:"upper_description,omitempty"`
	TileSize         int       `json:"tile_size,omitempty"`
	TileCount        int       `json:"tile_count"`
	SavedAt          time.Time `json:"saved_at"`

	// Digests maps tile file names to their blake2b-256 hex digest.
	Digests map[string]string `json:"digests,omitempty"`

	// Dir is the directory the metadata was read from. Not persisted.
	Dir string `json:"-"`
}

// ReadMetadata reads and parses the metadata file in dir.
func ReadMetadata(dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, path, err)
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, path, err)
	}
	if md.TilesetID == "" {
		return nil, fmt.Errorf("%w: %s: tileset_id is empty", ErrCorruptMetadata, path)
	}

	md.Dir = dir
	return &md, nil
}

// Encode returns the indented JSON form of the metadata.
func (m *Metadata) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Digest returns the hex blake2b-256 digest of a tile file's contents.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
