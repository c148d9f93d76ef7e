package peers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const jsonPeersPath = "peers.json"

// JSONPeers is used to provide trusted peer persistence on disk in the form
// of a JSON file. This allows human operators to manipulate the file.
type JSONPeers struct {
	l    sync.Mutex
	path string
}

// NewJSONPeers creates a new JSONPeers store in the base directory.
func NewJSONPeers(base string) *JSONPeers {
	return &JSONPeers{
		path: filepath.Join(base, jsonPeersPath),
	}
}

// Path returns the location of the underlying file.
func (j *JSONPeers) Path() string {
	return j.path
}

// TrustedPeers parses the underlying file. A missing or empty file yields no
// peers and no error.
func (j *JSONPeers) TrustedPeers() ([]TrustedPeer, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	var trusted []TrustedPeer
	if err := json.Unmarshal(buf, &trusted); err != nil {
		return nil, err
	}

	for _, tp := range trusted {
		if !tp.ID.Valid() {
			return nil, fmt.Errorf("%s: invalid node id %q", j.path, tp.ID)
		}
	}

	return trusted, nil
}

// Write persists trusted peers to the JSON file.
func (j *JSONPeers) Write(trusted []TrustedPeer) error {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := json.MarshalIndent(trusted, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(j.path, buf, 0644)
}
