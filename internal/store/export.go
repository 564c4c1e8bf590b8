package store

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Export writes the full session collection to w in the requested format,
// "json" or "yaml".
func (s *Store) Export(w io.Writer, format string) error {
	sessions := s.Sessions()

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(storageBlob{Sessions: sessions})
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(storageBlob{Sessions: sessions})
	default:
		return fmt.Errorf("unknown export format %q (want json or yaml)", format)
	}
}
