package store

import (
	"fmt"

	"github.com/dgallion1/bookfix/internal/config"
	"github.com/dgallion1/bookfix/internal/pathstore"
)

// Open builds the backend selected by STORE_BACKEND. The returned close
// function releases the backend's resources.
func Open(cfg config.Config) (Store, func(), error) {
	naming := Naming{Prefix: cfg.SegmentPrefix, CorrectedSuffix: cfg.CorrectedSuffix}
	switch cfg.StoreBackend {
	case "file":
		fs, err := NewFileStore(cfg.OutputDir, naming)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	case "pathstore":
		client := pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		return NewPathStore(client, naming), client.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown STORE_BACKEND %q", config.ErrInvalidConfig, cfg.StoreBackend)
}
