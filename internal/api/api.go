package api

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/plxtools/plx-data-service/internal/cache"
	"github.com/plxtools/plx-data-service/internal/config"
	"github.com/plxtools/plx-data-service/internal/datasource"
	"github.com/plxtools/plx-data-service/internal/plx"
)

type API struct {
	Cfg   *config.Config
	Cache *cache.Cache
	Log   *zap.Logger

	mu   sync.RWMutex
	open map[string]*plx.PlexFile
}

func NewPlxAPI(cfg *config.Config, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		Cfg:   cfg,
		Cache: cache.New(cfg.CacheLocation, logger),
		Log:   logger,
		open:  make(map[string]*plx.PlexFile),
	}
}

// recording returns an opened, indexed recording for the given location
// and path, reusing a previously indexed one when available. Indexing a
// large recording takes a full pass over the file, so files stay open for
// the life of the process.
func (a *API) recording(locationName, filePath string) (*plx.PlexFile, error) {
	key := locationName + "/" + filePath

	a.mu.RLock()
	pf, ok := a.open[key]
	a.mu.RUnlock()
	if ok {
		return pf, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if pf, ok := a.open[key]; ok {
		return pf, nil
	}

	reader, err := datasource.Open(a.Cfg, a.Cache, locationName, filePath, a.Log)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	pf, err = plx.Open(reader, a.Log)
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", key, err)
	}
	a.open[key] = pf
	return pf, nil
}
