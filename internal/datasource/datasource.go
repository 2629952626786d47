package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/plxtools/plx-data-service/internal/cache"
	"github.com/plxtools/plx-data-service/internal/config"
)

// Open resolves locationName against the configured locations and returns
// a seekable reader for the recording at filePath. Recordings fetched from
// minio are pulled whole: indexing needs random access over the full file,
// so remote objects are buffered through the local cache.
func Open(cfg *config.Config, fileCache *cache.Cache, locationName, filePath string, logger *zap.Logger) (io.ReadSeeker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var loc config.Location
	found := false
	for i := range cfg.LocationDetails {
		if cfg.LocationDetails[i].LocationName == locationName {
			loc = cfg.LocationDetails[i]
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown location %q", locationName)
	}

	switch loc.LocationType {
	case "localFile":
		fullPath := path.Join(loc.Path, filePath)
		logger.Info("opening local recording",
			zap.String("location", locationName),
			zap.String("path", fullPath),
		)
		return os.Open(fullPath)
	case "minio":
		return openMinio(cfg, fileCache, loc, filePath, logger)
	default:
		return nil, fmt.Errorf("unsupported location type %q", loc.LocationType)
	}
}

func openMinio(cfg *config.Config, fileCache *cache.Cache, loc config.Location, filePath string, logger *zap.Logger) (io.ReadSeeker, error) {
	fullPath := path.Join(loc.Path, filePath)
	key := cache.KeyFromURL(fmt.Sprintf("pds_%s%s", loc.MinioBucket, fullPath))

	if cfg.UseCache {
		if file, err := fileCache.GetItem(key, cache.FetchedDir); err == nil {
			return file, nil
		}
		logger.Info("recording not in local cache, fetching",
			zap.String("bucket", loc.MinioBucket),
			zap.String("object", fullPath),
		)
	}

	start := time.Now()
	client, err := minio.New(
		loc.Location,
		&minio.Options{
			Creds:  credentials.NewStaticV4(loc.MinioAccessKey, loc.MinioSecretKey, ""),
			Secure: false,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to minio at %s: %w", loc.Location, err)
	}

	ctx := context.Background()
	object, err := client.GetObject(ctx, loc.MinioBucket, fullPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", loc.MinioBucket, fullPath, err)
	}
	defer object.Close()

	fi, err := object.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s/%s: %w", loc.MinioBucket, fullPath, err)
	}
	data := make([]byte, fi.Size)
	n, readErr := io.ReadFull(object, data)
	if readErr != nil && readErr != io.ErrUnexpectedEOF || int64(n) != fi.Size {
		return nil, fmt.Errorf("reading %s/%s: expected %d bytes, got %d: %w",
			loc.MinioBucket, fullPath, fi.Size, n, readErr)
	}
	logger.Info("fetched recording from minio",
		zap.String("object", fullPath),
		zap.Int64("bytes", fi.Size),
		zap.Duration("elapsed", time.Since(start)),
	)

	if cfg.UseCache {
		if err := fileCache.PutItem(key, cache.FetchedDir, data); err != nil {
			logger.Warn("failed to cache fetched recording", zap.Error(err))
		} else if file, err := fileCache.GetItem(key, cache.FetchedDir); err == nil {
			return file, nil
		}
	}
	return bytes.NewReader(data), nil
}
