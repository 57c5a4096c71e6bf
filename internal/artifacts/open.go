package artifacts

import (
	"context"

	"github.com/kuitang/streamcheck/internal/config"
)

// Open picks the store for a run: the S3 bucket when upload is enabled, a
// local archive when ARTIFACT_DIR is set, otherwise none (nil, nil).
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch {
	case cfg.UploadEnabled():
		s, err := NewS3Store(ctx, S3Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Bucket:          cfg.ArtifactBucket,
			PublicURL:       cfg.ArtifactPublicURL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.ArtifactDir != "":
		return NewDirStore(cfg.ArtifactDir), nil
	default:
		return nil, nil
	}
}
