package publish

import (
	"fmt"

	"git.home.luguber.info/inful/mdpublish/internal/config"
	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/storage"
)

// OpenStore connects to the remote store described by rc. It returns nil
// without error when rc is not fully configured.
func OpenStore(rc config.RemoteConfig) (storage.ObjectStore, error) {
	if !rc.Configured() {
		return nil, nil
	}
	var (
		store storage.ObjectStore
		err   error
	)
	switch rc.Backend {
	case config.BackendFS:
		store, err = storage.NewFSStore(rc.Dir)
	case config.BackendS3:
		store, err = storage.NewS3Store(storage.S3Options{
			Endpoint:        rc.Endpoint,
			Region:          rc.Region,
			Bucket:          rc.Bucket,
			AccessKeyID:     rc.AccessKeyID,
			SecretAccessKey: rc.SecretAccessKey,
			UseSSL:          rc.SSL(),
		})
	default:
		err = fmt.Errorf("unknown backend %q", rc.Backend)
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryRemote, derrors.SeverityFatal, "open remote store").
			WithContext("backend", rc.Backend)
	}
	return store, nil
}
