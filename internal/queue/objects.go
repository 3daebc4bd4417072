package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/nvandessel/sdrsweep/internal/sanitize"
)

// Object describes a stored report file.
type Object struct {
	Name     string    `json:"name"`
	Size     uint64    `json:"size"`
	Modified time.Time `json:"modified"`
}

func (q *Queue) ensureBucket() (nats.ObjectStore, error) {
	obs, err := q.js.ObjectStore(q.cfg.Bucket)
	if err == nil {
		return obs, nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) && !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to open object store %s: %w", q.cfg.Bucket, err)
	}

	obs, err = q.js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      q.cfg.Bucket,
		Description: "sdrsweep report files",
		Storage:     nats.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store %s: %w", q.cfg.Bucket, err)
	}
	q.logger.Info("created object store", "bucket", q.cfg.Bucket)
	return obs, nil
}

// UploadOutput stores the file at path as <name>-<uuid><ext> and returns the
// object name.
func (q *Queue) UploadOutput(ctx context.Context, name, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	objName := fmt.Sprintf("%s-%s%s", sanitize.Name(name), uuid.NewString(), filepath.Ext(path))
	info, err := q.objects.Put(&nats.ObjectMeta{
		Name:        objName,
		Description: filepath.Base(path),
	}, f)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objName, err)
	}

	q.logger.Info("uploaded output", "object", objName, "bytes", info.Size)
	return objName, nil
}

// Download returns the contents of a stored object.
func (q *Queue) Download(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := q.objects.GetBytes(name)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}
	return data, nil
}

// ListOutputs returns stored objects sorted by name.
func (q *Queue) ListOutputs(ctx context.Context) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := q.objects.List()
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	out := make([]Object, 0, len(infos))
	for _, info := range infos {
		out = append(out, Object{Name: info.Name, Size: info.Size, Modified: info.ModTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
