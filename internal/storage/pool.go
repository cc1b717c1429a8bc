package storage

import (
	"context"
	"sync"

	"github.com/bucketdrive/backend/internal/models"
	"github.com/bucketdrive/backend/pkg/utils"
	"github.com/google/uuid"
)

// Pool hands out a Gateway for an attached bucket. Handlers and services
// depend on this interface rather than on MinIO directly.
type Pool interface {
	Gateway(ctx context.Context, bucket *models.Bucket) (Gateway, error)
	Evict(bucketID uuid.UUID)
}

// MinIOPool caches one MinIO client per attached bucket. Credentials are
// decrypted on first use only.
type MinIOPool struct {
	mu       sync.Mutex
	gateways map[uuid.UUID]Gateway
}

func NewMinIOPool() *MinIOPool {
	return &MinIOPool{gateways: make(map[uuid.UUID]Gateway)}
}

func (p *MinIOPool) Gateway(ctx context.Context, bucket *models.Bucket) (Gateway, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gw, ok := p.gateways[bucket.ID]; ok {
		return gw, nil
	}

	gw, err := NewMinIOGateway(Options{
		Endpoint:  bucket.Endpoint,
		AccessKey: utils.DecryptOrPlaintext(bucket.AccessKey),
		SecretKey: utils.DecryptOrPlaintext(bucket.SecretKey),
		Bucket:    bucket.BucketName,
		UseSSL:    bucket.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	p.gateways[bucket.ID] = gw
	return gw, nil
}

func (p *MinIOPool) Evict(bucketID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.gateways, bucketID)
}
