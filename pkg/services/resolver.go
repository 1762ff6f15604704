package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/siselab/sise-engine/pkg/apperrors"
	"github.com/siselab/sise-engine/pkg/identity"
	"github.com/siselab/sise-engine/pkg/models"
	"github.com/siselab/sise-engine/pkg/repositories"
)

// Resolution is the outcome of mapping an item onto the SKU catalog.
type Resolution struct {
	SKUID       int64
	Fingerprint string
	Created     bool
}

// SKUResolver finds or creates the SKU for an item's canonical identity.
// Safe for concurrent use; the storage layer's insert-if-absent guarantees a
// single SKU row per fingerprint even across racing workers.
type SKUResolver interface {
	Resolve(ctx context.Context, item *models.Item, values []models.ItemAttributeValue) (*Resolution, error)
}

type skuResolver struct {
	engine *identity.Engine
	skus   repositories.SKURepository
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]int64 // fingerprint -> verified SKU ID, per run
}

// NewSKUResolver creates a SKUResolver over one run's identity engine.
func NewSKUResolver(engine *identity.Engine, skus repositories.SKURepository, logger *zap.Logger) SKUResolver {
	return &skuResolver{
		engine: engine,
		skus:   skus,
		logger: logger.Named("sku-resolver"),
		cache:  make(map[string]int64),
	}
}

var _ SKUResolver = (*skuResolver)(nil)

func (r *skuResolver) Resolve(ctx context.Context, item *models.Item, values []models.ItemAttributeValue) (*Resolution, error) {
	id, err := r.engine.Fingerprint(item.CategoryID, values)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	skuID, hit := r.cache[id.Fingerprint]
	r.mu.Unlock()
	if hit {
		return &Resolution{SKUID: skuID, Fingerprint: id.Fingerprint}, nil
	}

	existing, err := r.skus.GetByFingerprint(ctx, id.Fingerprint)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Fingerprint: id.Fingerprint}
	if existing != nil {
		if err := r.verifyStored(ctx, existing.ID, id); err != nil {
			return nil, err
		}
		res.SKUID = existing.ID
	} else {
		skuID, created, err := r.skus.CreateIfAbsent(ctx,
			&models.SKU{CategoryID: item.CategoryID, Fingerprint: id.Fingerprint}, id.Values)
		if err != nil {
			return nil, err
		}
		if !created {
			// Another worker created it first; its values must still agree.
			if err := r.verifyStored(ctx, skuID, id); err != nil {
				return nil, err
			}
		} else {
			r.logger.Debug("Created SKU",
				zap.Int64("sku_id", skuID),
				zap.Int64("category_id", item.CategoryID),
				zap.String("fingerprint", id.Fingerprint))
		}
		res.SKUID = skuID
		res.Created = created
	}

	r.mu.Lock()
	r.cache[id.Fingerprint] = res.SKUID
	r.mu.Unlock()
	return res, nil
}

// verifyStored compares a SKU's stored canonical values against a freshly
// computed identity. A mismatch means the identity function changed under a
// stable fingerprint; the rebuild pass must halt for investigation rather
// than overwrite.
func (r *skuResolver) verifyStored(ctx context.Context, skuID int64, id *identity.Identity) error {
	stored, err := r.skus.GetAttributes(ctx, skuID)
	if err != nil {
		return err
	}
	serialized, err := r.engine.SerializeStored(stored)
	if err != nil {
		return err
	}
	if serialized != id.Serialized {
		r.logger.Error("SKU canonical values diverge from fingerprint",
			zap.Int64("sku_id", skuID),
			zap.String("fingerprint", id.Fingerprint),
			zap.String("stored", serialized),
			zap.String("computed", id.Serialized))
		return fmt.Errorf("sku %d fingerprint %s: %w", skuID, id.Fingerprint, apperrors.ErrFingerprintMismatch)
	}
	return nil
}
