package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"notebook-engine-server/models"
)

// RegistryService is the catalog of trained models. It exclusively owns
// ModelRecord instances: callers get copies in and copies out, so a record
// is never observable partially constructed. Metadata is written through to
// Postgres and bundles to the storage backend when those are configured;
// with both nil the registry is purely in-memory.
type RegistryService struct {
	mu      sync.RWMutex
	records map[string]*models.ModelRecord

	db      *DBService
	storage BundleStorage
}

func NewRegistryService(db *DBService, storage BundleStorage) *RegistryService {
	return &RegistryService{
		records: make(map[string]*models.ModelRecord),
		db:      db,
		storage: storage,
	}
}

// Load warms the in-memory catalog from persisted metadata and bundles
func (r *RegistryService) Load(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	records, bundleKeys, err := r.db.LoadModels(ctx)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range records {
		rec := records[i]
		if key, ok := bundleKeys[rec.ID]; ok && r.storage != nil {
			bundle, err := r.storage.GetBundle(ctx, key)
			if err != nil {
				log.Printf("registry: bundle missing for model %s: %v", rec.ID, err)
			} else {
				rec.SerializedState = bundle
			}
		}
		r.records[rec.ID] = &rec
	}
	return nil
}

// Put stores a fully constructed record. The record must already carry its
// id, version, and timestamps; Put does not mutate it.
func (r *RegistryService) Put(ctx context.Context, rec *models.ModelRecord) error {
	cp := copyRecord(rec)

	if r.storage != nil && cp.SerializedState != "" {
		if err := r.storage.SaveBundle(ctx, BundleKey(cp.ID), cp.SerializedState); err != nil {
			return fmt.Errorf("save bundle: %w", err)
		}
	}
	if r.db != nil {
		key := ""
		if cp.SerializedState != "" {
			key = BundleKey(cp.ID)
		}
		if err := r.db.SaveModel(ctx, cp, key); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
	}

	r.mu.Lock()
	r.records[cp.ID] = cp
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the record, or ErrModelNotFound
func (r *RegistryService) Get(ctx context.Context, id string) (*models.ModelRecord, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, models.ErrModelNotFound
	}
	return copyRecord(rec), nil
}

// List returns all records without bundles, newest first
func (r *RegistryService) List(ctx context.Context) []models.ModelListItem {
	r.mu.RLock()
	items := make([]models.ModelListItem, 0, len(r.records))
	for _, rec := range r.records {
		items = append(items, models.ModelListItem{
			ID:          rec.ID,
			Name:        rec.Name,
			Algorithm:   rec.Algorithm,
			TaskType:    rec.TaskType,
			Performance: copyPerformance(rec.Performance),
			CreatedAt:   rec.CreatedAt,
			Version:     rec.Version,
		})
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

// Delete removes a record. Returns true iff it existed.
func (r *RegistryService) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	_, existed := r.records[id]
	delete(r.records, id)
	r.mu.Unlock()

	if r.db != nil {
		if _, err := r.db.DeleteModel(ctx, id); err != nil {
			return existed, err
		}
	}
	if r.storage != nil && existed {
		if err := r.storage.DeleteBundle(ctx, BundleKey(id)); err != nil {
			log.Printf("registry: delete bundle for model %s: %v", id, err)
		}
	}
	return existed, nil
}

// Export serializes a record, bundle included, as portable JSON text
func (r *RegistryService) Export(ctx context.Context, id string) (string, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export model: %w", err)
	}
	return string(data), nil
}

// Import ingests exported JSON text as a new record. A fresh id is always
// assigned and the version incremented, even when the source carries an id,
// so imports can never collide with existing records.
func (r *RegistryService) Import(ctx context.Context, text string) (*models.ModelRecord, error) {
	var rec models.ModelRecord
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return nil, models.NewValidationError("export", fmt.Sprintf("unparsable model export: %v", err))
	}
	if rec.Algorithm == "" || rec.TaskType == "" || len(rec.FeatureColumns) == 0 {
		return nil, models.NewValidationError("export", "model export is missing algorithm, task type, or feature columns")
	}

	rec.ID = uuid.New().String()
	rec.Version = rec.Version + 1
	rec.CreatedAt = time.Now().UTC()

	if err := r.Put(ctx, &rec); err != nil {
		return nil, err
	}
	return copyRecord(&rec), nil
}

func copyRecord(rec *models.ModelRecord) *models.ModelRecord {
	cp := *rec
	cp.FeatureColumns = append([]string(nil), rec.FeatureColumns...)
	cp.Performance = copyPerformance(rec.Performance)
	return &cp
}

func copyPerformance(perf map[string]float64) map[string]float64 {
	if perf == nil {
		return nil
	}
	cp := make(map[string]float64, len(perf))
	for k, v := range perf {
		cp[k] = v
	}
	return cp
}
