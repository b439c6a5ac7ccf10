// Package local implements the hub-side endpoint of a sync run: the
// internal record store the engine reads from on outbound runs and writes
// to on inbound runs. It speaks the same connector port as the external
// adapters so the executor treats both sides uniformly.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synchub/backend/internal/domain/connector"
	"github.com/synchub/backend/internal/infrastructure/persistence/models"
)

// Store is the hub-side connector over the hub_records table
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates the hub-side record store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Type identifies the hub side. The store is injected directly into the
// executor, never selected through the registry.
func (s *Store) Type() connector.Type {
	return connector.TypeCustom
}

// Probe checks database reachability
func (s *Store) Probe(ctx context.Context, _ connector.ConnectionInfo) (*connector.ProbeResult, error) {
	start := time.Now()
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return &connector.ProbeResult{
			Success:   false,
			Message:   err.Error(),
			LatencyMs: time.Since(start).Milliseconds(),
		}, fmt.Errorf("%w: %v", connector.ErrProbeFailed, err)
	}
	return &connector.ProbeResult{
		Success:   true,
		Message:   "ok",
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Fetch reads one page of hub records for the tenant and entity, oldest
// modification first. Filter terms match against top-level fields of the
// record payload.
func (s *Store) Fetch(ctx context.Context, conn connector.ConnectionInfo, req connector.FetchRequest) (*connector.FetchPage, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	query := s.db.WithContext(ctx).Model(&models.HubRecordModel{}).
		Where("tenant_id = ? AND entity = ?", conn.TenantID, req.Entity.String())
	if req.DeltaSince != nil {
		query = query.Where("modified_at > ?", req.DeltaSince)
	}
	for field, value := range req.Filter {
		query = query.Where("data->>? = ?", field, fmt.Sprint(value))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrFetchFailed, err)
	}

	var rows []models.HubRecordModel
	if err := query.
		Order("modified_at ASC, external_id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrFetchFailed, err)
	}

	records := make([]connector.Record, 0, len(rows))
	for i := range rows {
		rec, err := toRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return &connector.FetchPage{
		Records: records,
		Total:   int(total),
		HasMore: page*pageSize < int(total),
	}, nil
}

// Write upserts one hub record. An empty ExternalID creates a new record
// with a generated identifier.
func (s *Store) Write(ctx context.Context, conn connector.ConnectionInfo, req connector.WriteRequest) (*connector.WriteResult, error) {
	data, err := json.Marshal(req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrWriteFailed, err)
	}
	now := s.now()

	if req.ExternalID == "" {
		row := models.HubRecordModel{
			ID:         uuid.New(),
			TenantID:   conn.TenantID,
			Entity:     req.Entity.String(),
			ExternalID: uuid.NewString(),
			Data:       string(data),
			ModifiedAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", connector.ErrWriteFailed, err)
		}
		return &connector.WriteResult{ExternalID: row.ExternalID, Created: true}, nil
	}

	result := s.db.WithContext(ctx).Model(&models.HubRecordModel{}).
		Where("tenant_id = ? AND entity = ? AND external_id = ?", conn.TenantID, req.Entity.String(), req.ExternalID).
		Updates(map[string]any{
			"data":        string(data),
			"modified_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrWriteFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		row := models.HubRecordModel{
			ID:         uuid.New(),
			TenantID:   conn.TenantID,
			Entity:     req.Entity.String(),
			ExternalID: req.ExternalID,
			Data:       string(data),
			ModifiedAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", connector.ErrWriteFailed, err)
		}
		return &connector.WriteResult{ExternalID: req.ExternalID, Created: true}, nil
	}
	return &connector.WriteResult{ExternalID: req.ExternalID, Created: false}, nil
}

func toRecord(row *models.HubRecordModel) (connector.Record, error) {
	data := make(map[string]any)
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return connector.Record{}, fmt.Errorf("%w: corrupt record %s: %v", connector.ErrFetchFailed, row.ExternalID, err)
		}
	}
	return connector.Record{
		ExternalID: row.ExternalID,
		ModifiedAt: row.ModifiedAt,
		Data:       data,
	}, nil
}

var _ connector.Connector = (*Store)(nil)
