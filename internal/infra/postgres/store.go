// Package postgres implements the persistence ports directly against
// Postgres with gorm, for deployments that do not go through PostgREST.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var tracer = otel.Tracer("postgres")

// Store is a gorm-backed port.Store.
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

var _ port.Store = (*Store)(nil)

// Open connects to databaseURL and, when autoMigrate is set, creates the
// tables the ports need.
func Open(databaseURL string, autoMigrate bool, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database migrated")
	}

	return New(db, logger), nil
}

// New wraps an existing connection.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&clientModel{},
		&estimateModel{},
		&lineItemModel{},
		&materialModel{},
		&profileModel{},
	)
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// mapErr converts gorm errors to domain errors.
func (s *Store) mapErr(op, resource, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &domain.ErrNotFound{Resource: resource, ID: id}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &domain.ErrConflict{Message: "record already exists"}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: "postgres." + op}
	}
	s.logger.Error("postgres: query failed", zap.String("op", op), zap.Error(err))
	return &domain.ErrExternalService{Service: "postgres", Err: err}
}

// likePattern escapes LIKE metacharacters and wraps term in wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(term)) + "%"
}

// ============================================================
// Clients
// ============================================================

func (s *Store) ListClients(ctx context.Context, userID, search string) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListClients")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if strings.TrimSpace(search) != "" {
		p := likePattern(search)
		q = q.Where("name ILIKE ? OR email ILIKE ? OR phone ILIKE ?", p, p, p)
	}

	var rows []clientModel
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, s.mapErr("ListClients", "client", "", err)
	}
	out := make([]domain.Client, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetClient(ctx context.Context, userID, id string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetClient")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}

	var row clientModel
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	if err != nil {
		return nil, s.mapErr("GetClient", "client", id, err)
	}
	c := row.toDomain()
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateClient")
	defer span.End()

	row := fromClient(c)
	row.ID = uuid.NewString()
	row.CreatedAt = s.now()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, s.mapErr("CreateClient", "client", "", err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) UpdateClient(ctx context.Context, c *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateClient")
	defer span.End()

	res := s.db.WithContext(ctx).Model(&clientModel{}).
		Where("id = ? AND user_id = ?", c.ID, c.UserID).
		Updates(map[string]any{
			"name":    c.Name,
			"email":   c.Email,
			"phone":   c.Phone,
			"address": c.Address,
			"notes":   c.Notes,
		})
	if res.Error != nil {
		return nil, s.mapErr("UpdateClient", "client", c.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &domain.ErrNotFound{Resource: "client", ID: c.ID}
	}
	return s.GetClient(ctx, c.UserID, c.ID)
}

// DeleteClient detaches the client's estimates and removes the client in
// one transaction.
func (s *Store) DeleteClient(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteClient")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return &domain.ErrNotFound{Resource: "client", ID: id}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&clientModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&estimateModel{}).
			Where("client_id = ? AND user_id = ?", id, userID).
			Update("client_id", nil).Error
	})
	return s.mapErr("DeleteClient", "client", id, err)
}

// ============================================================
// Estimates
// ============================================================

func (s *Store) ListEstimates(ctx context.Context, userID string, q domain.EstimateQuery) ([]domain.Estimate, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListEstimates")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	q.Normalize()
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}

	var rows []estimateModel
	err := tx.Order("created_at DESC").Order("id DESC").Limit(q.Limit).Offset(q.Offset).Find(&rows).Error
	if err != nil {
		return nil, s.mapErr("ListEstimates", "estimate", "", err)
	}

	clients, err := s.clientsByID(ctx, userID, rows)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Estimate, 0, len(rows))
	for i := range rows {
		e := rows[i].toDomain()
		if e.ClientID != nil {
			if c, ok := clients[*e.ClientID]; ok {
				e.Client = &c
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) clientsByID(ctx context.Context, userID string, rows []estimateModel) (map[string]domain.Client, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.ClientID != nil {
			ids = append(ids, *r.ClientID)
		}
	}
	out := make(map[string]domain.Client, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var clients []clientModel
	err := s.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&clients).Error
	if err != nil {
		return nil, s.mapErr("ListEstimates", "client", "", err)
	}
	for i := range clients {
		out[clients[i].ID] = clients[i].toDomain()
	}
	return out, nil
}

func (s *Store) GetEstimate(ctx context.Context, userID, id string) (*domain.Estimate, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetEstimate")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", id))

	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.ErrNotFound{Resource: "estimate", ID: id}
	}

	var row estimateModel
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		return nil, s.mapErr("GetEstimate", "estimate", id, err)
	}
	e := row.toDomain()

	if e.ClientID != nil {
		var c clientModel
		err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", *e.ClientID, userID).First(&c).Error
		switch {
		case err == nil:
			dc := c.toDomain()
			e.Client = &dc
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, s.mapErr("GetEstimate", "client", *e.ClientID, err)
		}
	}

	var items []lineItemModel
	if err := s.db.WithContext(ctx).Where("estimate_id = ?", id).Order("sort_order ASC").Find(&items).Error; err != nil {
		return nil, s.mapErr("GetEstimate", "estimate_items", id, err)
	}
	e.Items = make([]domain.LineItem, 0, len(items))
	for i := range items {
		e.Items = append(e.Items, items[i].toDomain())
	}
	return &e, nil
}

func (s *Store) CreateEstimate(ctx context.Context, e *domain.Estimate) (*domain.Estimate, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateEstimate")
	defer span.End()

	row, err := fromEstimate(e)
	if err != nil {
		return nil, err
	}
	row.ID = uuid.NewString()
	row.CreatedAt = s.now()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, s.mapErr("CreateEstimate", "estimate", "", err)
	}
	out := row.toDomain()
	return &out, nil
}

// UpdateEstimate writes the mutable columns only while the stored status is
// still from.
func (s *Store) UpdateEstimate(ctx context.Context, e *domain.Estimate, from domain.EstimateStatus) (*domain.Estimate, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateEstimate")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", e.ID))

	row, err := fromEstimate(e)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&estimateModel{}).
		Where("id = ? AND user_id = ? AND status = ?", e.ID, e.UserID, string(from)).
		Updates(map[string]any{
			"client_id":   row.ClientID,
			"job_address": row.JobAddress,
			"status":      row.Status,
			"notes":       row.Notes,
			"valid_until": row.ValidUntil,
			"sent_at":     row.SentAt,
			"pdf_url":     row.PDFURL,
		})
	if res.Error != nil {
		return nil, s.mapErr("UpdateEstimate", "estimate", e.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&estimateModel{}).
			Where("id = ? AND user_id = ?", e.ID, e.UserID).Count(&n).Error; err != nil {
			return nil, s.mapErr("UpdateEstimate", "estimate", e.ID, err)
		}
		if n > 0 {
			return nil, domain.StaleEstimate(e.ID)
		}
		return nil, &domain.ErrNotFound{Resource: "estimate", ID: e.ID}
	}

	var saved estimateModel
	if err := s.db.WithContext(ctx).Where("id = ?", e.ID).First(&saved).Error; err != nil {
		return nil, s.mapErr("UpdateEstimate", "estimate", e.ID, err)
	}
	out := saved.toDomain()
	return &out, nil
}

func (s *Store) DeleteEstimate(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteEstimate")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return &domain.ErrNotFound{Resource: "estimate", ID: id}
	}

	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&estimateModel{})
	if res.Error != nil {
		return s.mapErr("DeleteEstimate", "estimate", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "estimate", ID: id}
	}
	return nil
}

func (s *Store) CreateLineItems(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateLineItems")
	defer span.End()
	span.SetAttributes(attribute.Int("items.count", len(items)))

	if len(items) == 0 {
		return []domain.LineItem{}, nil
	}

	rows := make([]lineItemModel, 0, len(items))
	for _, it := range items {
		rows = append(rows, lineItemModel{
			ID:          uuid.NewString(),
			EstimateID:  it.EstimateID,
			Type:        string(it.Type),
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
			SortOrder:   it.SortOrder,
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, s.mapErr("CreateLineItems", "estimate_items", "", err)
	}

	out := make([]domain.LineItem, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) DeleteLineItems(ctx context.Context, estimateID string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteLineItems")
	defer span.End()

	err := s.db.WithContext(ctx).Where("estimate_id = ?", estimateID).Delete(&lineItemModel{}).Error
	return s.mapErr("DeleteLineItems", "estimate_items", estimateID, err)
}

func (s *Store) StatusTotals(ctx context.Context, userID string) ([]domain.StatusTotal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.StatusTotals")
	defer span.End()

	var rows []struct {
		Status string
		Total  float64
	}
	err := s.db.WithContext(ctx).Model(&estimateModel{}).
		Select("status, total").
		Where("user_id = ?", userID).
		Scan(&rows).Error
	if err != nil {
		return nil, s.mapErr("StatusTotals", "estimate", "", err)
	}

	out := make([]domain.StatusTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.StatusTotal{Status: domain.EstimateStatus(r.Status), Total: r.Total})
	}
	return out, nil
}

// ============================================================
// Materials
// ============================================================

func (s *Store) ListMaterials(ctx context.Context, userID string, trade domain.Trade) ([]domain.Material, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListMaterials")
	defer span.End()

	q := s.db.WithContext(ctx).Where("user_id = ? AND is_custom = ?", userID, true)
	if trade != "" {
		q = q.Where("trade = ?", string(trade))
	}

	var rows []materialModel
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, s.mapErr("ListMaterials", "material", "", err)
	}
	out := make([]domain.Material, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetMaterial(ctx context.Context, userID, id string) (*domain.Material, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetMaterial")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.ErrNotFound{Resource: "material", ID: id}
	}

	var row materialModel
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		return nil, s.mapErr("GetMaterial", "material", id, err)
	}
	m := row.toDomain()
	return &m, nil
}

func (s *Store) CreateMaterial(ctx context.Context, m *domain.Material) (*domain.Material, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateMaterial")
	defer span.End()

	row := fromMaterial(m)
	row.ID = uuid.NewString()
	row.CreatedAt = s.now()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, s.mapErr("CreateMaterial", "material", "", err)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) UpdateMaterial(ctx context.Context, m *domain.Material) (*domain.Material, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateMaterial")
	defer span.End()

	row := fromMaterial(m)
	res := s.db.WithContext(ctx).Model(&materialModel{}).
		Where("id = ? AND user_id = ?", m.ID, domain.Deref(m.UserID)).
		Updates(map[string]any{
			"name":          row.Name,
			"unit":          row.Unit,
			"default_price": row.DefaultPrice,
			"trade":         row.Trade,
		})
	if res.Error != nil {
		return nil, s.mapErr("UpdateMaterial", "material", m.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &domain.ErrNotFound{Resource: "material", ID: m.ID}
	}
	return s.GetMaterial(ctx, domain.Deref(m.UserID), m.ID)
}

func (s *Store) DeleteMaterial(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteMaterial")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return &domain.ErrNotFound{Resource: "material", ID: id}
	}

	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&materialModel{})
	if res.Error != nil {
		return s.mapErr("DeleteMaterial", "material", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "material", ID: id}
	}
	return nil
}

// UpsertSystemMaterials writes catalog rows keyed by their stable ids.
func (s *Store) UpsertSystemMaterials(ctx context.Context, items []domain.Material) (int, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertSystemMaterials")
	defer span.End()

	if len(items) == 0 {
		return 0, nil
	}

	now := s.now()
	rows := make([]materialModel, 0, len(items))
	for i := range items {
		row := fromMaterial(&items[i])
		row.UserID = nil
		row.IsCustom = false
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		rows = append(rows, row)
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"trade", "name", "unit", "default_price"}),
	}).Create(&rows)
	if res.Error != nil {
		return 0, s.mapErr("UpsertSystemMaterials", "material", "", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ============================================================
// Profiles
// ============================================================

func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfile")
	defer span.End()

	var row profileModel
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error; err != nil {
		return nil, s.mapErr("GetProfile", "profile", userID, err)
	}
	return row.toDomain(), nil
}

// UpsertProfile writes the editable columns. The stripe customer id is
// changed only through SetStripeCustomerID.
func (s *Store) UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertProfile")
	defer span.End()

	row := fromProfile(p)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"company_name", "company_logo_url", "phone", "address",
			"default_markup", "default_labor_rate", "tax_rate",
			"payment_terms", "trade", "subscription_status",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, s.mapErr("UpsertProfile", "profile", p.ID, err)
	}
	return s.GetProfile(ctx, p.ID)
}

func (s *Store) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	ctx, span := tracer.Start(ctx, "Postgres.SetStripeCustomerID")
	defer span.End()

	row := fromProfile(domain.NewProfile(userID))
	row.StripeCustomerID = &customerID
	row.CreatedAt = s.now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stripe_customer_id"}),
	}).Create(&row).Error
	return s.mapErr("SetStripeCustomerID", "profile", userID, err)
}
