package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrKioskNotFound     = errors.New("kiosk not found")
	ErrNamespaceConflict = errors.New("namespace already in use")
)

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) FindTenantByNamespace(ctx context.Context, namespace string) (*Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, org_id, socket_namespace, created_at
		 FROM brands WHERE socket_namespace = $1`, namespace)

	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("query tenant: %w", err)
	}
	return tenant, nil
}

func (s *Service) GetTenantByID(ctx context.Context, id string) (*Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, org_id, socket_namespace, created_at
		 FROM brands WHERE id = $1`, id)

	tenant, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("query tenant: %w", err)
	}
	return tenant, nil
}

func (s *Service) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, org_id, socket_namespace, created_at
		 FROM brands ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *tenant)
	}
	return tenants, rows.Err()
}

func (s *Service) CreateTenant(ctx context.Context, name, orgID, namespace string) (*Tenant, error) {
	id := uuid.New().String()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO brands (id, name, org_id, socket_namespace)
		 VALUES ($1, $2, NULLIF($3, ''), $4)
		 RETURNING id, name, org_id, socket_namespace, created_at`,
		id, name, orgID, namespace)

	tenant, err := scanTenant(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNamespaceConflict
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return tenant, nil
}

// UpsertKiosk creates or partially updates a kiosk record. Only the fields
// present in params are written; COALESCE keeps everything else as stored.
func (s *Service) UpsertKiosk(ctx context.Context, params UpsertKioskParams) error {
	lastSeen := params.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}

	specs, err := marshalOptionalJSON(params.Specs)
	if err != nil {
		return fmt.Errorf("encode specs: %w", err)
	}
	metadata, err := marshalOptionalJSON(params.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO kiosks (id, brand_id, org_id, status, last_seen, specs, app_version, location, metadata, last_screenshot)
		 VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'offline'), $5, COALESCE($6, '{}'::jsonb), $7, $8, COALESCE($9, '{}'::jsonb), $10)
		 ON CONFLICT (id) DO UPDATE SET
		     status          = COALESCE(NULLIF(EXCLUDED.status, ''), kiosks.status),
		     last_seen       = EXCLUDED.last_seen,
		     org_id          = COALESCE($3, kiosks.org_id),
		     specs           = COALESCE($6, kiosks.specs),
		     app_version     = COALESCE($7, kiosks.app_version),
		     location        = COALESCE($8, kiosks.location),
		     metadata        = COALESCE($9, kiosks.metadata),
		     last_screenshot = COALESCE($10, kiosks.last_screenshot)`,
		params.ID, params.BrandID, params.OrgID, params.Status, lastSeen,
		specs, params.AppVersion, params.Location, metadata, params.LastScreenshot)
	if err != nil {
		return fmt.Errorf("upsert kiosk: %w", err)
	}
	return nil
}

func (s *Service) GetKiosk(ctx context.Context, kioskID string) (*Kiosk, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, brand_id, org_id, status, last_seen, specs, app_version, location, metadata, last_screenshot, created_at
		 FROM kiosks WHERE id = $1`, kioskID)

	kiosk, err := scanKiosk(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKioskNotFound
		}
		return nil, fmt.Errorf("query kiosk: %w", err)
	}
	return kiosk, nil
}

func (s *Service) ListKiosksByNamespace(ctx context.Context, namespace string) ([]Kiosk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT k.id, k.brand_id, k.org_id, k.status, k.last_seen, k.specs, k.app_version, k.location, k.metadata, k.last_screenshot, k.created_at
		 FROM kiosks k
		 JOIN brands b ON b.id = k.brand_id
		 WHERE b.socket_namespace = $1
		 ORDER BY k.last_seen DESC`, namespace)
	if err != nil {
		return nil, fmt.Errorf("list kiosks: %w", err)
	}
	defer rows.Close()

	var kiosks []Kiosk
	for rows.Next() {
		kiosk, err := scanKiosk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kiosk: %w", err)
		}
		kiosks = append(kiosks, *kiosk)
	}
	return kiosks, rows.Err()
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var tenant Tenant
	var orgID *string
	if err := row.Scan(&tenant.ID, &tenant.Name, &orgID, &tenant.Namespace, &tenant.CreatedAt); err != nil {
		return nil, err
	}
	if orgID != nil {
		tenant.OrgID = *orgID
	}
	return &tenant, nil
}

func scanKiosk(row pgx.Row) (*Kiosk, error) {
	var kiosk Kiosk
	var orgID, appVersion, location, lastScreenshot *string
	var specs, metadata []byte
	if err := row.Scan(&kiosk.ID, &kiosk.BrandID, &orgID, &kiosk.Status, &kiosk.LastSeen,
		&specs, &appVersion, &location, &metadata, &lastScreenshot, &kiosk.CreatedAt); err != nil {
		return nil, err
	}
	if orgID != nil {
		kiosk.OrgID = *orgID
	}
	if appVersion != nil {
		kiosk.AppVersion = *appVersion
	}
	if location != nil {
		kiosk.Location = *location
	}
	if lastScreenshot != nil {
		kiosk.LastScreenshot = *lastScreenshot
	}
	if len(specs) > 0 {
		_ = json.Unmarshal(specs, &kiosk.Specs)
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &kiosk.Metadata)
	}
	return &kiosk, nil
}

func marshalOptionalJSON(value map[string]interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
