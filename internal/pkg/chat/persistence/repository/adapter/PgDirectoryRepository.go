package adapter

import (
	"context"
	"errors"
	"time"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
	repository "github.com/360john360/childnur-sub000/internal/pkg/chat/persistence/repository/port"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDirectoryRepository reads user profiles and children maintained by the
// rest of the platform. It never writes.
type PgDirectoryRepository struct {
	pool *pgxpool.Pool
}

var _ repository.DirectoryRepository = (*PgDirectoryRepository)(nil)

func NewPgDirectoryRepository(pool *pgxpool.Pool) *PgDirectoryRepository {
	return &PgDirectoryRepository{pool: pool}
}

func (r *PgDirectoryRepository) GetProfile(ctx context.Context, tenantID string, userID string) (chat.Profile, error) {
	if r == nil || r.pool == nil {
		return chat.Profile{}, errors.New("PgDirectoryRepository: nil pool")
	}
	var (
		p          chat.Profile
		zone       string
		quietStart *string
		quietEnd   *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id::text, tenant_id::text, time_zone, quiet_start::text, quiet_end::text
		FROM chat.user_profile
		WHERE user_id = $1::uuid AND tenant_id = $2::uuid
	`, userID, tenantID).Scan(&p.UserID, &p.TenantID, &zone, &quietStart, &quietEnd)
	if err != nil {
		return chat.Profile{}, translate(err)
	}

	p.Location = loadLocation(zone)
	if quietStart != nil && quietEnd != nil {
		q, err := parseQuietHours(*quietStart, *quietEnd)
		if err != nil {
			return chat.Profile{}, err
		}
		p.QuietHours = q
	}
	return p, nil
}

func (r *PgDirectoryRepository) ChildExists(ctx context.Context, tenantID string, childID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgDirectoryRepository: nil pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM chat.child WHERE id = $1::uuid AND tenant_id = $2::uuid)
	`, childID, tenantID).Scan(&ok)
	if err != nil {
		if errors.Is(translate(err), chat.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// loadLocation resolves an IANA zone name, falling back to UTC for unknown names.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseQuietHours(start, end string) (*chat.QuietHours, error) {
	s, err := chat.ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	e, err := chat.ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}
	return &chat.QuietHours{Start: s, End: e}, nil
}
