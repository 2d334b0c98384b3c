package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPrincipalNotFound signals that no principal exists under the given
	// (partition, key).
	ErrPrincipalNotFound = errors.New("auth: principal not found")
	// ErrDuplicateIdentity signals an email (or provider license number)
	// collision inside a single partition.
	ErrDuplicateIdentity = errors.New("auth: identity already registered in partition")
)

// Repository handles data access for the three principal partitions.
type Repository interface {
	CreateClient(ctx context.Context, c Client) (Client, error)
	CreateProvider(ctx context.Context, p Provider) (Provider, error)
	CreateAdmin(ctx context.Context, a Admin) (Admin, error)
	FindByEmail(ctx context.Context, partition Partition, email string) (Principal, error)
	FindByID(ctx context.Context, partition Partition, id string) (Principal, error)
	TouchLastLogin(ctx context.Context, partition Partition, id string, at time.Time) error
	SetActive(ctx context.Context, partition Partition, id string, active bool) (Principal, error)
	SetProviderVerified(ctx context.Context, id string) (Provider, error)
	UpdateProviderAvailability(ctx context.Context, id string, windows []AvailabilityWindow) (Provider, error)
	UpdatePasswordHash(ctx context.Context, partition Partition, id string, hash string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed principal repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const clientColumns = `id, email, password_hash, first_name, last_name, phone, date_of_birth, gender, active, last_login, created_at, updated_at`

const providerColumns = `id, email, password_hash, first_name, last_name, phone, license_number, specializations,
    education, experience_years, bio, hourly_rate, languages, availability, verified, rating, total_sessions,
    active, last_login, created_at, updated_at`

const adminColumns = `id, email, password_hash, first_name, last_name, phone, tier, permissions, active, last_login, created_at, updated_at`

func (r *PGRepository) CreateClient(ctx context.Context, c Client) (Client, error) {
	const insertSQL = `
        INSERT INTO clients (id, email, password_hash, first_name, last_name, phone, date_of_birth, gender)
        VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)
        RETURNING ` + clientColumns

	row := r.pool.QueryRow(ctx, insertSQL,
		c.ID, c.Email, c.PasswordHash, c.FirstName, c.LastName, c.Phone, c.DateOfBirth, c.Gender)

	created, err := scanClient(row)
	if err != nil {
		return Client{}, mapCreateErr("create client", err)
	}
	return created, nil
}

func (r *PGRepository) CreateProvider(ctx context.Context, p Provider) (Provider, error) {
	const insertSQL = `
        INSERT INTO providers (id, email, password_hash, first_name, last_name, phone, license_number,
            specializations, education, experience_years, bio, hourly_rate, languages, availability)
        VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14::jsonb)
        RETURNING ` + providerColumns

	row := r.pool.QueryRow(ctx, insertSQL,
		p.ID, p.Email, p.PasswordHash, p.FirstName, p.LastName, p.Phone, p.LicenseNumber,
		p.Specializations, mustJSON(p.Education), p.ExperienceYears, p.Bio, p.HourlyRate,
		p.Languages, mustJSON(p.Availability))

	created, err := scanProvider(row)
	if err != nil {
		return Provider{}, mapCreateErr("create provider", err)
	}
	return created, nil
}

func (r *PGRepository) CreateAdmin(ctx context.Context, a Admin) (Admin, error) {
	const insertSQL = `
        INSERT INTO admins (id, email, password_hash, first_name, last_name, phone, tier, permissions)
        VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)
        RETURNING ` + adminColumns

	row := r.pool.QueryRow(ctx, insertSQL,
		a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Phone, a.Tier, a.Permissions)

	created, err := scanAdmin(row)
	if err != nil {
		return Admin{}, mapCreateErr("create admin", err)
	}
	return created, nil
}

func (r *PGRepository) FindByEmail(ctx context.Context, partition Partition, email string) (Principal, error) {
	return r.find(ctx, partition, "lower(email) = lower($1)", email)
}

func (r *PGRepository) FindByID(ctx context.Context, partition Partition, id string) (Principal, error) {
	return r.find(ctx, partition, "id = $1", id)
}

func (r *PGRepository) find(ctx context.Context, partition Partition, where string, arg any) (Principal, error) {
	switch partition {
	case PartitionClient:
		row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE `+where, arg)
		c, err := scanClient(row)
		if err != nil {
			return Principal{}, mapFindErr("find client", err)
		}
		return Principal{Partition: PartitionClient, Client: &c}, nil
	case PartitionProvider:
		row := r.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE `+where, arg)
		p, err := scanProvider(row)
		if err != nil {
			return Principal{}, mapFindErr("find provider", err)
		}
		return Principal{Partition: PartitionProvider, Provider: &p}, nil
	case PartitionAdmin:
		row := r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE `+where, arg)
		a, err := scanAdmin(row)
		if err != nil {
			return Principal{}, mapFindErr("find admin", err)
		}
		return Principal{Partition: PartitionAdmin, Admin: &a}, nil
	default:
		return Principal{}, fmt.Errorf("auth: unknown partition %q", partition)
	}
}

func (r *PGRepository) TouchLastLogin(ctx context.Context, partition Partition, id string, at time.Time) error {
	table, err := tableFor(partition)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE `+table+` SET last_login = $1, updated_at = now() WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("auth: touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (r *PGRepository) SetActive(ctx context.Context, partition Partition, id string, active bool) (Principal, error) {
	table, err := tableFor(partition)
	if err != nil {
		return Principal{}, err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE `+table+` SET active = $1, updated_at = now() WHERE id = $2`, active, id)
	if err != nil {
		return Principal{}, fmt.Errorf("auth: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Principal{}, ErrPrincipalNotFound
	}
	return r.FindByID(ctx, partition, id)
}

func (r *PGRepository) SetProviderVerified(ctx context.Context, id string) (Provider, error) {
	const updateSQL = `UPDATE providers SET verified = true, updated_at = now() WHERE id = $1 RETURNING ` + providerColumns
	p, err := scanProvider(r.pool.QueryRow(ctx, updateSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provider{}, ErrPrincipalNotFound
		}
		return Provider{}, fmt.Errorf("auth: verify provider: %w", err)
	}
	return p, nil
}

func (r *PGRepository) UpdateProviderAvailability(ctx context.Context, id string, windows []AvailabilityWindow) (Provider, error) {
	const updateSQL = `UPDATE providers SET availability = $1::jsonb, updated_at = now() WHERE id = $2 RETURNING ` + providerColumns
	p, err := scanProvider(r.pool.QueryRow(ctx, updateSQL, mustJSON(windows), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provider{}, ErrPrincipalNotFound
		}
		return Provider{}, fmt.Errorf("auth: update availability: %w", err)
	}
	return p, nil
}

func (r *PGRepository) UpdatePasswordHash(ctx context.Context, partition Partition, id string, hash string) error {
	table, err := tableFor(partition)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE `+table+` SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("auth: update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func tableFor(partition Partition) (string, error) {
	switch partition {
	case PartitionClient:
		return "clients", nil
	case PartitionProvider:
		return "providers", nil
	case PartitionAdmin:
		return "admins", nil
	default:
		return "", fmt.Errorf("auth: unknown partition %q", partition)
	}
}

func mapCreateErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateIdentity
	}
	return fmt.Errorf("auth: %s: %w", op, err)
}

func mapFindErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPrincipalNotFound
	}
	return fmt.Errorf("auth: %s: %w", op, err)
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.Email, &c.PasswordHash, &c.FirstName, &c.LastName, &c.Phone,
		&c.DateOfBirth, &c.Gender, &c.Active, &c.LastLogin, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func scanProvider(row pgx.Row) (Provider, error) {
	var (
		p            Provider
		education    []byte
		availability []byte
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName, &p.Phone,
		&p.LicenseNumber, &p.Specializations, &education, &p.ExperienceYears, &p.Bio,
		&p.HourlyRate, &p.Languages, &availability, &p.Verified, &p.Rating,
		&p.TotalSessions, &p.Active, &p.LastLogin, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Provider{}, err
	}
	if len(education) > 0 {
		if err := json.Unmarshal(education, &p.Education); err != nil {
			return Provider{}, fmt.Errorf("auth: decode education: %w", err)
		}
	}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &p.Availability); err != nil {
			return Provider{}, fmt.Errorf("auth: decode availability: %w", err)
		}
	}
	return p, nil
}

func scanAdmin(row pgx.Row) (Admin, error) {
	var a Admin
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.Phone,
		&a.Tier, &a.Permissions, &a.Active, &a.LastLogin, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
