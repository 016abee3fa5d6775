package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/repository"
)

var _ repository.ProfileRepository = (*ProfileDB)(nil)

// ProfileDB is the profiles table.
type ProfileDB struct {
	conn *sql.DB
}

const profileColumns = `id, email, account_type, name, org_name, country, sector,
	briefing, logo, website, approved, is_admin, created_at`

// rowScanner is the Scan method shared by *sql.Row and *sql.Rows, so one
// helper can read a profile from either.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProfile reads one row selected with profileColumns.
//
// NULLABLE COLUMNS:
// approved may be NULL. Scanning NULL into a plain bool fails, so we scan
// into sql.NullBool and convert: Valid=false → Approved=nil.
func scanProfile(row rowScanner) (*model.Profile, error) {
	var (
		p         model.Profile
		approved  sql.NullBool
		createdAt string
	)

	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.AccountType,
		&p.Name,
		&p.OrgName,
		&p.Country,
		&p.Sector,
		&p.Briefing,
		&p.Logo,
		&p.Website,
		&approved,
		&p.IsAdmin,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if approved.Valid {
		p.Approved = model.Bool(approved.Bool)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	return &p, nil
}

// nullBool is the inverse of the NullBool scan above.
func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// Put writes the whole profile, replacing any row with the same ID.
func (p *ProfileDB) Put(ctx context.Context, profile *model.Profile) error {
	_, err := p.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		strings.ToLower(profile.Email),
		string(profile.AccountType),
		profile.Name,
		profile.OrgName,
		profile.Country,
		profile.Sector,
		profile.Briefing,
		profile.Logo,
		profile.Website,
		nullBool(profile.Approved),
		profile.IsAdmin,
		formatTime(profile.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing profile %s: %w", profile.ID, err)
	}
	return nil
}

// GetByID returns the profile or apperror.ErrNotFound.
func (p *ProfileDB) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	row := p.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", id, err)
	}
	return profile, nil
}

// GetByEmail returns the profile registered with email (case-insensitive).
// Used by the promote command, which only knows addresses.
func (p *ProfileDB) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := p.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = ? ORDER BY created_at LIMIT 1`, email)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", email)
		}
		return nil, fmt.Errorf("sqlite: getting profile by email %s: %w", email, err)
	}
	return profile, nil
}

// UpdateDetails writes the names and metadata of profile. Identity and
// moderation columns (email, account type, approved, is_admin, created_at)
// are left untouched even if the struct carries different values.
func (p *ProfileDB) UpdateDetails(ctx context.Context, profile *model.Profile) error {
	res, err := p.conn.ExecContext(ctx,
		`UPDATE profiles
		 SET name = ?, org_name = ?, country = ?, sector = ?, briefing = ?, logo = ?, website = ?
		 WHERE id = ?`,
		profile.Name,
		profile.OrgName,
		profile.Country,
		profile.Sector,
		profile.Briefing,
		profile.Logo,
		profile.Website,
		profile.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.ID, err)
	}
	return requireRow(res, "profile", profile.ID)
}

// SetApproved writes the approval flag.
func (p *ProfileDB) SetApproved(ctx context.Context, id string, approved bool) error {
	res, err := p.conn.ExecContext(ctx,
		`UPDATE profiles SET approved = ? WHERE id = ?`, approved, id)
	if err != nil {
		return fmt.Errorf("sqlite: setting approval on %s: %w", id, err)
	}
	return requireRow(res, "profile", id)
}

// SetAdmin writes the admin flag.
func (p *ProfileDB) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	res, err := p.conn.ExecContext(ctx,
		`UPDATE profiles SET is_admin = ? WHERE id = ?`, isAdmin, id)
	if err != nil {
		return fmt.Errorf("sqlite: setting admin on %s: %w", id, err)
	}
	return requireRow(res, "profile", id)
}

// ListByAccountType returns every profile of one type, oldest first.
// Filtering by country/sector/approval happens in the service layer.
func (p *ProfileDB) ListByAccountType(ctx context.Context, accountType model.AccountType) ([]model.Profile, error) {
	rows, err := p.conn.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 WHERE account_type = ?
		 ORDER BY created_at, id`,
		string(accountType),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s profiles: %w", accountType, err)
	}
	defer rows.Close()

	// Start with an empty (non-nil) slice so JSON encodes [] rather than null.
	profiles := []model.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning profile row: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating profile rows: %w", err)
	}
	return profiles, nil
}

// requireRow turns "UPDATE matched nothing" into apperror.ErrNotFound.
func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected for %s %s: %w", resource, id, err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
