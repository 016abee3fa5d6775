// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"strings"
	"time"
)

// AccountType distinguishes individual members from organizations.
type AccountType string

const (
	AccountLocal        AccountType = "local"
	AccountOrganization AccountType = "organization"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	return t == AccountLocal || t == AccountOrganization
}

// Profile is the persisted record describing one account.
//
// The ID is the identifier issued when the credential was created; there is
// no second identifier scheme. Exactly one of Name / OrgName is populated,
// depending on AccountType.
//
// WHY Approved *bool?
// Approval is a tri-state in stored data: true, false, or never set (rows
// written out-of-band). Listing pending organizations must tell "false" apart
// from "unset", so the field is nullable all the way down to the DB column.
type Profile struct {
	ID          string      `json:"id"          db:"id"`
	Email       string      `json:"email"       db:"email"`
	AccountType AccountType `json:"accountType" db:"account_type"`
	Name        string      `json:"name"        db:"name"`     // local only
	OrgName     string      `json:"orgName"     db:"org_name"` // organization only
	Country     string      `json:"country"     db:"country"`
	Sector      string      `json:"sector"      db:"sector"`
	Briefing    string      `json:"briefing"    db:"briefing"` // free-text description
	Logo        string      `json:"logo"        db:"logo"`     // URI
	Website     string      `json:"website"     db:"website"`
	Approved    *bool       `json:"approved,omitempty" db:"approved"`
	IsAdmin     bool        `json:"isAdmin"     db:"is_admin"`
	CreatedAt   time.Time   `json:"createdAt"   db:"created_at"`
}

// IsApproved reports whether Approved is set and exactly true.
func (p *Profile) IsApproved() bool {
	return p.Approved != nil && *p.Approved
}

// IsPending reports whether Approved is set and exactly false.
// A profile with no approval value at all is NOT pending.
func (p *Profile) IsPending() bool {
	return p.Approved != nil && !*p.Approved
}

// DisplayName returns Name for local accounts and OrgName for organizations.
func (p *Profile) DisplayName() string {
	if p.AccountType == AccountOrganization {
		return p.OrgName
	}
	return p.Name
}

// Bool returns a pointer to b. Handy for Approved literals.
func Bool(b bool) *bool {
	return &b
}

// Signup carries the account-type-specific fields supplied at registration.
//
// There are exactly two implementations, LocalSignup and OrganizationSignup.
// Each one knows how to build the initial Profile for its account type, which
// is where the approval and admin defaults are forced.
type Signup interface {
	AccountType() AccountType
	// DisplayName is the name or organization name, trimmed.
	DisplayName() string
	// NewProfile builds the profile document for a freshly created credential.
	NewProfile(id, email string, createdAt time.Time) *Profile
}

// Metadata holds the descriptive fields shared by both account types.
type Metadata struct {
	Country  string `json:"country"`
	Sector   string `json:"sector"`
	Briefing string `json:"briefing"`
	Logo     string `json:"logo"`
	Website  string `json:"website"`
}

func (m Metadata) apply(p *Profile) {
	p.Country = strings.TrimSpace(m.Country)
	p.Sector = strings.TrimSpace(m.Sector)
	p.Briefing = strings.TrimSpace(m.Briefing)
	p.Logo = strings.TrimSpace(m.Logo)
	p.Website = strings.TrimSpace(m.Website)
}

// LocalSignup registers an individual member. Local accounts are approved
// immediately.
type LocalSignup struct {
	Name string `json:"name"`
	Metadata
}

func (s LocalSignup) AccountType() AccountType { return AccountLocal }
func (s LocalSignup) DisplayName() string      { return strings.TrimSpace(s.Name) }

func (s LocalSignup) NewProfile(id, email string, createdAt time.Time) *Profile {
	p := &Profile{
		ID:          id,
		Email:       email,
		AccountType: AccountLocal,
		Name:        s.DisplayName(),
		Approved:    Bool(true),
		IsAdmin:     false,
		CreatedAt:   createdAt,
	}
	s.Metadata.apply(p)
	return p
}

// OrganizationSignup registers an organization. Organizations start
// unapproved and cannot sign in until an admin approves them.
type OrganizationSignup struct {
	OrgName string `json:"orgName"`
	Metadata
}

func (s OrganizationSignup) AccountType() AccountType { return AccountOrganization }
func (s OrganizationSignup) DisplayName() string      { return strings.TrimSpace(s.OrgName) }

func (s OrganizationSignup) NewProfile(id, email string, createdAt time.Time) *Profile {
	p := &Profile{
		ID:          id,
		Email:       email,
		AccountType: AccountOrganization,
		OrgName:     s.DisplayName(),
		Approved:    Bool(false),
		IsAdmin:     false,
		CreatedAt:   createdAt,
	}
	s.Metadata.apply(p)
	return p
}

// FallbackProfile is written when a credential signs in but has no profile
// document. It is a minimal, approved local profile named after the email.
func FallbackProfile(id, email string, createdAt time.Time) *Profile {
	return &Profile{
		ID:          id,
		Email:       email,
		AccountType: AccountLocal,
		Name:        email,
		Approved:    Bool(true),
		IsAdmin:     false,
		CreatedAt:   createdAt,
	}
}

// ProfileUpdate is the allow-list of fields a profile update may change.
// A nil pointer means "leave as is". Identity and moderation fields (email,
// account type, approval, admin flag, created time) are not in the list.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	OrgName  *string `json:"orgName,omitempty"`
	Country  *string `json:"country,omitempty"`
	Sector   *string `json:"sector,omitempty"`
	Briefing *string `json:"briefing,omitempty"`
	Logo     *string `json:"logo,omitempty"`
	Website  *string `json:"website,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.OrgName == nil && u.Country == nil &&
		u.Sector == nil && u.Briefing == nil && u.Logo == nil && u.Website == nil
}

// ApplyTo merges the set fields into p (trimmed).
func (u ProfileUpdate) ApplyTo(p *Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.Name, u.Name)
	set(&p.OrgName, u.OrgName)
	set(&p.Country, u.Country)
	set(&p.Sector, u.Sector)
	set(&p.Briefing, u.Briefing)
	set(&p.Logo, u.Logo)
	set(&p.Website, u.Website)
}
