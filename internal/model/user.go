package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleFreelancer Role = "FREELANCER"
	RoleClient     Role = "CLIENT"
	RoleAdmin      Role = "ADMIN"
)

// ParseRole accepts only the closed set of roles; matching is case-insensitive.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", false
	}
	return role, true
}

func (r Role) Valid() bool {
	switch r {
	case RoleFreelancer, RoleClient, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether the role may be chosen at registration.
func (r Role) SelfAssignable() bool {
	return r == RoleFreelancer || r == RoleClient
}

type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Role          Role
	IsVerified    bool
	IsOnline      bool
	LastSeen      *time.Time
	FirstName     string
	LastName      string
	Bio           string
	HourlyRate    *float64
	CompanyName   string
	AvatarURL     string
	Location      string
	Portfolio     *string
	Rating        float64
	TotalEarnings float64
	TotalSpent    float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the sanitized user representation returned to clients.
type PublicUser struct {
	ID            string     `json:"id"`
	Email         string     `json:"email,omitempty"`
	Role          Role       `json:"role"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	IsVerified    bool       `json:"isVerified"`
	IsOnline      bool       `json:"isOnline"`
	LastSeen      *time.Time `json:"lastSeen"`
	Bio           string     `json:"bio,omitempty"`
	HourlyRate    *float64   `json:"hourlyRate,omitempty"`
	CompanyName   string     `json:"companyName,omitempty"`
	AvatarURL     string     `json:"avatarUrl,omitempty"`
	Location      string     `json:"location,omitempty"`
	Rating        float64    `json:"rating"`
	TotalEarnings float64    `json:"totalEarnings"`
	TotalSpent    float64    `json:"totalSpent"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		IsVerified:    u.IsVerified,
		IsOnline:      u.IsOnline,
		LastSeen:      u.LastSeen,
		Bio:           u.Bio,
		HourlyRate:    u.HourlyRate,
		CompanyName:   u.CompanyName,
		AvatarURL:     u.AvatarURL,
		Location:      u.Location,
		Rating:        u.Rating,
		TotalEarnings: u.TotalEarnings,
		TotalSpent:    u.TotalSpent,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (u User) Identity() Identity {
	return Identity{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsVerified: u.IsVerified,
	}
}

// Identity is the caller resolved by the auth middleware.
type Identity struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	IsVerified bool   `json:"isVerified"`
}

func (i Identity) Name() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

type Language struct {
	Language    string `json:"language"`
	Proficiency string `json:"proficiency"`
}

type PortfolioItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

type Portfolio struct {
	Website string          `json:"website,omitempty"`
	Summary string          `json:"summary,omitempty"`
	Items   []PortfolioItem `json:"items"`
}

// Profile is the composed view served by GET /api/auth/me.
type Profile struct {
	PublicUser
	Skills    []string   `json:"skills"`
	Languages []Language `json:"languages"`
	Portfolio *Portfolio `json:"portfolio"`
}

// ProfileOwnedBy is the ownership predicate for user profiles.
func ProfileOwnedBy(identity Identity, p Profile) bool {
	return p.ID == identity.ID
}

// Redacted hides the fields only the owner may see.
func (p Profile) Redacted() Profile {
	p.Email = ""
	p.TotalEarnings = 0
	p.TotalSpent = 0
	p.LastSeen = nil
	return p
}
