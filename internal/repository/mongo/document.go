package mongo

import (
	"time"

	"github.com/sodmaq/auth-service/internal/domain"
)

const (
	usersCollection  = "users"
	tokensCollection = "tokens"
)

// userDocument is the BSON shape of a user. Optional token fields are
// omitted when empty so the sparse indexes skip them.
type userDocument struct {
	ID                   string     `bson:"_id"`
	Name                 string     `bson:"name"`
	Email                string     `bson:"email"`
	Password             string     `bson:"password"`
	RefreshToken         string     `bson:"refreshToken,omitempty"`
	IsVerified           bool       `bson:"isVerified"`
	PasswordChangedAt    *time.Time `bson:"passwordChangedAt,omitempty"`
	PasswordResetToken   string     `bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time `bson:"passwordResetExpires,omitempty"`
	CreatedAt            time.Time  `bson:"createdAt"`
	UpdatedAt            time.Time  `bson:"updatedAt"`
}

func userToDocument(u *domain.User) userDocument {
	return userDocument{
		ID:                   u.ID,
		Name:                 u.Name,
		Email:                u.Email,
		Password:             u.PasswordHash,
		RefreshToken:         u.RefreshToken,
		IsVerified:           u.IsVerified,
		PasswordChangedAt:    u.PasswordChangedAt,
		PasswordResetToken:   u.PasswordResetToken,
		PasswordResetExpires: u.PasswordResetExpires,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:                   d.ID,
		Name:                 d.Name,
		Email:                d.Email,
		PasswordHash:         d.Password,
		RefreshToken:         d.RefreshToken,
		IsVerified:           d.IsVerified,
		PasswordChangedAt:    utcPtr(d.PasswordChangedAt),
		PasswordResetToken:   d.PasswordResetToken,
		PasswordResetExpires: utcPtr(d.PasswordResetExpires),
		CreatedAt:            d.CreatedAt.UTC(),
		UpdatedAt:            d.UpdatedAt.UTC(),
	}
}

// tokenDocument is the BSON shape of a verification token.
type tokenDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Token     string    `bson:"token"`
	CreatedAt time.Time `bson:"createdAt"`
}

func tokenToDocument(t *domain.VerificationToken) tokenDocument {
	return tokenDocument{ID: t.ID, UserID: t.UserID, Token: t.Token, CreatedAt: t.CreatedAt}
}

func (d *tokenDocument) toDomain() *domain.VerificationToken {
	return &domain.VerificationToken{ID: d.ID, UserID: d.UserID, Token: d.Token, CreatedAt: d.CreatedAt.UTC()}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
