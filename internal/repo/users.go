package repo

import (
	"context"
	"time"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// Users wraps the Users collection: staff accounts carrying username, email,
// password (hashed by the caller), firstName, lastName, role, isActive and
// lastLogin. Password hashing is out of scope here; callers store whatever
// digest they produce.
type Users struct {
	*store.Store
}

// NewUsers builds the users repository.
func NewUsers(users *store.Store) *Users {
	return &Users{Store: users}
}

// Create inserts a user after checking that neither the email nor the
// username is taken. Both checks are check-then-create; see the package doc.
func (u *Users) Create(ctx context.Context, fields core.Record) (core.Record, error) {
	if err := requireUnique(ctx, u.Store, "email", fields["email"], 0); err != nil {
		return nil, err
	}
	if err := requireUnique(ctx, u.Store, "username", fields["username"], 0); err != nil {
		return nil, err
	}
	return u.Store.Create(ctx, fields)
}

// ByEmail returns the user with the given email.
func (u *Users) ByEmail(ctx context.Context, email string) (core.Record, error) {
	return u.FindOne(ctx, core.Q().Where("email", email))
}

// ByUsername returns the user with the given username.
func (u *Users) ByUsername(ctx context.Context, username string) (core.Record, error) {
	return u.FindOne(ctx, core.Q().Where("username", username))
}

// ByRole returns users with the given role.
func (u *Users) ByRole(ctx context.Context, role string) ([]core.Record, error) {
	return u.Query(ctx, core.Q().Where("role", role))
}

// Active returns users with isActive true.
func (u *Users) Active(ctx context.Context) ([]core.Record, error) {
	return u.Query(ctx, core.Q().Where("isActive", true))
}

// SearchUsers matches term against name, username and email.
func (u *Users) SearchUsers(ctx context.Context, term string) ([]core.Record, error) {
	return u.Search(ctx, term, []string{"username", "email", "firstName", "lastName"})
}

// TouchLastLogin stamps the user's lastLogin with the current time.
func (u *Users) TouchLastLogin(ctx context.Context, userID interface{}) error {
	id, ok := core.ToInt(userID)
	if !ok {
		return core.ErrNotFound
	}
	_, err := u.Update(ctx, core.Record{
		"lastLogin": time.Now().UTC().Format(core.TimeFormat),
	}, core.Q().Where(core.FieldID, id))
	return err
}

// SetPassword replaces the stored password digest.
func (u *Users) SetPassword(ctx context.Context, userID interface{}, digest string) error {
	id, ok := core.ToInt(userID)
	if !ok {
		return core.ErrNotFound
	}
	_, err := u.Update(ctx, core.Record{"password": digest}, core.Q().Where(core.FieldID, id))
	return err
}

// SetActive toggles a user's isActive flag.
func (u *Users) SetActive(ctx context.Context, userID interface{}, active bool) error {
	id, ok := core.ToInt(userID)
	if !ok {
		return core.ErrNotFound
	}
	_, err := u.Update(ctx, core.Record{"isActive": active}, core.Q().Where(core.FieldID, id))
	return err
}
