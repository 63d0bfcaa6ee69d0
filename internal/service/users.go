package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/repository"
	"github.com/iliyamo/dance-booking/internal/utils"
)

// NewUserInput is the body of an admin user-provisioning request.
type NewUserInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     string
	Credits  int
}

// UserService provisions and deactivates accounts.
type UserService struct {
	store      repository.Store
	ledger     *CreditLedger
	bcryptCost int
	Now        func() time.Time
}

// NewUserService wires a UserService.
func NewUserService(store repository.Store, ledger *CreditLedger, bcryptCost int) *UserService {
	return &UserService{store: store, ledger: ledger, bcryptCost: bcryptCost, Now: func() time.Time { return time.Now().UTC() }}
}

// Create provisions a user.  Opening credits go through the ledger so
// they appear in the audit trail.
func (s *UserService) Create(ctx context.Context, caller model.Identity, in NewUserInput) (model.User, error) {
	if err := Authorize(caller, ActionManageUsers, Resource{}); err != nil {
		return model.User{}, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = model.RoleStudent
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return model.User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return model.User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if !model.IsValidRole(in.Role) {
		return model.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if in.Credits < 0 {
		return model.User{}, fmt.Errorf("%w: credits must not be negative", ErrInvalidInput)
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	now := s.Now()
	u := model.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		if in.Credits > 0 {
			if _, err := s.ledger.Grant(ctx, tx, u.ID, in.Credits, "opening balance"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	u.Credits = in.Credits
	return u, nil
}

// SetActive soft-(de)activates a user.  Deactivation also revokes the
// user's refresh tokens.
func (s *UserService) SetActive(ctx context.Context, caller model.Identity, id string, active bool) error {
	if err := Authorize(caller, ActionManageUsers, Resource{OwnerID: id}); err != nil {
		return err
	}
	return s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := s.Now()
		if err := tx.SetUserActive(ctx, id, active, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if !active {
			return tx.RevokeAllRefresh(ctx, id, now)
		}
		return nil
	})
}

// Get returns a user; callers other than admins may only read themselves.
func (s *UserService) Get(ctx context.Context, caller model.Identity, id string) (model.User, error) {
	if err := Authorize(caller, ActionViewUser, Resource{OwnerID: id}); err != nil {
		return model.User{}, err
	}
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// CreditHistory returns the ledger entries of a user.
func (s *UserService) CreditHistory(ctx context.Context, caller model.Identity, id string) ([]model.CreditEntry, error) {
	if err := Authorize(caller, ActionViewUser, Resource{OwnerID: id}); err != nil {
		return nil, err
	}
	return s.store.ListCreditEntries(ctx, id)
}
