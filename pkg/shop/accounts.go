package shop

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/models"
	"julianmorley.ca/con-plar/storefront/pkg/store"
)

const minPasswordLength = 6

// Credentials hashes passwords and issues tokens.
type Credentials interface {
	HashPassword(password string) (string, error)
	ComparePassword(hashed, password string) bool
	IssueToken(userID bson.ObjectID, role models.Role) (string, error)
}

type UserQuery struct {
	Role   string
	Search string
}

type Accounts struct {
	db     store.Datastore
	creds  Credentials
	logger *zap.Logger
}

func NewAccounts(db store.Datastore, creds Credentials, logger *zap.Logger) *Accounts {
	return &Accounts{db: db, creds: creds, logger: logger}
}

// Register creates a CUSTOMER account together with its empty cart.
func (a *Accounts) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResult, error) {
	email := models.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" || req.Password == "" {
		return nil, invalidInput("email, password and name are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalidInput("password must be at least %d characters", minPasswordLength)
	}

	hashed, err := a.creds.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:       bson.NewObjectID(),
		Email:    email,
		Password: hashed,
		Name:     name,
		Role:     models.RoleCustomer,
	}
	user.SetTimestamps()

	err = a.db.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return invalidConflict("user with this email already exists")
			}
			return translate(err)
		}
		_, err := tx.GetOrCreateCart(ctx, user.ID)
		return translate(err)
	})
	if err != nil {
		return nil, translate(err)
	}

	token, err := a.creds.IssueToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	a.logger.Info("User registered", zap.String("user_id", user.ID.Hex()))
	return &models.AuthResult{User: user, Token: token}, nil
}

// Login answers ErrUnauthorized for an unknown email and for a wrong password alike.
func (a *Accounts) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResult, error) {
	user, err := a.db.GetUserByEmail(ctx, models.NormalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, translate(err)
	}
	if !a.creds.ComparePassword(user.Password, req.Password) {
		return nil, invalidCredentials()
	}

	token, err := a.creds.IssueToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{User: user, Token: token}, nil
}

// GetUser lets administrators read any account and everyone else only their own.
func (a *Accounts) GetUser(ctx context.Context, requesterID bson.ObjectID, role models.Role, userID bson.ObjectID) (*models.User, error) {
	if role != models.RoleAdmin && requesterID != userID {
		return nil, ErrForbidden
	}
	user, err := a.db.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("user", userID)
	}
	return user, translate(err)
}

func (a *Accounts) ListUsers(ctx context.Context, query UserQuery, page, limit int) (*models.PagedResult[models.User], error) {
	page, limit = models.ClampPage(page, limit)
	filter := store.UserFilter{
		Search: strings.ToLower(strings.TrimSpace(query.Search)),
		Page:   store.Page{Page: page, Limit: limit},
	}
	if query.Role != "" {
		role := models.Role(strings.ToUpper(query.Role))
		if role != models.RoleAdmin && role != models.RoleCustomer {
			return nil, invalidInput("unknown role %q", query.Role)
		}
		filter.Role = role
	}

	rows, total, err := a.db.ListUsers(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return paged(rows, page, limit, total), nil
}

func invalidCredentials() error {
	return errWithMessage(ErrUnauthorized, "invalid credentials")
}

func invalidConflict(msg string) error {
	return errWithMessage(ErrConflict, msg)
}
