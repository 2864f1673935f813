// Package auth issues and verifies the bearer tokens that identify users.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/common/utils"
	"pipeline-hub/internal/common/validation"
	"pipeline-hub/internal/config"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/storage"
)

const issuer = "pipeline-hub"

// Claims is the JWT payload.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Credentials is the register and login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Session is returned after a successful register or login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type Auth struct {
	users  storage.UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(users storage.UserStore, cfg *config.Config) *Auth {
	ttl := cfg.JWTTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{
		users:  users,
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Register creates an account and signs the user in.
func (a *Auth) Register(ctx context.Context, creds *Credentials) (*Session, error) {
	if err := validation.ValidateStruct(creds); err != nil {
		return nil, err
	}

	email := normalizeEmail(creds.Email)
	existing, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, errors.InternalError("failed to look up user", err)
	}
	if existing != nil {
		return nil, errors.ValidationError("email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.InternalError("failed to hash password", err)
	}

	user := &models.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    a.now().UTC(),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			return nil, errors.ValidationError("email is already registered")
		}
		return nil, errors.InternalError("failed to create user", err)
	}

	logging.Info("User registered", logging.Field{Key: "user_id", Value: user.ID})
	return a.session(user)
}

// Login verifies the password and issues a token. Unknown emails and wrong
// passwords produce the same error.
func (a *Auth) Login(ctx context.Context, creds *Credentials) (*Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, errors.ValidationError("email and password are required")
	}

	user, err := a.users.GetUserByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		return nil, errors.InternalError("failed to look up user", err)
	}
	if user == nil {
		return nil, errors.UnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, errors.UnauthorizedError("invalid credentials")
	}

	return a.session(user)
}

// Me returns the account behind a verified user id.
func (a *Auth) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.InternalError("failed to load user", err)
	}
	if user == nil {
		return nil, errors.NotFoundError("user")
	}
	return user, nil
}

func (a *Auth) session(user *models.User) (*Session, error) {
	token, expiresAt, err := a.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// GenerateJWT signs an HS256 token for the user.
func (a *Auth) GenerateJWT(userID, email string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, errors.InternalError("failed to sign token", err)
	}
	return signed, expiresAt, nil
}

// ValidateJWT parses the token and checks signature, issuer and expiry.
func (a *Auth) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.UnauthorizedError("token has expired")
		}
		return nil, errors.UnauthorizedError("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.UnauthorizedError("invalid token")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token and puts the
// user id on the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w, "authentication required")
			return
		}

		claims, err := a.ValidateJWT(token)
		if err != nil {
			writeUnauthorized(w, err.(*errors.AppError).Message)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
	})
}

// UserID returns the authenticated user id set by RequireAuth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(logging.UserIDKey).(string)
	return id
}

// WithUserID returns a context carrying userID as the authenticated user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, logging.UserIDKey, userID)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="pipeline-hub"`)
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q,"type":"unauthorized"}`, msg)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
