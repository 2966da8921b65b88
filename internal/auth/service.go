package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend-trekko/internal/db"
	"backend-trekko/internal/event"
	"backend-trekko/internal/registry"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrCertificateRequired = errors.New("cadastur number is required for guides")
	ErrCertificateClaimed  = errors.New("certificate already linked to another account")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrValidation          = errors.New("invalid registration")
)

// CertValidator gates guide registration on the CADASTUR registry.
type CertValidator interface {
	Validate(ctx context.Context, certificateNumber string) (registry.Record, error)
}

type Service struct {
	secret    []byte
	db        db.Querier
	validator CertValidator
	events    *event.Service
}

type Claims struct {
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier, validator CertValidator, events *event.Service) *Service {
	return &Service{
		secret:    []byte(secret),
		db:        db,
		validator: validator,
		events:    events,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, TokenResponse, error) {
	if len(strings.TrimSpace(req.Name)) < 3 {
		return User{}, TokenResponse{}, fmt.Errorf("%w: name must have at least 3 characters", ErrValidation)
	}
	if req.Email == "" {
		return User{}, TokenResponse{}, fmt.Errorf("%w: email required", ErrValidation)
	}
	if len(req.Password) < 8 {
		return User{}, TokenResponse{}, fmt.Errorf("%w: password must have at least 8 characters", ErrValidation)
	}
	if req.UserType == "" {
		req.UserType = "trekker"
	}
	if req.UserType != "trekker" && req.UserType != "guide" {
		return User{}, TokenResponse{}, fmt.Errorf("%w: user_type must be trekker or guide", ErrValidation)
	}

	email := strings.ToLower(req.Email)

	var existing bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1)`, email).Scan(&existing); err != nil {
		return User{}, TokenResponse{}, err
	}
	if existing {
		return User{}, TokenResponse{}, ErrEmailTaken
	}

	var cert string
	var record registry.Record
	if req.UserType == "guide" {
		cert = registry.Normalize(req.CadasturNumber)
		if cert == "" {
			return User{}, TokenResponse{}, ErrCertificateRequired
		}

		// Fail fast before touching the registry for already-claimed numbers.
		claimed, err := s.CertificateClaimed(ctx, cert)
		if err != nil {
			return User{}, TokenResponse{}, err
		}
		if claimed {
			return User{}, TokenResponse{}, ErrCertificateClaimed
		}

		record, err = s.validator.Validate(ctx, cert)
		if err != nil {
			return User{}, TokenResponse{}, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, TokenResponse{}, err
	}

	user := User{
		OpenID:            "email_" + uuid.NewString(),
		Name:              strings.TrimSpace(req.Name),
		Email:             email,
		PasswordHash:      string(hash),
		LoginMethod:       "email",
		Role:              "user",
		UserType:          req.UserType,
		CadasturValidated: req.UserType == "guide",
	}
	if cert != "" {
		user.CadasturNumber = &cert
	}

	// The unique constraints on email and cadastur_number are the
	// authoritative backstop for the check-then-create race.
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (open_id, name, email, password_hash, login_method, role, user_type, cadastur_number, cadastur_validated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at, last_signed_in
	`, user.OpenID, user.Name, user.Email, user.PasswordHash, user.LoginMethod,
		user.Role, user.UserType, user.CadasturNumber, user.CadasturValidated)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.LastSignedIn); err != nil {
		return User{}, TokenResponse{}, mapUniqueViolation(err)
	}

	if req.UserType == "guide" {
		if err := s.snapshotGuideProfile(ctx, user.ID, record); err != nil {
			return User{}, TokenResponse{}, err
		}
	}

	if s.events != nil {
		eventType := "USER_REGISTERED"
		label := "trekker"
		if req.UserType == "guide" {
			eventType = "GUIDE_REGISTERED"
			label = "guide"
		}
		s.events.Record(ctx, event.Event{
			Type:    eventType,
			Message: fmt.Sprintf("New %s registered: %s", label, user.Name),
			ActorID: &user.ID,
		})
	}

	tokens, err := s.GenerateTokens(ctx, user)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// snapshotGuideProfile copies the registry record into guide_profiles at
// validation time. The copy is authoritative once written; later registry
// re-imports do not sync into it.
func (s *Service) snapshotGuideProfile(ctx context.Context, userID int64, record registry.Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO guide_profiles
			(user_id, cadastur_number, cadastur_validated_at, cadastur_expires_at,
			 uf, city, categories, languages, contact_phone, contact_email, website)
		VALUES ($1,$2,now(),$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (user_id) DO UPDATE SET
			cadastur_number=EXCLUDED.cadastur_number,
			cadastur_validated_at=now(),
			cadastur_expires_at=EXCLUDED.cadastur_expires_at,
			uf=EXCLUDED.uf, city=EXCLUDED.city,
			categories=EXCLUDED.categories, languages=EXCLUDED.languages,
			contact_phone=EXCLUDED.contact_phone, contact_email=EXCLUDED.contact_email,
			website=EXCLUDED.website, updated_at=now()
	`, userID, record.CertificateNumber, record.ValidUntil, record.UF, record.City,
		record.Categories, record.Languages, record.Phone, record.Email, record.Website)
	return err
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, open_id, name, COALESCE(email,''), COALESCE(password_hash,''), COALESCE(login_method,''),
		       role, user_type, COALESCE(bio,''), COALESCE(photo_url,''), cadastur_number, cadastur_validated,
		       created_at, updated_at, last_signed_in
		FROM users WHERE email = $1
	`, strings.ToLower(req.Email))

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, TokenResponse{}, ErrInvalidCredentials
		}
		return User{}, TokenResponse{}, err
	}

	if user.PasswordHash == "" {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}

	_, _ = s.db.Exec(ctx, `UPDATE users SET last_signed_in=now() WHERE id=$1`, user.ID)

	tokens, err := s.GenerateTokens(ctx, user)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// UpsertOpenID creates or refreshes an account on external-identity login.
func (s *Service) UpsertOpenID(ctx context.Context, openID, name, email, loginMethod string) (User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (open_id, name, email, login_method)
		VALUES ($1,$2,NULLIF($3,''),$4)
		ON CONFLICT (open_id) DO UPDATE SET
			name=COALESCE(NULLIF(EXCLUDED.name,''), users.name),
			last_signed_in=now(), updated_at=now()
		RETURNING id, open_id, name, COALESCE(email,''), COALESCE(password_hash,''), COALESCE(login_method,''),
		          role, user_type, COALESCE(bio,''), COALESCE(photo_url,''), cadastur_number, cadastur_validated,
		          created_at, updated_at, last_signed_in
	`, openID, name, strings.ToLower(email), loginMethod)
	return scanUser(row)
}

func (s *Service) GetUser(ctx context.Context, userID int64) (User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, open_id, name, COALESCE(email,''), COALESCE(password_hash,''), COALESCE(login_method,''),
		       role, user_type, COALESCE(bio,''), COALESCE(photo_url,''), cadastur_number, cadastur_validated,
		       created_at, updated_at, last_signed_in
		FROM users WHERE id=$1
	`, userID)
	return scanUser(row)
}

// UpdateProfile changes display fields only. It cannot flip user_type or
// set a certificate number; that path goes through the guide service.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, patch ProfileUpdate) (User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if patch.Name != "" {
		user.Name = patch.Name
	}
	if patch.Email != "" {
		user.Email = strings.ToLower(patch.Email)
	}
	if patch.Bio != "" {
		user.Bio = patch.Bio
	}

	_, err = s.db.Exec(ctx, `
		UPDATE users SET name=$2, email=NULLIF($3,''), bio=NULLIF($4,''), updated_at=now()
		WHERE id=$1
	`, userID, user.Name, user.Email, user.Bio)
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	return user, nil
}

func (s *Service) SetPhoto(ctx context.Context, userID int64, url string) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET photo_url=NULLIF($2,''), updated_at=now() WHERE id=$1`, userID, url)
	return err
}

// CertificateClaimed reports whether any account already holds the
// normalized certificate number.
func (s *Service) CertificateClaimed(ctx context.Context, certificateNumber string) (bool, error) {
	var claimed bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE cadastur_number=$1)
	`, registry.Normalize(certificateNumber)).Scan(&claimed)
	return claimed, err
}

func (s *Service) GenerateTokens(ctx context.Context, user User) (TokenResponse, error) {
	access, err := s.signToken(user, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := s.signToken(user, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, user.ID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (int64, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return 0, err
	}

	userID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || time.Now().After(expiresAt) {
		return 0, errors.New("refresh token invalid")
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	return s.parseToken(token)
}

func (s *Service) signToken(user User, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:   user.ID,
		Role:     user.Role,
		UserType: user.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (int64, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var userID int64
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return 0, time.Time{}, err
	}
	return userID, expiresAt, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.OpenID, &user.Name, &user.Email, &user.PasswordHash,
		&user.LoginMethod, &user.Role, &user.UserType, &user.Bio, &user.PhotoURL,
		&user.CadasturNumber, &user.CadasturValidated,
		&user.CreatedAt, &user.UpdatedAt, &user.LastSignedIn)
	return user, err
}

// mapUniqueViolation turns a 23505 into the named conflict for the
// constraint that fired. Unrecognized constraints pass through unchanged.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "cadastur"):
			return ErrCertificateClaimed
		case strings.Contains(pgErr.ConstraintName, "email"):
			return ErrEmailTaken
		}
	}
	return err
}
