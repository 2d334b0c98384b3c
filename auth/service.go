package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidInput signals malformed or out-of-range registration fields.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrInvalidCredentials signals wrong email or password. Unknown email and
	// bad password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountDisabled signals a matching but deactivated principal.
	ErrAccountDisabled = errors.New("auth: account is deactivated")
)

var (
	emailRx     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	clockTimeRx = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// Service implements credential issuance and token verification for the three
// principal partitions.
type Service struct {
	repo        Repository
	jwtSecret   []byte
	logger      *slog.Logger
	idGenerator func() string
	now         func() time.Time
}

// NewService creates an authentication service. The token secret is injected
// here rather than read from the environment so tests can run isolated.
func NewService(repo Repository, jwtSecret string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		jwtSecret:   []byte(jwtSecret),
		logger:      logger,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RegisterClientParams contains client registration data supplied by callers.
type RegisterClientParams struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Phone       *string `json:"phone,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
	Gender      *string `json:"gender,omitempty"`
}

// RegisterProviderParams contains provider registration data.
type RegisterProviderParams struct {
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	FirstName       string      `json:"first_name"`
	LastName        string      `json:"last_name"`
	Phone           *string     `json:"phone,omitempty"`
	LicenseNumber   string      `json:"license_number"`
	Specializations []string    `json:"specializations"`
	Education       []Education `json:"education"`
	ExperienceYears int         `json:"experience_years"`
	Bio             string      `json:"bio"`
	HourlyRate      float64     `json:"hourly_rate"`
	Languages       []string    `json:"languages"`
}

// RegisterAdminParams contains admin registration data.
type RegisterAdminParams struct {
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Tier        AdminTier `json:"tier"`
	Permissions []string  `json:"permissions"`
}

// LoginResult bundles the token and the resolved principal returned after a
// successful login or registration.
type LoginResult struct {
	Token     string
	Principal Principal
}

// RegisterClient creates a client account and mints a session token.
func (s *Service) RegisterClient(ctx context.Context, params RegisterClientParams) (LoginResult, error) {
	if err := validateAccountFields(params.Email, params.Password, params.FirstName, params.LastName); err != nil {
		return LoginResult{}, err
	}
	if params.Gender != nil {
		switch *params.Gender {
		case "male", "female", "other", "prefer-not-to-say":
		default:
			return LoginResult{}, fmt.Errorf("%w: gender", ErrInvalidInput)
		}
	}
	var dob *time.Time
	if params.DateOfBirth != nil {
		t, err := time.Parse("2006-01-02", *params.DateOfBirth)
		if err != nil {
			return LoginResult{}, fmt.Errorf("%w: date_of_birth", ErrInvalidInput)
		}
		dob = &t
	}

	hash, err := hashPassword(params.Password)
	if err != nil {
		return LoginResult{}, err
	}

	created, err := s.repo.CreateClient(ctx, Client{
		Account: Account{
			ID:           s.idGenerator(),
			Email:        normalizeEmail(params.Email),
			PasswordHash: hash,
			FirstName:    strings.TrimSpace(params.FirstName),
			LastName:     strings.TrimSpace(params.LastName),
			Phone:        params.Phone,
		},
		DateOfBirth: dob,
		Gender:      params.Gender,
	})
	if err != nil {
		return LoginResult{}, err
	}
	return s.issue(Principal{Partition: PartitionClient, Client: &created})
}

// RegisterProvider creates a provider account. Providers start unverified and
// cannot take bookings until an admin verifies them.
func (s *Service) RegisterProvider(ctx context.Context, params RegisterProviderParams) (LoginResult, error) {
	if err := validateAccountFields(params.Email, params.Password, params.FirstName, params.LastName); err != nil {
		return LoginResult{}, err
	}
	if strings.TrimSpace(params.LicenseNumber) == "" {
		return LoginResult{}, fmt.Errorf("%w: license_number is required", ErrInvalidInput)
	}
	if params.HourlyRate < 0 {
		return LoginResult{}, fmt.Errorf("%w: hourly_rate must be non-negative", ErrInvalidInput)
	}
	if params.ExperienceYears < 0 {
		return LoginResult{}, fmt.Errorf("%w: experience_years must be non-negative", ErrInvalidInput)
	}
	if bio := strings.TrimSpace(params.Bio); bio != "" && (len(bio) < 50 || len(bio) > 1000) {
		return LoginResult{}, fmt.Errorf("%w: bio must be 50-1000 characters", ErrInvalidInput)
	}

	hash, err := hashPassword(params.Password)
	if err != nil {
		return LoginResult{}, err
	}

	created, err := s.repo.CreateProvider(ctx, Provider{
		Account: Account{
			ID:           s.idGenerator(),
			Email:        normalizeEmail(params.Email),
			PasswordHash: hash,
			FirstName:    strings.TrimSpace(params.FirstName),
			LastName:     strings.TrimSpace(params.LastName),
			Phone:        params.Phone,
		},
		LicenseNumber:   strings.TrimSpace(params.LicenseNumber),
		Specializations: params.Specializations,
		Education:       params.Education,
		ExperienceYears: params.ExperienceYears,
		Bio:             strings.TrimSpace(params.Bio),
		HourlyRate:      params.HourlyRate,
		Languages:       params.Languages,
	})
	if err != nil {
		return LoginResult{}, err
	}
	return s.issue(Principal{Partition: PartitionProvider, Provider: &created})
}

// RegisterAdmin creates an administrative account.
func (s *Service) RegisterAdmin(ctx context.Context, params RegisterAdminParams) (LoginResult, error) {
	if err := validateAccountFields(params.Email, params.Password, params.FirstName, params.LastName); err != nil {
		return LoginResult{}, err
	}
	if !validTier(params.Tier) {
		return LoginResult{}, fmt.Errorf("%w: tier %q", ErrInvalidInput, params.Tier)
	}

	hash, err := hashPassword(params.Password)
	if err != nil {
		return LoginResult{}, err
	}

	created, err := s.repo.CreateAdmin(ctx, Admin{
		Account: Account{
			ID:           s.idGenerator(),
			Email:        normalizeEmail(params.Email),
			PasswordHash: hash,
			FirstName:    strings.TrimSpace(params.FirstName),
			LastName:     strings.TrimSpace(params.LastName),
		},
		Tier:        params.Tier,
		Permissions: params.Permissions,
	})
	if err != nil {
		return LoginResult{}, err
	}
	return s.issue(Principal{Partition: PartitionAdmin, Admin: &created})
}

// Login authenticates a principal in the named partition and mints a token.
func (s *Service) Login(ctx context.Context, partition Partition, email, password string) (LoginResult, error) {
	if !validPartition(partition) {
		return LoginResult{}, fmt.Errorf("%w: partition %q", ErrInvalidInput, partition)
	}

	principal, err := s.repo.FindByEmail(ctx, partition, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	acct := principal.Acct()
	if !acct.Active {
		return LoginResult{}, ErrAccountDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := s.repo.TouchLastLogin(ctx, partition, acct.ID, s.now()); err != nil {
		return LoginResult{}, err
	}

	return s.issue(principal)
}

// Verify decodes a session token and re-resolves the live principal record.
// The re-lookup is mandatory on every request: a token is never trusted as a
// cache of account state, so deactivation takes effect immediately.
func (s *Service) Verify(ctx context.Context, token string) (Principal, error) {
	principalID, partition, err := s.parseToken(token)
	if err != nil {
		return Principal{}, err
	}

	principal, err := s.repo.FindByID(ctx, partition, principalID)
	if err != nil {
		return Principal{}, err
	}
	if !principal.Acct().Active {
		return Principal{}, ErrAccountDisabled
	}

	stripHash(principal)
	return principal, nil
}

// ChangePassword re-checks the current password before rehashing the new one.
func (s *Service) ChangePassword(ctx context.Context, principal Principal, current, next string) error {
	if len(next) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}

	// The attached principal has its hash stripped; re-read it.
	live, err := s.repo.FindByID(ctx, principal.Partition, principal.ID())
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(live.Acct().PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, principal.Partition, principal.ID(), hash)
}

// VerifyProvider marks a provider as verified. Admin-gated at the call site.
func (s *Service) VerifyProvider(ctx context.Context, providerID string) (Provider, error) {
	p, err := s.repo.SetProviderVerified(ctx, providerID)
	if err != nil {
		return Provider{}, err
	}
	s.logger.Info("provider verified", slog.String("provider_id", providerID))
	p.PasswordHash = ""
	return p, nil
}

// SetAccountActive toggles the active flag on any principal. Admin-gated at
// the call site. Deactivation invalidates outstanding tokens on their next use.
func (s *Service) SetAccountActive(ctx context.Context, partition Partition, id string, active bool) (Principal, error) {
	principal, err := s.repo.SetActive(ctx, partition, id, active)
	if err != nil {
		return Principal{}, err
	}
	s.logger.Info("account active flag changed",
		slog.String("partition", string(partition)),
		slog.String("principal_id", id),
		slog.Bool("active", active))
	stripHash(principal)
	return principal, nil
}

// UpdateAvailability replaces a provider's weekly availability template. The
// template does not feed slot derivation; see appointment.Service.AvailableSlots.
func (s *Service) UpdateAvailability(ctx context.Context, providerID string, windows []AvailabilityWindow) (Provider, error) {
	for _, w := range windows {
		if !validWeekday(w.Weekday) {
			return Provider{}, fmt.Errorf("%w: weekday %q", ErrInvalidInput, w.Weekday)
		}
		if !clockTimeRx.MatchString(w.Start) || !clockTimeRx.MatchString(w.End) {
			return Provider{}, fmt.Errorf("%w: availability times must be HH:MM", ErrInvalidInput)
		}
	}
	p, err := s.repo.UpdateProviderAvailability(ctx, providerID, windows)
	if err != nil {
		return Provider{}, err
	}
	p.PasswordHash = ""
	return p, nil
}

func (s *Service) issue(principal Principal) (LoginResult, error) {
	token, err := s.generateToken(principal.ID(), principal.Partition)
	if err != nil {
		return LoginResult{}, err
	}
	stripHash(principal)
	return LoginResult{Token: token, Principal: principal}, nil
}

func validateAccountFields(email, password, firstName, lastName string) error {
	if !emailRx.MatchString(email) {
		return fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	for _, name := range []string{strings.TrimSpace(firstName), strings.TrimSpace(lastName)} {
		if len(name) < 2 || len(name) > 50 {
			return fmt.Errorf("%w: names must be 2-50 characters", ErrInvalidInput)
		}
	}
	return nil
}

func validWeekday(day string) bool {
	switch day {
	case "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday":
		return true
	default:
		return false
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

func stripHash(p Principal) {
	if a := p.Acct(); a != nil {
		a.PasswordHash = ""
	}
}
