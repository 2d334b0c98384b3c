package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newTestService(repo Repository) *Service {
	return NewService(repo, "test-secret", nil)
}

func clientParams(email string) RegisterClientParams {
	return RegisterClientParams{
		Email:     email,
		Password:  "supersafe",
		FirstName: "Alice",
		LastName:  "Archer",
	}
}

func providerParams(email string) RegisterProviderParams {
	return RegisterProviderParams{
		Email:         email,
		Password:      "supersafe",
		FirstName:     "Paula",
		LastName:      "Provider",
		LicenseNumber: "LIC-1001",
		HourlyRate:    80,
	}
}

func TestService_RegisterClientAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.RegisterClient(ctx, clientParams("Alice@Example.com"))
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if res.Token == "" {
		t.Fatal("register: expected token, got empty string")
	}
	if res.Principal.Partition != PartitionClient {
		t.Fatalf("register: expected client partition, got %s", res.Principal.Partition)
	}
	if got := res.Principal.Acct().Email; got != "alice@example.com" {
		t.Fatalf("register: expected normalized email, got %q", got)
	}
	if res.Principal.Acct().PasswordHash != "" {
		t.Fatal("register: password hash leaked to caller")
	}

	login, err := svc.Login(ctx, PartitionClient, "alice@example.com", "supersafe")
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if login.Principal.ID() != res.Principal.ID() {
		t.Fatalf("login: expected id %q got %q", res.Principal.ID(), login.Principal.ID())
	}
	if login.Principal.Acct().LastLogin == nil {
		t.Fatal("login: expected last_login to be stamped")
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := newTestService(newFakeRepository())
	ctx := context.Background()

	weak := clientParams("alice@example.com")
	weak.Password = "short"
	if _, err := svc.RegisterClient(ctx, weak); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for weak password, got %v", err)
	}

	badEmail := clientParams("not-an-email")
	if _, err := svc.RegisterClient(ctx, badEmail); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad email, got %v", err)
	}

	shortName := clientParams("alice@example.com")
	shortName.FirstName = "A"
	if _, err := svc.RegisterClient(ctx, shortName); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short name, got %v", err)
	}

	noLicense := providerParams("paula@example.com")
	noLicense.LicenseNumber = "  "
	if _, err := svc.RegisterProvider(ctx, noLicense); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing license, got %v", err)
	}

	negativeRate := providerParams("paula@example.com")
	negativeRate.HourlyRate = -5
	if _, err := svc.RegisterProvider(ctx, negativeRate); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative rate, got %v", err)
	}

	badTier := RegisterAdminParams{
		Email: "root@example.com", Password: "supersafe",
		FirstName: "Ada", LastName: "Admin", Tier: "czar",
	}
	if _, err := svc.RegisterAdmin(ctx, badTier); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown tier, got %v", err)
	}
}

func TestService_DuplicateEmailPerPartition(t *testing.T) {
	svc := newTestService(newFakeRepository())
	ctx := context.Background()

	if _, err := svc.RegisterClient(ctx, clientParams("shared@example.com")); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.RegisterClient(ctx, clientParams("SHARED@example.com")); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}

	// The same email is free in a different partition.
	if _, err := svc.RegisterProvider(ctx, providerParams("shared@example.com")); err != nil {
		t.Fatalf("cross-partition register failed: %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	svc := newTestService(newFakeRepository())
	ctx := context.Background()

	if _, err := svc.Login(ctx, PartitionClient, "unknown@example.com", "irrelevant"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	if _, err := svc.RegisterClient(ctx, clientParams("alice@example.com")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Login(ctx, PartitionClient, "alice@example.com", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}

	// Registered as a client, so the provider partition does not know the email.
	if _, err := svc.Login(ctx, PartitionProvider, "alice@example.com", "supersafe"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials across partitions, got %v", err)
	}
}

func TestService_VerifyRoundTrip(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.RegisterProvider(ctx, providerParams("paula@example.com"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	principal, err := svc.Verify(ctx, res.Token)
	if err != nil {
		t.Fatalf("verify: unexpected error: %v", err)
	}
	if principal.Partition != PartitionProvider {
		t.Fatalf("verify: expected provider partition, got %s", principal.Partition)
	}
	if principal.ID() != res.Principal.ID() {
		t.Fatalf("verify: expected id %q got %q", res.Principal.ID(), principal.ID())
	}
	if principal.Provider.Verified {
		t.Fatal("verify: new providers must start unverified")
	}
	if principal.Acct().PasswordHash != "" {
		t.Fatal("verify: password hash leaked to caller")
	}

	if _, err := svc.Verify(ctx, res.Token+"tampered"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestService_VerifyExpiredToken(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	past := time.Now().Add(-8 * 24 * time.Hour)
	svc.WithClock(func() time.Time { return past })

	res, err := svc.RegisterClient(context.Background(), clientParams("alice@example.com"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	svc.WithClock(time.Now)
	if _, err := svc.Verify(context.Background(), res.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestService_DeactivatedAccountRejected(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.RegisterClient(ctx, clientParams("alice@example.com"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.SetAccountActive(ctx, PartitionClient, res.Principal.ID(), false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	// A previously minted token dies on its next verification.
	if _, err := svc.Verify(ctx, res.Token); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled on verify, got %v", err)
	}
	if _, err := svc.Login(ctx, PartitionClient, "alice@example.com", "supersafe"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled on login, got %v", err)
	}

	if _, err := svc.SetAccountActive(ctx, PartitionClient, res.Principal.ID(), true); err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}
	if _, err := svc.Verify(ctx, res.Token); err != nil {
		t.Fatalf("verify after reactivation: %v", err)
	}
}

func TestService_VerifyProvider(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.RegisterProvider(ctx, providerParams("paula@example.com"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	p, err := svc.VerifyProvider(ctx, res.Principal.ID())
	if err != nil {
		t.Fatalf("verify provider: %v", err)
	}
	if !p.Verified {
		t.Fatal("expected provider to be marked verified")
	}

	if _, err := svc.VerifyProvider(ctx, "missing"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestService_ChangePassword(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.RegisterClient(ctx, clientParams("alice@example.com"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := svc.ChangePassword(ctx, res.Principal, "wrongpass", "newsecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, res.Principal, "supersafe", "tiny"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for weak replacement, got %v", err)
	}
	if err := svc.ChangePassword(ctx, res.Principal, "supersafe", "newsecret"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.Login(ctx, PartitionClient, "alice@example.com", "supersafe"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := svc.Login(ctx, PartitionClient, "alice@example.com", "newsecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestService_UpdateAvailabilityValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.RegisterProvider(ctx, providerParams("paula@example.com"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	bad := []AvailabilityWindow{{Weekday: "Funday", Start: "09:00", End: "17:00", Enabled: true}}
	if _, err := svc.UpdateAvailability(ctx, res.Principal.ID(), bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad weekday, got %v", err)
	}

	badClock := []AvailabilityWindow{{Weekday: "Monday", Start: "9am", End: "17:00", Enabled: true}}
	if _, err := svc.UpdateAvailability(ctx, res.Principal.ID(), badClock); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad clock, got %v", err)
	}

	ok := []AvailabilityWindow{{Weekday: "Monday", Start: "09:00", End: "17:00", Enabled: true}}
	p, err := svc.UpdateAvailability(ctx, res.Principal.ID(), ok)
	if err != nil {
		t.Fatalf("update availability: %v", err)
	}
	if len(p.Availability) != 1 || p.Availability[0].Weekday != "Monday" {
		t.Fatalf("unexpected stored availability: %+v", p.Availability)
	}
}

// fakeRepository keeps principals in per-partition maps, mirroring the
// per-table unique email indexes of the real schema.
type fakeRepository struct {
	clients   map[string]Client
	providers map[string]Provider
	admins    map[string]Admin
	nextID    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		clients:   make(map[string]Client),
		providers: make(map[string]Provider),
		admins:    make(map[string]Admin),
		nextID:    1,
	}
}

func (f *fakeRepository) stamp(a *Account) {
	if a.ID == "" {
		a.ID = fmt.Sprintf("id-%d", f.nextID)
		f.nextID++
	}
	a.Email = strings.ToLower(a.Email)
	a.Active = true
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
}

func (f *fakeRepository) CreateClient(ctx context.Context, c Client) (Client, error) {
	for _, existing := range f.clients {
		if existing.Email == strings.ToLower(c.Email) {
			return Client{}, ErrDuplicateIdentity
		}
	}
	f.stamp(&c.Account)
	f.clients[c.ID] = c
	return c, nil
}

func (f *fakeRepository) CreateProvider(ctx context.Context, p Provider) (Provider, error) {
	for _, existing := range f.providers {
		if existing.Email == strings.ToLower(p.Email) || existing.LicenseNumber == p.LicenseNumber {
			return Provider{}, ErrDuplicateIdentity
		}
	}
	f.stamp(&p.Account)
	f.providers[p.ID] = p
	return p, nil
}

func (f *fakeRepository) CreateAdmin(ctx context.Context, a Admin) (Admin, error) {
	for _, existing := range f.admins {
		if existing.Email == strings.ToLower(a.Email) {
			return Admin{}, ErrDuplicateIdentity
		}
	}
	f.stamp(&a.Account)
	f.admins[a.ID] = a
	return a, nil
}

func (f *fakeRepository) FindByEmail(ctx context.Context, partition Partition, email string) (Principal, error) {
	email = strings.ToLower(email)
	switch partition {
	case PartitionClient:
		for _, c := range f.clients {
			if c.Email == email {
				c := c
				return Principal{Partition: partition, Client: &c}, nil
			}
		}
	case PartitionProvider:
		for _, p := range f.providers {
			if p.Email == email {
				p := p
				return Principal{Partition: partition, Provider: &p}, nil
			}
		}
	case PartitionAdmin:
		for _, a := range f.admins {
			if a.Email == email {
				a := a
				return Principal{Partition: partition, Admin: &a}, nil
			}
		}
	}
	return Principal{}, ErrPrincipalNotFound
}

func (f *fakeRepository) FindByID(ctx context.Context, partition Partition, id string) (Principal, error) {
	switch partition {
	case PartitionClient:
		if c, ok := f.clients[id]; ok {
			return Principal{Partition: partition, Client: &c}, nil
		}
	case PartitionProvider:
		if p, ok := f.providers[id]; ok {
			return Principal{Partition: partition, Provider: &p}, nil
		}
	case PartitionAdmin:
		if a, ok := f.admins[id]; ok {
			return Principal{Partition: partition, Admin: &a}, nil
		}
	}
	return Principal{}, ErrPrincipalNotFound
}

func (f *fakeRepository) mutate(partition Partition, id string, fn func(a *Account)) error {
	switch partition {
	case PartitionClient:
		if c, ok := f.clients[id]; ok {
			fn(&c.Account)
			f.clients[id] = c
			return nil
		}
	case PartitionProvider:
		if p, ok := f.providers[id]; ok {
			fn(&p.Account)
			f.providers[id] = p
			return nil
		}
	case PartitionAdmin:
		if a, ok := f.admins[id]; ok {
			fn(&a.Account)
			f.admins[id] = a
			return nil
		}
	}
	return ErrPrincipalNotFound
}

func (f *fakeRepository) TouchLastLogin(ctx context.Context, partition Partition, id string, at time.Time) error {
	return f.mutate(partition, id, func(a *Account) {
		stamp := at
		a.LastLogin = &stamp
	})
}

func (f *fakeRepository) SetActive(ctx context.Context, partition Partition, id string, active bool) (Principal, error) {
	if err := f.mutate(partition, id, func(a *Account) { a.Active = active }); err != nil {
		return Principal{}, err
	}
	return f.FindByID(ctx, partition, id)
}

func (f *fakeRepository) SetProviderVerified(ctx context.Context, id string) (Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return Provider{}, ErrPrincipalNotFound
	}
	p.Verified = true
	f.providers[id] = p
	return p, nil
}

func (f *fakeRepository) UpdateProviderAvailability(ctx context.Context, id string, windows []AvailabilityWindow) (Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return Provider{}, ErrPrincipalNotFound
	}
	p.Availability = windows
	f.providers[id] = p
	return p, nil
}

func (f *fakeRepository) UpdatePasswordHash(ctx context.Context, partition Partition, id string, hash string) error {
	return f.mutate(partition, id, func(a *Account) { a.PasswordHash = hash })
}
