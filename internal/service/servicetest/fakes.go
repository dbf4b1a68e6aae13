// Package servicetest provides in-memory stand-ins for the stores and
// external gateways used by the service layer.
package servicetest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rentnest/rentnest/internal/models"
	"github.com/rentnest/rentnest/internal/oauth"
	"github.com/rentnest/rentnest/internal/payment"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/rentnest/rentnest/internal/repository"
)

type UserStore struct {
	mu      sync.Mutex
	users   map[string]models.User
	lookups map[string]string
	Saves   int
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]models.User),
		lookups: make(map[string]string),
	}
}

func (s *UserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &u, nil
}

func (s *UserStore) GetByPhoneNumber(ctx context.Context, phone string) (*models.User, error) {
	return s.byLookup(ctx, "PHONE#"+phone)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.byLookup(ctx, "EMAIL#"+strings.ToLower(email))
}

func (s *UserStore) GetByGoogleID(ctx context.Context, sub string) (*models.User, error) {
	return s.byLookup(ctx, "GOOGLE#"+sub)
}

func (s *UserStore) byLookup(ctx context.Context, key string) (*models.User, error) {
	s.mu.Lock()
	id, ok := s.lookups[key]
	s.mu.Unlock()
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return appErr.ErrConflict
	}
	keys := lookupKeys(user)
	for _, k := range keys {
		if _, ok := s.lookups[k]; ok {
			return appErr.ErrConflict
		}
	}
	for _, k := range keys {
		s.lookups[k] = user.ID
	}
	s.users[user.ID] = *user
	return nil
}

func (s *UserStore) Save(_ context.Context, user *models.User, opts repository.SaveOptions) error {
	if !opts.SkipValidation {
		if err := user.Validate(); err != nil {
			return fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return appErr.ErrNotFound
	}
	s.users[user.ID] = *user
	s.Saves++
	return nil
}

func (s *UserStore) LinkGoogle(_ context.Context, userID, googleID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	key := "GOOGLE#" + googleID
	if _, ok := s.lookups[key]; ok || u.GoogleID != "" {
		return appErr.ErrConflict
	}
	s.lookups[key] = userID
	u.GoogleID = googleID
	if u.Name == "" {
		u.Name = name
	}
	u.UpdatedAt = time.Now()
	s.users[userID] = u
	return nil
}

// Put stores user as is, bypassing validation and lookups.
func (s *UserStore) Put(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range lookupKeys(&user) {
		s.lookups[k] = user.ID
	}
	s.users[user.ID] = user
}

func lookupKeys(u *models.User) []string {
	var keys []string
	if u.PhoneNumber != "" {
		keys = append(keys, "PHONE#"+u.PhoneNumber)
	}
	if u.Email != "" {
		keys = append(keys, "EMAIL#"+strings.ToLower(u.Email))
	}
	if u.GoogleID != "" {
		keys = append(keys, "GOOGLE#"+u.GoogleID)
	}
	return keys
}

type PropertyStore struct {
	mu         sync.Mutex
	properties map[string]models.Property
}

func NewPropertyStore() *PropertyStore {
	return &PropertyStore{properties: make(map[string]models.Property)}
}

func (s *PropertyStore) Create(_ context.Context, p *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; ok {
		return appErr.ErrConflict
	}
	s.properties[p.ID] = clone(*p)
	return nil
}

func (s *PropertyStore) Update(_ context.Context, p *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[p.ID]; !ok {
		return appErr.ErrNotFound
	}
	s.properties[p.ID] = clone(*p)
	return nil
}

func (s *PropertyStore) Get(_ context.Context, id string) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	p = clone(p)
	return &p, nil
}

func (s *PropertyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[id]; !ok {
		return appErr.ErrNotFound
	}
	delete(s.properties, id)
	return nil
}

func (s *PropertyStore) List(_ context.Context, filter models.PropertyFilter) ([]*models.Property, int, error) {
	s.mu.Lock()
	var matched []*models.Property
	for _, p := range s.properties {
		p := clone(p)
		if filter.Match(&p) {
			matched = append(matched, &p)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return repository.Page(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (s *PropertyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.properties)
}

func clone(p models.Property) models.Property {
	p.Images = append([]models.Image(nil), p.Images...)
	p.Amenities = append([]string(nil), p.Amenities...)
	return p
}

type PaymentStore struct {
	mu       sync.Mutex
	payments map[string]models.Payment
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{payments: make(map[string]models.Payment)}
}

func (s *PaymentStore) Create(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.OrderID]; ok {
		return appErr.ErrConflict
	}
	s.payments[p.OrderID] = *p
	return nil
}

func (s *PaymentStore) Get(_ context.Context, orderID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &p, nil
}

func (s *PaymentStore) MarkPaid(_ context.Context, orderID, paymentID string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	if !ok {
		return appErr.ErrNotFound
	}
	if p.Status != models.PaymentCreated {
		return appErr.ErrConflict
	}
	p.Status = models.PaymentPaid
	p.PaymentID = paymentID
	p.PaidAt = &paidAt
	s.payments[orderID] = p
	return nil
}

type TokenStore struct {
	mu       sync.Mutex
	tokens   map[string]models.RefreshTokenData
	revoked  map[string]bool
	families map[string][]string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens:   make(map[string]models.RefreshTokenData),
		revoked:  make(map[string]bool),
		families: make(map[string][]string),
	}
}

func (s *TokenStore) Store(_ context.Context, jti, userID, familyID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = models.RefreshTokenData{
		JTI:       jti,
		UserID:    userID,
		FamilyID:  familyID,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	s.families[familyID] = append(s.families[familyID], jti)
	return nil
}

func (s *TokenStore) Get(_ context.Context, jti string) (*models.RefreshTokenData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[jti]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &t, nil
}

func (s *TokenStore) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[jti]; !ok {
		return appErr.ErrNotFound
	}
	delete(s.tokens, jti)
	s.revoked[jti] = true
	return nil
}

func (s *TokenStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti], nil
}

func (s *TokenStore) RevokeFamily(_ context.Context, familyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, jti := range s.families[familyID] {
		if _, ok := s.tokens[jti]; ok {
			delete(s.tokens, jti)
			s.revoked[jti] = true
		}
	}
	delete(s.families, familyID)
	return nil
}

func (s *TokenStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Images records uploads instead of talking to object storage.
type Images struct {
	mu       sync.Mutex
	Uploaded []string
	Deleted  []string
	FailOn   int
	n        int
}

func (s *Images) Upload(_ context.Context, folder string, r io.Reader) (*models.Image, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if s.FailOn > 0 && s.n == s.FailOn {
		return nil, fmt.Errorf("upload failed")
	}
	key := fmt.Sprintf("%s/img-%d.jpg", folder, s.n)
	s.Uploaded = append(s.Uploaded, key)
	return &models.Image{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (s *Images) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, key)
	return nil
}

// Verifier maps ID tokens to fixed profiles.
type Verifier struct {
	Profiles map[string]*oauth.Profile
}

func (v *Verifier) Verify(_ context.Context, idToken string) (*oauth.Profile, error) {
	p, ok := v.Profiles[idToken]
	if !ok {
		return nil, appErr.ErrUnauthorized
	}
	return p, nil
}

// Gateway issues sequential order ids and signs with Secret.
type Gateway struct {
	mu     sync.Mutex
	Secret string
	Err    error
	orders int
}

func (g *Gateway) KeyID() string { return "rzp_test_key" }

func (g *Gateway) CreateOrder(_ context.Context, amount int64, currency, receipt string, _ map[string]string) (*payment.Order, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders++
	return &payment.Order{
		ID:       fmt.Sprintf("order_%d", g.orders),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *Gateway) VerifySignature(orderID, paymentID, signature string) bool {
	return payment.Sign(g.Secret, orderID, paymentID) == signature
}

// Sender collects SMS bodies.
type Sender struct {
	mu       sync.Mutex
	Messages []string
	Err      error
}

func (s *Sender) Send(_ context.Context, to, body string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, to+":"+body)
	return fmt.Sprintf("msg-%d", len(s.Messages)), nil
}

func (s *Sender) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1]
}
