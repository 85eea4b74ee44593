package access_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"mime/multipart"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-access"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// memStore is an in-memory access.AccessCodes used by service tests. The
// claim transition takes the store lock, so concurrent redeems exercise the
// same single-winner property the conditional update gives us on a real
// database.
type memStore struct {
	mu    sync.Mutex
	codes map[uuid.UUID]*access.AccessCode

	forceUniqueViolation bool
	purgeErr             error
}

func newMemStore() *memStore {
	return &memStore{codes: map[uuid.UUID]*access.AccessCode{}}
}

func (s *memStore) Create(ctx context.Context, record *access.AccessCode) (*access.AccessCode, error) {
	return s.CreateTx(ctx, nil, record)
}

func (s *memStore) CreateTx(_ context.Context, _ bun.IDB, record *access.AccessCode) (*access.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forceUniqueViolation {
		return nil, errors.New("UNIQUE constraint failed: access_codes.code")
	}

	for _, existing := range s.codes {
		if existing.Code == record.Code {
			return nil, errors.New("UNIQUE constraint failed: access_codes.code")
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	clone := *record
	s.codes[record.ID] = &clone
	return record, nil
}

func (s *memStore) GetByCode(ctx context.Context, code string) (*access.AccessCode, error) {
	return s.GetByCodeTx(ctx, nil, code)
}

func (s *memStore) GetByCodeTx(_ context.Context, _ bun.IDB, code string) (*access.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.codes {
		if record.Code == code {
			clone := *record
			return &clone, nil
		}
	}
	return nil, access.ErrCodeNotFound
}

func (s *memStore) ClaimTx(_ context.Context, _ bun.IDB, id uuid.UUID, grant access.ClaimGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.codes[id]
	if !ok || record.UsedAt != nil {
		return false, nil
	}

	at := grant.At
	record.UsedAt = &at
	record.LastAccessAt = &at
	record.ExpiresAt = nil
	record.ClaimantUID = grant.Claimant.UID
	record.ClaimantName = grant.Claimant.Name
	record.ClaimantServer = grant.Claimant.Server
	record.ClaimantAvatarURL = grant.Claimant.AvatarURL
	record.PackageID = grant.Package.ID
	record.PackageName = grant.Package.Name
	record.UpdatedAt = &at
	return true, nil
}

func (s *memStore) TouchTx(_ context.Context, _ bun.IDB, id uuid.UUID, at time.Time, name, avatarURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.codes[id]
	if !ok || record.UsedAt == nil {
		return nil
	}

	ts := at
	record.LastAccessAt = &ts
	record.UpdatedAt = &ts
	if name != "" {
		record.ClaimantName = name
	}
	if avatarURL != "" {
		record.ClaimantAvatarURL = avatarURL
	}
	return nil
}

func (s *memStore) FindBinding(ctx context.Context, uid, server, packageID string) (*access.AccessCode, error) {
	return s.FindBindingTx(ctx, nil, uid, server, packageID)
}

func (s *memStore) FindBindingTx(_ context.Context, _ bun.IDB, uid, server, packageID string) (*access.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.codes {
		if record.UsedAt != nil &&
			record.ClaimantUID == uid &&
			record.ClaimantServer == server &&
			record.PackageID == packageID {
			clone := *record
			return &clone, nil
		}
	}
	return nil, access.ErrAccessNotFound
}

func (s *memStore) ListClaimed(context.Context) ([]*access.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*access.AccessCode
	for _, record := range s.codes {
		if record.UsedAt != nil {
			clone := *record
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UsedAt.After(*out[j].UsedAt)
	})
	return out, nil
}

func (s *memStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.PurgeExpiredTx(ctx, nil, now)
}

func (s *memStore) PurgeExpiredTx(_ context.Context, _ bun.IDB, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.purgeErr != nil {
		return 0, s.purgeErr
	}

	var purged int64
	for id, record := range s.codes {
		if record.UsedAt == nil && record.ExpiresAt != nil && record.ExpiresAt.Before(now) {
			delete(s.codes, id)
			purged++
		}
	}
	return purged, nil
}

// get returns the live record, for assertions on stored state.
func (s *memStore) get(id uuid.UUID) *access.AccessCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[id]
}

func (s *memStore) byCode(code string) *access.AccessCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.codes {
		if record.Code == code {
			return record
		}
	}
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

var _ access.AccessCodes = (*memStore)(nil)

// memRepo satisfies access.RepositoryManager without a database; the
// transaction scope is a plain callback.
type memRepo struct {
	store *memStore
}

func newMemRepo() *memRepo {
	return &memRepo{store: newMemStore()}
}

func (r *memRepo) Validate() error { return nil }
func (r *memRepo) MustValidate()   {}

func (r *memRepo) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.IDB) error) error {
	return f(ctx, nil)
}

func (r *memRepo) AccessCodes() access.AccessCodes {
	return r.store
}

func (r *memRepo) Admins() access.Admins {
	return nil
}

var _ access.RepositoryManager = (*memRepo)(nil)

// stubPackages resolves a fixed package catalog.
type stubPackages struct {
	packages map[string]access.Package
}

func newStubPackages(pkgs ...access.Package) *stubPackages {
	s := &stubPackages{packages: map[string]access.Package{}}
	for _, p := range pkgs {
		s.packages[p.ID] = p
	}
	return s
}

func (s *stubPackages) FindPackageByID(_ context.Context, id string) (*access.Package, error) {
	pkg, ok := s.packages[id]
	if !ok {
		return nil, access.ErrPackageNotFound
	}
	return &pkg, nil
}

var _ access.PackageFinder = (*stubPackages)(nil)

// testIdentity implements access.Identity
type testIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (t testIdentity) ID() string       { return t.id }
func (t testIdentity) Username() string { return t.username }
func (t testIdentity) Email() string    { return t.email }
func (t testIdentity) Role() string     { return t.role }

// MockIdentityProvider implements access.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (access.Identity, error) {
	args := m.Called(ctx, identifier, password)
	identity, _ := args.Get(0).(access.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (access.Identity, error) {
	args := m.Called(ctx, identifier)
	identity, _ := args.Get(0).(access.Identity)
	return identity, args.Error(1)
}

// MockLoginPayload implements access.LoginPayload
type MockLoginPayload struct {
	Identifier string
	Password   string
}

func (m MockLoginPayload) GetIdentifier() string { return m.Identifier }
func (m MockLoginPayload) GetPassword() string   { return m.Password }

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryValues(key string) []string {
	args := m.Called(key)
	vals, _ := args.Get(0).([]string)
	return vals
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	args := m.Called(key, value)
	merged, _ := args.Get(0).(map[string]any)
	return merged
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	header, _ := args.Get(0).(*multipart.FileHeader)
	return header, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) IP() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) SendStream(r io.Reader) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockContext) RouteName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteParams() map[string]string {
	args := m.Called()
	params, _ := args.Get(0).(map[string]string)
	return params
}
