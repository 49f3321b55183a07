package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/models"
	"github.com/noah-isme/collegehub-api/internal/repository"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
	"github.com/noah-isme/collegehub-api/pkg/storage"
)

type mockUserRepo struct {
	mu        sync.Mutex
	users     map[string]*models.User
	auditLogs []*models.AuditLog
	findErr   error
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole, collegeID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	u.CollegeID = collegeID
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func (m *mockUserRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.auditLogs))
	for _, l := range m.auditLogs {
		out = append(out, l.Action)
	}
	return out
}

// mockCollegeRepo mirrors the delete-time role fallback against users when it is set.
type mockCollegeRepo struct {
	colleges map[string]*models.College
	users    *mockUserRepo
}

func newMockCollegeRepo(colleges ...*models.College) *mockCollegeRepo {
	repo := &mockCollegeRepo{colleges: make(map[string]*models.College)}
	for _, c := range colleges {
		repo.colleges[c.ID] = c
	}
	return repo
}

func (m *mockCollegeRepo) List(ctx context.Context) ([]models.College, error) {
	out := make([]models.College, 0, len(m.colleges))
	for _, c := range m.colleges {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCollegeRepo) FindByID(ctx context.Context, id string) (*models.College, error) {
	c, ok := m.colleges[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (m *mockCollegeRepo) FindByEmailDomain(ctx context.Context, domain string) (*models.College, error) {
	for _, c := range m.colleges {
		if strings.EqualFold(c.EmailDomain, domain) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCollegeRepo) Create(ctx context.Context, college *models.College) error {
	for _, c := range m.colleges {
		if c.Name == college.Name || c.EmailDomain == college.EmailDomain {
			return repository.ErrDuplicate
		}
	}
	if college.ID == "" {
		college.ID = "college-" + college.EmailDomain
	}
	clone := *college
	m.colleges[college.ID] = &clone
	return nil
}

func (m *mockCollegeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.colleges[id]; !ok {
		return sql.ErrNoRows
	}
	if m.users != nil {
		m.users.mu.Lock()
		for _, u := range m.users.users {
			if u.CollegeID == nil || *u.CollegeID != id {
				continue
			}
			u.CollegeID = nil
			if u.Role == models.RoleCollegeUser || u.Role == models.RoleModerator {
				u.Role = models.RoleGeneralUser
			}
		}
		m.users.mu.Unlock()
	}
	delete(m.colleges, id)
	return nil
}

type mockResourceRepo struct {
	mu        sync.Mutex
	resources []models.Resource
	listCalls int
	listErr   error
}

func newMockResourceRepo(resources ...models.Resource) *mockResourceRepo {
	return &mockResourceRepo{resources: resources}
}

func (m *mockResourceRepo) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.ID == id {
			clone := r
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockResourceRepo) ListByCollege(ctx context.Context, collegeID string) ([]models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []models.Resource{}
	for _, r := range m.resources {
		if r.CollegeID == collegeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockResourceRepo) Create(ctx context.Context, resource *models.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, *resource)
	return nil
}

func (m *mockResourceRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.resources {
		if r.ID == id {
			m.resources = append(m.resources[:i], m.resources[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

// mockLedgerRepo enforces the (user, resource, access type) uniqueness the real table carries.
type mockLedgerRepo struct {
	mu        sync.Mutex
	rows      []models.ResourceAccess
	resources *mockResourceRepo
	existsErr error
	seq       int
}

func newMockLedgerRepo(resources *mockResourceRepo) *mockLedgerRepo {
	return &mockLedgerRepo{resources: resources}
}

func (m *mockLedgerRepo) find(userID, resourceID string, accessType models.AccessType) (*models.ResourceAccess, bool) {
	for _, row := range m.rows {
		if row.UserID == userID && row.ResourceID == resourceID && row.AccessType == accessType {
			clone := row
			return &clone, true
		}
	}
	return nil, false
}

func (m *mockLedgerRepo) Find(ctx context.Context, userID, resourceID string, accessType models.AccessType) (*models.ResourceAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.find(userID, resourceID, accessType)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

func (m *mockLedgerRepo) Exists(ctx context.Context, userID, resourceID string, accessType models.AccessType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.find(userID, resourceID, accessType)
	return ok, nil
}

func (m *mockLedgerRepo) InsertIfAbsent(ctx context.Context, access *models.ResourceAccess) (*models.ResourceAccess, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(access)
}

func (m *mockLedgerRepo) insertLocked(access *models.ResourceAccess) (*models.ResourceAccess, bool, error) {
	if existing, ok := m.find(access.UserID, access.ResourceID, access.AccessType); ok {
		return existing, false, nil
	}
	m.seq++
	row := *access
	if row.ID == "" {
		row.ID = "access-" + string(rune('a'+m.seq))
	}
	if row.UnlockedAt.IsZero() {
		row.UnlockedAt = time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
	}
	m.rows = append(m.rows, row)
	return &row, true, nil
}

func (m *mockLedgerRepo) UnlockedResourceIDs(ctx context.Context, userID, collegeID string, accessType models.AccessType) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	for _, row := range m.rows {
		if row.UserID != userID || row.AccessType != accessType {
			continue
		}
		if m.resources != nil {
			r, err := m.resources.FindByID(ctx, row.ResourceID)
			if err != nil || r.CollegeID != collegeID {
				continue
			}
		}
		out[row.ResourceID] = struct{}{}
	}
	return out, nil
}

func (m *mockLedgerRepo) ListByUser(ctx context.Context, userID string, accessType *models.AccessType) ([]models.ResourceAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ResourceAccess{}
	for _, row := range m.rows {
		if row.UserID == userID && (accessType == nil || row.AccessType == *accessType) {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UnlockedAt.After(out[j].UnlockedAt) })
	return out, nil
}

func (m *mockLedgerRepo) count(userID, resourceID string, accessType models.AccessType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.ResourceID == resourceID && row.AccessType == accessType {
			n++
		}
	}
	return n
}

// mockSessionRepo mirrors the transactional guarantees of the payment session table.
type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.PaymentSession
	ledger   *mockLedgerRepo
	created  int
	markErr  error
}

func newMockSessionRepo(ledger *mockLedgerRepo) *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*models.PaymentSession), ledger: ledger}
}

func (m *mockSessionRepo) put(session *models.PaymentSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *session
	m.sessions[session.SessionID] = &clone
}

func (m *mockSessionRepo) get(id string) *models.PaymentSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	clone := *s
	return &clone
}

func (m *mockSessionRepo) FindByID(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	if s := m.get(sessionID); s != nil {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) CreateOrGetPending(ctx context.Context, candidate *models.PaymentSession) (*models.PaymentSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID != candidate.UserID || s.ResourceID != candidate.ResourceID || s.Status != models.PaymentStatusPending {
			continue
		}
		if s.ExpiredAt(candidate.CreatedAt) {
			s.Status = models.PaymentStatusExpired
			continue
		}
		clone := *s
		return &clone, true, nil
	}
	m.created++
	clone := *candidate
	m.sessions[candidate.SessionID] = &clone
	out := clone
	return &out, false, nil
}

func (m *mockSessionRepo) MarkStatus(ctx context.Context, sessionID string, status models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		return sql.ErrNoRows
	}
	if s.Status != models.PaymentStatusPending {
		return repository.ErrSessionNotPending
	}
	s.Status = status
	return nil
}

func (m *mockSessionRepo) CompleteWithUnlock(ctx context.Context, sessionID string, completedAt time.Time) (*models.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if s.Status != models.PaymentStatusPending {
		return nil, repository.ErrSessionNotPending
	}
	amount := s.Amount
	m.ledger.mu.Lock()
	_, _, err := m.ledger.insertLocked(&models.ResourceAccess{
		UserID:        s.UserID,
		ResourceID:    s.ResourceID,
		AccessType:    models.AccessTypePaid,
		PaymentAmount: &amount,
		UnlockedAt:    completedAt,
	})
	m.ledger.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.Status = models.PaymentStatusCompleted
	s.CompletedAt = &completedAt
	clone := *s
	return &clone, nil
}

type stubProvider struct {
	mu       sync.Mutex
	approved bool
	err      error
	calls    int
	onVerify func()
}

func (p *stubProvider) VerifyTransaction(ctx context.Context, sessionID string) (bool, error) {
	p.mu.Lock()
	p.calls++
	hook := p.onVerify
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return p.approved, p.err
}

type mockSigner struct{}

func (mockSigner) Issue(resourceID, userID string) (string, time.Time, error) {
	return "token-" + resourceID + "-" + userID, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (mockSigner) Verify(token, userID string) (*storage.DownloadGrant, error) {
	suffix := "-" + userID
	if !strings.HasPrefix(token, "token-") || !strings.HasSuffix(token, suffix) {
		return nil, storage.ErrBadSignature
	}
	resourceID := strings.TrimSuffix(strings.TrimPrefix(token, "token-"), suffix)
	if resourceID == "" {
		return nil, storage.ErrMalformedToken
	}
	return &storage.DownloadGrant{ResourceID: resourceID, UserID: userID}, nil
}

type mockCacheRepo struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{data: make(map[string][]byte)}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

// testWorld is two colleges, A and B, with one user per role and one file in each college.
type testWorld struct {
	users     *mockUserRepo
	colleges  *mockCollegeRepo
	resources *mockResourceRepo
	ledger    *mockLedgerRepo
	sessions  *mockSessionRepo
	identity  *IdentityService
	access    *AccessService
}

const (
	collegeA = "college-a"
	collegeB = "college-b"

	userA     = "u-college-a"
	userB     = "u-college-b"
	userGen   = "u-general"
	userGuest = "u-guest"
	userAdmin = "u-admin"
	userModA  = "u-mod-a"

	fileA = "file-a"
	fileB = "file-b"
)

func newTestWorld() *testWorld {
	users := newMockUserRepo(
		&models.User{ID: userA, Email: "ana@a.edu", Role: models.RoleCollegeUser, CollegeID: strPtr(collegeA)},
		&models.User{ID: userB, Email: "ben@b.edu", Role: models.RoleCollegeUser, CollegeID: strPtr(collegeB)},
		&models.User{ID: userGen, Email: "gus@gmail.com", Role: models.RoleGeneralUser},
		&models.User{ID: userGuest, Email: "guest@example.com", Role: models.RoleGuest},
		&models.User{ID: userAdmin, Email: "root@collegehub.io", Role: models.RoleAdmin},
		&models.User{ID: userModA, Email: "mia@a.edu", Role: models.RoleModerator, CollegeID: strPtr(collegeA)},
	)
	colleges := newMockCollegeRepo(
		&models.College{ID: collegeA, Name: "Alpha Institute", EmailDomain: "a.edu"},
		&models.College{ID: collegeB, Name: "Beta University", EmailDomain: "b.edu"},
	)
	colleges.users = users
	resources := newMockResourceRepo(
		models.Resource{ID: fileA, CollegeID: collegeA, ResourceType: models.ResourceTypeNotes, Department: "CSE", Batch: "2024", FileName: "dsa.pdf", FileURL: "https://files.example.com/dsa.pdf", UploadedBy: userModA, UploadDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		models.Resource{ID: fileB, CollegeID: collegeB, ResourceType: models.ResourceTypePYQ, Department: "ECE", Batch: "2023", FileName: "signals.pdf", FileURL: "https://files.example.com/signals.pdf", UploadedBy: userB, UploadDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	)
	ledger := newMockLedgerRepo(resources)
	identity := NewIdentityService(users)
	return &testWorld{
		users:     users,
		colleges:  colleges,
		resources: resources,
		ledger:    ledger,
		sessions:  newMockSessionRepo(ledger),
		identity:  identity,
		access:    NewAccessService(identity, resources, ledger, nil, zap.NewNop()),
	}
}

func strPtr(s string) *string { return &s }
