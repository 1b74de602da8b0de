package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/workflow"
)

// In-process implementations of the repository interfaces. They back the
// service when no POSTGRES_DSN is configured and give the workflow tests a
// real store without any mocking of I/O.

// MemoryRequestRepository is a map-backed RequestRepository.
type MemoryRequestRepository struct {
	mu       sync.Mutex
	requests map[string]domain.Request
}

// NewMemoryRequestRepository builds an empty store.
func NewMemoryRequestRepository() *MemoryRequestRepository {
	return &MemoryRequestRepository{requests: make(map[string]domain.Request)}
}

func (m *MemoryRequestRepository) Create(_ context.Context, request *domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now
	m.requests[request.ID] = cloneRequest(*request)
	return nil
}

func (m *MemoryRequestRepository) GetByID(_ context.Context, id string) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return nil, workflow.ErrRequestMissing
	}
	request = cloneRequest(request)
	return &request, nil
}

// CompareAndUpdate holds the store lock across the status check and the
// write, matching the atomicity of the SQL conditional UPDATE.
func (m *MemoryRequestRepository) CompareAndUpdate(_ context.Context, id string, expectedStatus domain.RequestStatus, patch domain.RequestPatch) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return nil, workflow.ErrRequestMissing
	}
	if request.Status != expectedStatus {
		return nil, workflow.ErrStaleStatus
	}
	request.Status = patch.Status
	if patch.DeveloperID != nil {
		request.DeveloperID = patch.DeveloperID
	}
	if patch.QAStartedAt != nil {
		request.QAStartedAt = patch.QAStartedAt
	}
	if patch.ReviewStartedAt != nil {
		request.ReviewStartedAt = patch.ReviewStartedAt
	}
	if patch.CompletedAt != nil {
		request.CompletedAt = patch.CompletedAt
	}
	request.UpdatedAt = time.Now()
	m.requests[id] = cloneRequest(request)
	request = cloneRequest(request)
	return &request, nil
}

func (m *MemoryRequestRepository) ListWithFilter(_ context.Context, filter RequestFilter) ([]domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Request
	for _, request := range m.requests {
		if filter.ClientID != nil && request.ClientID != *filter.ClientID {
			continue
		}
		if filter.DeveloperID != nil && (request.DeveloperID == nil || *request.DeveloperID != *filter.DeveloperID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, request.Status) {
			continue
		}
		if filter.CreatedFrom != nil && request.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && request.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			if term != "" &&
				!strings.Contains(strings.ToLower(request.Title), term) &&
				!strings.Contains(strings.ToLower(request.Description), term) {
				continue
			}
		}
		result = append(result, cloneRequest(request))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return paginate(result, filter.Limit, filter.Offset), nil
}

// MemoryMatchRepository is a map-backed MatchRepository.
type MemoryMatchRepository struct {
	mu      sync.Mutex
	matches map[string]domain.Match
}

// NewMemoryMatchRepository builds an empty store.
func NewMemoryMatchRepository() *MemoryMatchRepository {
	return &MemoryMatchRepository{matches: make(map[string]domain.Match)}
}

func (m *MemoryMatchRepository) Create(_ context.Context, match *domain.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	now := time.Now()
	match.CreatedAt = now
	match.UpdatedAt = now
	m.matches[match.ID] = *match
	return nil
}

func (m *MemoryMatchRepository) GetByID(_ context.Context, id string) (*domain.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &match, nil
}

func (m *MemoryMatchRepository) GetByRequestAndDeveloper(_ context.Context, requestID, developerID string) (*domain.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Match
	for id := range m.matches {
		match := m.matches[id]
		if match.RequestID != requestID || match.DeveloperID != developerID {
			continue
		}
		if latest == nil || match.CreatedAt.After(latest.CreatedAt) {
			copied := match
			latest = &copied
		}
	}
	if latest == nil {
		return nil, workflow.ErrNoMatch
	}
	return latest, nil
}

func (m *MemoryMatchRepository) ListByRequest(_ context.Context, requestID string) ([]domain.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Match
	for _, match := range m.matches {
		if match.RequestID == requestID {
			result = append(result, match)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryMatchRepository) UpdateStatus(_ context.Context, id string, status domain.MatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return pgx.ErrNoRows
	}
	match.Status = status
	match.UpdatedAt = time.Now()
	m.matches[id] = match
	return nil
}

func (m *MemoryMatchRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.matches, id)
	return nil
}

// MemoryHistoryRepository is an append-only in-process audit log.
type MemoryHistoryRepository struct {
	mu      sync.Mutex
	entries []domain.RequestHistory
}

// NewMemoryHistoryRepository builds an empty log.
func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{}
}

func (m *MemoryHistoryRepository) Append(_ context.Context, entry *domain.RequestHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryHistoryRepository) ListByRequest(_ context.Context, requestID string, limit, offset int) ([]domain.RequestHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.RequestHistory
	for _, entry := range m.entries {
		if entry.RequestID == requestID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChangedAt.Before(result[j].ChangedAt)
	})
	if limit <= 0 {
		limit = 50
	}
	return paginate(result, limit, offset), nil
}

// MemoryUserRepository is a map-backed UserRepository.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
}

// NewMemoryUserRepository builds an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (m *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (m *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.users {
		if m.users[id].Email == email {
			user := m.users[id]
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// MemoryPasswordResetRepository is a map-backed PasswordResetRepository.
type MemoryPasswordResetRepository struct {
	mu     sync.Mutex
	tokens map[string]PasswordResetToken
}

// NewMemoryPasswordResetRepository builds an empty store.
func NewMemoryPasswordResetRepository() *MemoryPasswordResetRepository {
	return &MemoryPasswordResetRepository{tokens: make(map[string]PasswordResetToken)}
}

func (m *MemoryPasswordResetRepository) Create(_ context.Context, token *PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now()
	m.tokens[token.ID] = *token
	return nil
}

func (m *MemoryPasswordResetRepository) GetByToken(_ context.Context, tokenStr string) (*PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.tokens {
		if m.tokens[id].Token == tokenStr {
			token := m.tokens[id]
			return &token, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *MemoryPasswordResetRepository) MarkUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	token.UsedAt = &now
	m.tokens[id] = token
	return nil
}

func cloneRequest(request domain.Request) domain.Request {
	request.Tags = append([]string(nil), request.Tags...)
	return request
}

func containsStatus(statuses []domain.RequestStatus, status domain.RequestStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
