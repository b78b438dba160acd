package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-freelance/internal/model"
)

// MemoryStore is an in-process Store. Transactions snapshot the whole state
// and restore it when the callback fails. It backs the service and HTTP
// tests and can run the API without PostgreSQL.
type MemoryStore struct {
	mu     *sync.Mutex
	state  *memState
	faults *memFaults
	inTx   bool
}

type memState struct {
	users         map[string]model.User
	skills        map[string][]string
	languages     map[string][]model.Language
	refresh       map[string]model.RefreshToken
	reset         map[string]model.PasswordResetToken
	notifications map[string]model.Notification
}

type memFaults struct {
	mu  sync.Mutex
	ops map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		state: &memState{
			users:         map[string]model.User{},
			skills:        map[string][]string{},
			languages:     map[string][]model.Language{},
			refresh:       map[string]model.RefreshToken{},
			reset:         map[string]model.PasswordResetToken{},
			notifications: map[string]model.Notification{},
		},
		faults: &memFaults{ops: map[string]error{}},
	}
}

// FailOn makes the named operation (e.g. "tokens.DeleteRefreshForUser")
// return err until cleared with a nil error.
func (s *MemoryStore) FailOn(op string, err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()

	if err == nil {
		delete(s.faults.ops, op)
		return
	}
	s.faults.ops[op] = err
}

// SetLanguages seeds the language side-table for a user.
func (s *MemoryStore) SetLanguages(userID string, languages []model.Language) {
	unlock := s.lock()
	defer unlock()

	s.state.languages[userID] = append([]model.Language(nil), languages...)
}

// SetPortfolio stores a raw portfolio JSON blob on a user.
func (s *MemoryStore) SetPortfolio(userID string, raw string) {
	unlock := s.lock()
	defer unlock()

	if u, ok := s.state.users[userID]; ok {
		u.Portfolio = &raw
		s.state.users[userID] = u
	}
}

// SetVerified flips the email-verified flag on a user.
func (s *MemoryStore) SetVerified(userID string, verified bool) {
	unlock := s.lock()
	defer unlock()

	if u, ok := s.state.users[userID]; ok {
		u.IsVerified = verified
		s.state.users[userID] = u
	}
}

// RefreshTokenCount reports the number of persisted refresh tokens for a user.
func (s *MemoryStore) RefreshTokenCount(userID string) int {
	unlock := s.lock()
	defer unlock()

	count := 0
	for _, t := range s.state.refresh {
		if t.UserID == userID {
			count++
		}
	}
	return count
}

func (s *MemoryStore) Users() UserStore                 { return memUsers{s} }
func (s *MemoryStore) Tokens() TokenStore               { return memTokens{s} }
func (s *MemoryStore) Notifications() NotificationStore { return memNotifications{s} }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &MemoryStore{mu: s.mu, state: s.state, faults: s.faults, inTx: true}
	if err := fn(tx); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) fault(op string) error {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	return s.faults.ops[op]
}

func (st *memState) clone() *memState {
	out := &memState{
		users:         make(map[string]model.User, len(st.users)),
		skills:        make(map[string][]string, len(st.skills)),
		languages:     make(map[string][]model.Language, len(st.languages)),
		refresh:       make(map[string]model.RefreshToken, len(st.refresh)),
		reset:         make(map[string]model.PasswordResetToken, len(st.reset)),
		notifications: make(map[string]model.Notification, len(st.notifications)),
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.skills {
		out.skills[k] = append([]string(nil), v...)
	}
	for k, v := range st.languages {
		out.languages[k] = append([]model.Language(nil), v...)
	}
	for k, v := range st.refresh {
		out.refresh[k] = v
	}
	for k, v := range st.reset {
		out.reset[k] = v
	}
	for k, v := range st.notifications {
		out.notifications[k] = v
	}
	return out
}

type memUsers struct{ s *MemoryStore }

func (m memUsers) Create(_ context.Context, u model.User) error {
	if err := m.s.fault("users.Create"); err != nil {
		return err
	}
	unlock := m.s.lock()
	defer unlock()

	for _, existing := range m.s.state.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrEmailTaken
		}
	}
	m.s.state.users[u.ID] = u
	return nil
}

func (m memUsers) AddSkills(_ context.Context, userID string, skills []string) error {
	if err := m.s.fault("users.AddSkills"); err != nil {
		return err
	}
	unlock := m.s.lock()
	defer unlock()

	existing := m.s.state.skills[userID]
	for _, skill := range skills {
		dup := false
		for _, have := range existing {
			if have == skill {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, skill)
		}
	}
	m.s.state.skills[userID] = existing
	return nil
}

func (m memUsers) FindByID(_ context.Context, id string) (model.User, error) {
	if err := m.s.fault("users.FindByID"); err != nil {
		return model.User{}, err
	}
	unlock := m.s.lock()
	defer unlock()

	u, ok := m.s.state.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (m memUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	unlock := m.s.lock()
	defer unlock()

	for _, u := range m.s.state.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err == model.ErrUserNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m memUsers) UpdatePresence(_ context.Context, id string, online bool, lastSeen time.Time) error {
	unlock := m.s.lock()
	defer unlock()

	u, ok := m.s.state.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.IsOnline = online
	u.LastSeen = &lastSeen
	m.s.state.users[id] = u
	return nil
}

func (m memUsers) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	if err := m.s.fault("users.UpdatePassword"); err != nil {
		return err
	}
	unlock := m.s.lock()
	defer unlock()

	u, ok := m.s.state.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	m.s.state.users[id] = u
	return nil
}

func (m memUsers) Skills(_ context.Context, userID string) ([]string, error) {
	unlock := m.s.lock()
	defer unlock()

	skills := append([]string{}, m.s.state.skills[userID]...)
	sort.Strings(skills)
	return skills, nil
}

func (m memUsers) Languages(_ context.Context, userID string) ([]model.Language, error) {
	unlock := m.s.lock()
	defer unlock()

	languages := append([]model.Language{}, m.s.state.languages[userID]...)
	sort.Slice(languages, func(i, j int) bool { return languages[i].Language < languages[j].Language })
	return languages, nil
}

type memTokens struct{ s *MemoryStore }

func (m memTokens) CreateRefresh(_ context.Context, t model.RefreshToken) error {
	if err := m.s.fault("tokens.CreateRefresh"); err != nil {
		return err
	}
	unlock := m.s.lock()
	defer unlock()

	m.s.state.refresh[t.Token] = t
	return nil
}

func (m memTokens) FindRefresh(_ context.Context, token string) (model.RefreshToken, error) {
	unlock := m.s.lock()
	defer unlock()

	t, ok := m.s.state.refresh[token]
	if !ok {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	return t, nil
}

func (m memTokens) DeleteRefresh(_ context.Context, token string) error {
	unlock := m.s.lock()
	defer unlock()

	if _, ok := m.s.state.refresh[token]; !ok {
		return model.ErrTokenNotFound
	}
	delete(m.s.state.refresh, token)
	return nil
}

func (m memTokens) DeleteUserRefresh(_ context.Context, userID string, token string) error {
	unlock := m.s.lock()
	defer unlock()

	t, ok := m.s.state.refresh[token]
	if !ok || t.UserID != userID {
		return model.ErrTokenNotFound
	}
	delete(m.s.state.refresh, token)
	return nil
}

func (m memTokens) DeleteRefreshForUser(_ context.Context, userID string) (int64, error) {
	if err := m.s.fault("tokens.DeleteRefreshForUser"); err != nil {
		return 0, err
	}
	unlock := m.s.lock()
	defer unlock()

	var n int64
	for token, t := range m.s.state.refresh {
		if t.UserID == userID {
			delete(m.s.state.refresh, token)
			n++
		}
	}
	return n, nil
}

func (m memTokens) CreateReset(_ context.Context, t model.PasswordResetToken) error {
	unlock := m.s.lock()
	defer unlock()

	m.s.state.reset[t.Token] = t
	return nil
}

func (m memTokens) FindReset(_ context.Context, token string) (model.PasswordResetToken, error) {
	unlock := m.s.lock()
	defer unlock()

	t, ok := m.s.state.reset[token]
	if !ok {
		return model.PasswordResetToken{}, model.ErrTokenNotFound
	}
	return t, nil
}

func (m memTokens) DeleteReset(_ context.Context, token string) error {
	if err := m.s.fault("tokens.DeleteReset"); err != nil {
		return err
	}
	unlock := m.s.lock()
	defer unlock()

	if _, ok := m.s.state.reset[token]; !ok {
		return model.ErrTokenNotFound
	}
	delete(m.s.state.reset, token)
	return nil
}

func (m memTokens) DeleteExpired(_ context.Context, now time.Time) (model.CleanupResult, error) {
	unlock := m.s.lock()
	defer unlock()

	var result model.CleanupResult
	for token, t := range m.s.state.refresh {
		if t.Expired(now) {
			delete(m.s.state.refresh, token)
			result.RefreshTokens++
		}
	}
	for token, t := range m.s.state.reset {
		if t.Expired(now) {
			delete(m.s.state.reset, token)
			result.ResetTokens++
		}
	}
	return result, nil
}

type memNotifications struct{ s *MemoryStore }

func (m memNotifications) Create(_ context.Context, n model.Notification) error {
	if err := m.s.fault("notifications.Create"); err != nil {
		return err
	}
	unlock := m.s.lock()
	defer unlock()

	m.s.state.notifications[n.ID] = n
	return nil
}

func (m memNotifications) FindByID(_ context.Context, id string) (model.Notification, error) {
	unlock := m.s.lock()
	defer unlock()

	n, ok := m.s.state.notifications[id]
	if !ok {
		return model.Notification{}, model.ErrNotificationNotFound
	}
	return n, nil
}

func (m memNotifications) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	unlock := m.s.lock()
	defer unlock()

	out := make([]model.Notification, 0)
	for _, n := range m.s.state.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memNotifications) MarkRead(_ context.Context, id string) error {
	unlock := m.s.lock()
	defer unlock()

	n, ok := m.s.state.notifications[id]
	if !ok {
		return model.ErrNotificationNotFound
	}
	n.IsRead = true
	m.s.state.notifications[id] = n
	return nil
}
