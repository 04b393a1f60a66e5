package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/mail"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/cartitems"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/items"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
)

// --- in-memory store ---

// memStore backs all fake repositories. It ignores the DBTX it is handed,
// so transactions are only visible through sqlmock expectations.
type memStore struct {
	mu    sync.Mutex
	seq   int
	users map[string]*models.User
	items map[string]*models.Item
	lines map[string]*models.CartItem

	// raceOnCreate makes the next cart Create behave as if another request
	// inserted the same line first.
	raceOnCreate bool
	createCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		users: map[string]*models.User{},
		items: map[string]*models.Item{},
		lines: map[string]*models.CartItem{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memStore) Users(dbx.DBTX) users.Repository              { return (*memUsers)(m) }
func (m *memStore) Items(dbx.DBTX) items.Repository              { return (*memItems)(m) }
func (m *memStore) CartItems(dbx.DBTX) cartitems.Repository      { return (*memCart)(m) }

func (m *memStore) addUser(email string, perms ...models.Permission) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: m.nextID("u"), Email: email, Name: email, Permissions: perms}
	m.users[u.ID] = u
	c := *u
	return &c
}

func (m *memStore) addItem(owner string) *models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := &models.Item{ID: m.nextID("i"), Title: "Hat", Price: 1000, UserID: owner}
	m.items[it.ID] = it
	c := *it
	return &c
}

func (m *memStore) user(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.users[id]
	return &c
}

func (m *memStore) userCartLines(userID string) []*models.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CartItem
	for _, l := range m.lines {
		if l.UserID == userID {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memUsers memStore

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range r.users {
		if ex.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	c := *u
	c.ID = (*memStore)(r).nextID("u")
	c.CreatedAt = time.Now()
	r.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) List(context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUsers) SetResetToken(_ context.Context, userID, token string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.ResetToken = &token
	u.ResetTokenExpiry = &expiry
	return nil
}

func (r *memUsers) FindByResetToken(_ context.Context, token string, notBefore time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetToken != nil && *u.ResetToken == token && !u.ResetTokenExpiry.Before(notBefore) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) UpdatePassword(_ context.Context, userID, hash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.PasswordHash = hash
	u.ResetToken = nil
	u.ResetTokenExpiry = nil
	c := *u
	return &c, nil
}

func (r *memUsers) UpdatePermissions(_ context.Context, userID string, perms []models.Permission) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Permissions = append([]models.Permission(nil), perms...)
	c := *u
	return &c, nil
}

type memItems memStore

func (r *memItems) Create(_ context.Context, it *models.Item) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *it
	c.ID = (*memStore)(r).nextID("i")
	r.items[c.ID] = &c
	out := c
	return &out, nil
}

func (r *memItems) Get(_ context.Context, id string) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *it
	return &c, nil
}

func (r *memItems) List(_ context.Context, limit, offset int) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*models.Item, 0, len(r.items))
	for _, it := range r.items {
		c := *it
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memItems) Update(_ context.Context, it *models.Item) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[it.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	c := *it
	r.items[it.ID] = &c
	out := c
	return &out, nil
}

func (r *memItems) Delete(_ context.Context, id string) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.items, id)
	return it, nil
}

type memCart memStore

func (r *memCart) Find(_ context.Context, userID, itemID string) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if l.UserID == userID && l.ItemID == itemID {
			c := *l
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memCart) Get(_ context.Context, id string) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *l
	return &c, nil
}

func (r *memCart) Create(_ context.Context, userID, itemID string) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if _, ok := r.items[itemID]; !ok {
		return nil, fmt.Errorf("%w: item does not exist", common.ErrorNotFound)
	}
	if r.raceOnCreate {
		r.raceOnCreate = false
		l := &models.CartItem{ID: (*memStore)(r).nextID("c"), UserID: userID, ItemID: itemID, Quantity: 1}
		r.lines[l.ID] = l
		return nil, common.ErrAlreadyExists
	}
	for _, l := range r.lines {
		if l.UserID == userID && l.ItemID == itemID {
			return nil, common.ErrAlreadyExists
		}
	}
	l := &models.CartItem{ID: (*memStore)(r).nextID("c"), UserID: userID, ItemID: itemID, Quantity: 1}
	r.lines[l.ID] = l
	c := *l
	return &c, nil
}

func (r *memCart) Increment(_ context.Context, id string) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	l.Quantity++
	c := *l
	return &c, nil
}

func (r *memCart) ListByUser(ctx context.Context, userID string) ([]*models.CartItem, error) {
	return (*memStore)(r).userCartLines(userID), nil
}

func (r *memCart) Delete(_ context.Context, id string) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.lines, id)
	return l, nil
}

// --- collaborators ---

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeSink struct {
	token   string
	maxAge  time.Duration
	cleared bool
}

func (f *fakeSink) SetSession(token string, maxAge time.Duration) {
	f.token = token
	f.maxAge = maxAge
}

func (f *fakeSink) ClearSession() { f.cleared = true }

type denyLimiter struct{ keys []string }

func (d *denyLimiter) Allow(_ context.Context, key string) error {
	d.keys = append(d.keys, key)
	return common.ErrRateLimited
}

func (d *denyLimiter) Check(_ context.Context, key string) error {
	d.keys = append(d.keys, key)
	return common.ErrRateLimited
}

func (d *denyLimiter) Reset(context.Context, string) error { return nil }

// memLimiter is a window-less counter with the RedisLimiter contract.
type memLimiter struct {
	max  int
	hits map[string]int
}

func newMemLimiter(max int) *memLimiter {
	return &memLimiter{max: max, hits: map[string]int{}}
}

func (m *memLimiter) Allow(_ context.Context, key string) error {
	m.hits[key]++
	if m.hits[key] > m.max {
		return common.ErrRateLimited
	}
	return nil
}

func (m *memLimiter) Check(_ context.Context, key string) error {
	if m.hits[key] >= m.max {
		return common.ErrRateLimited
	}
	return nil
}

func (m *memLimiter) Reset(_ context.Context, key string) error {
	delete(m.hits, key)
	return nil
}

// --- helpers ---

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.FrontendURL = "https://shop.test"
	return cfg
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newUserService(t *testing.T, db *sql.DB, store *memStore, mailer mail.Transport) *UserService {
	t.Helper()
	return NewUserService(db, store, testConfig(), mailer, Limits{}, logging.Nop{})
}
