package services

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/admins"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/industries"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/links"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeUsers struct {
	created    *models.User
	byID       map[string]*models.User
	err        error
	details    map[string]models.BusinessDetails
	industries map[string][]models.SelectedIndustry
	links      map[string][]models.AttachedLink
	setErr     error
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = u
	u.ID = "u-1"
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetBySlug(context.Context, string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) UpdateBusinessDetails(_ context.Context, id string, b models.BusinessDetails) error {
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if f.details == nil {
		f.details = map[string]models.BusinessDetails{}
	}
	f.details[id] = b
	b.CompanyLogo = u.Business.CompanyLogo
	u.Business = b
	return nil
}

func (f *fakeUsers) SetIndustries(_ context.Context, id string, selected []models.SelectedIndustry) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.industries == nil {
		f.industries = map[string][]models.SelectedIndustry{}
	}
	f.industries[id] = selected
	return nil
}

func (f *fakeUsers) ListIndustries(_ context.Context, id string) ([]models.SelectedIndustry, error) {
	return f.industries[id], nil
}

func (f *fakeUsers) SetLinks(_ context.Context, id string, l []models.AttachedLink) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.links == nil {
		f.links = map[string][]models.AttachedLink{}
	}
	f.links[id] = l
	return nil
}

func (f *fakeUsers) ListLinks(_ context.Context, id string) ([]models.AttachedLink, error) {
	return f.links[id], nil
}

type fakeAdmins struct {
	existing  *models.Admin
	getErr    error
	createErr error
	created   *models.Admin
	count     int64
}

func (f *fakeAdmins) Create(_ context.Context, a *models.Admin) (*models.Admin, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	a.ID = "a-1"
	f.created = a
	return a, nil
}

func (f *fakeAdmins) GetByUsername(context.Context, string) (*models.Admin, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.existing == nil {
		return nil, common.ErrorNotFound
	}
	return f.existing, nil
}

func (f *fakeAdmins) Count(context.Context) (int64, error) { return f.count, nil }

type fakeIndustries struct {
	byID    map[string]*models.Industry
	created *models.Industry
}

func (f *fakeIndustries) Create(_ context.Context, in *models.Industry) (*models.Industry, error) {
	in.ID = "i-1"
	f.created = in
	return in, nil
}

func (f *fakeIndustries) GetByID(_ context.Context, id string) (*models.Industry, error) {
	if in, ok := f.byID[id]; ok {
		return in, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeIndustries) List(context.Context) ([]models.Industry, error) {
	out := make([]models.Industry, 0, len(f.byID))
	for _, in := range f.byID {
		out = append(out, *in)
	}
	slices.SortFunc(out, func(a, b models.Industry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

type fakeLinks struct {
	created    *models.LinkCategory
	createErr  error
	categories []models.LinkCategory
	activeOnly bool
}

func (f *fakeLinks) CreateCategory(_ context.Context, c *models.LinkCategory) (*models.LinkCategory, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	c.ID = "c-1"
	f.created = c
	return c, nil
}

func (f *fakeLinks) ListCategories(_ context.Context, activeOnly bool) ([]models.LinkCategory, error) {
	f.activeOnly = activeOnly
	return f.categories, nil
}

type fakeRepoManager struct {
	users      *fakeUsers
	admins     *fakeAdmins
	industries *fakeIndustries
	links      *fakeLinks
	records    saga.RecordStore
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Admins(dbx.DBTX) admins.Repository            { return m.admins }
func (m *fakeRepoManager) Industries(dbx.DBTX) industries.Repository    { return m.industries }
func (m *fakeRepoManager) Links(dbx.DBTX) links.Repository              { return m.links }
func (m *fakeRepoManager) Fields(dbx.DBTX) saga.RecordStore             { return m.records }

type fileCall struct {
	op     string
	id     string
	field  saga.Field
	upload *blobstore.Payload
	items  []saga.Item
}

type fakeFiles struct {
	calls []fileCall
	err   error
}

func (f *fakeFiles) Replace(_ context.Context, id string, field saga.Field, p *blobstore.Payload) (*saga.Result, error) {
	f.calls = append(f.calls, fileCall{op: "replace", id: id, field: field, upload: p})
	if f.err != nil {
		return nil, f.err
	}
	return &saga.Result{RecordID: id, Field: field.Name, Keys: []string{"uploads/" + field.Namespace + "/x.abc.png"}, State: saga.StateCommitted}, nil
}

func (f *fakeFiles) ReplaceAll(_ context.Context, id string, field saga.Field, items []saga.Item) (*saga.Result, error) {
	f.calls = append(f.calls, fileCall{op: "replace_all", id: id, field: field, items: items})
	if f.err != nil {
		return nil, f.err
	}
	return &saga.Result{RecordID: id, Field: field.Name, State: saga.StateCommitted}, nil
}

func (f *fakeFiles) Clear(_ context.Context, id string, field saga.Field) (*saga.Result, error) {
	f.calls = append(f.calls, fileCall{op: "clear", id: id, field: field})
	if f.err != nil {
		return nil, f.err
	}
	return &saga.Result{RecordID: id, Field: field.Name, State: saga.StateCommitted}, nil
}

// fakeLinker links every key under base, except keys listed in broken.
type fakeLinker struct {
	broken map[string]bool
}

func (l *fakeLinker) URL(_ context.Context, key, base string) (string, error) {
	if l.broken[key] {
		return "", blobstore.ErrNotFound
	}
	return base + "/file?key=" + key, nil
}

// memRecords is an in-memory saga.RecordStore keyed by record ID and field name.
type memRecords struct {
	mu   sync.Mutex
	data map[string]map[string][]string
}

func newMemRecords(ids ...string) *memRecords {
	m := &memRecords{data: map[string]map[string][]string{}}
	for _, id := range ids {
		m.data[id] = map[string][]string{}
	}
	return m
}

func (m *memRecords) GetField(_ context.Context, id string, f saga.Field) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return append([]string(nil), rec[f.Name]...), nil
}

func (m *memRecords) SetField(_ context.Context, id string, f saga.Field, expected, next []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[id]
	if !ok {
		return common.ErrorNotFound
	}
	cur := rec[f.Name]
	if len(cur) != len(expected) {
		return common.ErrVersionConflict
	}
	for i := range cur {
		if cur[i] != expected[i] {
			return common.ErrVersionConflict
		}
	}
	rec[f.Name] = append([]string(nil), next...)
	return nil
}

