package httpapi

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/delivery"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
	"github.com/dmitrijs2005/cardkeeper/internal/metrics"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/auth"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
)

const (
	testSecret = "test-secret"
	userID     = "6b0f1c7e-3f5e-4b8a-9c51-1d2e3f405162"
	otherID    = "0d6c1b36-5a7e-4f0e-8d1c-2b3a4c5d6e7f"
)

// uploaded captures what a file operation received.
type uploaded struct {
	id         string
	name       string
	ctype      string
	size       int64
	data       string
	items      []saga.Item
	cleared    bool
	details    models.BusinessDetails
	industries []models.SelectedIndustry
	links      []models.AttachedLink
}

type fakeProfiles struct {
	profile *services.Profile
	err     error
	got     uploaded
}

func (f *fakeProfiles) GetProfile(_ context.Context, id string) (*services.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil || f.profile.User.ID != id {
		return nil, common.ErrorNotFound
	}
	return f.profile, nil
}

func (f *fakeProfiles) replace(id, field string, p *blobstore.Payload) (*saga.Result, error) {
	b, _ := io.ReadAll(p.Body)
	f.got = uploaded{id: id, name: p.Name, ctype: p.ContentType, size: p.Size, data: string(b)}
	if f.err != nil {
		return nil, f.err
	}
	return &saga.Result{RecordID: id, Field: field, Keys: []string{"uploads/x/new.abc.png"}, Replaced: []string{"uploads/x/old.def.png"}}, nil
}

func (f *fakeProfiles) clear(id, field string) (*saga.Result, error) {
	f.got = uploaded{id: id, cleared: true}
	if f.err != nil {
		return nil, f.err
	}
	return &saga.Result{RecordID: id, Field: field}, nil
}

func (f *fakeProfiles) ReplaceProfileImage(_ context.Context, id string, p *blobstore.Payload) (*saga.Result, error) {
	return f.replace(id, "profile_image", p)
}

func (f *fakeProfiles) ClearProfileImage(_ context.Context, id string) (*saga.Result, error) {
	return f.clear(id, "profile_image")
}

func (f *fakeProfiles) ReplaceCompanyLogo(_ context.Context, id string, p *blobstore.Payload) (*saga.Result, error) {
	return f.replace(id, "company_logo", p)
}

func (f *fakeProfiles) ClearCompanyLogo(_ context.Context, id string) (*saga.Result, error) {
	return f.clear(id, "company_logo")
}

func (f *fakeProfiles) ReplaceBusinessImages(_ context.Context, id string, items []saga.Item) (*saga.Result, error) {
	f.got = uploaded{id: id, items: items}
	if f.err != nil {
		return nil, f.err
	}
	return &saga.Result{RecordID: id, Field: "business_images", Keys: []string{"a", "b"}}, nil
}

func (f *fakeProfiles) UpdateBusinessDetails(_ context.Context, id string, b models.BusinessDetails, logo *blobstore.Payload) (*services.Profile, error) {
	f.got = uploaded{id: id, details: b}
	if logo != nil {
		data, _ := io.ReadAll(logo.Body)
		f.got.name, f.got.ctype, f.got.size, f.got.data = logo.Name, logo.ContentType, logo.Size, string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.echo(id), nil
}

func (f *fakeProfiles) SetIndustries(_ context.Context, id string, selected []models.SelectedIndustry) (*services.Profile, error) {
	f.got = uploaded{id: id, industries: selected}
	if f.err != nil {
		return nil, f.err
	}
	p := f.echo(id)
	p.Industries = selected
	return p, nil
}

func (f *fakeProfiles) SetLinks(_ context.Context, id string, links []models.AttachedLink) (*services.Profile, error) {
	f.got = uploaded{id: id, links: links}
	if f.err != nil {
		return nil, f.err
	}
	p := f.echo(id)
	p.Links = links
	return p, nil
}

func (f *fakeProfiles) echo(id string) *services.Profile {
	return &services.Profile{User: &models.User{ID: id, Business: f.got.details}}
}

type fakeIndustries struct {
	view *services.IndustryView
	err  error
	got  uploaded
}

func (f *fakeIndustries) Create(_ context.Context, name string) (*models.Industry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Industry{ID: otherID, Name: name}, nil
}

func (f *fakeIndustries) Get(context.Context, string) (*services.IndustryView, error) {
	if f.view == nil {
		return nil, common.ErrorNotFound
	}
	return f.view, nil
}

func (f *fakeIndustries) List(context.Context) ([]services.IndustryView, error) {
	if f.view == nil {
		return nil, f.err
	}
	return []services.IndustryView{*f.view}, f.err
}

func (f *fakeIndustries) ReplaceImage(_ context.Context, id string, p *blobstore.Payload) (*saga.Result, error) {
	f.got = uploaded{id: id, name: p.Name, size: p.Size}
	return &saga.Result{RecordID: id, Field: "industry_image", Keys: []string{"uploads/industry-images/a.b.png"}}, f.err
}

func (f *fakeIndustries) ClearImage(_ context.Context, id string) (*saga.Result, error) {
	f.got = uploaded{id: id, cleared: true}
	return &saga.Result{RecordID: id, Field: "industry_image"}, f.err
}

type fakeCatalog struct {
	categories []models.LinkCategory
	err        error
	name       string
	subs       []models.LinkSubCategory
	all        bool
}

func (f *fakeCatalog) CreateCategory(_ context.Context, name string, subs []models.LinkSubCategory) (*models.LinkCategory, error) {
	f.name, f.subs = name, subs
	if f.err != nil {
		return nil, f.err
	}
	return &models.LinkCategory{ID: otherID, Name: name, IsActive: true, SubCategories: subs}, nil
}

func (f *fakeCatalog) ListCategories(_ context.Context, all bool) ([]models.LinkCategory, error) {
	f.all = all
	return f.categories, f.err
}

type fakeAccounts struct {
	token   string
	err     error
	created *models.User
}

func (f *fakeAccounts) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u.ID = userID
	f.created = u
	return u, nil
}

func (f *fakeAccounts) Login(context.Context, string, string) (string, error) {
	return f.token, f.err
}

func (f *fakeAccounts) UserToken(context.Context, string) (string, error) {
	return f.token, f.err
}

type testEnv struct {
	srv        *Server
	handler    http.Handler
	profiles   *fakeProfiles
	industries *fakeIndustries
	catalog    *fakeCatalog
	accounts   *fakeAccounts
	blobs      *blobstore.Local
	metrics    *metrics.Metrics
}

func newEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()

	blobs, err := blobstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	m := metrics.New()
	o := Options{
		Address:              "127.0.0.1:0",
		SecretKey:            testSecret,
		MaxUploadBytes:       1 << 10,
		MaxConcurrentUploads: 4,
		ShutdownTimeout:      time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}

	env := &testEnv{
		profiles:   &fakeProfiles{},
		industries: &fakeIndustries{},
		catalog:    &fakeCatalog{},
		accounts:   &fakeAccounts{},
		blobs:      blobs,
		metrics:    m,
	}
	env.srv = NewServer(o, Deps{
		Profiles:   env.profiles,
		Industries: env.industries,
		Catalog:    env.catalog,
		Accounts:   env.accounts,
		Delivery:   delivery.NewHandler(delivery.NewResolver(blobs, 0), logging.Nop(), m),
		Metrics:    m,
		Logger:     logging.Nop(),
	})
	env.handler = env.srv.Handler()
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, id, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(id, role, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return tok
}

func withToken(req *http.Request, tok string) *http.Request {
	req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+tok)
	return req
}

// formPartSpec is one part of a multipart body; file parts have a filename.
type formPartSpec struct {
	field    string
	filename string
	ctype    string
	body     string
}

func multipartBody(t *testing.T, parts ...formPartSpec) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, mw.WriteField(p.field, p.body))
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		if p.ctype != "" {
			h.Set("Content-Type", p.ctype)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, method, path string, parts ...formPartSpec) *http.Request {
	t.Helper()
	body, ctype := multipartBody(t, parts...)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", ctype)
	return req
}
