package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
)

const (
	socialID   = "2f8e3d58-7c90-4b20-8f3e-4d5c6e7f8091"
	paymentsID = "5cbc608b-afc3-4e53-b251-708091a2b3c4"
)

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGetFlags(t *testing.T) {
	env := newEnv(t)
	env.profiles.profile = &services.Profile{
		User: &models.User{
			ID:           userID,
			ProfileImage: "uploads/profile-images/me.a.png",
			Business:     models.BusinessDetails{CompanyName: "Acme"},
		},
		Links: []models.AttachedLink{
			{CategoryID: socialID, SubCategoryID: "s-1", URL: "https://linkedin.com/in/alice"},
			{CategoryID: paymentsID, SubCategoryID: "s-2", URL: "https://pay.test/alice"},
			{CategoryID: socialID, SubCategoryID: "s-3", URL: "https://github.com/alice"},
		},
	}

	rec := env.do(withToken(httptest.NewRequest(http.MethodGet, "/users/"+userID+"/flags", nil), token(t, userID, common.RoleUser)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body flagsResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.True(t, body.BusinessDetails)
	assert.True(t, body.ProfilePicture)
	assert.False(t, body.SelectedIndustries)
	assert.True(t, body.AttachedLinks)
	assert.False(t, body.BusinessImages)

	require.Len(t, body.Profile.Links, 2, "links are grouped by category")
	assert.Equal(t, socialID, body.Profile.Links[0].CategoryID)
	assert.Equal(t, []linkTarget{
		{SubCategoryID: "s-1", URL: "https://linkedin.com/in/alice"},
		{SubCategoryID: "s-3", URL: "https://github.com/alice"},
	}, body.Profile.Links[0].SubCategories)

	rec = env.do(withToken(httptest.NewRequest(http.MethodGet, "/users/"+userID+"/flags", nil), token(t, otherID, common.RoleUser)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateBusinessDetails_JSON(t *testing.T) {
	env := newEnv(t)
	path := "/users/" + userID + "/business-details"

	req := jsonRequest(http.MethodPatch, path,
		`{"businessDetails":{"companyName":"Acme","companyAddress":"1 Main St","companyMobile":"+1","companyEmail":"hi@acme.test","companyWebsite":"https://acme.test"}}`)
	rec := env.do(withToken(req, token(t, userID, common.RoleUser)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Business details updated", decode(t, rec).Message)

	assert.Equal(t, userID, env.profiles.got.id)
	assert.Equal(t, models.BusinessDetails{
		CompanyName:    "Acme",
		CompanyAddress: "1 Main St",
		CompanyMobile:  "+1",
		CompanyEmail:   "hi@acme.test",
		CompanyWebsite: "https://acme.test",
	}, env.profiles.got.details)
	assert.Empty(t, env.profiles.got.name, "no logo")

	req = jsonRequest(http.MethodPatch, path, `{"businessDetails":{"companyName":"Acme"},"extra":1}`)
	assert.Equal(t, http.StatusBadRequest, env.do(withToken(req, token(t, userID, common.RoleUser))).Code)

	env.profiles.err = fmt.Errorf("%w: companyName is required", common.ErrorValidation)
	req = jsonRequest(http.MethodPatch, path, `{"businessDetails":{}}`)
	assert.Equal(t, http.StatusBadRequest, env.do(withToken(req, token(t, userID, common.RoleUser))).Code)
}

func TestUpdateBusinessDetails_MultipartWithLogo(t *testing.T) {
	env := newEnv(t)
	path := "/users/" + userID + "/business-details"

	req := uploadRequest(t, http.MethodPatch, path,
		formPartSpec{field: "companyName", body: "Acme"},
		formPartSpec{field: "companyWebsite", body: "https://acme.test"},
		formPartSpec{field: fieldCompanyLogo, body: "https://cards.example.com/file?key=uploads%2Fcompany-logos%2Fold.a.png"},
		formPartSpec{field: fieldCompanyLogo, filename: "logo.png", ctype: "image/png", body: "png"},
		formPartSpec{field: "unrelated", filename: "x.png", body: "ignored"},
	)
	rec := env.do(withToken(req, token(t, otherID, common.RoleAdmin)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := env.profiles.got
	assert.Equal(t, "Acme", got.details.CompanyName)
	assert.Equal(t, "https://acme.test", got.details.CompanyWebsite)
	assert.Equal(t, "logo.png", got.name)
	assert.Equal(t, "png", got.data)

	var body userResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, "Acme", body.BusinessDetails.CompanyName)
}

func TestUpdateBusinessDetails_MultipartRejects(t *testing.T) {
	tests := []struct {
		name  string
		parts []formPartSpec
	}{
		{"file in a text field", []formPartSpec{{field: "companyName", filename: "a.png", body: "x"}}},
		{"two logos", []formPartSpec{
			{field: fieldCompanyLogo, filename: "a.png", body: "x"},
			{field: fieldCompanyLogo, filename: "b.png", body: "y"},
		}},
		{"empty logo", []formPartSpec{{field: fieldCompanyLogo, filename: "a.png", body: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			req := uploadRequest(t, http.MethodPatch, "/users/"+userID+"/business-details", tt.parts...)
			rec := env.do(withToken(req, token(t, userID, common.RoleUser)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Empty(t, env.profiles.got.id, "service not called")
		})
	}
}

func TestSetIndustries(t *testing.T) {
	env := newEnv(t)

	req := jsonRequest(http.MethodPut, "/users/"+userID+"/industries",
		`{"selectedIndustries":[{"industryId":"i-2","tags":["shoes"]},{"industryId":"i-1","tags":[]}]}`)
	rec := env.do(withToken(req, token(t, userID, common.RoleUser)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []models.SelectedIndustry{
		{IndustryID: "i-2", Tags: []string{"shoes"}},
		{IndustryID: "i-1", Tags: []string{}},
	}, env.profiles.got.industries)

	var body userResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	require.Len(t, body.Industries, 2)
	assert.Equal(t, "i-2", body.Industries[0].IndustryID)
}

func TestSetLinks(t *testing.T) {
	env := newEnv(t)

	req := jsonRequest(http.MethodPut, "/users/"+userID+"/links", `{"attachedLinks":[
		{"categoryId":"`+socialID+`","subCategories":[{"subCategoryId":"s-1","url":"https://a.test"},{"subCategoryId":"s-3","url":"https://c.test"}]},
		{"categoryId":"`+paymentsID+`","subCategories":[{"subCategoryId":"s-2","url":"https://b.test"}]}
	]}`)
	rec := env.do(withToken(req, token(t, userID, common.RoleUser)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []models.AttachedLink{
		{CategoryID: socialID, SubCategoryID: "s-1", URL: "https://a.test"},
		{CategoryID: socialID, SubCategoryID: "s-3", URL: "https://c.test"},
		{CategoryID: paymentsID, SubCategoryID: "s-2", URL: "https://b.test"},
	}, env.profiles.got.links)

	var body userResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	require.Len(t, body.Links, 2)
	assert.Len(t, body.Links[0].SubCategories, 2)

	env.profiles.err = fmt.Errorf("%w: unknown catalog entry", common.ErrorValidation)
	req = jsonRequest(http.MethodPut, "/users/"+userID+"/links", `{"attachedLinks":[]}`)
	assert.Equal(t, http.StatusBadRequest, env.do(withToken(req, token(t, userID, common.RoleUser))).Code)
}

func TestListIndustries(t *testing.T) {
	env := newEnv(t)
	env.industries.view = &services.IndustryView{
		Industry: &models.Industry{ID: otherID, Name: "Bakery", Image: "uploads/industry-images/bread.k.png"},
		ImageURL: "https://cdn/bread",
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/industries", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body []industryResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Bakery", body[0].Name)
	assert.Equal(t, "https://cdn/bread", body[0].ImageURL)
}

func TestLinkCategories(t *testing.T) {
	env := newEnv(t)
	create := `{"name":"Social","subCategories":[{"name":"LinkedIn","icon":"linkedin.svg"},{"name":"GitHub","icon":""}]}`

	rec := env.do(withToken(jsonRequest(http.MethodPost, "/links", create), token(t, userID, common.RoleUser)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(withToken(jsonRequest(http.MethodPost, "/links", create), token(t, otherID, common.RoleAdmin)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Social", env.catalog.name)
	assert.Equal(t, []models.LinkSubCategory{{Name: "LinkedIn", Icon: "linkedin.svg"}, {Name: "GitHub"}}, env.catalog.subs)

	var created linkCategoryResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &created))
	assert.Equal(t, otherID, created.ID)
	assert.Len(t, created.SubCategories, 2)

	env.catalog.categories = []models.LinkCategory{{ID: socialID, Name: "Social", IsActive: true}}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/links", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.catalog.all)

	var list []linkCategoryResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, []linkSubCategoryResponse{}, list[0].SubCategories)

	assert.Equal(t, http.StatusUnauthorized, env.do(httptest.NewRequest(http.MethodGet, "/admin/links", nil)).Code)
	rec = env.do(withToken(httptest.NewRequest(http.MethodGet, "/admin/links", nil), token(t, otherID, common.RoleAdmin)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.catalog.all)

	env.catalog.err = common.ErrorAlreadyExists
	rec = env.do(withToken(jsonRequest(http.MethodPost, "/links", create), token(t, otherID, common.RoleAdmin)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
