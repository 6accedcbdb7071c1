package httpapi

import (
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type businessDetails struct {
	CompanyName    string `json:"companyName"`
	CompanyAddress string `json:"companyAddress"`
	CompanyMobile  string `json:"companyMobile"`
	CompanyEmail   string `json:"companyEmail"`
	CompanyWebsite string `json:"companyWebsite"`
	CompanyLogo    string `json:"companyLogo,omitempty"`
	CompanyLogoURL string `json:"companyLogoUrl,omitempty"`
}

func (b businessDetails) model() models.BusinessDetails {
	return models.BusinessDetails{
		CompanyName:    b.CompanyName,
		CompanyAddress: b.CompanyAddress,
		CompanyMobile:  b.CompanyMobile,
		CompanyEmail:   b.CompanyEmail,
		CompanyWebsite: b.CompanyWebsite,
	}
}

type updateBusinessDetailsRequest struct {
	BusinessDetails businessDetails `json:"businessDetails"`
}

type createUserRequest struct {
	Username        string          `json:"username"`
	Email           string          `json:"email"`
	Mobile          string          `json:"mobile"`
	Slug            string          `json:"slug"`
	BusinessDetails businessDetails `json:"businessDetails"`
}

func (r createUserRequest) model() *models.User {
	return &models.User{
		Username: r.Username,
		Email:    r.Email,
		Mobile:   r.Mobile,
		Slug:     r.Slug,
		Business: r.BusinessDetails.model(),
	}
}

type userResponse struct {
	ID                string             `json:"id"`
	Username          string             `json:"username"`
	Email             string             `json:"email"`
	Mobile            string             `json:"mobile"`
	Slug              string             `json:"slug"`
	ProfileImage      string             `json:"profileImage"`
	ProfileImageURL   string             `json:"profileImageUrl,omitempty"`
	BusinessDetails   businessDetails    `json:"businessDetails"`
	BusinessImages    []string           `json:"businessImages"`
	BusinessImageURLs []string           `json:"businessImageUrls,omitempty"`
	Industries        []selectedIndustry `json:"selectedIndustries,omitempty"`
	Links             []attachedLink     `json:"attachedLinks,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func newUserResponse(u *models.User) userResponse {
	b := u.Business
	images := u.BusinessImages
	if images == nil {
		images = []string{}
	}
	return userResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Mobile:       u.Mobile,
		Slug:         u.Slug,
		ProfileImage: u.ProfileImage,
		BusinessDetails: businessDetails{
			CompanyName:    b.CompanyName,
			CompanyAddress: b.CompanyAddress,
			CompanyMobile:  b.CompanyMobile,
			CompanyEmail:   b.CompanyEmail,
			CompanyWebsite: b.CompanyWebsite,
			CompanyLogo:    b.CompanyLogo,
		},
		BusinessImages: images,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func newProfileResponse(p *services.Profile) userResponse {
	resp := newUserResponse(p.User)
	resp.ProfileImageURL = p.ProfileImageURL
	resp.BusinessDetails.CompanyLogoURL = p.CompanyLogoURL
	resp.BusinessImageURLs = p.BusinessImageURLs
	for _, in := range p.Industries {
		resp.Industries = append(resp.Industries, selectedIndustry{IndustryID: in.IndustryID, Tags: in.Tags})
	}
	resp.Links = groupLinks(p.Links)
	return resp
}

type flagsResponse struct {
	BusinessDetails    bool         `json:"businessDetails"`
	ProfilePicture     bool         `json:"profilePicture"`
	SelectedIndustries bool         `json:"selectedIndustries"`
	AttachedLinks      bool         `json:"attachedLinks"`
	BusinessImages     bool         `json:"businessImages"`
	Profile            userResponse `json:"profile"`
}

func newFlagsResponse(p *services.Profile) flagsResponse {
	f := p.Flags()
	return flagsResponse{
		BusinessDetails:    f.BusinessDetails,
		ProfilePicture:     f.ProfilePicture,
		SelectedIndustries: f.SelectedIndustries,
		AttachedLinks:      f.AttachedLinks,
		BusinessImages:     f.BusinessImages,
		Profile:            newProfileResponse(p),
	}
}

type selectedIndustry struct {
	IndustryID string   `json:"industryId"`
	Tags       []string `json:"tags"`
}

type setIndustriesRequest struct {
	SelectedIndustries []selectedIndustry `json:"selectedIndustries"`
}

func (r setIndustriesRequest) model() []models.SelectedIndustry {
	out := make([]models.SelectedIndustry, 0, len(r.SelectedIndustries))
	for _, in := range r.SelectedIndustries {
		out = append(out, models.SelectedIndustry{IndustryID: in.IndustryID, Tags: in.Tags})
	}
	return out
}

type linkTarget struct {
	SubCategoryID string `json:"subCategoryId"`
	URL           string `json:"url"`
}

// attachedLink is the wire shape of links: grouped under their category.
type attachedLink struct {
	CategoryID    string       `json:"categoryId"`
	SubCategories []linkTarget `json:"subCategories"`
}

type setLinksRequest struct {
	AttachedLinks []attachedLink `json:"attachedLinks"`
}

func (r setLinksRequest) model() []models.AttachedLink {
	var out []models.AttachedLink
	for _, g := range r.AttachedLinks {
		for _, t := range g.SubCategories {
			out = append(out, models.AttachedLink{CategoryID: g.CategoryID, SubCategoryID: t.SubCategoryID, URL: t.URL})
		}
	}
	return out
}

// groupLinks groups links by category in order of first appearance.
func groupLinks(links []models.AttachedLink) []attachedLink {
	var out []attachedLink
	pos := map[string]int{}
	for _, l := range links {
		i, ok := pos[l.CategoryID]
		if !ok {
			i = len(out)
			pos[l.CategoryID] = i
			out = append(out, attachedLink{CategoryID: l.CategoryID})
		}
		out[i].SubCategories = append(out[i].SubCategories, linkTarget{SubCategoryID: l.SubCategoryID, URL: l.URL})
	}
	return out
}

type createIndustryRequest struct {
	Name string `json:"name"`
}

type industryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newIndustryResponse(in *models.Industry, imageURL string) industryResponse {
	return industryResponse{ID: in.ID, Name: in.Name, Image: in.Image, ImageURL: imageURL, CreatedAt: in.CreatedAt}
}

type newSubCategory struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type createLinkCategoryRequest struct {
	Name          string           `json:"name"`
	SubCategories []newSubCategory `json:"subCategories"`
}

func (r createLinkCategoryRequest) subCategories() []models.LinkSubCategory {
	out := make([]models.LinkSubCategory, 0, len(r.SubCategories))
	for _, sc := range r.SubCategories {
		out = append(out, models.LinkSubCategory{Name: sc.Name, Icon: sc.Icon})
	}
	return out
}

type linkSubCategoryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	IsActive bool   `json:"isActive"`
}

type linkCategoryResponse struct {
	ID            string                    `json:"id"`
	Name          string                    `json:"name"`
	IsActive      bool                      `json:"isActive"`
	SubCategories []linkSubCategoryResponse `json:"subCategories"`
	CreatedAt     time.Time                 `json:"createdAt"`
}

func newLinkCategoryResponse(c *models.LinkCategory) linkCategoryResponse {
	resp := linkCategoryResponse{
		ID:            c.ID,
		Name:          c.Name,
		IsActive:      c.IsActive,
		SubCategories: make([]linkSubCategoryResponse, 0, len(c.SubCategories)),
		CreatedAt:     c.CreatedAt,
	}
	for _, sc := range c.SubCategories {
		resp.SubCategories = append(resp.SubCategories, linkSubCategoryResponse{ID: sc.ID, Name: sc.Name, Icon: sc.Icon, IsActive: sc.IsActive})
	}
	return resp
}

// fileResponse reports a committed file-field update.
type fileResponse struct {
	Field    string   `json:"field"`
	Keys     []string `json:"keys"`
	Replaced []string `json:"replaced,omitempty"`
}

func newFileResponse(r *saga.Result) fileResponse {
	keys := r.Keys
	if keys == nil {
		keys = []string{}
	}
	return fileResponse{Field: r.Field, Keys: keys, Replaced: r.Replaced}
}
