package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/cardkeeper/internal/blobstore"
	"github.com/dmitrijs2005/cardkeeper/internal/saga"
	"github.com/dmitrijs2005/cardkeeper/internal/server/models"
)

// Multipart field names, as sent by the card apps.
const (
	fieldProfileImage   = "profileImage"
	fieldCompanyLogo    = "companyLogo"
	fieldBusinessImages = "businessImages"
	fieldIndustryImage  = "image"
)

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Data: tokenResponse{Token: token}})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.accounts.CreateUser(r.Context(), req.model())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, envelope{Status: true, Message: "User created", Data: newUserResponse(u)})
}

func (s *Server) handleUserToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.accounts.UserToken(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Data: tokenResponse{Token: token}})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Data: newProfileResponse(p)})
}

func (s *Server) handleGetFlags(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Data: newFlagsResponse(p)})
}

// handleUpdateBusinessDetails takes JSON, or a multipart form when a new
// logo comes along with the text fields.
func (s *Server) handleUpdateBusinessDetails(w http.ResponseWriter, r *http.Request) {
	var (
		b    models.BusinessDetails
		logo *blobstore.Payload
		err  error
	)
	if isMultipart(r) {
		b, logo, err = businessDetailsForm(r, s.opts.MaxUploadBytes)
	} else {
		var req updateBusinessDetailsRequest
		err = decodeJSON(w, r, &req)
		b = req.BusinessDetails.model()
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.profiles.UpdateBusinessDetails(r.Context(), r.PathValue("id"), b, logo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Message: "Business details updated", Data: newProfileResponse(p)})
}

func (s *Server) handleSetIndustries(w http.ResponseWriter, r *http.Request) {
	var req setIndustriesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.profiles.SetIndustries(r.Context(), r.PathValue("id"), req.model())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Message: "Industries updated", Data: newProfileResponse(p)})
}

func (s *Server) handleSetLinks(w http.ResponseWriter, r *http.Request) {
	var req setLinksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.profiles.SetLinks(r.Context(), r.PathValue("id"), req.model())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Message: "Links updated", Data: newProfileResponse(p)})
}

func (s *Server) handleListIndustries(w http.ResponseWriter, r *http.Request) {
	views, err := s.industries.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]industryResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newIndustryResponse(v.Industry, v.ImageURL))
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Data: out})
}

func (s *Server) handleCreateIndustry(w http.ResponseWriter, r *http.Request) {
	var req createIndustryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := s.industries.Create(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, envelope{Status: true, Message: "Industry created", Data: newIndustryResponse(in, "")})
}

func (s *Server) handleGetIndustry(w http.ResponseWriter, r *http.Request) {
	v, err := s.industries.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Data: newIndustryResponse(v.Industry, v.ImageURL)})
}

func (s *Server) handleCreateLinkCategory(w http.ResponseWriter, r *http.Request) {
	var req createLinkCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.catalog.CreateCategory(r.Context(), req.Name, req.subCategories())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, envelope{Status: true, Message: "Link category created", Data: newLinkCategoryResponse(c)})
}

func (s *Server) handleListLinkCategories(w http.ResponseWriter, r *http.Request) {
	s.listLinkCategories(w, r, false)
}

func (s *Server) handleListAllLinkCategories(w http.ResponseWriter, r *http.Request) {
	s.listLinkCategories(w, r, true)
}

func (s *Server) listLinkCategories(w http.ResponseWriter, r *http.Request, all bool) {
	cats, err := s.catalog.ListCategories(r.Context(), all)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]linkCategoryResponse, 0, len(cats))
	for i := range cats {
		out = append(out, newLinkCategoryResponse(&cats[i]))
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Data: out})
}

type replaceFunc func(ctx context.Context, id string, p *blobstore.Payload) (*saga.Result, error)

type clearFunc func(ctx context.Context, id string) (*saga.Result, error)

func (s *Server) replaceSingle(w http.ResponseWriter, r *http.Request, field, message string, op replaceFunc) {
	p, err := singleUpload(r, field, s.opts.MaxUploadBytes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := op(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Message: message, Data: newFileResponse(res)})
}

func (s *Server) clearSingle(w http.ResponseWriter, r *http.Request, message string, op clearFunc) {
	res, err := op(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Message: message, Data: newFileResponse(res)})
}

func (s *Server) handleReplaceProfileImage(w http.ResponseWriter, r *http.Request) {
	s.replaceSingle(w, r, fieldProfileImage, "Profile image updated", s.profiles.ReplaceProfileImage)
}

func (s *Server) handleClearProfileImage(w http.ResponseWriter, r *http.Request) {
	s.clearSingle(w, r, "Profile image removed", s.profiles.ClearProfileImage)
}

func (s *Server) handleReplaceCompanyLogo(w http.ResponseWriter, r *http.Request) {
	s.replaceSingle(w, r, fieldCompanyLogo, "Company logo updated", s.profiles.ReplaceCompanyLogo)
}

func (s *Server) handleClearCompanyLogo(w http.ResponseWriter, r *http.Request) {
	s.clearSingle(w, r, "Company logo removed", s.profiles.ClearCompanyLogo)
}

func (s *Server) handleReplaceIndustryImage(w http.ResponseWriter, r *http.Request) {
	s.replaceSingle(w, r, fieldIndustryImage, "Industry image updated", s.industries.ReplaceImage)
}

func (s *Server) handleClearIndustryImage(w http.ResponseWriter, r *http.Request) {
	s.clearSingle(w, r, "Industry image removed", s.industries.ClearImage)
}

func (s *Server) handleReplaceBusinessImages(w http.ResponseWriter, r *http.Request) {
	items, err := galleryItems(r, fieldBusinessImages, s.opts.MaxUploadBytes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.profiles.ReplaceBusinessImages(r.Context(), r.PathValue("id"), items)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: true, Message: "Business images updated", Data: newFileResponse(res)})
}
