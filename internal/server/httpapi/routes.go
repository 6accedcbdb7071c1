package httpapi

import "net/http"

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	s.delivery.Register(mux)

	mux.HandleFunc("POST /admin/login", s.handleAdminLogin)

	mux.HandleFunc("POST /users", s.adminOnly(s.handleCreateUser))
	mux.HandleFunc("POST /users/{id}/token", s.adminOnly(s.handleUserToken))
	mux.HandleFunc("GET /users/{id}", s.ownerOrAdmin(s.handleGetProfile))
	mux.HandleFunc("GET /users/{id}/flags", s.ownerOrAdmin(s.handleGetFlags))
	mux.HandleFunc("PATCH /users/{id}/business-details", s.ownerOrAdmin(s.withUploadSlot(1, s.handleUpdateBusinessDetails)))
	mux.HandleFunc("PUT /users/{id}/industries", s.ownerOrAdmin(s.handleSetIndustries))
	mux.HandleFunc("PUT /users/{id}/links", s.ownerOrAdmin(s.handleSetLinks))

	mux.HandleFunc("PUT /users/{id}/profile-image", s.ownerOrAdmin(s.withUploadSlot(1, s.handleReplaceProfileImage)))
	mux.HandleFunc("DELETE /users/{id}/profile-image", s.ownerOrAdmin(s.handleClearProfileImage))
	mux.HandleFunc("PUT /users/{id}/company-logo", s.ownerOrAdmin(s.withUploadSlot(1, s.handleReplaceCompanyLogo)))
	mux.HandleFunc("DELETE /users/{id}/company-logo", s.ownerOrAdmin(s.handleClearCompanyLogo))
	mux.HandleFunc("PUT /users/{id}/business-images", s.ownerOrAdmin(s.withUploadSlot(maxGalleryItems, s.handleReplaceBusinessImages)))

	mux.HandleFunc("GET /industries", s.handleListIndustries)
	mux.HandleFunc("POST /industries", s.adminOnly(s.handleCreateIndustry))
	mux.HandleFunc("GET /industries/{id}", s.handleGetIndustry)
	mux.HandleFunc("PUT /industries/{id}/image", s.adminOnly(s.withUploadSlot(1, s.handleReplaceIndustryImage)))
	mux.HandleFunc("DELETE /industries/{id}/image", s.adminOnly(s.handleClearIndustryImage))


	mux.HandleFunc("GET /links", s.handleListLinkCategories)
	mux.HandleFunc("GET /admin/links", s.adminOnly(s.handleListAllLinkCategories))
	mux.HandleFunc("POST /links", s.adminOnly(s.handleCreateLinkCategory))

	return mux
}
