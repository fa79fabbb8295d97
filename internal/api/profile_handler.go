package api

import (
	"errors"
	"net/http"

	"ironlog/backend/internal/domain"
	"ironlog/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// ProfileHandler holds the profile service dependency.
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// ProfileRequest defines the whitelisted profile fields for create/update.
type ProfileRequest struct {
	Name             *string  `json:"name"`
	Weight           *float64 `json:"weight"`
	Gender           *string  `json:"gender"`
	Goal             *string  `json:"goal"`
	Age              *int     `json:"age"`
	Height           *float64 `json:"height"`
	ProfileCompleted *bool    `json:"profileCompleted"`
}

func (r ProfileRequest) toUpdate() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		Name:             r.Name,
		Weight:           r.Weight,
		Gender:           r.Gender,
		Goal:             r.Goal,
		Age:              r.Age,
		Height:           r.Height,
		ProfileCompleted: r.ProfileCompleted,
	}
}

// GetProfile returns the caller's profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	profile, err := h.profileService.GetProfile(c.Request.Context(), userSub)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			abortWithError(c, http.StatusNotFound, "Profile not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve profile.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// CreateProfile creates the caller's profile; one per user.
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	profile, err := h.profileService.CreateProfile(c.Request.Context(), userSub, req.toUpdate())
	if err != nil {
		if errors.Is(err, service.ErrProfileAlreadyExists) {
			abortWithError(c, http.StatusBadRequest, "Profile already exists")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to create profile.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": profile})
}

// UpdateProfile partially updates whitelisted fields.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	profile, err := h.profileService.UpdateProfile(c.Request.Context(), userSub, req.toUpdate())
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			abortWithError(c, http.StatusNotFound, "Profile not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to update profile.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// RecordLogin notes today as a login day for streak tracking.
func (h *ProfileHandler) RecordLogin(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	if err := h.profileService.RecordLogin(c.Request.Context(), userSub); err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			abortWithError(c, http.StatusNotFound, "Profile not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to record login.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login recorded"})
}
