package handler

import (
	"net/http"
	"time"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// RegisterInput defines the structure for user registration.
type RegisterInput struct {
	Username    string `json:"username" example:"alice"`
	Email       string `json:"email" example:"alice@example.com"`
	Password    string `json:"password" example:"secret123"`
	DisplayName string `json:"display_name" example:"Alice"`
}

// LoginInput defines the structure for user login. Username may also be an email.
type LoginInput struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"secret123"`
}

// ProfileInput defines the editable profile fields. Blank fields are left unchanged.
type ProfileInput struct {
	DisplayName string `json:"display_name" example:"Alice A."`
	AvatarURL   string `json:"avatar_url" example:"https://cdn.example.com/alice.png"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID          string    `json:"id" example:"5b0c2f6e-2d7c-4d0e-9a53-0e7a3c1e9f10"`
	Username    string    `json:"username" example:"alice"`
	DisplayName string    `json:"display_name" example:"Alice"`
	AvatarURL   string    `json:"avatar_url"`
	IsOnline    bool      `json:"is_online"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message     string       `json:"message" example:"Login successful"`
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
}

// ProfileResponse wraps the authenticated user's profile.
type ProfileResponse struct {
	Message string       `json:"message,omitempty"`
	User    UserResponse `json:"user"`
}

func newUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
		CreatedAt:   u.CreatedAt,
	}
}

// endregion

// region --- Auth Handlers ---

// Register godoc
// @Summary      Register a new user
// @Description  Creates a new user and returns an access token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var input RegisterInput
	if !bindJSON(c, &input, false) {
		return
	}

	res, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Username:    input.Username,
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Message:     "User created successfully",
		User:        newUserResponse(res.User),
		AccessToken: res.Token,
	})
}

// Login godoc
// @Summary      Log in a user
// @Description  Authenticates with username or email. Repeated failures from the same IP block the pair for a while.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      429  {object}  ErrorResponse "Too many attempts"
// @Failure      500  {object}  ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if !bindJSON(c, &input, false) {
		return
	}

	res, err := h.users.Login(c.Request.Context(), c.ClientIP(), input.Username, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Message:     "Login successful",
		User:        newUserResponse(res.User),
		AccessToken: res.Token,
	})
}

// Logout godoc
// @Summary      Log out
// @Description  Marks the current user offline.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  MessageResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), auth.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// endregion

// region --- Profile Handlers ---

// GetProfile godoc
// @Summary      Get current user's profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ProfileResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /auth/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{User: newUserResponse(*user)})
}

// UpdateProfile godoc
// @Summary      Update current user's profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body ProfileInput true "Profile fields"
// @Success      200  {object}  ProfileResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var input ProfileInput
	if !bindJSON(c, &input, false) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), auth.UserID(c), input.DisplayName, input.AvatarURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{Message: "Profile updated successfully", User: newUserResponse(*user)})
}

// endregion
