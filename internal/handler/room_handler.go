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

// RoomInput defines the structure for room creation.
type RoomInput struct {
	Name        string `json:"name" example:"Lounge"`
	Description string `json:"description" example:"General chatter"`
	IsPrivate   bool   `json:"is_private"`
	Password    string `json:"password"`
}

// JoinInput defines the structure for joining a room. Password is only read for private rooms.
type JoinInput struct {
	Password string `json:"password"`
}

// RoomResponse is the public view of a room.
type RoomResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" example:"Lounge"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"is_private"`
	HasPassword bool      `json:"has_password"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	MaxMembers  int       `json:"max_members" example:"100"`
	MemberCount int64     `json:"member_count" example:"1"`
}

// MemberResponse describes one member of a room.
type MemberResponse struct {
	User     UserResponse `json:"user"`
	Role     models.Role  `json:"role" example:"owner"`
	JoinedAt time.Time    `json:"joined_at"`
}

// RoomDetailResponse is a room together with its member list.
type RoomDetailResponse struct {
	RoomResponse
	Members  []MemberResponse `json:"members"`
	IsMember bool             `json:"is_member"`
}

// RoomListResponse lists the rooms visible to the caller.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// RoomEnvelope wraps a room with a status message.
type RoomEnvelope struct {
	Message string       `json:"message,omitempty"`
	Room    RoomResponse `json:"room"`
}

// RoomDetailEnvelope wraps a room detail.
type RoomDetailEnvelope struct {
	Room RoomDetailResponse `json:"room"`
}

// JoinResponse is returned by join and enter.
type JoinResponse struct {
	Message       string       `json:"message" example:"Joined room successfully"`
	Room          RoomResponse `json:"room"`
	AlreadyMember bool         `json:"already_member"`
}

// MembershipResponse reports whether the caller belongs to a room.
type MembershipResponse struct {
	IsMember bool         `json:"is_member"`
	Role     *models.Role `json:"role"`
}

func newRoomResponse(r models.Room, memberCount int64) RoomResponse {
	return RoomResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsPrivate:   r.IsPrivate,
		HasPassword: r.HasPassword(),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		MaxMembers:  r.MaxMembers,
		MemberCount: memberCount,
	}
}

// endregion

// CreateRoom godoc
// @Summary      Create a new room
// @Description  Creates a room and makes the creator its owner.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body RoomInput true "Room Info"
// @Success      201  {object}  RoomEnvelope
// @Failure      400  {object}  ErrorResponse "Invalid input or room limit reached"
// @Failure      401  {object}  ErrorResponse
// @Router       /rooms [post]
func (h *Handler) CreateRoom(c *gin.Context) {
	var input RoomInput
	if !bindJSON(c, &input, false) {
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), auth.UserID(c), service.CreateRoomInput{
		Name:        input.Name,
		Description: input.Description,
		IsPrivate:   input.IsPrivate,
		Password:    input.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RoomEnvelope{
		Message: "Room created successfully",
		Room:    newRoomResponse(room.Room, room.MemberCount),
	})
}

// ListRooms godoc
// @Summary      List rooms
// @Description  Lists public rooms and the private rooms the user belongs to, newest first.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} RoomListResponse
// @Failure      401 {object} ErrorResponse
// @Router       /rooms [get]
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RoomResponse, len(rooms))
	for i, r := range rooms {
		out[i] = newRoomResponse(r.Room, r.MemberCount)
	}
	c.JSON(http.StatusOK, RoomListResponse{Rooms: out})
}

// GetRoom godoc
// @Summary      Get room by ID
// @Description  Returns the room with its members. Private rooms are visible to members only.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Room ID"
// @Success      200  {object}  RoomDetailEnvelope
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{id} [get]
func (h *Handler) GetRoom(c *gin.Context) {
	view, err := h.rooms.GetRoom(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	members := make([]MemberResponse, len(view.Members))
	for i, m := range view.Members {
		members[i] = MemberResponse{
			User:     newUserResponse(m.User),
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
	}
	c.JSON(http.StatusOK, RoomDetailEnvelope{Room: RoomDetailResponse{
		RoomResponse: newRoomResponse(view.Room, view.MemberCount),
		Members:      members,
		IsMember:     view.IsMember,
	}})
}

// JoinRoom godoc
// @Summary      Join a room
// @Description  Adds the user to the room. Joining a room twice is not an error.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string     true   "Room ID"
// @Param        input body  JoinInput  false  "Room password"
// @Success      200  {object}  JoinResponse
// @Failure      400  {object}  ErrorResponse "Room is full"
// @Failure      401  {object}  ErrorResponse "Invalid password"
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /rooms/{id}/join [post]
func (h *Handler) JoinRoom(c *gin.Context) {
	var input JoinInput
	if !bindJSON(c, &input, true) {
		return
	}

	res, err := h.rooms.Join(c.Request.Context(), c.Param("id"), auth.UserID(c), input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "Joined room successfully"
	if res.AlreadyMember {
		msg = "Already a member"
	}
	count, err := h.rooms.MemberCount(c.Request.Context(), res.Room.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, JoinResponse{
		Message:       msg,
		Room:          newRoomResponse(res.Room, count),
		AlreadyMember: res.AlreadyMember,
	})
}

// EnterRoom godoc
// @Summary      Enter a room
// @Description  Checks that the user is a member before opening the room. Changes nothing.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Room ID"
// @Success      200  {object}  RoomEnvelope
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{id}/enter [post]
func (h *Handler) EnterRoom(c *gin.Context) {
	room, err := h.rooms.Enter(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := h.rooms.MemberCount(c.Request.Context(), room.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RoomEnvelope{Message: "Entered room successfully", Room: newRoomResponse(*room, count)})
}

// LeaveRoom godoc
// @Summary      Leave a room
// @Description  Removes the user from the room. A leaving owner hands the room to the longest-standing member.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Room ID"
// @Success      200  {object}  MessageResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{id}/leave [post]
func (h *Handler) LeaveRoom(c *gin.Context) {
	if err := h.rooms.Leave(c.Request.Context(), c.Param("id"), auth.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Left room successfully"})
}

// CheckMembership godoc
// @Summary      Check membership
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Room ID"
// @Success      200  {object}  MembershipResponse
// @Router       /rooms/{id}/membership [get]
func (h *Handler) CheckMembership(c *gin.Context) {
	isMember, role, err := h.rooms.CheckMembership(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MembershipResponse{IsMember: isMember, Role: role})
}
