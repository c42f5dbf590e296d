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

// SendMessageInput defines the structure for sending a message.
type SendMessageInput struct {
	Content     string             `json:"content" example:"hello"`
	MessageType models.MessageType `json:"message_type" example:"text"`
	FileURL     string             `json:"file_url"`
	ReplyTo     string             `json:"reply_to"`
}

// EditMessageInput defines the structure for editing a message.
type EditMessageInput struct {
	Content string `json:"content" example:"hello, edited"`
}

// ReactionInput defines the structure for adding a reaction.
type ReactionInput struct {
	Emoji string `json:"emoji" example:"👍"`
}

// ChatMessageResponse is the public view of a message and its reactions.
type ChatMessageResponse struct {
	ID          string                    `json:"id"`
	RoomID      string                    `json:"room_id"`
	User        UserResponse              `json:"user"`
	Content     string                    `json:"content"`
	MessageType models.MessageType        `json:"message_type" example:"text"`
	FileURL     string                    `json:"file_url"`
	ReplyTo     *string                   `json:"reply_to"`
	IsEdited    bool                      `json:"is_edited"`
	CreatedAt   time.Time                 `json:"created_at"`
	Reactions   map[string][]UserResponse `json:"reactions"`
}

// MessageListResponse is one page of a room's history.
type MessageListResponse struct {
	Messages   []ChatMessageResponse `json:"messages"`
	Pagination PaginationMeta        `json:"pagination"`
}

// MessageEnvelope wraps a message with a status message.
type MessageEnvelope struct {
	Message     string              `json:"message" example:"Message sent successfully"`
	MessageData ChatMessageResponse `json:"message_data"`
}

// ReactionResponse is the public view of a reaction.
type ReactionResponse struct {
	ID    string       `json:"id"`
	Emoji string       `json:"emoji" example:"👍"`
	User  UserResponse `json:"user"`
}

// ReactionEnvelope wraps a reaction with a status message.
type ReactionEnvelope struct {
	Message  string           `json:"message" example:"Reaction added successfully"`
	Reaction ReactionResponse `json:"reaction"`
}

func newChatMessageResponse(m models.Message) ChatMessageResponse {
	return ChatMessageResponse{
		ID:          m.ID,
		RoomID:      m.RoomID,
		User:        newUserResponse(m.User),
		Content:     m.Content,
		MessageType: m.MessageType,
		FileURL:     m.FileURL,
		ReplyTo:     m.ReplyTo,
		IsEdited:    m.IsEdited,
		CreatedAt:   m.CreatedAt,
		Reactions:   map[string][]UserResponse{},
	}
}

// endregion

// region --- Message Handlers ---

// ListMessages godoc
// @Summary      List room messages
// @Description  Returns one page of messages, newest first, each with its reactions grouped by emoji.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id        path   string  true   "Room ID"
// @Param        page      query  int     false  "Page number" default(1)
// @Param        per_page  query  int     false  "Items per page" default(50)
// @Success      200  {object}  MessageListResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /rooms/{id}/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	page, perPage := pageParams(c)

	views, pagination, err := h.messages.List(c.Request.Context(), c.Param("id"), auth.UserID(c), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]ChatMessageResponse, len(views))
	for i, v := range views {
		out[i] = newChatMessageResponse(v.Message)
		for emoji, users := range v.Reactions {
			list := make([]UserResponse, len(users))
			for j, u := range users {
				list[j] = newUserResponse(u)
			}
			out[i].Reactions[emoji] = list
		}
	}
	c.JSON(http.StatusOK, MessageListResponse{Messages: out, Pagination: newPaginationMeta(pagination)})
}

// SendMessage godoc
// @Summary      Send a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  string            true  "Room ID"
// @Param        input  body  SendMessageInput  true  "Message"
// @Success      201  {object}  MessageEnvelope
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /rooms/{id}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var input SendMessageInput
	if !bindJSON(c, &input, false) {
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), c.Param("id"), auth.UserID(c), service.SendInput{
		Content:     input.Content,
		MessageType: input.MessageType,
		FileURL:     input.FileURL,
		ReplyTo:     input.ReplyTo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MessageEnvelope{Message: "Message sent successfully", MessageData: newChatMessageResponse(*msg)})
}

// EditMessage godoc
// @Summary      Edit a message
// @Description  Only the author may edit.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  string            true  "Message ID"
// @Param        input  body  EditMessageInput  true  "New content"
// @Success      200  {object}  MessageEnvelope
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /messages/{id} [put]
func (h *Handler) EditMessage(c *gin.Context) {
	var input EditMessageInput
	if !bindJSON(c, &input, false) {
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), c.Param("id"), auth.UserID(c), input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageEnvelope{Message: "Message updated successfully", MessageData: newChatMessageResponse(*msg)})
}

// DeleteMessage godoc
// @Summary      Delete a message
// @Description  Deletes the message and every reply below it. Allowed for the author and room admins or owners.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "Message ID"
// @Success      200  {object}  MessageResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /messages/{id} [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.messages.Delete(c.Request.Context(), c.Param("id"), auth.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Message deleted successfully"})
}

// endregion

// region --- Reaction Handlers ---

// AddReaction godoc
// @Summary      React to a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  string         true  "Message ID"
// @Param        input  body  ReactionInput  true  "Emoji"
// @Success      200  {object}  ReactionEnvelope
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /messages/{id}/reactions [post]
func (h *Handler) AddReaction(c *gin.Context) {
	var input ReactionInput
	if !bindJSON(c, &input, false) {
		return
	}

	r, err := h.messages.AddReaction(c.Request.Context(), c.Param("id"), auth.UserID(c), input.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReactionEnvelope{
		Message:  "Reaction added successfully",
		Reaction: ReactionResponse{ID: r.ID, Emoji: r.Emoji, User: newUserResponse(r.User)},
	})
}

// RemoveReaction godoc
// @Summary      Remove a reaction
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  string         true  "Message ID"
// @Param        input  body  ReactionInput  true  "Emoji"
// @Success      200  {object}  MessageResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /messages/{id}/reactions [delete]
func (h *Handler) RemoveReaction(c *gin.Context) {
	var input ReactionInput
	if !bindJSON(c, &input, false) {
		return
	}

	if err := h.messages.RemoveReaction(c.Request.Context(), c.Param("id"), auth.UserID(c), input.Emoji); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Reaction removed successfully"})
}

// endregion
