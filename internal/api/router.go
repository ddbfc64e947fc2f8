package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tractor-service/internal/middleware"
	"tractor-service/internal/service"
	"tractor-service/internal/ws"
	appErr "tractor-service/pkg/errors"
	"tractor-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Room, services.Game)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/tractor/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
		}

		userGroup := v1.Group("/user")
		userGroup.Use(middleware.AuthRequired())
		{
			userGroup.GET("/profile", handler.GetProfile)
			userGroup.PUT("/profile", handler.UpdateProfile)
		}

		roomGroup := v1.Group("/rooms")
		roomGroup.Use(middleware.AuthRequired())
		{
			roomGroup.POST("", handler.CreateRoom)
			roomGroup.GET("", handler.ListRooms)
			roomGroup.GET("/:id", handler.GetRoom)
			roomGroup.GET("/code/:code", handler.GetRoomByCode)
			roomGroup.POST("/:id/join", handler.JoinRoom)
			roomGroup.POST("/:id/leave", handler.LeaveRoom)
		}
	}

	r.GET("/ws/room/:roomId", wsHandler.HandleRoomWS)
}

type registerBody struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6,max=64"`
	Nickname string `json:"nickname"`
}

type loginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileBody struct {
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type createRoomBody struct {
	Name string `json:"name" binding:"required,max=64"`
}

type joinRoomBody struct {
	SeatIndex int `json:"seatIndex" binding:"min=0,max=5"`
}

func (h *Handler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.services.Auth.Register(c.Request.Context(), strings.TrimSpace(body.Username), body.Password, strings.TrimSpace(body.Nickname))
	if err != nil {
		if errors.Is(err, appErr.ErrUserExists) {
			response.Error(c, http.StatusConflict, "username already taken")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to register")
		return
	}
	response.Success(c, gin.H{
		"id":       strconv.FormatInt(user.ID, 10),
		"username": user.Username,
		"nickname": user.Nickname,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Auth.Login(c.Request.Context(), strings.TrimSpace(body.Username), body.Password)
	if err != nil {
		if errors.Is(err, appErr.ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, "invalid username or password")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to login")
		return
	}
	response.Success(c, gin.H{
		"token": result.Token,
		"user": gin.H{
			"id":       strconv.FormatInt(result.User.ID, 10),
			"username": result.User.Username,
			"nickname": result.User.Nickname,
		},
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserIDKey)
	profile, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, appErr.ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, "user not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load profile")
		return
	}
	response.Success(c, profile)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	userID := c.GetInt64(middleware.ContextUserIDKey)
	profile, err := h.services.User.UpdateProfile(c.Request.Context(), userID, strings.TrimSpace(body.Nickname), strings.TrimSpace(body.Avatar))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to update profile")
		return
	}
	response.Success(c, profile)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var body createRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.services.Room.Create(c.Request.Context(), strings.TrimSpace(body.Name))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to create room")
		return
	}
	response.Success(c, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.services.Room.List(c.Request.Context(), strings.TrimSpace(c.Query("status")))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	response.Success(c, gin.H{"rooms": rooms})
}

func (h *Handler) GetRoom(c *gin.Context) {
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	room, err := h.services.Room.Get(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, appErr.ErrRoomNotFound) {
			response.Error(c, http.StatusNotFound, "room not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load room")
		return
	}
	response.Success(c, room)
}

func (h *Handler) GetRoomByCode(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		response.Error(c, http.StatusBadRequest, "missing room code")
		return
	}
	room, err := h.services.Room.GetByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, appErr.ErrRoomNotFound) {
			response.Error(c, http.StatusNotFound, "room not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load room")
		return
	}
	response.Success(c, room)
}

func (h *Handler) JoinRoom(c *gin.Context) {
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body joinRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	userID := c.GetInt64(middleware.ContextUserIDKey)
	profile, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load profile")
		return
	}

	result, err := h.services.Room.Join(c.Request.Context(), roomID, userID, body.SeatIndex, profile.Nickname)
	if err != nil {
		switch {
		case errors.Is(err, appErr.ErrRoomNotFound):
			response.Error(c, http.StatusNotFound, "room not found")
		case errors.Is(err, appErr.ErrRoomNotWaiting):
			response.Error(c, http.StatusConflict, "room already started")
		case errors.Is(err, appErr.ErrRoomFull):
			response.Error(c, http.StatusConflict, "room is full")
		case errors.Is(err, appErr.ErrSeatTaken):
			response.Error(c, http.StatusConflict, "seat not available")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to join room")
		}
		return
	}
	response.Success(c, result)
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID := c.GetInt64(middleware.ContextUserIDKey)
	if err := h.services.Room.Leave(c.Request.Context(), roomID, userID); err != nil {
		switch {
		case errors.Is(err, appErr.ErrRoomNotFound):
			response.Error(c, http.StatusNotFound, "room not found")
		case errors.Is(err, appErr.ErrRoomNotWaiting):
			response.Error(c, http.StatusConflict, "room already started")
		case errors.Is(err, appErr.ErrRoomAccessDenied):
			response.Error(c, http.StatusForbidden, "not seated in this room")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to leave room")
		}
		return
	}
	response.Success(c, gin.H{"left": true})
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
