package chathandler

import "chatroomgo/internal/http/middleware"

type SignUpBody struct {
	Username string `json:"username" form:"username" binding:"required,max=50" example:"alice"`
	Password string `json:"password" form:"password" binding:"required,max=72" example:"s3cret"`
} // @name SignUpRequest

// LoginBody binds from JSON or from an OAuth2 password form.
type LoginBody struct {
	Username string `json:"username" form:"username" binding:"required" example:"alice"`
	Password string `json:"password" form:"password" binding:"required" example:"s3cret"`
} // @name LoginRequest

type CreateRoomBody struct {
	Name string `json:"name" binding:"required,max=100" example:"general"`
} // @name CreateRoomRequest

type SendMessageBody struct {
	Content string `json:"content" binding:"required" example:"hello"`
} // @name SendMessageRequest

type PageQuery struct {
	Limit  int `form:"limit,default=50" binding:"gte=0,lte=200"`
	Offset int `form:"offset,default=0" binding:"gte=0"`
} // @name PageQuery

// ErrorResponse is shared with the auth middleware so every error body has
// one shape.
type ErrorResponse = middleware.ErrorResponse
