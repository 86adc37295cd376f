package echoapi

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"qugrow/core"
	"qugrow/core/user"
)

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Success bool      `json:"success"`
		Token   string    `json:"token"`
		User    user.User `json:"user"`
	}

	SuccessResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}

	BulkCreateRequest struct {
		Students []user.BulkStudent `json:"students"`
	}

	// Paging binds ?page=&limit= with sane fallbacks.
	Paging struct {
		Page  int
		Limit int
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (p *Paging) Bind(ctx echo.Context) {
	p.Page, p.Limit = 1, 10
	if v, err := strconv.Atoi(ctx.QueryParam("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && v > 0 {
		p.Limit = v
	}
}

func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}
