package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"qugrow/core"
	"qugrow/core/user"
)

type userApi struct {
	svc        *user.Service
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *user.Service,
	conf *core.Config,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := userApi{
		svc:        svc,
		conf:       conf,
		validate:   validate,
		translator: translator,
	}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/logout", api.logout)
	ag.POST("/register-teacher", api.registerTeacher)
	ag.POST("/forgot-password", api.forgotPassword)
	ag.POST("/reset-password", api.confirmPasswordReset)

	// teacher-only endpoints
	tg := g.Group("/teacher", jwt, teacherMiddleware())
	tg.POST("/create-student", api.createStudent)
	tg.POST("/bulk-create-students", api.bulkCreateStudents)
	tg.DELETE("/delete-student/:student_id", api.deleteStudent)
	tg.GET("/students/:class_name", api.students)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, claims, err := authenticate(ctx, data.Username, data.Password, api.svc, api.conf)
	if err != nil {
		return err
	}
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	setTokenCookie(ctx, api.conf, token)

	return ctx.JSON(http.StatusOK, LoginResponse{Success: true, Token: token, User: usr})
}

func (api *userApi) logout(ctx echo.Context) error {
	clearTokenCookie(ctx)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (api *userApi) registerTeacher(ctx echo.Context) error {
	var data user.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.RegisterTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering teacher")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "user": usr})
}

func (api *userApi) forgotPassword(ctx echo.Context) error {
	var data user.ForgotPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ForgotPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Password has been reset with the new password."})
}

func (api *userApi) createStudent(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.NewStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err = data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.CreateStudent(ctx.Request().Context(), teacher, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "student": usr})
}

func (api *userApi) bulkCreateStudents(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data BulkCreateRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkCreateRequest")
	}
	if len(data.Students) == 0 {
		return core.NewValidationError(errors.New("no students provided"))
	}

	res := api.svc.BulkCreateStudents(ctx.Request().Context(), teacher, data.Students)
	return ctx.JSON(http.StatusOK, echo.Map{
		"success":       true,
		"created_count": res.CreatedCount,
		"total_count":   res.TotalCount,
		"results":       res.Results,
		"errors":        res.Errors,
	})
}

func (api *userApi) deleteStudent(ctx echo.Context) error {
	teacher, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	id, err := intParam(ctx, "student_id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), teacher, id); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Student account deleted."})
}

func (api *userApi) students(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// the roster is always the caller's own class
	if ctx.Param("class_name") != claims.ClassName {
		return errHttpForbidden
	}

	students, err := api.svc.Students(ctx.Request().Context(), claims.ClassName)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "students": students})
}
