package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"qugrow/core/question"
)

type questionApi struct {
	svc      *question.Service
	validate *validator.Validate
}

func registerQuestionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *question.Service,
	validate *validator.Validate,
) {
	api := questionApi{svc: svc, validate: validate}

	qg := g.Group("/questions", jwt)
	qg.GET("", api.recent)
	qg.GET("/date/:date", api.byDate)
	qg.GET("/today/:class_name", api.today)
	qg.GET("/top-weekly", api.topWeekly)
	qg.POST("", api.create)
	qg.PUT("/:question_id", api.update)
	qg.POST("/:id/like", api.toggleLike)
	qg.GET("/:id/comments", api.comments)
	qg.POST("/:id/comments", api.addComment)

	// teacher dashboard aggregates
	tg := g.Group("/teacher", jwt, teacherMiddleware())
	tg.GET("/stats/:class_name", api.classStats)

	// personal stats and drill-downs
	sg := g.Group("/student", jwt)
	sg.GET("/stats/:user_id", api.studentStats)
	sg.GET("/details/questions/:user_id", api.studentQuestions)
	sg.GET("/details/week-questions/:user_id", api.studentWeekQuestions)
	sg.GET("/details/comments/:user_id", api.studentComments)
}

// Handlers

func (api *questionApi) recent(ctx echo.Context) error {
	var paging Paging
	paging.Bind(ctx)

	qs, err := api.svc.Recent(ctx.Request().Context(), paging.Page, paging.Limit)
	if err != nil {
		return errors.Wrap(err, "querying recent questions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "questions": qs})
}

func (api *questionApi) byDate(ctx echo.Context) error {
	qs, err := api.svc.ByDate(ctx.Request().Context(), ctx.Param("date"), ctx.QueryParam("class_name"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "questions": qs})
}

func (api *questionApi) today(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// class affiliation comes from the token, never the URL
	if ctx.Param("class_name") != claims.ClassName {
		return errHttpForbidden
	}

	qs, err := api.svc.Today(ctx.Request().Context(), claims.ClassName)
	if err != nil {
		return errors.Wrap(err, "querying today questions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "questions": qs})
}

func (api *questionApi) topWeekly(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	qs, err := api.svc.TopWeekly(ctx.Request().Context(), claims.ClassName)
	if err != nil {
		return errors.Wrap(err, "querying top weekly questions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "questions": qs})
}

func (api *questionApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data question.NewQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Create(ctx.Request().Context(), claims.UserID(), data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "question": q})
}

func (api *questionApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	id, err := intParam(ctx, "question_id")
	if err != nil {
		return err
	}

	var data question.UpdateQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Update(ctx.Request().Context(), claims.UserID(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "question": q})
}

func (api *questionApi) toggleLike(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	action, err := api.svc.ToggleLike(ctx.Request().Context(), id, claims.UserID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "action": action})
}

func (api *questionApi) comments(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	comments, err := api.svc.Comments(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "comments": comments})
}

func (api *questionApi) addComment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data question.NewComment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	comment, err := api.svc.AddComment(ctx.Request().Context(), id, claims.UserID(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "comment": comment})
}

func (api *questionApi) classStats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if ctx.Param("class_name") != claims.ClassName {
		return errHttpForbidden
	}

	stats, err := api.svc.ClassStats(ctx.Request().Context(), claims.ClassName)
	if err != nil {
		return errors.Wrap(err, "querying class stats")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "stats": stats})
}

// canViewStudent allows teachers and the student themselves.
func canViewStudent(claims Claims, userID int) bool {
	return claims.IsTeacher() || claims.UserID() == userID
}

func (api *questionApi) studentStats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	userID, err := intParam(ctx, "user_id")
	if err != nil {
		return err
	}
	if !canViewStudent(claims, userID) {
		return errHttpForbidden
	}

	stats, err := api.svc.StudentStats(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying student stats")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "stats": stats})
}

func (api *questionApi) studentQuestions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	userID, err := intParam(ctx, "user_id")
	if err != nil {
		return err
	}
	if !canViewStudent(claims, userID) {
		return errHttpForbidden
	}

	qs, err := api.svc.ByUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying student questions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "questions": qs})
}

func (api *questionApi) studentWeekQuestions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	userID, err := intParam(ctx, "user_id")
	if err != nil {
		return err
	}
	if !canViewStudent(claims, userID) {
		return errHttpForbidden
	}

	qs, err := api.svc.WeekByUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying week questions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "questions": qs})
}

func (api *questionApi) studentComments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	userID, err := intParam(ctx, "user_id")
	if err != nil {
		return err
	}
	if !canViewStudent(claims, userID) {
		return errHttpForbidden
	}

	comments, err := api.svc.ReceivedComments(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying received comments")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "comments": comments})
}
