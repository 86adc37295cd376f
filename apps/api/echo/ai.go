package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"qugrow/core"
)

type aiApi struct {
	svc core.AIService
}

func registerAIAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc core.AIService) {
	api := aiApi{svc: svc}

	ag := g.Group("/ai", jwt)
	ag.POST("/chat", api.chat)
	ag.POST("/analyze-question", api.analyzeQuestion)
}

type chatRequest struct {
	Message string `json:"message"`
}

type analyzeRequest struct {
	Question string `json:"question"`
}

func (api *aiApi) chat(ctx echo.Context) error {
	var data chatRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to chatRequest")
	}
	data.Message = core.CleanString(data.Message)
	if data.Message == "" {
		return core.NewValidationError(errors.New("message is required"))
	}

	response := api.svc.Chat(ctx.Request().Context(), data.Message)
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "response": response})
}

func (api *aiApi) analyzeQuestion(ctx echo.Context) error {
	var data analyzeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to analyzeRequest")
	}
	data.Question = core.CleanString(data.Question)
	if data.Question == "" {
		return core.NewValidationError(errors.New("question is required"))
	}

	analysis := api.svc.AnalyzeQuestion(ctx.Request().Context(), data.Question)
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "analysis": analysis})
}
