package echoapi

import (
	"html/template"
	"io"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"qugrow/core"
)

// pageRenderer serves the three HTML shells. All dynamic content is loaded
// by the page scripts over the JSON API.
type pageRenderer struct {
	templates *template.Template
}

var _ echo.Renderer = (*pageRenderer)(nil)

func newPageRenderer(conf *core.Config) (*pageRenderer, error) {
	glob := filepath.Join(conf.WorkDir, "assets", "templates", "pages", "*.gohtml")
	templates, err := template.ParseGlob(glob)
	if err != nil {
		return nil, errors.Wrap(err, "parsing page templates")
	}
	return &pageRenderer{templates: templates}, nil
}

func (r *pageRenderer) Render(w io.Writer, name string, data interface{}, ctx echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type pageData struct {
	AppName string
}

func registerPages(app *echo.Echo, conf *core.Config) {
	data := pageData{AppName: conf.AppName}

	app.GET("/", func(ctx echo.Context) error {
		return ctx.Render(http.StatusOK, "landing.gohtml", data)
	})
	app.GET("/student", func(ctx echo.Context) error {
		return ctx.Render(http.StatusOK, "student.gohtml", data)
	})
	app.GET("/teacher", func(ctx echo.Context) error {
		return ctx.Render(http.StatusOK, "teacher.gohtml", data)
	})
	app.Static("/static", filepath.Join(conf.WorkDir, "assets", "static"))
}
