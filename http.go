package jackson

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-jackson/middleware/csrf"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

func (s *ShellController) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	s.Logger.Error(
		"Shell error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	code := richErr.Code
	if code == 0 {
		code = errors.CodeInternal
	}

	return c.Status(code).Render("errors/500", MergeTemplateData(
		s.Navbar, s.authContext(c).State(), c.Path(), router.ViewContext{
			"title":     "Error",
			"error":     richErr,
			ViewKeyCSRF: csrf.TokenFromContext(c),
		},
	))
}
