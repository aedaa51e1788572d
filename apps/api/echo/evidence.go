package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/evidence"
)

type evidenceApi struct {
	deps ServerDeps
}

func registerEvidenceAPI(g *echo.Group, jwt, admin echo.MiddlewareFunc, deps ServerDeps) {
	api := evidenceApi{deps: deps}

	eg := g.Group("/evidencias", jwt)
	eg.POST("", api.upload, areaUserMiddleware())
	eg.GET("", api.query)
	eg.GET("/:id/descarga", api.download)
	eg.PUT("/:id/calificar", api.grade, admin)

	sg := g.Group("/envios", jwt)
	sg.POST("", api.submit, areaUserMiddleware())
	sg.GET("", api.getSubmission, areaUserMiddleware())
	sg.GET("/eliminable", api.canDelete, areaUserMiddleware())
	sg.DELETE("", api.deleteSubmission, areaUserMiddleware())
	sg.GET("/revision", api.queryForReview, admin)
	sg.GET("/:id/evidencias", api.queryByEnvio, admin)
}

// Handlers

// upload receives a multipart form with the file under `archivo` plus the
// goal metadata fields.
func (api *evidenceApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	trimestre, _ := strconv.Atoi(ctx.FormValue("trimestre"))
	data := evidence.Upload{
		MetaID:      ctx.FormValue("meta_id"),
		Trimestre:   trimestre,
		Descripcion: ctx.FormValue("descripcion"),
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	fh, err := ctx.FormFile("archivo")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "archivo", Error: "archivo requerido"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer src.Close()

	ev, err := api.deps.EvidenceSvc.Upload(ctx.Request().Context(), usr, data, fh.Filename, fh.Size, src)
	if err != nil {
		switch errors.Cause(err) {
		case evidence.ErrNotOwner:
			return errHttpForbidden
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, ev)
}

// query lists the caller's evidence for a quarter. Admins may inspect any
// user via `usuario_id`.
func (api *evidenceApi) query(ctx echo.Context) error {
	n, err := bindTrimestreQuery(ctx)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	usuarioID := claims.Subject
	if id := ctx.QueryParam("usuario_id"); claims.IsAdmin && id != "" {
		usuarioID = id
	}

	evs, err := api.deps.EvidenceSvc.Query(ctx.Request().Context(), usuarioID, n, bindAnio(ctx))
	if err != nil {
		return errors.Wrap(err, "querying evidence")
	}
	if evs == nil {
		evs = []evidence.Evidence{}
	}
	return ctx.JSON(http.StatusOK, evs)
}

func (api *evidenceApi) download(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	url, err := api.deps.EvidenceSvc.DownloadURL(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == evidence.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "signing download URL")
	}
	return ctx.JSON(http.StatusOK, DownloadResponse{URL: url})
}

func (api *evidenceApi) grade(ctx echo.Context) error {
	var data evidence.Grade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Grade")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ev, err := api.deps.EvidenceSvc.Grade(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == evidence.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "grading evidence")
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *evidenceApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data evidence.SubmitQuarter
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitQuarter")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	sub, err := api.deps.EvidenceSvc.SubmitQuarter(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *evidenceApi) getSubmission(ctx echo.Context) error {
	n, err := bindTrimestreQuery(ctx)
	if err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.deps.EvidenceSvc.GetSubmission(ctx.Request().Context(), usr, n, bindAnio(ctx))
	if err != nil {
		if errors.Cause(err) == evidence.ErrSubmissionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *evidenceApi) canDelete(ctx echo.Context) error {
	n, err := bindTrimestreQuery(ctx)
	if err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ok, err := api.deps.EvidenceSvc.CanDeleteSubmission(ctx.Request().Context(), usr, n, bindAnio(ctx))
	if err != nil {
		return errors.Wrap(err, "checking submission deletability")
	}
	return ctx.JSON(http.StatusOK, CanDeleteResponse{Eliminable: ok})
}

func (api *evidenceApi) deleteSubmission(ctx echo.Context) error {
	n, err := bindTrimestreQuery(ctx)
	if err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.deps.EvidenceSvc.DeleteSubmission(ctx.Request().Context(), usr, n, bindAnio(ctx)); err != nil {
		if errors.Cause(err) == evidence.ErrSubmissionNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *evidenceApi) queryForReview(ctx echo.Context) error {
	n, err := bindTrimestreQuery(ctx)
	if err != nil {
		return err
	}
	areaID := ctx.QueryParam("area_id")
	if areaID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "area_id", Error: "requerido"})
	}

	subs, err := api.deps.EvidenceSvc.QueryForReview(ctx.Request().Context(), areaID, n, bindAnio(ctx))
	if err != nil {
		return errors.Wrap(err, "querying submissions for review")
	}
	if subs == nil {
		subs = []evidence.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *evidenceApi) queryByEnvio(ctx echo.Context) error {
	evs, err := api.deps.EvidenceSvc.QueryByEnvio(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submission evidence")
	}
	if evs == nil {
		evs = []evidence.Evidence{}
	}
	return ctx.JSON(http.StatusOK, evs)
}

type (
	DownloadResponse struct {
		URL string `json:"url"`
	}

	CanDeleteResponse struct {
		Eliminable bool `json:"eliminable"`
	}
)
