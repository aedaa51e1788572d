package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/quarter"
	"github.com/rumboapp/rumbo/core/user"
)

type quarterApi struct {
	deps ServerDeps
}

func registerQuarterAPI(g *echo.Group, jwt, admin echo.MiddlewareFunc, deps ServerDeps) {
	api := quarterApi{deps: deps}

	tg := g.Group("/trimestres", jwt)
	tg.GET("", api.query)
	tg.PUT("/:n/habilitar", api.enable, admin)
	tg.DELETE("/:n/habilitar", api.disable, admin)
	tg.POST("/:n/participacion", api.setParticipation, areaUserMiddleware())
	tg.GET("/:n/participacion", api.getParticipation)
	tg.POST("/:n/metas", api.assignGoal, admin)
	tg.GET("/:n/metas", api.queryGoals)
}

// Handlers

// query lists the year's quarters with their computed availability.
func (api *quarterApi) query(ctx echo.Context) error {
	views, err := api.deps.QuarterSvc.QueryViews(ctx.Request().Context(), bindAnio(ctx), time.Now())
	if err != nil {
		return errors.Wrap(err, "querying quarters")
	}
	if views == nil {
		views = []quarter.ConfigView{}
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *quarterApi) enable(ctx echo.Context) error {
	n, err := bindTrimestre(ctx)
	if err != nil {
		return err
	}

	var data quarter.EnableManually
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnableManually")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	cfg, err := api.deps.QuarterSvc.EnableManually(ctx.Request().Context(), n, bindAnio(ctx), data)
	if err != nil {
		if errors.Cause(err) == quarter.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "enabling quarter")
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *quarterApi) disable(ctx echo.Context) error {
	n, err := bindTrimestre(ctx)
	if err != nil {
		return err
	}

	cfg, err := api.deps.QuarterSvc.DisableManual(ctx.Request().Context(), n, bindAnio(ctx))
	if err != nil {
		if errors.Cause(err) == quarter.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "disabling quarter")
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *quarterApi) setParticipation(ctx echo.Context) error {
	n, err := bindTrimestre(ctx)
	if err != nil {
		return err
	}

	var data quarter.SetParticipation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetParticipation")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err := api.deps.QuarterSvc.SetParticipation(ctx.Request().Context(), usr, n, bindAnio(ctx), *data.Participa)
	if err != nil {
		if errors.Cause(err) == quarter.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting participation")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *quarterApi) getParticipation(ctx echo.Context) error {
	n, err := bindTrimestre(ctx)
	if err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err := api.deps.QuarterSvc.GetParticipation(ctx.Request().Context(), usr.ID, n, bindAnio(ctx))
	if err != nil {
		if errors.Cause(err) == quarter.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting participation")
	}
	return ctx.JSON(http.StatusOK, p)
}

// assignGoal writes a user's goal text for the quarter. The target user's
// area scopes the assignment.
func (api *quarterApi) assignGoal(ctx echo.Context) error {
	n, err := bindTrimestre(ctx)
	if err != nil {
		return err
	}

	var data quarter.AssignGoal
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignGoal")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	target, err := api.deps.UserSvc.GetByID(ctx.Request().Context(), data.UsuarioID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "usuario_id", Error: user.ErrNotFound.Error()})
		}
		return errors.Wrap(err, "finding target user")
	}

	ga, err := api.deps.QuarterSvc.AssignGoal(ctx.Request().Context(), target.AreaID.String, n, bindAnio(ctx), data)
	if err != nil {
		if errors.Cause(err) == quarter.ErrUserNotEligible {
			return core.NewValidationError(nil, core.FieldError{Field: "usuario_id", Error: quarter.ErrUserNotEligible.Error()})
		}
		return errors.Wrap(err, "assigning goal")
	}
	return ctx.JSON(http.StatusOK, ga)
}

// queryGoals returns the caller's own assignment, or, for admins, all of an
// area's assignments when `area_id` is given.
func (api *quarterApi) queryGoals(ctx echo.Context) error {
	n, err := bindTrimestre(ctx)
	if err != nil {
		return err
	}
	anio := bindAnio(ctx)

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if areaID := ctx.QueryParam("area_id"); claims.IsAdmin && areaID != "" {
		gas, err := api.deps.QuarterSvc.QueryGoalAssignments(ctx.Request().Context(), areaID, n, anio)
		if err != nil {
			return errors.Wrap(err, "querying goal assignments")
		}
		if gas == nil {
			gas = []quarter.GoalAssignment{}
		}
		return ctx.JSON(http.StatusOK, gas)
	}

	ga, err := api.deps.QuarterSvc.GetGoalAssignment(ctx.Request().Context(), claims.Subject, n, anio)
	if err != nil {
		if errors.Cause(err) == quarter.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting goal assignment")
	}
	return ctx.JSON(http.StatusOK, []quarter.GoalAssignment{ga})
}

// bindTrimestre parses the `:n` path param as a quarter number.
func bindTrimestre(ctx echo.Context) (int, error) {
	return checkTrimestre(ctx.Param("n"))
}

// bindTrimestreQuery parses the `trimestre` query param as a quarter number.
func bindTrimestreQuery(ctx echo.Context) (int, error) {
	return checkTrimestre(ctx.QueryParam("trimestre"))
}

func checkTrimestre(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 4 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "trimestre", Error: "debe estar entre 1 y 4"})
	}
	return n, nil
}

// bindAnio reads the `anio` query param, defaulting to the current year.
func bindAnio(ctx echo.Context) int {
	if anio, err := strconv.Atoi(ctx.QueryParam("anio")); err == nil && anio > 0 {
		return anio
	}
	return time.Now().UTC().Year()
}
