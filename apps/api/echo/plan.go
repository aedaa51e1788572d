package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/plan"
)

type planApi struct {
	deps ServerDeps
}

func registerPlanAPI(g *echo.Group, jwt, admin echo.MiddlewareFunc, deps ServerDeps) {
	api := planApi{deps: deps}

	ag := g.Group("/areas", jwt)
	ag.GET("", api.queryAreas)
	ag.POST("", api.createArea, admin)
	ag.POST("/:id/ejes", api.assignEje, admin)
	ag.GET("/:id/plan", api.queryRows)

	eg := g.Group("/ejes", jwt)
	eg.GET("", api.queryEjes)
	eg.POST("", api.createEje, admin)
	eg.GET("/:id/sub-ejes", api.querySubEjes)
	eg.POST("/:id/sub-ejes", api.createSubEje, admin)

	pg := g.Group("/plan", jwt)
	pg.PUT("/:id/meta", api.updateRowMeta, admin)
	pg.PUT("/:id/accion", api.updateRowAccion)
}

// Handlers

func (api *planApi) createArea(ctx echo.Context) error {
	var data plan.NewArea
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewArea")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	area, err := api.deps.PlanSvc.CreateArea(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == plan.ErrAreaExists {
			return core.NewConflictError(plan.ErrAreaExists.Error())
		}
		return errors.Wrap(err, "creating area")
	}
	return ctx.JSON(http.StatusCreated, area)
}

func (api *planApi) queryAreas(ctx echo.Context) error {
	areas, err := api.deps.PlanSvc.QueryAreas(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying areas")
	}
	if areas == nil {
		areas = []plan.Area{}
	}
	return ctx.JSON(http.StatusOK, areas)
}

func (api *planApi) createEje(ctx echo.Context) error {
	var data plan.NewEje
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEje")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	eje, err := api.deps.PlanSvc.CreateEje(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == plan.ErrEjeExists {
			return core.NewConflictError(plan.ErrEjeExists.Error())
		}
		return errors.Wrap(err, "creating eje")
	}
	return ctx.JSON(http.StatusCreated, eje)
}

func (api *planApi) queryEjes(ctx echo.Context) error {
	ejes, err := api.deps.PlanSvc.QueryEjes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying ejes")
	}
	if ejes == nil {
		ejes = []plan.Eje{}
	}
	return ctx.JSON(http.StatusOK, ejes)
}

func (api *planApi) createSubEje(ctx echo.Context) error {
	var data plan.NewSubEje
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubEje")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	se, err := api.deps.PlanSvc.CreateSubEje(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		switch errors.Cause(err) {
		case plan.ErrEjeNotFound:
			return errHttpNotFound
		case plan.ErrSubEjeExists:
			return core.NewConflictError(plan.ErrSubEjeExists.Error())
		}
		return errors.Wrap(err, "creating sub-eje")
	}
	return ctx.JSON(http.StatusCreated, se)
}

func (api *planApi) querySubEjes(ctx echo.Context) error {
	subEjes, err := api.deps.PlanSvc.QuerySubEjes(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == plan.ErrEjeNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "querying sub-ejes")
	}
	if subEjes == nil {
		subEjes = []plan.SubEje{}
	}
	return ctx.JSON(http.StatusOK, subEjes)
}

// assignEje attaches an eje to an area and materializes one plan cell per
// sub-eje.
func (api *planApi) assignEje(ctx echo.Context) error {
	var data AssignEjeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignEjeRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	rows, err := api.deps.PlanSvc.AssignEje(ctx.Request().Context(), ctx.Param("id"), data.EjeID)
	if err != nil {
		switch errors.Cause(err) {
		case plan.ErrAreaNotFound, plan.ErrEjeNotFound:
			return errHttpNotFound
		case plan.ErrEjeAssigned:
			return core.NewConflictError(plan.ErrEjeAssigned.Error())
		}
		return errors.Wrap(err, "assigning eje to area")
	}
	return ctx.JSON(http.StatusCreated, rows)
}

// queryRows returns an area's full action plan. Regular users only see their
// own area.
func (api *planApi) queryRows(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	areaID := ctx.Param("id")
	if !claims.IsAdmin && claims.AreaID != areaID {
		return errHttpForbidden
	}

	rows, err := api.deps.PlanSvc.QueryRows(ctx.Request().Context(), areaID)
	if err != nil {
		if errors.Cause(err) == plan.ErrAreaNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "querying plan rows")
	}
	if rows == nil {
		rows = []plan.Row{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *planApi) updateRowMeta(ctx echo.Context) error {
	var data plan.UpdateRowMeta
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRowMeta")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	row, err := api.deps.PlanSvc.UpdateRowMeta(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == plan.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating plan cell")
	}
	return ctx.JSON(http.StatusOK, row)
}

// updateRowAccion lets the area's regular user fill in their side of the cell.
func (api *planApi) updateRowAccion(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	row, err := api.deps.PlanSvc.GetRow(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == plan.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding plan cell")
	}
	if !usr.IsAdmin() && !usr.BelongsTo(row.AreaID) {
		return errHttpForbidden
	}

	var data plan.UpdateRowAccion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRowAccion")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	row, err = api.deps.PlanSvc.UpdateRowAccion(ctx.Request().Context(), row.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating plan cell")
	}
	return ctx.JSON(http.StatusOK, row)
}

type AssignEjeRequest struct {
	EjeID string `json:"eje_id" validate:"required,uuid4"`
}
