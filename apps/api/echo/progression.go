package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/progression"
	"github.com/trezcool/elimu/core/user"
)

type progressionApi struct {
	svc    *progression.Service
	usrSvc *user.Service
}

func registerProgressionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressionApi{
		svc:    deps.ProgSvc,
		usrSvc: deps.UserSvc,
	}

	pg := g.Group("/progression", jwt, studentMiddleware())
	pg.GET("/categories/:id", api.retrieve)
	pg.GET("/categories/:id/levels", api.levelAccess)
	pg.GET("/categories/:id/levels/:level", api.checkLevel)
}

// Handlers

func (api *progressionApi) retrieve(ctx echo.Context) error {
	categoryID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	prog, err := api.svc.GetForCategory(ctx.Request().Context(), ctxUsr.ID, categoryID)
	if err != nil {
		return errors.Wrap(err, "finding progression")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *progressionApi) levelAccess(ctx echo.Context) error {
	categoryID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	statuses, err := api.svc.GetLevelAccessStatus(ctx.Request().Context(), ctxUsr.ID, categoryID)
	if err != nil {
		return errors.Wrap(err, "getting level access status")
	}
	return ctx.JSON(http.StatusOK, statuses)
}

func (api *progressionApi) checkLevel(ctx echo.Context) error {
	categoryID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	level := catalog.Level(ctx.Param("level"))
	if !level.Valid() {
		return errHttpNotFound
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ok, err := api.svc.CanAccessLevel(ctx.Request().Context(), ctxUsr.ID, categoryID, level)
	if err != nil {
		return errors.Wrap(err, "checking level access")
	}
	return ctx.JSON(http.StatusOK, LevelAccessResponse{Level: level, CanAccess: ok})
}

type LevelAccessResponse struct {
	Level     catalog.Level `json:"level"`
	CanAccess bool          `json:"can_access"`
}
