package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/user"
)

type catalogApi struct {
	svc      *catalog.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := catalogApi{
		svc:      deps.CatalogSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/categories", jwt)
	cg.POST("", api.createCategory, adminMiddleware())
	cg.GET("", api.queryCategories)
	cg.GET("/:id", api.retrieveCategory)
	cg.GET("/:id/modules", api.queryPublishedModules)

	mg := g.Group("/modules", jwt)
	mg.POST("", api.createModule, instructorOrAdminMiddleware())
	mg.GET("/:id", api.retrieveModule)
	mg.POST("/:id/submit", api.submitModule, instructorOrAdminMiddleware())
	mg.POST("/:id/approve", api.approveModule, adminMiddleware())
	mg.POST("/:id/reject", api.rejectModule, adminMiddleware())
	mg.POST("/:id/publish", api.publishModule, adminMiddleware())
	mg.POST("/:id/archive", api.archiveModule, adminMiddleware())
}

// Handlers

func (api *catalogApi) createCategory(ctx echo.Context) error {
	var data CategoryRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CategoryRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), catalog.Category{
		Name:      data.Name,
		Access:    data.Access,
		Price:     data.Price,
		FellowIDs: data.FellowIDs,
	})
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *catalogApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.QueryCategories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []catalog.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *catalogApi) retrieveCategory(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	cat, err := api.svc.GetCategory(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding category by ID")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) queryPublishedModules(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	mods, err := api.svc.QueryPublished(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying published modules")
	}
	if mods == nil {
		mods = []catalog.Module{}
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *catalogApi) createModule(ctx echo.Context) error {
	var data catalog.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mod, err := api.svc.CreateModule(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *catalogApi) retrieveModule(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	mod, err := api.svc.GetModule(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding module by ID")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *catalogApi) submitModule(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mod, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, id)
	if err != nil {
		return errors.Wrap(err, "submitting module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *catalogApi) approveModule(ctx echo.Context) error {
	return api.adminTransition(ctx, api.svc.Approve)
}

func (api *catalogApi) rejectModule(ctx echo.Context) error {
	return api.adminTransition(ctx, api.svc.Reject)
}

func (api *catalogApi) publishModule(ctx echo.Context) error {
	return api.adminTransition(ctx, api.svc.Publish)
}

func (api *catalogApi) archiveModule(ctx echo.Context) error {
	return api.adminTransition(ctx, api.svc.Archive)
}

func (api *catalogApi) adminTransition(
	ctx echo.Context,
	fn func(c context.Context, moduleID int) (catalog.Module, error),
) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	mod, err := fn(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "transitioning module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

type CategoryRequest struct {
	Name      string             `json:"name" validate:"required"`
	Access    catalog.AccessKind `json:"access" validate:"omitempty,oneof=free paid restricted"`
	Price     int64              `json:"price" validate:"min=0"`
	FellowIDs []int              `json:"fellow_ids"`
}

func (cr *CategoryRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}
