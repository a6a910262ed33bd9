package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/grading"
	"github.com/trezcool/elimu/core/user"
)

type enrollmentApi struct {
	svc      *enrollment.Service
	catSvc   *catalog.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := enrollmentApi{
		svc:      deps.EnrollSvc,
		catSvc:   deps.CatalogSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	eg := g.Group("/enrollments", jwt)
	eg.POST("", api.enroll, studentMiddleware())
	eg.GET("", api.queryMine, studentMiddleware())
	eg.GET("/:id", api.retrieve)
	eg.POST("/:id/lessons/:idx/complete", api.completeLesson, studentMiddleware())
	eg.POST("/:id/lessons/:idx/assessment", api.submitLessonAssessment, studentMiddleware())
	eg.POST("/:id/final-assessment", api.submitFinalAssessment, studentMiddleware())
	eg.POST("/:id/grade", api.gradeEssay, instructorOrAdminMiddleware())
}

// Handlers

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	var data enrollment.EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), ctxUsr, data.ModuleID)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) queryMine(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enrs, err := api.svc.QueryMine(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, err := api.svc.GetByID(ctx.Request().Context(), ctxUsr, id)
	if err != nil {
		return errors.Wrap(err, "finding enrollment by ID")
	}

	mod, err := api.catSvc.GetModule(ctx.Request().Context(), enr.ModuleID)
	if err != nil {
		return errors.Wrap(err, "finding module by ID")
	}
	return ctx.JSON(http.StatusOK, EnrollmentResponse{
		Enrollment:        enr,
		RemainingAttempts: enrollment.RemainingAttempts(enr, mod),
	})
}

func (api *enrollmentApi) completeLesson(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	idx, err := intParam(ctx, "idx")
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, err := api.svc.CompleteLesson(ctx.Request().Context(), ctxUsr, id, idx)
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) submitLessonAssessment(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	idx, err := intParam(ctx, "idx")
	if err != nil {
		return err
	}

	var data enrollment.SubmitAssessmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAssessmentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, res, err := api.svc.SubmitLessonAssessment(ctx.Request().Context(), ctxUsr, id, idx, data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting lesson assessment")
	}
	return ctx.JSON(http.StatusOK, AssessmentResponse{Enrollment: enr, Result: res})
}

func (api *enrollmentApi) submitFinalAssessment(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data enrollment.SubmitAssessmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAssessmentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, res, err := api.svc.SubmitFinalAssessment(ctx.Request().Context(), ctxUsr, id, data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting final assessment")
	}
	return ctx.JSON(http.StatusOK, AssessmentResponse{Enrollment: enr, Result: res})
}

func (api *enrollmentApi) gradeEssay(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data enrollment.GradeEssayRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeEssayRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, err := api.svc.GradeEssay(ctx.Request().Context(), ctxUsr, id, data)
	if err != nil {
		return errors.Wrap(err, "grading essay")
	}
	return ctx.JSON(http.StatusOK, enr)
}

type (
	// EnrollmentResponse decorates an enrollment with derived attempt info.
	EnrollmentResponse struct {
		enrollment.Enrollment
		// RemainingAttempts is -1 when attempts are unlimited.
		RemainingAttempts int `json:"remaining_attempts"`
	}

	AssessmentResponse struct {
		Enrollment enrollment.Enrollment `json:"enrollment"`
		Result     grading.Result        `json:"result"`
	}
)
