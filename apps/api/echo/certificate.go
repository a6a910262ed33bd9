package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
)

type certificateApi struct {
	svc       *certificate.Service
	enrollSvc *enrollment.Service
	usrSvc    *user.Service
	renderer  certificate.Renderer
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := certificateApi{
		svc:       deps.CertSvc,
		enrollSvc: deps.EnrollSvc,
		usrSvc:    deps.UserSvc,
		renderer:  deps.CertRenderer,
	}

	cg := g.Group("/certificates")

	// public verification endpoint; the public id is an unguessable uuid
	cg.GET("/verify/:publicID", api.verify)

	ag := cg.Group("", jwt)
	ag.GET("/enrollments/:id", api.retrieveByEnrollment)
	ag.GET("/enrollments/:id/download", api.download)
}

// Handlers

func (api *certificateApi) verify(ctx echo.Context) error {
	cert, err := api.svc.VerifyByPublicID(ctx.Request().Context(), ctx.Param("publicID"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) retrieveByEnrollment(ctx echo.Context) error {
	cert, err := api.getOwnedCertificate(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) download(ctx echo.Context) error {
	cert, err := api.getOwnedCertificate(ctx)
	if err != nil {
		return err
	}

	doc, contentType, err := api.renderer.Render(cert)
	if err != nil {
		return errors.Wrap(err, "rendering certificate")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="certificate-`+cert.Number+`.html"`)
	return ctx.Blob(http.StatusOK, contentType, doc)
}

// getOwnedCertificate loads the certificate for an enrollment the caller may
// see (owner, admin or assigned instructor), via the enrollment ownership check.
func (api *certificateApi) getOwnedCertificate(ctx echo.Context) (certificate.Certificate, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return certificate.Certificate{}, err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "getting context user")
	}

	if _, err = api.enrollSvc.GetByID(ctx.Request().Context(), ctxUsr, id); err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "finding enrollment by ID")
	}

	cert, err := api.svc.GetByEnrollment(ctx.Request().Context(), id)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "finding certificate")
	}
	return cert, nil
}
