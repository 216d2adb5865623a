package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/crs"
	"github.com/joeblew999/geoportal/internal/render"
	"github.com/joeblew999/geoportal/internal/service"
	"github.com/joeblew999/geoportal/internal/source"
	"github.com/joeblew999/geoportal/internal/table"
)

// statusError maps domain errors onto Huma status errors. Errors that
// already carry a status pass through.
func statusError(err error) error {
	var se huma.StatusError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return err
	case errors.Is(err, catalog.ErrLayerNotFound),
		errors.Is(err, service.ErrGroupNotFound),
		errors.Is(err, render.ErrFeatureNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrLayerInactive),
		errors.Is(err, table.ErrExport),
		errors.Is(err, crs.ErrReprojection):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, source.ErrDataUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
