// controller/exception_controller.go
package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/util"
)

// IExceptionStore is the registry surface the API exposes. Exceptions are
// first-class data, managed here, never inline annotations in the
// configuration files they excuse.
type IExceptionStore interface {
	Create(ctx context.Context, exc model.Exception) (model.Exception, error)
	List(ctx context.Context) ([]model.Exception, error)
	Get(ctx context.Context, id string) (model.Exception, error)
	Delete(ctx context.Context, id string) error
}

type ExceptionController struct {
	store IExceptionStore
}

func NewExceptionController(store IExceptionStore) *ExceptionController {
	return &ExceptionController{store: store}
}

// RegisterRoutes registers the API routes
func (ec *ExceptionController) RegisterRoutes(r *gin.RouterGroup) {
	exceptions := r.Group("/exceptions")
	{
		exceptions.POST("", ec.CreateException)
		exceptions.GET("", ec.ListExceptions)
		exceptions.GET("/:id", ec.GetException)
		exceptions.DELETE("/:id", ec.DeleteException)
	}
}

// CreateException endpoint
func (ec *ExceptionController) CreateException(c *gin.Context) {
	var exc model.Exception
	if err := c.ShouldBindJSON(&exc); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid exception data", gk_errors.ErrInvalidExceptionData)
		return
	}
	if exc.CreatedBy == "" {
		exc.CreatedBy = util.GetSubmitterFromContext(c)
	}

	created, err := ec.store.Create(c.Request.Context(), exc)
	if err != nil {
		switch {
		case errors.Is(err, gk_errors.ErrInvalidExceptionData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid exception data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create exception", gk_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListExceptions endpoint
func (ec *ExceptionController) ListExceptions(c *gin.Context) {
	exceptions, err := ec.store.List(c.Request.Context())
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list exceptions", gk_errors.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, exceptions)
}

// GetException endpoint
func (ec *ExceptionController) GetException(c *gin.Context) {
	exc, err := ec.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gk_errors.ErrExceptionNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Exception not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to get exception", gk_errors.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, exc)
}

// DeleteException endpoint
func (ec *ExceptionController) DeleteException(c *gin.Context) {
	if err := ec.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, gk_errors.ErrExceptionNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Exception not found", err)
			return
		}
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to delete exception", gk_errors.ErrInternalServer)
		return
	}
	c.Status(http.StatusNoContent)
}
