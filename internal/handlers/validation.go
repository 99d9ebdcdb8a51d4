package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/response"
	appValidator "github.com/charlesng35/authhub/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and applies its validate
// tags. On failure the 400 envelope has already been written.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	err := appValidator.ValidateStruct(dest)
	if err == nil {
		return true
	}

	message := "invalid request payload"
	var failures appValidator.ValidationErrors
	if errors.As(err, &failures) {
		message = failures.Error()
	}
	response.Error(c, appErrors.NewBadRequest(message))
	return false
}
