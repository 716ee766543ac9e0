package validator

import (
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// echoのc.Validate()から呼ばれるwrapper
type EchoValidator struct {
	v *validatorv10.Validate
}

func New() *EchoValidator {
	return &EchoValidator{v: validatorv10.New()}
}

func (ev *EchoValidator) Validate(i interface{}) error {
	if err := ev.v.Struct(i); err != nil {
		//handler側でbodyを400に落とす
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
