package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// ConnectionParams are the connection settings common to HTTP backends.
type ConnectionParams struct {
	URL                string        `mapstructure:"url" validate:"required,url,startswith=http"`
	APIKey             string        `mapstructure:"api_key"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gte=0"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

var paramValidator = validator.New(validator.WithRequiredStructEnabled())

// DecodeConnectionParams reads defs into ConnectionParams. Durations may be given as
// strings ("30s") or integers of nanoseconds; unknown keys are ignored.
func DecodeConnectionParams(defs map[string]any) (ConnectionParams, error) {
	var params ConnectionParams
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &params,
	})
	if err != nil {
		return params, ErrInvalidConnectionParams.Err(err)
	}
	if err := decoder.Decode(defs); err != nil {
		return params, ErrInvalidConnectionParams.Err(err)
	}
	params.URL = strings.TrimSpace(params.URL)
	if err := paramValidator.Struct(params); err != nil {
		return params, ErrInvalidConnectionParams.MsgErr(describeValidation(err), err)
	}
	return params, nil
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return ErrInvalidConnectionParams.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid connection parameters: " + strings.Join(fields, ", ")
}
