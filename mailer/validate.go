package mailer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateCampaign checks the request shape before any work begins. Field
// errors are flattened into one readable message.
func validateCampaign(c Campaign) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var msgs []string
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "max":
			msgs = append(msgs, field+" must be at most "+fe.Param()+" characters")
		case "min":
			msgs = append(msgs, field+" must have at least "+fe.Param()+" entries")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("invalid campaign: %s", strings.Join(msgs, ", "))
}
