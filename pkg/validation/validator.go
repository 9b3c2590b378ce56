package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
)

// ErrInvalidRequest wraps every compute request rejection
var ErrInvalidRequest = errors.New("invalid metrics request")

// Size limits for a single compute request
const (
	DefaultMaxNodes    = 200_000
	DefaultMaxLinks    = 2_000_000
	MaxNodeIDLength    = 512
	MaxResolutionValue = 1000.0
)

// Limits bounds the size of an accepted request
type Limits struct {
	MaxNodes int
	MaxLinks int
}

// DefaultLimits returns the default request size limits
func DefaultLimits() Limits {
	return Limits{
		MaxNodes: DefaultMaxNodes,
		MaxLinks: DefaultMaxLinks,
	}
}

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterStructValidation(validateLink, engine.Link{})
}

// validateLink bounds endpoint id length. Endpoints are not checked against
// the node list; the engine drops links it cannot resolve.
func validateLink(sl validator.StructLevel) {
	link := sl.Current().Interface().(engine.Link)
	if len(link.Source) > MaxNodeIDLength {
		sl.ReportError(link.Source, "Source", "source", "max", fmt.Sprint(MaxNodeIDLength))
	}
	if len(link.Target) > MaxNodeIDLength {
		sl.ReportError(link.Target, "Target", "target", "max", fmt.Sprint(MaxNodeIDLength))
	}
}

// ValidateComputeRequest checks a request's shape before it is dispatched.
// Unknown link endpoints are not an error; the engine drops them.
func ValidateComputeRequest(req *engine.Request, limits Limits) error {
	if req == nil {
		return fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}

	if limits.MaxNodes > 0 && len(req.Nodes) > limits.MaxNodes {
		return fmt.Errorf("%w: nodes: maximum %d allowed, got %d", ErrInvalidRequest, limits.MaxNodes, len(req.Nodes))
	}
	if limits.MaxLinks > 0 && len(req.Links) > limits.MaxLinks {
		return fmt.Errorf("%w: links: maximum %d allowed, got %d", ErrInvalidRequest, limits.MaxLinks, len(req.Links))
	}

	if math.IsNaN(req.LouvainResolution) || math.IsInf(req.LouvainResolution, 0) {
		return fmt.Errorf("%w: louvainResolution: must be a finite number", ErrInvalidRequest)
	}
	if req.LouvainResolution > MaxResolutionValue {
		return fmt.Errorf("%w: louvainResolution: must not exceed %g", ErrInvalidRequest, MaxResolutionValue)
	}

	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, formatValidationError(err))
	}

	for i, n := range req.Nodes {
		if len(n.ID) > MaxNodeIDLength {
			return fmt.Errorf("%w: nodes[%d].id: exceeds maximum length of %d characters", ErrInvalidRequest, i, MaxNodeIDLength)
		}
	}

	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Report the first failure, named by its namespace (e.g. Request.Links[2].Source)
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, e.Param())
		case "max":
			return fmt.Errorf("%s: must not exceed %s characters", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
