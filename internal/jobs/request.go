package jobs

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/providers/replicate"
)

var validate = validator.New()

// Request is one job submission: a model name or an explicit version id,
// never both, plus a non-empty provider-specific input mapping.
type Request struct {
	Model   string         `json:"model,omitempty" validate:"required_without=Version,excluded_with=Version"`
	Version string         `json:"version,omitempty" validate:"required_without=Model,excluded_with=Model"`
	Input   map[string]any `json:"input" validate:"required,min=1"`
}

// Validate rejects malformed requests before anything touches the network.
func (r Request) Validate() error {
	r.Model = strings.TrimSpace(r.Model)
	r.Version = strings.TrimSpace(r.Version)
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("jobs: model or version and input are required: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// Ref returns the provider model reference.
func (r Request) Ref() replicate.ModelRef {
	return replicate.ModelRef{Model: strings.TrimSpace(r.Model), Version: strings.TrimSpace(r.Version)}
}
