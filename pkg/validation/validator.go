// Package validation checks edit requests before they reach the graph model.
// The graph enforces its own structural invariants; this layer rejects
// obviously bad input at the boundary with readable messages.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Validation constants
const (
	MaxIDLength      = 100
	MaxLabelLength   = 200
	MaxProperties    = 100
	MaxPropertyKey   = 100
	MaxBlocksPerEdit = 500
)

var (
	// idPattern matches node ids, which double as filenames
	idPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

	// propKeyPattern matches property names
	propKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)
)

// NodeRequest represents a request to create or update a node
type NodeRequest struct {
	ID       string         `json:"id" validate:"required,max=100"`
	Kind     string         `json:"kind" validate:"required,oneof=branch group geo-anchor geo-window image"`
	ParentID *string        `json:"parentId" validate:"omitempty,min=1,max=100"`
	Label    string         `json:"label" validate:"max=200"`
	Extra    map[string]any `json:"extra" validate:"omitempty,max=100"`
}

// EdgeRequest represents a request to connect two branches
type EdgeRequest struct {
	Source string  `json:"source" validate:"required,max=100"`
	Target string  `json:"target" validate:"required,max=100"`
	Weight float64 `json:"weight" validate:"required,gt=0"`
}

// BlockRequest represents a request to add or update a block
type BlockRequest struct {
	BranchID string         `json:"branchId" validate:"required,max=100"`
	Index    int            `json:"index" validate:"min=0"`
	Type     string         `json:"type" validate:"required,max=100"`
	Quantity int            `json:"quantity" validate:"min=1"`
	Props    map[string]any `json:"props" validate:"omitempty,max=100"`
}

// RequestValidator validates edit requests. Construct one per session; the
// instance is safe for concurrent use.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a request validator
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// ValidateNode validates a node creation/update request
func (rv *RequestValidator) ValidateNode(req *NodeRequest) error {
	if req == nil {
		return errors.New("node request cannot be nil")
	}

	if err := rv.validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if err := ValidateID(req.ID); err != nil {
		return fmt.Errorf("ID: %w", err)
	}
	if req.ParentID != nil {
		if err := ValidateID(*req.ParentID); err != nil {
			return fmt.Errorf("ParentID: %w", err)
		}
	}

	for key := range req.Extra {
		if err := ValidatePropertyKey(key); err != nil {
			return fmt.Errorf("Extra: %w", err)
		}
	}

	return nil
}

// ValidateEdge validates a connect request
func (rv *RequestValidator) ValidateEdge(req *EdgeRequest) error {
	if req == nil {
		return errors.New("edge request cannot be nil")
	}

	if err := rv.validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if err := ValidateID(req.Source); err != nil {
		return fmt.Errorf("Source: %w", err)
	}
	if err := ValidateID(req.Target); err != nil {
		return fmt.Errorf("Target: %w", err)
	}
	if req.Source == req.Target {
		return fmt.Errorf("Target: edge endpoints must differ, both are '%s'", req.Source)
	}

	return nil
}

// ValidateBlock validates a block add/update request
func (rv *RequestValidator) ValidateBlock(req *BlockRequest) error {
	if req == nil {
		return errors.New("block request cannot be nil")
	}

	if err := rv.validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if err := ValidateID(req.BranchID); err != nil {
		return fmt.Errorf("BranchID: %w", err)
	}
	if !propKeyPattern.MatchString(req.Type) {
		return fmt.Errorf("Type: '%s' contains invalid characters", req.Type)
	}
	if req.Index > MaxBlocksPerEdit {
		return fmt.Errorf("Index: %d exceeds maximum of %d", req.Index, MaxBlocksPerEdit)
	}

	for key := range req.Props {
		if err := ValidatePropertyKey(key); err != nil {
			return fmt.Errorf("Props: %w", err)
		}
	}

	return nil
}

// ValidateID validates a node identifier. Ids become filenames, so the
// character set is deliberately narrow.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("identifier cannot be empty")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("identifier '%s' exceeds maximum length of %d characters", id, MaxIDLength)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("identifier '%s' is invalid (must start with alphanumeric or underscore, followed by alphanumeric, underscore, dot or dash)", id)
	}
	return nil
}

// ValidatePropertyKey validates a property name
func ValidatePropertyKey(key string) error {
	if key == "" {
		return errors.New("property key cannot be empty")
	}
	if len(key) > MaxPropertyKey {
		return fmt.Errorf("property key '%s' exceeds maximum length of %d characters", key, MaxPropertyKey)
	}
	if !propKeyPattern.MatchString(key) {
		return fmt.Errorf("property key '%s' is invalid (must start with letter or underscore, followed by alphanumeric, underscore or dash)", key)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
