package tree

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	rlerrors "github.com/rootline/rootline/pkg/errors"
)

// Traversal window limits.
const (
	DefaultUp       = 3
	DefaultDown     = 3
	DefaultMaxNodes = 500

	MaxDepth    = 10
	MaxNodesCap = 2000
)

// Sex values as sent by the backend.
const (
	SexMale    = "M"
	SexFemale  = "F"
	SexUnknown = "U"
)

// Node is one appearance of a person in a traversal response.
type Node struct {
	ID         string   `json:"id"`
	Ref        string   `json:"ref"`
	Name       string   `json:"name"`
	Birth      string   `json:"birth,omitempty"`
	Death      string   `json:"death,omitempty"`
	Sex        string   `json:"sex,omitempty"`
	PictureURL string   `json:"picture_url,omitempty"`
	Deceased   bool     `json:"deceased"`
	MID        string   `json:"mid,omitempty"`
	FID        string   `json:"fid,omitempty"`
	PIDs       []string `json:"pids,omitempty"`
	OwnerID    string   `json:"owner_id,omitempty"`
}

// Traversal is the backend's answer to a [Request].
type Traversal struct {
	RootID string `json:"root_id"`
	Nodes  []Node `json:"nodes"`
}

// Request asks for a bounded traversal around RootRef.
type Request struct {
	RootRef  string `json:"root_ref" validate:"required"`
	Up       int    `json:"up_depth" validate:"min=0,max=10"`
	Down     int    `json:"down_depth" validate:"min=0,max=10"`
	MaxNodes int    `json:"max_nodes" validate:"min=1,max=2000"`
}

// NewRequest returns a request for rootRef with the default window.
func NewRequest(rootRef string) Request {
	return Request{RootRef: rootRef, Up: DefaultUp, Down: DefaultDown, MaxNodes: DefaultMaxNodes}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request window and the root ref format.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			switch fe.Field() {
			case "Up":
				return rlerrors.ValidateDepth("up", r.Up, MaxDepth)
			case "Down":
				return rlerrors.ValidateDepth("down", r.Down, MaxDepth)
			case "MaxNodes":
				return rlerrors.New(rlerrors.ErrCodeInvalidInput,
					"max nodes must be between 1 and %d, got %v", MaxNodesCap, fe.Value())
			}
			return rlerrors.New(rlerrors.ErrCodeInvalidInput, "%s is %s", fe.Field(), fe.Tag())
		}
		return rlerrors.Wrap(rlerrors.ErrCodeInvalidInput, err, "invalid traversal request")
	}
	return rlerrors.ValidateRef(r.RootRef)
}

func (r Request) String() string {
	return fmt.Sprintf("%s up=%d down=%d max=%d", r.RootRef, r.Up, r.Down, r.MaxNodes)
}
