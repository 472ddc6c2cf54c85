package manifest

import (
	"github.com/hashicorp/hcl/v2"
)

// coordinateBlock is a `coordinate` block from a manifest file. A static
// dimension lists its values; a derived dimension names its dependencies
// and gives an expression evaluated once per dependency combination.
type coordinateBlock struct {
	Name         string         `hcl:"name,label"`
	Dependencies []string       `hcl:"dependencies,optional"`
	Values       hcl.Expression `hcl:"values,optional"`
	Expr         hcl.Expression `hcl:"expr,optional"`
}

// actionsBlock maps action names to registered Go handler names.
type actionsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// dataBlock is a `data` block from a manifest file. The location expression
// is evaluated per coordinate row with the dependency columns in scope; a
// null result marks the combination as having no artifact.
type dataBlock struct {
	Name         string         `hcl:"name,label"`
	Dependencies []string       `hcl:"dependencies"`
	Location     hcl.Expression `hcl:"location"`
	Actions      *actionsBlock  `hcl:"actions,block"`
}

// fileRoot decodes all recognized top-level blocks from one manifest file.
type fileRoot struct {
	Coordinates []*coordinateBlock `hcl:"coordinate,block"`
	Data        []*dataBlock       `hcl:"data,block"`
	Remain      hcl.Body           `hcl:",remain"`
}
