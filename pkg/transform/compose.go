package transform

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/josetascon/cinemri-simulation/internal/models"
)

// FieldLoader reads a deformation field from its handle. Every call must
// return a field the caller owns, since composition scales it in place.
type FieldLoader interface {
	LoadField(handle string) (*models.DisplacementField, error)
}

// LoaderFunc adapts a function to FieldLoader.
type LoaderFunc func(handle string) (*models.DisplacementField, error)

// LoadField calls f(handle).
func (f LoaderFunc) LoadField(handle string) (*models.DisplacementField, error) {
	return f(handle)
}

type stage struct {
	field  *models.DisplacementField
	mapper *models.Mapper
}

// Chain is an ordered list of displacement stages. Stage 0 is applied to a
// point first, later stages are applied to its result.
type Chain struct {
	stages []stage
}

// NewChain returns an empty (identity) chain.
func NewChain() *Chain {
	return &Chain{}
}

// AddStage appends field as the outermost stage.
func (c *Chain) AddStage(field *models.DisplacementField) error {
	mp, err := field.Geometry.Mapper()
	if err != nil {
		return fmt.Errorf("invalid field geometry: %w", err)
	}
	c.stages = append(c.stages, stage{field: field, mapper: mp})
	return nil
}

// Len returns the number of stages
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.stages)
}

// IsIdentity reports whether the chain leaves every point unchanged.
func (c *Chain) IsIdentity() bool {
	return c.Len() == 0
}

// TransformPoint maps a physical point through every stage in order. Points
// that fall outside a stage's field are displaced by zero in that stage.
func (c *Chain) TransformPoint(p r3.Vec) r3.Vec {
	if c == nil {
		return p
	}
	for _, s := range c.stages {
		x, y, z := s.mapper.ContinuousIndex(p)
		dx, ok := models.Trilinear(s.field.X, s.field.Size, x, y, z)
		if !ok {
			continue
		}
		dy, _ := models.Trilinear(s.field.Y, s.field.Size, x, y, z)
		dz, _ := models.Trilinear(s.field.Z, s.field.Size, x, y, z)
		p = r3.Add(p, r3.Vec{X: dx, Y: dy, Z: dz})
	}
	return p
}

// Composer loads resolved fields and chains them with amplitude modulation.
type Composer struct {
	loader FieldLoader
}

// NewComposer creates a composer reading fields through loader.
func NewComposer(loader FieldLoader) *Composer {
	return &Composer{loader: loader}
}

// Compose builds the chain for refs. Every field is scaled by amplitude; the
// first one, the partial step into the phase still being interpolated, is
// also scaled by proportion. An empty refs list gives the identity chain.
func (c *Composer) Compose(refs []FieldRef, amplitude, proportion float64) (*Chain, error) {
	chain := NewChain()
	for i, ref := range refs {
		field, err := c.loader.LoadField(ref.Handle)
		if err != nil {
			return nil, fmt.Errorf("failed to load field %s: %w", ref.Key, err)
		}

		scale := amplitude
		if i == 0 {
			scale *= proportion
		}
		field.Scale(scale)

		if err := chain.AddStage(field); err != nil {
			return nil, fmt.Errorf("field %s: %w", ref.Key, err)
		}
	}
	return chain, nil
}
