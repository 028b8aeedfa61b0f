package reactive

import (
	"github.com/google/uuid"

	"github.com/roach88/rgraph/internal/property"
	"github.com/roach88/rgraph/internal/typeid"
	"github.com/roach88/rgraph/internal/value"
)

// Entity is a reactive node of the graph.
type Entity struct {
	id uuid.UUID
	ty typeid.EntityTypeID
	container
}

var _ Instance[uuid.UUID] = (*Entity)(nil)

// NewEntity creates an entity with one mutable property per entry of props.
func NewEntity(id uuid.UUID, ty typeid.EntityTypeID, props value.Object) *Entity {
	return &Entity{
		id:        id,
		ty:        ty,
		container: newContainer(property.NewFromValues(id.String(), props)),
	}
}

// NewEntityFromTypes creates an entity whose properties are the given
// property types initialised to their defaults.
func NewEntityFromTypes(id uuid.UUID, ty typeid.EntityTypeID, types []typeid.PropertyType) *Entity {
	return &Entity{
		id:        id,
		ty:        ty,
		container: newContainer(property.NewFromPropertyTypes(id.String(), types)),
	}
}

func (e *Entity) ID() uuid.UUID { return e.id }

func (e *Entity) Type() typeid.EntityTypeID { return e.ty }

func (e *Entity) String() string {
	return e.ty.String() + "/" + e.id.String()
}
