package component

// Transform is a robot's chassis pose copied out of the physics world each
// tick. Heading is in radians, counter-clockwise from +Y.
type Transform struct {
	X       float64
	Y       float64
	Heading float64
}

// Motion is the chassis velocity at the last sync.
type Motion struct {
	VX   float64
	VY   float64
	Spin float64
}

var TransformComponent = NewComponent[Transform]()
var MotionComponent = NewComponent[Motion]()
