package ecs

import "strconv"

// Entity packs a slot id in the low 32 bits and its generation in the high
// 32 bits, so a handle to a destroyed robot never aliases its replacement.
type Entity uint64

type entityID uint32
type generation uint32

const entityIDBits = 32

func makeEntity(id entityID, gen generation) Entity {
	return Entity(uint64(gen)<<entityIDBits | uint64(id))
}

func (e Entity) id() entityID {
	return entityID(uint32(e))
}

func (e Entity) generation() generation {
	return generation(uint32(uint64(e) >> entityIDBits))
}

// String is the decimal form robots are addressed by in the HTTP API.
func (e Entity) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// ParseEntity reverses String. It does not check that the robot exists.
func ParseEntity(s string) (Entity, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Entity(v), nil
}

// Valid reports whether e was ever handed out; slot 0 is never used.
func (e Entity) Valid() bool {
	return e.id() > 0
}
