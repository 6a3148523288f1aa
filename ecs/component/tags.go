package component

// ArenaTag marks the single entity holding arena-wide state.
type ArenaTag struct{}

var ArenaTagComponent = NewComponent[ArenaTag]()
