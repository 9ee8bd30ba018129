package shared

// Direction represents market direction.
type Direction int

const (
	NoDirection Direction = iota
	Up
	Down
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return ""
	}
}
