package game

import "table-game-server/internal/player"

// Seat is a named slot at a table. The occupant reference is shared, not
// owned: the table never manages the participant's lifecycle. After a
// disconnect the display name is retained and shown with an absentee marker.
type Seat struct {
	// DisplayName is the seat's name ("north", "white", "player 2").
	DisplayName string

	// Required marks seats that must be occupied for the table to be
	// active. Optional observer seats leave it false.
	Required bool

	// Occupant is the connected participant holding the seat, or nil.
	Occupant player.Participant

	// Data is the per-game extension slot. Each concrete game stores its
	// own small typed struct here; the engine never looks inside.
	Data any

	absenteeName string
}

// Occupied reports whether a connected participant holds the seat.
func (s *Seat) Occupied() bool {
	return s.Occupant != nil
}

// Sit places a participant in the seat, clearing any absentee trace.
func (s *Seat) Sit(p player.Participant) {
	s.Occupant = p
	s.absenteeName = ""
}

// Vacate empties the seat, keeping the previous occupant's name as an
// absentee trace for display.
func (s *Seat) Vacate() {
	if s.Occupant != nil {
		s.absenteeName = s.Occupant.Name()
	}
	s.Occupant = nil
}

// Clear empties the seat without leaving an absentee trace. Used when a
// player leaves deliberately rather than disconnecting.
func (s *Seat) Clear() {
	s.Occupant = nil
	s.absenteeName = ""
}

// OccupantLabel renders the seat's holder for listings: the occupant's name,
// an "(absentee)" annotation, or an empty-seat marker.
func (s *Seat) OccupantLabel() string {
	switch {
	case s.Occupant != nil:
		return s.Occupant.Name()
	case s.absenteeName != "":
		return s.absenteeName + " (absentee)"
	default:
		return "<empty>"
	}
}
