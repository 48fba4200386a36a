package domain

// Track is a static catalog entity referenced by rounds, never mutated.
type Track struct {
	ID         string
	PackID     string
	Title      string
	Artist     string
	Popularity int // 0-100, higher is more popular
}

// Pack is a named track catalog a session draws from.
type Pack struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
}
