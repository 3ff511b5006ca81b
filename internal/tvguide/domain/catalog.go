package domain

import "time"

type Channel struct {
	ID        string
	Name      string
	Country   string
	CreatedAt time.Time
}

type Program struct {
	ID          string
	ChannelID   string
	Title       string
	Description string
	Tags        []string
	StartTime   time.Time
	EndTime     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Duration is the scheduled length of the program.
func (p Program) Duration() time.Duration {
	return p.EndTime.Sub(p.StartTime)
}
