package domain

import "time"

type APIKey struct {
	TokenHash  string
	Username   string
	Name       string
	Privileged bool
	Active     bool
	CreatedAt  time.Time
}
