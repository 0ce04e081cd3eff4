package model

import "time"

// Coach delivers one or more services. FullName is the scheduling identity.
type Coach struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	ExpertiseTags string    `json:"expertise_tags,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	ServiceIDs    []int64   `json:"service_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

// Offers reports whether the coach is linked to the service.
func (c *Coach) Offers(serviceID int64) bool {
	for _, id := range c.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// CoachServiceLink joins a coach with a service it can deliver.
type CoachServiceLink struct {
	CoachID   int64 `json:"coach_id"`
	ServiceID int64 `json:"service_id"`
}
