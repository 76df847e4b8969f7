package models

import (
	"encoding/json"
	"time"
)

type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "new"
	LeadStatusContacted     LeadStatus = "contacted"
	LeadStatusInterested    LeadStatus = "interested"
	LeadStatusQuoted        LeadStatus = "quoted"
	LeadStatusConverted     LeadStatus = "converted"
	LeadStatusLost          LeadStatus = "lost"
	LeadStatusNotInterested LeadStatus = "not-interested"
)

var LeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusInterested,
	LeadStatusQuoted,
	LeadStatusConverted,
	LeadStatusLost,
	LeadStatusNotInterested,
}

func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Open reports whether a lead in this status still counts against a rep's load.
func (s LeadStatus) Open() bool {
	return s != LeadStatusConverted && s != LeadStatusLost
}

const (
	OriginManual  = "manual"
	OriginWebsite = "website"
	OriginBooking = "booking"
)

type Remark struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}

type Lead struct {
	ID                string          `json:"id"`
	UserID            *string         `json:"userId"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	Destination       string          `json:"destination"`
	TravelDate        time.Time       `json:"travelDate"`
	EndDate           *time.Time      `json:"endDate"`
	NumberOfTravelers int             `json:"numberOfTravelers"`
	Status            LeadStatus      `json:"status"`
	AssignedTo        *string         `json:"assignedTo"`
	Source            ItinerarySource `json:"itinerarySource"`
	PackageName       string          `json:"packageName"`
	Remarks           []Remark        `json:"remarks"`
	Origin            string          `json:"origin"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type LeadFilter struct {
	Status     string
	AssignedTo string
	Q          string
	Limit      int
	Offset     int
}

const (
	RoleCustomer = "customer"
	RoleSalesRep = "salesRep"
	RoleAdmin    = "admin"
)

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone"`
	Role               string     `json:"role"`
	PasswordHash       string     `json:"-"`
	IsTempPassword     bool       `json:"isTempPassword"`
	MustChangePassword bool       `json:"mustChangePassword"`
	IsActive           bool       `json:"isActive"`
	LastLoginAt        *time.Time `json:"lastLoginAt"`
	LastActivityAt     *time.Time `json:"lastActivityAt"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// LastSeen is the most recent of the login and activity timestamps.
func (u User) LastSeen() *time.Time {
	switch {
	case u.LastLoginAt == nil:
		return u.LastActivityAt
	case u.LastActivityAt == nil:
		return u.LastLoginAt
	case u.LastActivityAt.After(*u.LastLoginAt):
		return u.LastActivityAt
	default:
		return u.LastLoginAt
	}
}

const (
	AssignmentModeManual = "manual"
	AssignmentModeAuto   = "auto"

	StrategyRoundRobin = "round_robin"
	StrategyLoadBased  = "load_based"
)

type AssignmentSettings struct {
	AssignmentMode        string    `json:"assignmentMode"`
	AutoStrategy          string    `json:"autoStrategy"`
	EnabledSalesReps      []string  `json:"enabledSalesReps"`
	RoundRobinIndex       int       `json:"roundRobinIndex"`
	MaxOpenLeadsPerRep    int       `json:"maxOpenLeadsPerRep"`
	SkipInactive          bool      `json:"skipInactive"`
	RequireActiveLogin48h bool      `json:"requireActiveLogin48h"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func DefaultAssignmentSettings() AssignmentSettings {
	return AssignmentSettings{
		AssignmentMode:   AssignmentModeManual,
		AutoStrategy:     StrategyRoundRobin,
		EnabledSalesReps: []string{},
	}
}

const (
	NotificationLeadAssigned = "lead_assigned"

	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

type Notification struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Recipient     string          `json:"recipient"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	LastError     string          `json:"lastError,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	SentAt        *time.Time      `json:"sentAt,omitempty"`
}

type LeadAssignmentPayload struct {
	SalesRepID     string    `json:"salesRepId"`
	SalesRepEmail  string    `json:"salesRepEmail"`
	SalesRepName   string    `json:"salesRepName"`
	LeadID         string    `json:"leadId"`
	LeadName       string    `json:"leadName"`
	LeadEmail      string    `json:"leadEmail"`
	Destination    string    `json:"destination"`
	TravelDate     time.Time `json:"travelDate"`
	AssignedBy     string    `json:"assignedBy"`
	AssignmentMode string    `json:"assignmentMode"`
}
