package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a UUID when the caller did not
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// User is a member of the documentation team
type User struct {
	BaseModel
	Username    string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Email       string `gorm:"type:varchar(255);not null;uniqueIndex"`
	DisplayName string `gorm:"type:varchar(200);not null;column:display_name"`
	Role        Role   `gorm:"type:varchar(20);not null;default:'user'"`
	Team        string `gorm:"type:varchar(100);not null;default:''"`
	Active      bool   `gorm:"not null;default:true;index"`
}

// Vehicle is reference data for year/make/model
type Vehicle struct {
	BaseModel
	Year      int        `gorm:"not null;uniqueIndex:idx_vehicles_year_make_model"`
	Make      string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_vehicles_year_make_model"`
	Model     string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_vehicles_year_make_model"`
	IsCustom  bool       `gorm:"not null;default:false;column:is_custom"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;column:created_by"`
}

// AdasSystem is reference data for the ADAS systems a ticket can name
type AdasSystem struct {
	Code        string `gorm:"type:varchar(50);primaryKey"`
	Name        string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text"`
}

// Ticket is a documentation opportunity moving through the lifecycle.
// Timestamps are set from the injected clock, never by gorm.
type Ticket struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey"`
	TicketNumber   string       `gorm:"type:varchar(20);not null;uniqueIndex;column:ticket_number"`
	NumberYear     int          `gorm:"not null;uniqueIndex:idx_tickets_year_seq;column:number_year"`
	NumberSeq      int          `gorm:"not null;uniqueIndex:idx_tickets_year_seq;column:number_seq"`
	CreatorID      uuid.UUID    `gorm:"type:uuid;not null;index;column:creator_id"`
	AcceptorID     *uuid.UUID   `gorm:"type:uuid;index;column:acceptor_id"`
	VehicleID      *uuid.UUID   `gorm:"type:uuid;column:vehicle_id"`
	VehicleYear    int          `gorm:"not null;column:vehicle_year"`
	VehicleMake    string       `gorm:"type:varchar(100);not null;column:vehicle_make"`
	VehicleModel   string       `gorm:"type:varchar(100);not null;column:vehicle_model"`
	VIN            *string      `gorm:"type:varchar(17);column:vin"`
	Description    string       `gorm:"type:text;not null"`
	Status         TicketStatus `gorm:"type:varchar(20);not null;index"`
	CreatedAt      time.Time    `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt      time.Time    `gorm:"not null;autoUpdateTime:false"`
	StartedAt      *time.Time   `gorm:"column:started_at"`
	CompletedAt    *time.Time   `gorm:"column:completed_at"`
	ResponseTimeMs *int64       `gorm:"column:response_time_ms"`
	WorkTimeMs     *int64       `gorm:"column:work_time_ms"`
	Version        int64        `gorm:"not null"`

	Systems     []TicketSystem `gorm:"foreignKey:TicketID"`
	Comments    []Comment      `gorm:"foreignKey:TicketID"`
	Attachments []Attachment   `gorm:"foreignKey:TicketID"`
}

// BeforeCreate assigns a UUID when the caller did not
func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsParticipant reports whether the user created or accepted the ticket
func (t *Ticket) IsParticipant(userID uuid.UUID) bool {
	return t.CreatorID == userID || (t.AcceptorID != nil && *t.AcceptorID == userID)
}

// AcceptedBy reports whether the user is the ticket's acceptor
func (t *Ticket) AcceptedBy(userID uuid.UUID) bool {
	return t.AcceptorID != nil && *t.AcceptorID == userID
}

// VehicleLabel renders "year make model"
func (t *Ticket) VehicleLabel() string {
	return VehicleLabel(t.VehicleYear, t.VehicleMake, t.VehicleModel)
}

// TicketSystem is one ADAS system entry on a ticket, kept in submission order
type TicketSystem struct {
	ID               uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	TicketID         uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_ticket_systems_position;column:ticket_id"`
	Position         int                         `gorm:"not null;uniqueIndex:idx_ticket_systems_position"`
	SystemCode       string                      `gorm:"type:varchar(50);not null;column:system_code"`
	AffectedPortions datatypes.JSONSlice[string] `gorm:"column:affected_portions"`
}

// BeforeCreate assigns a UUID when the caller did not
func (s *TicketSystem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Comment is an append-only entry in a ticket's log
type Comment struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey"`
	TicketID      uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_comments_ticket_seq;column:ticket_id"`
	Seq           int         `gorm:"not null;uniqueIndex:idx_comments_ticket_seq"`
	AuthorID      uuid.UUID   `gorm:"type:uuid;not null;column:author_id"`
	AuthorDisplay string      `gorm:"type:varchar(200);not null;column:author_display"`
	Text          string      `gorm:"type:text;not null"`
	Kind          CommentKind `gorm:"type:varchar(20);not null"`
	CreatedAt     time.Time   `gorm:"not null;autoCreateTime:false"`
}

// BeforeCreate assigns a UUID when the caller did not
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Attachment is file metadata pointing at a content-addressed blob
type Attachment struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TicketID     uuid.UUID  `gorm:"type:uuid;not null;index;column:ticket_id"`
	UploaderID   uuid.UUID  `gorm:"type:uuid;not null;column:uploader_id"`
	OriginalName string     `gorm:"type:varchar(255);not null;column:original_name"`
	Size         int64      `gorm:"not null"`
	Mime         string     `gorm:"type:varchar(100);not null"`
	ContentHash  string     `gorm:"type:varchar(64);not null;index;column:content_hash"`
	StorageKey   string     `gorm:"type:varchar(255);not null;index;column:storage_key"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime:false"`
	Deleted      bool       `gorm:"not null;default:false;index"`
	DeletedAt    *time.Time `gorm:"column:deleted_at"`
	PurgedAt     *time.Time `gorm:"column:purged_at"`
}

// BeforeCreate assigns a UUID when the caller did not
func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Notification is one row of a user's ledger
type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_notifications_user_created;column:user_id"`
	TicketID  *uuid.UUID       `gorm:"type:uuid;index;column:ticket_id"`
	Kind      NotificationKind `gorm:"type:varchar(30);not null"`
	Message   string           `gorm:"type:varchar(500);not null"`
	CreatedAt time.Time        `gorm:"not null;index:idx_notifications_user_created;autoCreateTime:false"`
	Read      bool             `gorm:"column:read;not null;default:false;index"`
	ReadAt    *time.Time       `gorm:"column:read_at"`
}

// BeforeCreate assigns a UUID when the caller did not
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// ActivityLog is the append-only audit trail
type ActivityLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id"`
	TicketID  *uuid.UUID     `gorm:"type:uuid;index;column:ticket_id"`
	Action    ActivityAction `gorm:"type:varchar(50);not null"`
	Details   datatypes.JSON
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
}

// TableName keeps the singular table name used by the schema
func (ActivityLog) TableName() string {
	return "activity_log"
}

// BeforeCreate assigns a UUID when the caller did not
func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AllModels lists every persisted model, in creation order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Vehicle{},
		&AdasSystem{},
		&Ticket{},
		&TicketSystem{},
		&Comment{},
		&Attachment{},
		&Notification{},
		&ActivityLog{},
	}
}
