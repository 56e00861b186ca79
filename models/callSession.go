package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/causeway/donors_backend/utils"
)

// CallSession records one outreach call to a donor. A session may produce a
// payment plan (PlanId) and an appointment, and accumulates several kinds of
// child logs while the call workflow runs.
type CallSession struct {
	ID         int        `gorm:"primary_key" json:"id"`
	DonorId    int        `gorm:"index;not null" json:"donor_id"`
	PlanId     *int       `gorm:"index" json:"plan_id"`
	OperatorId int        `gorm:"not null" json:"operator_id"`
	Outcome    string     `gorm:"size:50" json:"outcome"`
	Notes      string     `gorm:"type:text" json:"notes"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	EndedAt    *time.Time `json:"ended_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Attempts      []CallAttempt       `gorm:"foreignKey:SessionId" json:"attempts,omitempty"`
	SmsLogs       []SmsLog            `gorm:"foreignKey:SessionId" json:"sms_logs,omitempty"`
	Executions    []WorkflowExecution `gorm:"foreignKey:SessionId" json:"executions,omitempty"`
	Steps         []ConversationStep  `gorm:"foreignKey:SessionId" json:"steps,omitempty"`
	Responses     []CallResponse      `gorm:"foreignKey:SessionId" json:"responses,omitempty"`
	AppointmentId *int                `json:"appointment_id"`
}

type CallAttempt struct {
	ID          int       `gorm:"primary_key" json:"id"`
	SessionId   int       `gorm:"index;not null" json:"session_id"`
	AttemptedAt time.Time `gorm:"not null" json:"attempted_at"`
	Result      string    `gorm:"size:50" json:"result"`
}

type SmsLog struct {
	ID        int       `gorm:"primary_key" json:"id"`
	SessionId int       `gorm:"index;not null" json:"session_id"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Body      string    `gorm:"type:text" json:"body"`
	SentAt    time.Time `gorm:"not null" json:"sent_at"`
}

type WorkflowExecution struct {
	ID         int       `gorm:"primary_key" json:"id"`
	SessionId  int       `gorm:"index;not null" json:"session_id"`
	Step       string    `gorm:"size:100" json:"step"`
	ExecutedAt time.Time `gorm:"not null" json:"executed_at"`
}

type ConversationStep struct {
	ID        int       `gorm:"primary_key" json:"id"`
	SessionId int       `gorm:"index;not null" json:"session_id"`
	Sequence  int       `gorm:"not null" json:"sequence"`
	Prompt    string    `gorm:"type:text" json:"prompt"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type CallResponse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	SessionId int       `gorm:"index;not null" json:"session_id"`
	Question  string    `gorm:"size:255" json:"question"`
	Answer    string    `gorm:"type:text" json:"answer"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Appointment struct {
	ID          int       `gorm:"primary_key" json:"id"`
	DonorId     int       `gorm:"index;not null" json:"donor_id"`
	ScheduledAt time.Time `gorm:"not null" json:"scheduled_at"`
	Purpose     string    `gorm:"size:255" json:"purpose"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewCallSession struct {
	DonorId    int    `json:"donor_id" binding:"required"`
	OperatorId int    `json:"operator_id" binding:"required"`
	Outcome    string `json:"outcome"`
	Notes      string `json:"notes"`
}

func CreateCallSession(ctx context.Context, input *NewCallSession) (*CallSession, error) {
	if err := utils.ValidateResourceId[Donor](ctx, input.DonorId); err != nil {
		return nil, errors.New("donor not found")
	}
	session := CallSession{
		DonorId:    input.DonorId,
		OperatorId: input.OperatorId,
		Outcome:    input.Outcome,
		Notes:      input.Notes,
		StartedAt:  time.Now(),
	}
	db := getDB()
	if err := db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

type UpdateCallSession struct {
	PlanId        *int       `json:"plan_id"`
	Outcome       *string    `json:"outcome"`
	Notes         *string    `json:"notes"`
	EndedAt       *time.Time `json:"ended_at"`
	AppointmentId *int       `json:"appointment_id"`
}

func UpdateCallSessionFields(ctx context.Context, id int, input *UpdateCallSession) (*CallSession, error) {
	session, err := utils.FetchModel[CallSession](ctx, id)
	if err != nil {
		return nil, err
	}
	if input.PlanId != nil {
		if err := utils.ValidateResourceId[PaymentPlan](ctx, *input.PlanId); err != nil {
			return nil, errors.New("plan not found")
		}
		session.PlanId = input.PlanId
	}
	if input.Outcome != nil {
		session.Outcome = *input.Outcome
	}
	if input.Notes != nil {
		session.Notes = *input.Notes
	}
	if input.EndedAt != nil {
		session.EndedAt = input.EndedAt
	}
	if input.AppointmentId != nil {
		if err := utils.ValidateResourceId[Appointment](ctx, *input.AppointmentId); err != nil {
			return nil, errors.New("appointment not found")
		}
		session.AppointmentId = input.AppointmentId
	}
	db := getDB()
	if err := db.WithContext(ctx).Save(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func GetCallSession(ctx context.Context, id int) (*CallSession, error) {
	return utils.FetchModel[CallSession](ctx, id,
		"Attempts", "SmsLogs", "Executions", "Steps", "Responses")
}

func GetCallSessions(ctx context.Context, donorId *int, limit int, offset int) ([]*CallSession, int64, error) {
	db := getDB()
	dbCtx := db.WithContext(ctx).Model(&CallSession{})
	if donorId != nil && *donorId > 0 {
		dbCtx = dbCtx.Where("donor_id = ?", *donorId)
	}
	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var results []*CallSession
	if err := dbCtx.Order("started_at DESC, id DESC").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// DeleteCallSession removes a session and every child log, plus its linked
// appointment. If the session produced a plan, deletePlan decides between the
// full plan-deletion protocol and a plain unlink. All-or-nothing.
func DeleteCallSession(ctx context.Context, id int, deletePlan bool) (*CallSession, error) {
	session, err := utils.FetchModel[CallSession](ctx, id)
	if err != nil {
		return nil, err
	}

	db := getDB()
	tx := db.Begin()

	for _, child := range []interface{}{
		&CallAttempt{}, &SmsLog{}, &WorkflowExecution{}, &ConversationStep{}, &CallResponse{},
	} {
		if err := tx.WithContext(ctx).Where("session_id = ?", session.ID).Delete(child).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if session.AppointmentId != nil {
		if err := tx.WithContext(ctx).Delete(&Appointment{}, *session.AppointmentId).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	donorToInvalidate := 0
	if session.PlanId != nil {
		if deletePlan {
			var plan PaymentPlan
			if err := tx.WithContext(ctx).First(&plan, *session.PlanId).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := deletePaymentPlanTx(tx, ctx, &plan); err != nil {
				tx.Rollback()
				return nil, err
			}
			donorToInvalidate = plan.DonorId
		} else {
			if err := tx.WithContext(ctx).Model(session).Update("plan_id", nil).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.WithContext(ctx).Delete(session).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if donorToInvalidate > 0 {
		InvalidateDonorCache(donorToInvalidate)
	}
	return session, nil
}
