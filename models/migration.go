package models

import (
	"log"

	"bitbucket.org/causeway/donors_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Donor{},
		&Pledge{}, &Payment{},
		&PaymentPlan{}, &Installment{},
		&CallSession{}, &CallAttempt{}, &SmsLog{}, &WorkflowExecution{}, &ConversationStep{}, &CallResponse{},
		&Appointment{},
		&ResourceAllocation{},
		&DriftReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
