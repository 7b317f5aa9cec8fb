package config

import (
	"fmt"
)

type StorageKeyStruct struct{}

func NewStorageKeyStruct() *StorageKeyStruct {
	return &StorageKeyStruct{}
}

// AttemptSnapshot returns the durable-storage key for the attempt
// snapshot of an exam. One entry per exam.
func (r *StorageKeyStruct) AttemptSnapshot(examID string) string {
	return fmt.Sprintf("exam_attempt_%s", examID)
}

// UserAttemptSnapshot returns the attempt snapshot key scoped to a user,
// used by backends shared between candidates (Redis).
func (r *StorageKeyStruct) UserAttemptSnapshot(userID, examID string) string {
	return fmt.Sprintf("user:%s:exam_attempt_%s", userID, examID)
}

var StorageKey = NewStorageKeyStruct()
