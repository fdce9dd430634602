package domain

import "time"

type OperationKind string

const (
	OperationCreation     OperationKind = "CREATION"
	OperationModification OperationKind = "MODIFICATION"
	OperationDeletion     OperationKind = "SUPPRESSION"
	OperationLogin        OperationKind = "CONNEXION"
	OperationLogout       OperationKind = "DECONNEXION"
)

// JournalEntry is one line of the audit trail. Entries are written on a
// best-effort basis after the primary operation; a failed write never rolls
// the operation back.
type JournalEntry struct {
	ID          int64         `json:"id"`
	Actor       string        `json:"actor"`
	Operation   OperationKind `json:"operation"`
	Description string        `json:"description"`
	Shop        string        `json:"shop"`
	Details     string        `json:"details"`
	CreatedAt   time.Time     `json:"created_at"`
}
