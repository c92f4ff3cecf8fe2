package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity verifies trial balance and cached balances per organisation.
	TaskGLIntegrity = "ledger:gl_integrity"
)

// GLIntegrityPayload scopes an integrity run. A zero OrgID checks every
// organisation with accounts.
type GLIntegrityPayload struct {
	OrgID int64 `json:"org_id,omitempty"`
}

// NewGLIntegrityTask constructs an Asynq task for the integrity check.
func NewGLIntegrityTask(orgID int64) (*asynq.Task, error) {
	body, err := json.Marshal(GLIntegrityPayload{OrgID: orgID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
