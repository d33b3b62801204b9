package doctor

import (
	"context"
	"fmt"

	"github.com/hay-kot/alcl/internal/sandbox"
)

// SessionLister lists the accounts managed for the current host user.
type SessionLister interface {
	List(ctx context.Context) ([]sandbox.Info, error)
}

// OrphanCheck detects managed accounts that exist but never became usable,
// usually left behind by an interrupted create.
type OrphanCheck struct {
	sessions SessionLister
}

// NewOrphanCheck creates a new orphan account check.
func NewOrphanCheck(sessions SessionLister) *OrphanCheck {
	return &OrphanCheck{sessions: sessions}
}

func (c *OrphanCheck) Name() string {
	return "Sessions"
}

func (c *OrphanCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	infos, err := c.sessions.List(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "List sessions",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	if len(infos) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "No sessions",
			Status: StatusPass,
			Detail: "no managed accounts on this host",
		})
		return result
	}

	for _, info := range infos {
		if info.Resolvable {
			result.Items = append(result.Items, CheckItem{
				Label:  info.Name,
				Status: StatusPass,
				Detail: info.Account,
			})
			continue
		}

		result.Items = append(result.Items, CheckItem{
			Label:   info.Name,
			Status:  StatusWarn,
			Detail:  fmt.Sprintf("%s does not resolve; run 'alcl prune --match %s'", info.Account, info.Name),
			Fixable: true,
		})
	}

	return result
}
